package database

import (
	"fmt"
	"net/url"
	"os"
)

// PostgresURL resolves the Postgres connection string. DATABASE_URL wins;
// otherwise a Cloud SQL unix socket DSN is built from INSTANCE_CONNECTION_NAME,
// DB_USER, DB_PASSWORD and DB_NAME.
func PostgresURL(databaseURL string) (string, error) {
	if databaseURL != "" {
		return databaseURL, nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	name := os.Getenv("DB_NAME")

	if instance == "" {
		return "", fmt.Errorf("neither DATABASE_URL nor INSTANCE_CONNECTION_NAME is set")
	}
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	socket := "/cloudsql/" + instance
	if password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable", socket, user, password, name), nil
	}
	// IAM authentication
	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable", socket, user, name), nil
}

// SQLiteURL builds a modernc DSN for a database file.
func SQLiteURL(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// Redact hides the password of a URL-style DSN for logging.
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}

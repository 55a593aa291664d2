package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/auth"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/config"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/content"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/database"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/logging"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/social"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		db, err := connect(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		return database.RunMigrations(cmd.Context(), db, cfg.Database.Driver, logger)
	},
}

var (
	introFile   string
	introDryRun bool
)

var introCmd = &cobra.Command{
	Use:   "intro",
	Short: "Post the introduction thread",
	Long: `Post the built-in introduction thread, or one read from --file where
parts are separated by blank lines.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		parts := content.IntroThread(brandFrom(cfg.Brand))
		if introFile != "" {
			raw, err := os.ReadFile(introFile)
			if err != nil {
				return fmt.Errorf("read thread file: %w", err)
			}
			parts = content.SplitThread(string(raw))
		}
		if len(parts) == 0 {
			return social.ErrEmptyThread
		}

		if introDryRun {
			out := cmd.OutOrStdout()
			for i, p := range parts {
				fmt.Fprintf(out, "--- %d/%d (%d chars)\n%s\n", i+1, len(parts), len([]rune(p)), p)
			}
			return nil
		}

		if !cfg.Twitter.HasUserCredentials() {
			return fmt.Errorf("posting requires TWITTER_API_KEY, TWITTER_API_SECRET, TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_TOKEN_SECRET")
		}
		ids, err := social.PostThread(cmd.Context(), newPlatform(cfg.Twitter, logger), parts)
		if err != nil {
			return err
		}
		logger.Info("intro thread posted", "parts", len(ids), "first_id", ids[0])
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Read a password from stdin and print its bcrypt hash for ADMIN_PASSWORD_HASH",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return fmt.Errorf("password must not be empty")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	introCmd.Flags().StringVar(&introFile, "file", "", "Thread file with parts separated by blank lines")
	introCmd.Flags().BoolVar(&introDryRun, "dry-run", false, "Print the thread instead of posting it")
}

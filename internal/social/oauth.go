package social

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// oauth1 signs requests with OAuth 1.0a HMAC-SHA1 user context.
type oauth1 struct {
	consumerKey    string
	consumerSecret string
	token          string
	tokenSecret    string

	now   func() time.Time
	nonce func() string
}

func newOAuth1(consumerKey, consumerSecret, token, tokenSecret string) *oauth1 {
	return &oauth1{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		token:          token,
		tokenSecret:    tokenSecret,
		now:            time.Now,
		nonce:          randomNonce,
	}
}

func randomNonce() string {
	b := make([]byte, 32)
	rand.Read(b)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base64.StdEncoding.EncodeToString(b))
}

// header returns the Authorization header for a request. params holds the
// query string and any form parameters; JSON bodies are not signed.
func (o *oauth1) header(method, rawURL string, params url.Values) string {
	oauthParams := map[string]string{
		"oauth_consumer_key":     o.consumerKey,
		"oauth_nonce":            o.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(o.now().Unix(), 10),
		"oauth_token":            o.token,
		"oauth_version":          "1.0",
	}
	oauthParams["oauth_signature"] = o.signature(method, rawURL, params, oauthParams)

	pairs := make([]string, 0, len(oauthParams))
	for k, v := range oauthParams {
		pairs = append(pairs, percentEncode(k)+`="`+percentEncode(v)+`"`)
	}
	sort.Strings(pairs)
	return "OAuth " + strings.Join(pairs, ", ")
}

func (o *oauth1) signature(method, rawURL string, params url.Values, oauthParams map[string]string) string {
	var pairs []string
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
		}
	}
	for k, v := range oauthParams {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
	}
	sort.Strings(pairs)

	base := strings.ToUpper(method) + "&" + percentEncode(baseURL(rawURL)) + "&" + percentEncode(strings.Join(pairs, "&"))
	key := percentEncode(o.consumerSecret) + "&" + percentEncode(o.tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// baseURL strips the query and fragment and lowercases scheme and host.
func baseURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()
}

// percentEncode implements RFC 3986 encoding: only unreserved characters
// are left as is.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&15])
	}
	return sb.String()
}

package iflytek

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// signURL appends the HMAC-SHA256 request signature Spark expects as query
// parameters of a POST to endpoint.
func signURL(endpoint, apiKey, apiSecret string, now time.Time) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse imagine endpoint: %w", err)
	}

	date := now.UTC().Format(http.TimeFormat)
	origin := fmt.Sprintf("host: %s\ndate: %s\nPOST %s HTTP/1.1", u.Host, date, u.EscapedPath())

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(origin))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authorization := fmt.Sprintf(
		`api_key="%s", algorithm="hmac-sha256", headers="host date request-line", signature="%s"`,
		apiKey, signature,
	)

	u.RawQuery = url.Values{
		"authorization": {base64.StdEncoding.EncodeToString([]byte(authorization))},
		"date":          {date},
		"host":          {u.Host},
	}.Encode()
	return u.String(), nil
}

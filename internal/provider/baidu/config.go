package baidu

import "github.com/davidbz/uniai/internal/provider/transport"

// Config is read under the BAIDU_ prefix. Key holds the application API key
// and SecretKey its secret; both are exchanged for an OAuth access token.
type Config struct {
	transport.Settings

	SecretKey string `env:"SECRET_KEY"`
}

package iflytek

import "github.com/davidbz/uniai/internal/provider/transport"

// Config is read under the IFLYTEK_ prefix. Key is the Spark chat API
// password; image generation signs requests with APIKey and APISecret.
type Config struct {
	transport.Settings

	AppID        string `env:"APP_ID"`
	APIKey       string `env:"API_KEY"`
	APISecret    string `env:"API_SECRET"`
	ImagineProxy string `env:"IMAGINE_PROXY"`
}

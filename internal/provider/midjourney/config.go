package midjourney

import "github.com/davidbz/uniai/internal/provider/transport"

// Config is read under the MIDJOURNEY_ prefix. Proxy is the
// midjourney-proxy endpoint and is required; Key is sent as mj-api-secret.
type Config struct {
	transport.Settings

	// ImgProxy replaces the Discord CDN host in returned image URLs.
	ImgProxy string `env:"IMG_PROXY"`
}

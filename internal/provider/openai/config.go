package openai

import "github.com/davidbz/uniai/internal/provider/transport"

// Config contains OpenAI provider configuration, read under the OPENAI_ prefix.
//   - Key: one key or a comma separated pool, picked per call
//   - Proxy: replaces https://api.openai.com for chat, embeddings and images
//   - ImageSize: used when an imagine call carries no dimensions
type Config struct {
	transport.Settings

	ImageSize string `env:"IMAGE_SIZE" envDefault:"1024x1024"`
}

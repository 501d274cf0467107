package domain

import "context"

// Provider is any configured provider binding. Capabilities are discovered
// by asserting the narrower interfaces below.
type Provider interface {
	// Name returns the provider discriminator, e.g. "openai".
	Name() string
}

// ChatProvider answers chat calls.
type ChatProvider interface {
	Provider

	// Chat sends a non-streaming request and returns the aggregate result.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// ChatStream sends a streaming request and returns a lazy sequence of chunks.
	ChatStream(ctx context.Context, req *ChatRequest) (*ChatStream, error)
}

// EmbeddingProvider computes vector embeddings.
type EmbeddingProvider interface {
	Provider

	Embed(ctx context.Context, input []string, opt EmbedOption) (*EmbeddingResult, error)
}

// ImagineProvider generates images and tracks the resulting tasks.
type ImagineProvider interface {
	Provider

	Imagine(ctx context.Context, prompt string, opt ImagineOption) (*ImagineResult, error)

	// Tasks returns every known task, or only the one matching id when id is non-empty.
	Tasks(ctx context.Context, id string) ([]TaskRecord, error)
}

// TaskChanger applies follow-up actions to an existing image task.
type TaskChanger interface {
	Provider

	Change(ctx context.Context, taskID string, action TaskType, index int) (*ImagineResult, error)
}

// ProviderRegistry manages available providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider Provider) error

	// Get retrieves a provider by name.
	Get(ctx context.Context, providerName string) (Provider, error)

	// List returns all available providers.
	List(ctx context.Context) ([]string, error)
}

// KeyValueStore is the opaque side-store used for task records.
type KeyValueStore interface {
	// GetItem returns the stored value or nil when the key is absent.
	GetItem(ctx context.Context, key string) ([]byte, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key string, value []byte) error
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}

package domain_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/uniai/internal/domain"
)

// mockRegistry is a mock implementation of ProviderRegistry for testing.
type mockRegistry struct {
	providers map[string]domain.Provider
}

func newMockRegistry(providers ...domain.Provider) *mockRegistry {
	reg := &mockRegistry{providers: make(map[string]domain.Provider)}
	for _, p := range providers {
		reg.providers[p.Name()] = p
	}
	return reg
}

func (m *mockRegistry) Register(_ context.Context, provider domain.Provider) error {
	m.providers[provider.Name()] = provider
	return nil
}

func (m *mockRegistry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	provider, exists := m.providers[providerName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, providerName)
	}
	return provider, nil
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names, nil
}

// mockChatProvider is a mock implementation of ChatProvider for testing.
type mockChatProvider struct {
	name       string
	chatFunc   func(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResult, error)
	streamFunc func(ctx context.Context, req *domain.ChatRequest) (*domain.ChatStream, error)
	lastReq    *domain.ChatRequest
}

func (m *mockChatProvider) Name() string {
	return m.name
}

func (m *mockChatProvider) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResult, error) {
	m.lastReq = req
	if m.chatFunc != nil {
		return m.chatFunc(ctx, req)
	}
	return &domain.ChatResult{
		Content: "test response",
		Model:   req.Option.Model,
		Object:  domain.KindCompletion,
		Usage:   domain.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
	}, nil
}

func (m *mockChatProvider) ChatStream(ctx context.Context, req *domain.ChatRequest) (*domain.ChatStream, error) {
	m.lastReq = req
	if m.streamFunc != nil {
		return m.streamFunc(ctx, req)
	}
	return domain.NewChatStream(ctx, func(_ context.Context, emit func(*domain.ChatResult) bool) error {
		emit(&domain.ChatResult{Content: "test", Object: domain.KindChunk})
		return nil
	}), nil
}

// mockImagineProvider implements ImagineProvider and TaskChanger.
type mockImagineProvider struct {
	name    string
	tasks   []domain.TaskRecord
	changed string
}

func (m *mockImagineProvider) Name() string {
	return m.name
}

func (m *mockImagineProvider) Imagine(_ context.Context, _ string, _ domain.ImagineOption) (*domain.ImagineResult, error) {
	return &domain.ImagineResult{TaskID: "task-1", Time: 1}, nil
}

func (m *mockImagineProvider) Tasks(_ context.Context, id string) ([]domain.TaskRecord, error) {
	if id == "" {
		return m.tasks, nil
	}
	var out []domain.TaskRecord
	for _, t := range m.tasks {
		if t.ID == id {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockImagineProvider) Change(
	_ context.Context,
	taskID string,
	action domain.TaskType,
	index int,
) (*domain.ImagineResult, error) {
	m.changed = fmt.Sprintf("%s:%s:%d", taskID, action, index)
	return &domain.ImagineResult{TaskID: "task-2", Time: 2}, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	events []string
}

func (r *recordingPublisher) Publish(_ context.Context, eventType string, _ map[string]interface{}) {
	r.events = append(r.events, eventType)
}

func TestGatewayService_Chat(t *testing.T) {
	t.Run("should route to the named provider", func(t *testing.T) {
		provider := &mockChatProvider{name: "deepseek"}
		events := &recordingPublisher{}
		gateway := domain.NewGatewayService(newMockRegistry(provider), events, "openai")

		result, err := gateway.Chat(context.Background(),
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "Hi"}},
			domain.ChatOption{Provider: "deepseek", Model: "deepseek-chat"},
		)

		require.NoError(t, err)
		require.Equal(t, "test response", result.Content)
		require.Equal(t, "deepseek-chat", result.Model)
		require.Equal(t, []string{"chat.completed"}, events.events)
	})

	t.Run("should use the default provider when none is given", func(t *testing.T) {
		provider := &mockChatProvider{name: "openai"}
		gateway := domain.NewGatewayService(newMockRegistry(provider), nil, "openai")

		_, err := gateway.Chat(context.Background(),
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "Hi"}},
			domain.ChatOption{},
		)

		require.NoError(t, err)
		require.Equal(t, "openai", provider.lastReq.Option.Provider)
	})

	t.Run("should send the default prompt when no message is given", func(t *testing.T) {
		provider := &mockChatProvider{name: "openai"}
		gateway := domain.NewGatewayService(newMockRegistry(provider), nil, "")

		_, err := gateway.Chat(context.Background(), nil, domain.ChatOption{})

		require.NoError(t, err)
		require.Len(t, provider.lastReq.Messages, 1)
		require.Equal(t, domain.DefaultPrompt, provider.lastReq.Messages[0].Content)
	})

	t.Run("should fail with provider not found for unknown discriminator", func(t *testing.T) {
		gateway := domain.NewGatewayService(newMockRegistry(), nil, "openai")

		result, err := gateway.Chat(context.Background(),
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "Hi"}},
			domain.ChatOption{Provider: "nonexistent"},
		)

		require.Nil(t, result)
		require.ErrorIs(t, err, domain.ErrProviderNotFound)
	})

	t.Run("should pass provider errors through unchanged", func(t *testing.T) {
		blocked := &domain.ContentBlockedError{Provider: "google", Reason: "SAFETY"}
		provider := &mockChatProvider{
			name: "google",
			chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResult, error) {
				return nil, blocked
			},
		}
		gateway := domain.NewGatewayService(newMockRegistry(provider), nil, "openai")

		_, err := gateway.Chat(context.Background(),
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "Hi"}},
			domain.ChatOption{Provider: "google"},
		)

		require.Same(t, blocked, err)
	})

	t.Run("should reject providers without chat capability", func(t *testing.T) {
		gateway := domain.NewGatewayService(newMockRegistry(&mockImagineProvider{name: "midjourney"}), nil, "openai")

		_, err := gateway.Chat(context.Background(), nil, domain.ChatOption{Provider: "midjourney"})

		require.ErrorIs(t, err, domain.ErrProviderNotFound)
		require.Contains(t, err.Error(), "does not support chat")
	})
}

func TestGatewayService_ChatStream(t *testing.T) {
	t.Run("should return the provider stream with stream flag set", func(t *testing.T) {
		provider := &mockChatProvider{name: "openai"}
		gateway := domain.NewGatewayService(newMockRegistry(provider), nil, "openai")

		stream, err := gateway.ChatStream(context.Background(),
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "Hi"}},
			domain.ChatOption{},
		)
		require.NoError(t, err)
		require.True(t, provider.lastReq.Option.Stream)

		chunk, err := stream.Recv()
		require.NoError(t, err)
		require.Equal(t, "test", chunk.Content)

		_, err = stream.Recv()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("should surface setup failures directly", func(t *testing.T) {
		setupErr := domain.ConfigurationError("openai", "credential not set")
		provider := &mockChatProvider{
			name: "openai",
			streamFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatStream, error) {
				return nil, setupErr
			},
		}
		gateway := domain.NewGatewayService(newMockRegistry(provider), nil, "openai")

		stream, err := gateway.ChatStream(context.Background(), nil, domain.ChatOption{})

		require.Nil(t, stream)
		require.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestGatewayService_Embedding(t *testing.T) {
	t.Run("should reject empty input", func(t *testing.T) {
		gateway := domain.NewGatewayService(newMockRegistry(), nil, "openai")

		_, err := gateway.Embedding(context.Background(), nil, domain.EmbedOption{})

		require.ErrorIs(t, err, domain.ErrEmptyInput)
	})

	t.Run("should reject providers without embedding capability", func(t *testing.T) {
		gateway := domain.NewGatewayService(newMockRegistry(&mockChatProvider{name: "deepseek"}), nil, "openai")

		_, err := gateway.Embedding(context.Background(), []string{"a"}, domain.EmbedOption{Provider: "deepseek"})

		require.ErrorIs(t, err, domain.ErrProviderNotFound)
	})
}

func TestGatewayService_ImagineTaskChange(t *testing.T) {
	provider := &mockImagineProvider{
		name: "midjourney",
		tasks: []domain.TaskRecord{
			{ID: "a", Type: domain.TaskImagine},
			{ID: "b", Type: domain.TaskUpscale},
		},
	}
	events := &recordingPublisher{}
	gateway := domain.NewGatewayService(newMockRegistry(provider, &mockChatProvider{name: "openai"}), events, "openai")
	ctx := context.Background()

	t.Run("should submit imagine", func(t *testing.T) {
		result, err := gateway.Imagine(ctx, "a cat", domain.ImagineOption{Provider: "midjourney"})
		require.NoError(t, err)
		require.Equal(t, "task-1", result.TaskID)
	})

	t.Run("should list and filter tasks", func(t *testing.T) {
		all, err := gateway.Task(ctx, "midjourney", "")
		require.NoError(t, err)
		require.Len(t, all, 2)

		one, err := gateway.Task(ctx, "midjourney", "b")
		require.NoError(t, err)
		require.Len(t, one, 1)
		require.Equal(t, domain.TaskUpscale, one[0].Type)
	})

	t.Run("should change tasks", func(t *testing.T) {
		result, err := gateway.Change(ctx, "midjourney", "a", domain.TaskUpscale, 2)
		require.NoError(t, err)
		require.Equal(t, "task-2", result.TaskID)
		require.Equal(t, "a:UPSCALE:2", provider.changed)
	})

	t.Run("should reject change on providers without the capability", func(t *testing.T) {
		_, err := gateway.Change(ctx, "openai", "a", domain.TaskUpscale, 1)
		require.ErrorIs(t, err, domain.ErrProviderNotFound)
	})

	t.Run("should reject imagine on the default chat-only provider", func(t *testing.T) {
		_, err := gateway.Imagine(ctx, "a cat", domain.ImagineOption{})
		require.True(t, errors.Is(err, domain.ErrProviderNotFound))
	})

	require.Contains(t, events.events, "imagine.submitted")
	require.Contains(t, events.events, "change.submitted")
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/uniai/internal/observability"
)

// DefaultPrompt is sent when chat is called without any message.
const DefaultPrompt = "Hi, who are you? Answer in 10 words!"

// DefaultProvider is used when a call carries no provider discriminator.
type DefaultProvider string

// GatewayService routes canonical calls to the provider bound to the
// requested discriminator. It performs no retries and no fallback.
type GatewayService struct {
	registry        ProviderRegistry
	events          EventPublisher
	defaultProvider string
}

// NewGatewayService creates a new gateway service (DI constructor).
func NewGatewayService(registry ProviderRegistry, events EventPublisher, def DefaultProvider) *GatewayService {
	name := string(def)
	if name == "" {
		name = "openai"
	}
	return &GatewayService{
		registry:        registry,
		events:          events,
		defaultProvider: name,
	}
}

// Chat handles a non-streaming chat call. When opt.Stream is set, use ChatStream instead.
func (g *GatewayService) Chat(ctx context.Context, messages []ChatMessage, opt ChatOption) (*ChatResult, error) {
	provider, req, err := g.prepareChat(ctx, messages, opt)
	if err != nil {
		return nil, err
	}

	ctx = observability.WithCall(ctx, "chat", provider.Name(), req.Option.Model)

	start := time.Now()
	result, err := provider.Chat(ctx, req)
	if err != nil {
		observability.FromContext(ctx).Warn("chat failed", observability.Error(err))
		return nil, err
	}

	g.publish(ctx, "chat.completed", map[string]interface{}{
		"provider":     provider.Name(),
		"model":        result.Model,
		"total_tokens": result.TotalTokens,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return result, nil
}

// ChatStream handles a streaming chat call.
func (g *GatewayService) ChatStream(ctx context.Context, messages []ChatMessage, opt ChatOption) (*ChatStream, error) {
	provider, req, err := g.prepareChat(ctx, messages, opt)
	if err != nil {
		return nil, err
	}
	req.Option.Stream = true

	ctx = observability.WithCall(ctx, "chat", provider.Name(), req.Option.Model)

	stream, err := provider.ChatStream(ctx, req)
	if err != nil {
		observability.FromContext(ctx).Warn("chat stream failed", observability.Error(err))
		return nil, err
	}

	g.publish(ctx, "chat.stream.started", map[string]interface{}{
		"provider": provider.Name(),
		"model":    req.Option.Model,
	})
	return stream, nil
}

// Embedding handles an embedding call.
func (g *GatewayService) Embedding(ctx context.Context, input []string, opt EmbedOption) (*EmbeddingResult, error) {
	if len(input) == 0 {
		return nil, EmptyInputError(g.providerName(opt.Provider))
	}

	p, err := g.resolve(ctx, opt.Provider)
	if err != nil {
		return nil, err
	}
	embedder, ok := p.(EmbeddingProvider)
	if !ok {
		return nil, g.notSupported(p.Name(), "embedding")
	}

	ctx = observability.WithCall(ctx, "embedding", p.Name(), opt.Model)
	result, err := embedder.Embed(ctx, input, opt)
	if err != nil {
		return nil, err
	}

	g.publish(ctx, "embedding.completed", map[string]interface{}{
		"provider": p.Name(),
		"model":    result.Model,
		"vectors":  len(result.Embeddings),
	})
	return result, nil
}

// Imagine submits an image generation task.
func (g *GatewayService) Imagine(ctx context.Context, prompt string, opt ImagineOption) (*ImagineResult, error) {
	p, err := g.resolve(ctx, opt.Provider)
	if err != nil {
		return nil, err
	}
	imaginer, ok := p.(ImagineProvider)
	if !ok {
		return nil, g.notSupported(p.Name(), "imagine")
	}

	ctx = observability.WithCall(ctx, "imagine", p.Name(), opt.Model)
	result, err := imaginer.Imagine(ctx, prompt, opt)
	if err != nil {
		return nil, err
	}

	g.publish(ctx, "imagine.submitted", map[string]interface{}{
		"provider": p.Name(),
		"task_id":  result.TaskID,
	})
	return result, nil
}

// Task returns the image tasks known to a provider, optionally filtered by id.
func (g *GatewayService) Task(ctx context.Context, providerName, id string) ([]TaskRecord, error) {
	p, err := g.resolve(ctx, providerName)
	if err != nil {
		return nil, err
	}
	imaginer, ok := p.(ImagineProvider)
	if !ok {
		return nil, g.notSupported(p.Name(), "task")
	}

	return imaginer.Tasks(observability.WithCall(ctx, "task", p.Name(), ""), id)
}

// Change applies an action (upscale, variation, reroll) to an image task.
func (g *GatewayService) Change(
	ctx context.Context,
	providerName, taskID string,
	action TaskType,
	index int,
) (*ImagineResult, error) {
	p, err := g.resolve(ctx, providerName)
	if err != nil {
		return nil, err
	}
	changer, ok := p.(TaskChanger)
	if !ok {
		return nil, g.notSupported(p.Name(), "change")
	}

	ctx = observability.WithCall(ctx, "change", p.Name(), "")
	result, err := changer.Change(ctx, taskID, action, index)
	if err != nil {
		return nil, err
	}

	g.publish(ctx, "change.submitted", map[string]interface{}{
		"provider": p.Name(),
		"task_id":  result.TaskID,
		"action":   string(action),
	})
	return result, nil
}

// Providers lists the registered provider discriminators.
func (g *GatewayService) Providers(ctx context.Context) ([]string, error) {
	return g.registry.List(ctx)
}

func (g *GatewayService) prepareChat(
	ctx context.Context,
	messages []ChatMessage,
	opt ChatOption,
) (ChatProvider, *ChatRequest, error) {
	if len(messages) == 0 {
		messages = []ChatMessage{{Role: RoleUser, Content: DefaultPrompt}}
	}

	p, err := g.resolve(ctx, opt.Provider)
	if err != nil {
		return nil, nil, err
	}
	chatter, ok := p.(ChatProvider)
	if !ok {
		return nil, nil, g.notSupported(p.Name(), "chat")
	}

	opt.Provider = p.Name()
	return chatter, &ChatRequest{Messages: messages, Option: opt}, nil
}

func (g *GatewayService) resolve(ctx context.Context, name string) (Provider, error) {
	name = g.providerName(name)

	p, err := g.registry.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderNotFound, name, err)
	}
	return p, nil
}

func (g *GatewayService) providerName(name string) string {
	if name == "" {
		return g.defaultProvider
	}
	return name
}

func (g *GatewayService) notSupported(name, op string) error {
	return fmt.Errorf("%w: %s does not support %s", ErrProviderNotFound, name, op)
}

func (g *GatewayService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if g.events == nil {
		return
	}
	g.events.Publish(ctx, eventType, data)
}

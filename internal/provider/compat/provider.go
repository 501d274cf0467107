// Package compat implements every provider that speaks the OpenAI chat
// completions schema, parameterized by a Dialect.
package compat

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/credential"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/imageref"
	"github.com/davidbz/uniai/internal/normalize"
	"github.com/davidbz/uniai/internal/params"
	"github.com/davidbz/uniai/internal/provider/transport"
)

// Provider is a chat-only binding of one dialect.
type Provider struct {
	dialect  Dialect
	baseURL  string
	keys     *credential.Pool
	client   *transport.Client
	catalog  *catalog.Catalog
	resolver *imageref.Resolver
}

// Option customizes a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the HTTP client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.client.WithHTTPClient(hc)
		p.resolver.Client = hc
	}
}

// New creates a chat provider for dialect d.
func New(d Dialect, s transport.Settings, opts ...Option) *Provider {
	client := transport.NewClient(d.Name, s.TimeoutDuration())
	p := &Provider{
		dialect:  d,
		baseURL:  s.BaseURL(d.BaseURL),
		keys:     credential.NewPool(d.Name, s.Key),
		client:   client,
		catalog:  catalog.Default(),
		resolver: &imageref.Resolver{Client: client.HTTPClient()},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bind returns the provider with every capability the dialect supports.
func Bind(d Dialect, s transport.Settings, opts ...Option) domain.Provider {
	p := New(d, s, opts...)
	if d.Embed != EmbedNone {
		return &EmbeddingProvider{Provider: p}
	}
	return p
}

// Name returns the provider discriminator.
func (p *Provider) Name() string {
	return p.dialect.Name
}

// Chat sends a non-streaming chat completion.
func (p *Provider) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResult, error) {
	call, model, err := p.prepare(ctx, req, false)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := p.client.Do(ctx, call, &resp); err != nil {
		return nil, err
	}
	return normalize.Complete(p.dialect.Name, model, p.delta(&resp, false))
}

// ChatStream sends a streaming chat completion.
func (p *Provider) ChatStream(ctx context.Context, req *domain.ChatRequest) (*domain.ChatStream, error) {
	call, model, err := p.prepare(ctx, req, true)
	if err != nil {
		return nil, err
	}
	call.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Open(ctx, call)
	if err != nil {
		return nil, err
	}
	if transport.IsJSON(resp) {
		return nil, transport.ReadError(p.dialect.Name, resp)
	}

	return normalize.Stream(ctx, normalize.NewSSESource(resp), normalize.Options{
		Provider:      p.dialect.Name,
		Model:         model,
		SuppressEmpty: p.dialect.SuppressEmpty,
		Decode:        p.decodeFrame,
	}), nil
}

func (p *Provider) prepare(ctx context.Context, req *domain.ChatRequest, stream bool) (transport.Request, string, error) {
	if p.baseURL == "" {
		return transport.Request{}, "", domain.ConfigurationError(p.dialect.Name, "endpoint not set")
	}
	key, err := p.credential()
	if err != nil {
		return transport.Request{}, "", err
	}

	model := p.catalog.ModelOr(p.dialect.Name, catalog.Chat, req.Option.Model)
	messages, err := p.translate(ctx, req.Messages, model)
	if err != nil {
		return transport.Request{}, "", err
	}

	sampling := params.Normalize(p.dialect.Name, req.Option.Temperature, req.Option.TopP, req.Option.MaxLength)
	body := &chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      stream,
		Temperature: sampling.Temperature,
		TopP:        sampling.TopP,
		MaxTokens:   sampling.MaxLength,
		Tools:       req.Option.Tools,
		ToolChoice:  req.Option.ToolChoice,
	}
	if stream && p.dialect.StreamUsage {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	return transport.Request{
		URL:    p.baseURL + p.dialect.ChatPath,
		Header: transport.Bearer(key),
		Body:   body,
	}, model, nil
}

func (p *Provider) credential() (string, error) {
	key, err := p.keys.Pick()
	if err != nil && p.dialect.KeyOptional {
		return "", nil
	}
	return key, err
}

// decodeFrame maps one stream chunk.
func (p *Provider) decodeFrame(frame normalize.Frame) (*normalize.Delta, error) {
	var chunk chatResponse
	if err := json.Unmarshal(frame.Data, &chunk); err != nil {
		return nil, err
	}
	return p.delta(&chunk, true), nil
}

func (p *Provider) delta(resp *chatResponse, stream bool) *normalize.Delta {
	d := &normalize.Delta{Model: resp.Model}
	if p.dialect.EchoRequested {
		d.Model = ""
	}
	if resp.Error != nil && resp.Error.Message != "" {
		d.Failure = resp.Error.Message
		return d
	}
	if resp.Usage != nil {
		d.Usage = &domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	if len(resp.Choices) == 0 {
		return d
	}

	choice := resp.Choices[0]
	content, calls := choice.Message.Content, choice.Message.ToolCalls
	if stream {
		content, calls = choice.Delta.Content, choice.Delta.ToolCalls
	}
	if content != nil {
		d.Content = *content
	}
	d.ToolCalls = toolCalls(calls)

	if choice.FinishReason != nil {
		switch reason := *choice.FinishReason; reason {
		case "content_filter", "sensitive":
			d.BlockReason = reason
		default:
			d.FinishReason = reason
		}
	}
	return d
}

func toolCalls(calls []wireToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]domain.ToolCall, 0, len(calls))
	for i, c := range calls {
		index := i
		if c.Index != nil {
			index = *c.Index
		}
		out = append(out, domain.ToolCall{
			Index:     index,
			ID:        c.ID,
			Type:      c.Type,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

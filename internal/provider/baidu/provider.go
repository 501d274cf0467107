// Package baidu implements the Baidu ERNIE (Wenxin Workshop) binding.
package baidu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/credential"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/normalize"
	"github.com/davidbz/uniai/internal/params"
	"github.com/davidbz/uniai/internal/provider/transport"
)

const (
	name      = "baidu"
	baseURL   = "https://aip.baidubce.com"
	tokenPath = "/oauth/2.0/token"
	chatPath  = "/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/"
)

// Provider implements chat for ERNIE models.
type Provider struct {
	baseURL   string
	keys      *credential.Pool
	secretKey string
	client    *transport.Client
	tokens    *tokenSource
	catalog   *catalog.Catalog
}

// NewProvider creates a Baidu provider.
func NewProvider(config Config) *Provider {
	base := config.BaseURL(baseURL)
	client := transport.NewClient(name, config.TimeoutDuration())
	return &Provider{
		baseURL:   base,
		keys:      credential.NewPool(name, config.Key),
		secretKey: config.SecretKey,
		client:    client,
		tokens:    newTokenSource(base+tokenPath, client),
		catalog:   catalog.Default(),
	}
}

// Name returns the provider discriminator.
func (p *Provider) Name() string {
	return name
}

// Chat sends a non-streaming request.
func (p *Provider) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResult, error) {
	call, model, err := p.prepare(ctx, req, false)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := p.client.Do(ctx, call, &resp); err != nil {
		return nil, err
	}
	return normalize.Complete(name, model, toDelta(&resp))
}

// ChatStream sends a streaming request. Baidu answers with a plain JSON body
// instead of an event stream when the call is rejected.
func (p *Provider) ChatStream(ctx context.Context, req *domain.ChatRequest) (*domain.ChatStream, error) {
	call, model, err := p.prepare(ctx, req, true)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Open(ctx, call)
	if err != nil {
		return nil, err
	}
	if transport.IsJSON(resp) {
		return nil, transport.ReadError(name, resp)
	}

	return normalize.Stream(ctx, normalize.NewSSESource(resp), normalize.Options{
		Provider: name,
		Model:    model,
		Decode:   decodeFrame,
	}), nil
}

func (p *Provider) prepare(ctx context.Context, req *domain.ChatRequest, stream bool) (transport.Request, string, error) {
	apiKey, err := p.keys.Pick()
	if err != nil {
		return transport.Request{}, "", err
	}
	if p.secretKey == "" {
		return transport.Request{}, "", domain.ConfigurationError(name, "secret key not set")
	}

	messages, system := translate(req.Messages)
	if len(messages) == 0 {
		return transport.Request{}, "", domain.EmptyInputError(name)
	}

	token, err := p.tokens.Token(ctx, apiKey, p.secretKey)
	if err != nil {
		return transport.Request{}, "", fmt.Errorf("failed to get access token: %w", err)
	}

	model := p.catalog.ModelOr(name, catalog.Chat, req.Option.Model)
	sampling := params.Normalize(name, req.Option.Temperature, req.Option.TopP, req.Option.MaxLength)

	return transport.Request{
		URL: p.baseURL + chatPath + url.PathEscape(model) + "?" + url.Values{"access_token": {token}}.Encode(),
		Body: &chatRequest{
			Messages:        messages,
			Stream:          stream,
			Temperature:     sampling.Temperature,
			TopP:            sampling.TopP,
			MaxOutputTokens: sampling.MaxLength,
			System:          system,
		},
	}, model, nil
}

// translate keeps user and assistant turns, merging consecutive turns of the
// same role, so the transcript alternates and starts with the user. System
// turns move to the system field.
func translate(in []domain.ChatMessage) ([]message, string) {
	var (
		out    []message
		system []string
	)
	for _, m := range in {
		switch m.Role {
		case domain.RoleSystem:
			if m.Content != "" {
				system = append(system, m.Content)
			}
			continue
		case domain.RoleUser, domain.RoleAssistant:
		default:
			continue
		}
		if m.Content == "" {
			continue
		}
		if len(out) == 0 && m.Role == domain.RoleAssistant {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == string(m.Role) {
			out[n-1].Content += "\n" + m.Content
			continue
		}
		out = append(out, message{Role: string(m.Role), Content: m.Content})
	}

	// The transcript must end with the user.
	if n := len(out); n > 0 && out[n-1].Role == string(domain.RoleAssistant) {
		out = out[:n-1]
	}
	return out, strings.Join(system, "\n")
}

func decodeFrame(frame normalize.Frame) (*normalize.Delta, error) {
	var resp chatResponse
	if err := json.Unmarshal(frame.Data, &resp); err != nil {
		return nil, err
	}
	return toDelta(&resp), nil
}

func toDelta(resp *chatResponse) *normalize.Delta {
	d := &normalize.Delta{Content: resp.Result, End: resp.IsEnd}
	if resp.ErrorCode != 0 {
		d.Failure = fmt.Sprintf("%s (code=%d)", resp.ErrorMsg, resp.ErrorCode)
		return d
	}
	if resp.NeedClearHistory {
		d.BlockReason = "need_clear_history"
		return d
	}
	if resp.Usage != nil {
		d.Usage = &domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return d
}

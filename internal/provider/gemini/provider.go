// Package gemini implements the Google Gemini binding.
package gemini

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/credential"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/imageref"
	"github.com/davidbz/uniai/internal/normalize"
	"github.com/davidbz/uniai/internal/params"
	"github.com/davidbz/uniai/internal/provider/transport"
)

const (
	name    = "google"
	baseURL = "https://generativelanguage.googleapis.com"

	// maxParallelEmbeds bounds concurrent embedContent calls.
	maxParallelEmbeds = 8
)

//nolint:gochecknoglobals // finish reasons that mean a safety rejection
var blockedFinish = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

// Provider implements chat and embedding for Gemini.
type Provider struct {
	baseURL  string
	keys     *credential.Pool
	client   *transport.Client
	catalog  *catalog.Catalog
	resolver *imageref.Resolver
}

// NewProvider creates a Gemini provider.
func NewProvider(s transport.Settings) *Provider {
	client := transport.NewClient(name, s.TimeoutDuration())
	return &Provider{
		baseURL:  s.BaseURL(baseURL),
		keys:     credential.NewPool(name, s.Key),
		client:   client,
		catalog:  catalog.Default(),
		resolver: &imageref.Resolver{Client: client.HTTPClient()},
	}
}

// Name returns the provider discriminator.
func (p *Provider) Name() string {
	return name
}

// Chat calls generateContent.
func (p *Provider) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResult, error) {
	call, model, err := p.prepare(ctx, req, "generateContent")
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := p.client.Do(ctx, call, &resp); err != nil {
		return nil, err
	}
	return normalize.Complete(name, model, toDelta(&resp))
}

// ChatStream calls streamGenerateContent, which answers with one JSON array
// whose elements arrive incrementally.
func (p *Provider) ChatStream(ctx context.Context, req *domain.ChatRequest) (*domain.ChatStream, error) {
	call, model, err := p.prepare(ctx, req, "streamGenerateContent")
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Open(ctx, call)
	if err != nil {
		return nil, err
	}

	return normalize.Stream(ctx, normalize.NewJSONSource(resp.Body), normalize.Options{
		Provider: name,
		Model:    model,
		Decode:   decodeFrame,
	}), nil
}

// Embed calls embedContent once per input, concurrently, keeping input order.
func (p *Provider) Embed(ctx context.Context, input []string, opt domain.EmbedOption) (*domain.EmbeddingResult, error) {
	if len(input) == 0 {
		return nil, domain.EmptyInputError(name)
	}
	key, err := p.keys.Pick()
	if err != nil {
		return nil, err
	}

	model := p.catalog.ModelOr(name, catalog.Embedding, opt.Model)
	endpoint := p.endpoint(model, "embedContent", key)

	vectors := make([][]float64, len(input))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelEmbeds)
	for i, text := range input {
		g.Go(func() error {
			var resp embedResponse
			err := p.client.Do(gctx, transport.Request{
				URL: endpoint,
				Body: &embedRequest{
					Model:   "models/" + model,
					Content: content{Parts: []part{{Text: text}}},
				},
			}, &resp)
			if err != nil {
				return err
			}
			vectors[i] = resp.Embedding.Values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.EmbeddingResult{Embeddings: vectors, Model: model}, nil
}

func (p *Provider) prepare(ctx context.Context, req *domain.ChatRequest, method string) (transport.Request, string, error) {
	key, err := p.keys.Pick()
	if err != nil {
		return transport.Request{}, "", err
	}

	contents, err := p.contents(ctx, req.Messages)
	if err != nil {
		return transport.Request{}, "", err
	}

	model := p.catalog.ModelOr(name, catalog.Chat, req.Option.Model)
	sampling := params.Normalize(name, req.Option.Temperature, req.Option.TopP, req.Option.MaxLength)

	body := &generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			TopP:            sampling.TopP,
			Temperature:     sampling.Temperature,
			MaxOutputTokens: sampling.MaxLength,
		},
		SafetySettings: safetySettings,
	}
	if system := systemText(req.Messages); system != "" {
		body.SystemInstruction = &systemInstruction{Parts: part{Text: system}}
	}

	return transport.Request{URL: p.endpoint(model, method, key), Body: body}, model, nil
}

func (p *Provider) endpoint(model, method, key string) string {
	return p.baseURL + "/v1beta/models/" + url.PathEscape(model) + ":" + method + "?" +
		url.Values{"key": {key}}.Encode()
}

func decodeFrame(frame normalize.Frame) (*normalize.Delta, error) {
	var resp generateResponse
	if err := json.Unmarshal(frame.Data, &resp); err != nil {
		return nil, err
	}
	// Elements with neither candidates nor feedback (usage-only tail
	// elements) carry no text and must not end the stream.
	if len(resp.Candidates) == 0 && resp.PromptFeedback == nil && (resp.Error == nil || resp.Error.Message == "") {
		if resp.UsageMetadata == nil {
			return nil, nil
		}
		return &normalize.Delta{Usage: usageOf(resp.UsageMetadata)}, nil
	}
	return toDelta(&resp), nil
}

func usageOf(u *usageMetadata) *domain.Usage {
	return &domain.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}

func toDelta(resp *generateResponse) *normalize.Delta {
	d := &normalize.Delta{}
	if resp.UsageMetadata != nil {
		d.Usage = usageOf(resp.UsageMetadata)
	}

	switch {
	case resp.Error != nil && resp.Error.Message != "":
		d.Failure = resp.Error.Message
		return d
	case resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "":
		d.BlockReason = resp.PromptFeedback.BlockReason
		return d
	case len(resp.Candidates) == 0:
		d.Failure = "no candidates"
		return d
	}

	c := resp.Candidates[0]
	if c.Content == nil {
		if blockedFinish[c.FinishReason] {
			d.BlockReason = c.FinishReason
		} else {
			d.Failure = "no content, finish reason: " + c.FinishReason
		}
		return d
	}

	var text strings.Builder
	for _, pt := range c.Content.Parts {
		text.WriteString(pt.Text)
	}
	d.Content = text.String()
	d.FinishReason = c.FinishReason
	return d
}

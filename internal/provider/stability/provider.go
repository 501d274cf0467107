// Package stability implements Stability AI text-to-image generation.
package stability

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/credential"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/provider/transport"
	"github.com/davidbz/uniai/internal/task"
)

const (
	name    = "stability.ai"
	baseURL = "https://api.stability.ai"

	defaultSize = 512
)

// Provider implements imagine and task for Stability AI.
type Provider struct {
	baseURL string
	keys    *credential.Pool
	client  *transport.Client
	book    *task.Book
	catalog *catalog.Catalog
}

// NewProvider creates a Stability provider. Image tasks are recorded in store.
func NewProvider(s transport.Settings, store domain.KeyValueStore) *Provider {
	return &Provider{
		baseURL: s.BaseURL(baseURL),
		keys:    credential.NewPool(name, s.Key),
		client:  transport.NewClient(name, s.TimeoutDuration()),
		book:    task.NewBook(store, name),
		catalog: catalog.Default(),
	}
}

// Name returns the provider discriminator.
func (p *Provider) Name() string {
	return name
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type generateRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Samples     int          `json:"samples"`
}

type generateResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		Seed         int64  `json:"seed"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

// Imagine generates images synchronously and records them as a finished task.
func (p *Provider) Imagine(ctx context.Context, prompt string, opt domain.ImagineOption) (*domain.ImagineResult, error) {
	if prompt == "" {
		return nil, domain.EmptyInputError(name)
	}
	key, err := p.keys.Pick()
	if err != nil {
		return nil, err
	}

	model := p.catalog.ModelOr(name, catalog.Imagine, opt.Model)
	body := &generateRequest{
		TextPrompts: []textPrompt{{Text: prompt, Weight: 1}},
		Width:       orDefault(opt.Width, defaultSize),
		Height:      orDefault(opt.Height, defaultSize),
		Samples:     orDefault(opt.Num, 1),
	}
	if opt.NegativePrompt != "" {
		body.TextPrompts = append(body.TextPrompts, textPrompt{Text: opt.NegativePrompt, Weight: -1})
	}

	header := transport.Bearer(key)
	header.Set("Accept", "application/json")

	var resp generateResponse
	err = p.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/v1/generation/" + url.PathEscape(model) + "/text-to-image",
		Header: header,
		Body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}

	images := make([]string, 0, len(resp.Artifacts))
	for _, a := range resp.Artifacts {
		switch a.FinishReason {
		case "CONTENT_FILTERED":
			return nil, &domain.ContentBlockedError{Provider: name, Reason: a.FinishReason}
		case "ERROR":
			return nil, domain.ResponseError(name, "image generation failed")
		}
		images = append(images, "data:image/png;base64,"+a.Base64)
	}
	if len(images) == 0 {
		return nil, domain.ResponseError(name, "no image returned")
	}

	record := domain.NewTaskRecord(uuid.NewString(), domain.TaskGeneration, model, images)
	if err := p.book.Append(ctx, record); err != nil {
		return nil, err
	}
	return &domain.ImagineResult{TaskID: record.ID, Time: record.Created}, nil
}

// Tasks lists recorded image tasks.
func (p *Provider) Tasks(ctx context.Context, id string) ([]domain.TaskRecord, error) {
	return p.book.List(ctx, id)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

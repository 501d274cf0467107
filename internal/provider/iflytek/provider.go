// Package iflytek implements the IFlyTek Spark binding: OpenAI-compatible
// chat plus signed text-to-image generation.
package iflytek

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/provider/compat"
	"github.com/davidbz/uniai/internal/provider/transport"
	"github.com/davidbz/uniai/internal/task"
)

const (
	name       = "iflytek"
	imagineURL = "https://spark-api.cn-huabei-1.xf-yun.com"

	defaultSize = 512
)

//nolint:gochecknoglobals // TTI codes for rejected prompts or images
var blockedCodes = map[int]bool{10021: true, 10022: true}

// Provider implements chat, imagine and task for IFlyTek.
type Provider struct {
	*compat.Provider

	config  Config
	imagine string
	client  *transport.Client
	book    *task.Book
	catalog *catalog.Catalog
	now     func() time.Time
}

// Option customizes a Provider.
type Option func(*Provider)

// WithClock replaces the clock used to date signatures.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider creates an IFlyTek provider. Image tasks are recorded in store.
func NewProvider(config Config, store domain.KeyValueStore, opts ...Option) *Provider {
	imagine := config.ImagineProxy
	if imagine == "" {
		imagine = imagineURL
	}
	p := &Provider{
		Provider: compat.New(compat.IFlyTek, config.Settings),
		config:   config,
		imagine:  imagine,
		client:   transport.NewClient(name, config.TimeoutDuration()),
		book:     task.NewBook(store, name),
		catalog:  catalog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ttiRequest struct {
	Header struct {
		AppID string `json:"app_id"`
	} `json:"header"`
	Parameter struct {
		Chat struct {
			Domain string `json:"domain"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"chat"`
	} `json:"parameter"`
	Payload struct {
		Message struct {
			Text []ttiText `json:"text"`
		} `json:"message"`
	} `json:"payload"`
}

type ttiText struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ttiResponse struct {
	Header struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		SID     string `json:"sid"`
	} `json:"header"`
	Payload *struct {
		Choices struct {
			Text []struct {
				Content string `json:"content"`
				Index   int    `json:"index"`
			} `json:"text"`
		} `json:"choices"`
	} `json:"payload"`
}

// Imagine generates an image synchronously and records it as a finished task.
func (p *Provider) Imagine(ctx context.Context, prompt string, opt domain.ImagineOption) (*domain.ImagineResult, error) {
	if prompt == "" {
		return nil, domain.EmptyInputError(name)
	}
	switch {
	case p.config.AppID == "":
		return nil, domain.ConfigurationError(name, "app id not set")
	case p.config.APIKey == "":
		return nil, domain.ConfigurationError(name, "api key not set")
	case p.config.APISecret == "":
		return nil, domain.ConfigurationError(name, "api secret not set")
	}

	model := p.catalog.ModelOr(name, catalog.Imagine, opt.Model)
	endpoint, err := signURL(p.imagine+"/"+url.PathEscape(model)+"/tti", p.config.APIKey, p.config.APISecret, p.now())
	if err != nil {
		return nil, err
	}

	var body ttiRequest
	body.Header.AppID = p.config.AppID
	body.Parameter.Chat.Domain = "general"
	body.Parameter.Chat.Width = orDefault(opt.Width, defaultSize)
	body.Parameter.Chat.Height = orDefault(opt.Height, defaultSize)
	body.Payload.Message.Text = []ttiText{{Role: "user", Content: prompt}}

	var resp ttiResponse
	if err := p.client.Do(ctx, transport.Request{URL: endpoint, Body: &body}, &resp); err != nil {
		return nil, err
	}
	if blockedCodes[resp.Header.Code] {
		return nil, &domain.ContentBlockedError{Provider: name, Reason: resp.Header.Message}
	}
	if resp.Header.Code != 0 {
		return nil, domain.ResponseError(name, resp.Header.Message)
	}
	if resp.Payload == nil || len(resp.Payload.Choices.Text) == 0 {
		return nil, domain.ResponseError(name, "fail to generate image, empty payload")
	}

	images := make([]string, 0, len(resp.Payload.Choices.Text))
	for _, t := range resp.Payload.Choices.Text {
		images = append(images, "data:image/png;base64,"+t.Content)
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

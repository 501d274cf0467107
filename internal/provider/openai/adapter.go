// Package openai provides the OpenAI binding. Chat goes through the
// OpenAI-compatible dialect; embeddings and image generation use the
// official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/credential"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/observability"
	"github.com/davidbz/uniai/internal/provider/compat"
	"github.com/davidbz/uniai/internal/task"
)

const name = "openai"

// Provider implements chat, embedding and imagine for OpenAI.
type Provider struct {
	*compat.Provider

	client    openai.Client
	keys      *credential.Pool
	book      *task.Book
	catalog   *catalog.Catalog
	imageSize string
}

// Option customizes a Provider.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient routes every call through hc, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// NewProvider creates a new OpenAI provider. Image tasks are recorded in store.
func NewProvider(config Config, store domain.KeyValueStore, opts ...Option) *Provider {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var compatOpts []compat.Option
	sdkOpts := []option.RequestOption{
		option.WithBaseURL(config.BaseURL(compat.OpenAI.BaseURL) + "/v1/"),
		option.WithMaxRetries(0),
		// The key is picked per call; this placeholder keeps the SDK from
		// reading OPENAI_API_KEY on its own.
		option.WithAPIKey(""),
	}
	if config.Timeout > 0 {
		sdkOpts = append(sdkOpts, option.WithRequestTimeout(config.TimeoutDuration()))
	}
	if o.httpClient != nil {
		compatOpts = append(compatOpts, compat.WithHTTPClient(o.httpClient))
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	imageSize := config.ImageSize
	if imageSize == "" {
		imageSize = "1024x1024"
	}

	return &Provider{
		Provider:  compat.New(compat.OpenAI, config.Settings, compatOpts...),
		client:    openai.NewClient(sdkOpts...),
		keys:      credential.NewPool(name, config.Key),
		book:      task.NewBook(store, name),
		catalog:   catalog.Default(),
		imageSize: imageSize,
	}
}

// Embed creates one embedding per input.
func (p *Provider) Embed(ctx context.Context, input []string, opt domain.EmbedOption) (*domain.EmbeddingResult, error) {
	if len(input) == 0 {
		return nil, domain.EmptyInputError(name)
	}
	key, err := p.keys.Pick()
	if err != nil {
		return nil, err
	}

	model := p.catalog.ModelOr(name, catalog.Embedding, opt.Model)

	//nolint:exhaustruct // OpenAI SDK struct has many optional fields
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: input,
		},
		Model: openai.EmbeddingModel(model),
	}
	if opt.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(opt.Dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params, option.WithAPIKey(key))
	if err != nil {
		observability.FromContext(ctx).Warn("OpenAI embeddings call failed", observability.Error(err))
		return nil, toDomainError(err)
	}
	if len(resp.Data) != len(input) {
		return nil, domain.ResponseError(name, "embedding count does not match input")
	}

	embeddings := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(embeddings) {
			idx = i
		}
		embeddings[idx] = d.Embedding
	}

	return &domain.EmbeddingResult{
		Embeddings:   embeddings,
		Model:        firstNonEmpty(resp.Model, model),
		PromptTokens: int(resp.Usage.PromptTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}, nil
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
	n := opt.Num
	if n <= 0 {
		n = 1
	}

	//nolint:exhaustruct // OpenAI SDK struct has many optional fields
	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(model),
		N:      openai.Int(int64(n)),
		Size:   openai.ImageGenerateParamsSize(p.size(opt)),
	}

	resp, err := p.client.Images.Generate(ctx, params, option.WithAPIKey(key))
	if err != nil {
		observability.FromContext(ctx).Warn("OpenAI image call failed", observability.Error(err))
		return nil, toDomainError(err)
	}

	images := make([]string, 0, len(resp.Data))
	for _, img := range resp.Data {
		switch {
		case img.URL != "":
			images = append(images, img.URL)
		case img.B64JSON != "":
			images = append(images, "data:image/png;base64,"+img.B64JSON)
		}
	}
	if len(images) == 0 {
		return nil, domain.ResponseError(name, "no image returned")
	}

	record := domain.NewTaskRecord(uuid.NewString(), domain.TaskGenerations, model, images)
	if err := p.book.Append(ctx, record); err != nil {
		return nil, err
	}
	return &domain.ImagineResult{TaskID: record.ID, Time: record.Created}, nil
}

// Tasks lists recorded image tasks.
func (p *Provider) Tasks(ctx context.Context, id string) ([]domain.TaskRecord, error) {
	return p.book.List(ctx, id)
}

func (p *Provider) size(opt domain.ImagineOption) string {
	if opt.Width > 0 && opt.Height > 0 {
		return fmt.Sprintf("%dx%d", opt.Width, opt.Height)
	}
	return p.imageSize
}

// toDomainError classifies SDK failures the same way transport does for raw calls.
func toDomainError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Provider: name,
			Status:   apiErr.StatusCode,
			Code:     apiErr.Code,
			Message:  firstNonEmpty(apiErr.Message, http.StatusText(apiErr.StatusCode)),
			Err:      domain.ErrProviderResponse,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.TransportError(name, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

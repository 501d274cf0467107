package compat

import (
	"context"
	"sort"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/provider/transport"
)

// EmbeddingProvider is a dialect binding that also computes embeddings.
type EmbeddingProvider struct {
	*Provider
}

// Embed returns one vector per input, in input order.
func (p *EmbeddingProvider) Embed(ctx context.Context, input []string, opt domain.EmbedOption) (*domain.EmbeddingResult, error) {
	if len(input) == 0 {
		return nil, domain.EmptyInputError(p.dialect.Name)
	}
	if p.baseURL == "" {
		return nil, domain.ConfigurationError(p.dialect.Name, "endpoint not set")
	}
	key, err := p.credential()
	if err != nil {
		return nil, err
	}

	model := p.catalog.ModelOr(p.dialect.Name, catalog.Embedding, opt.Model)
	call := transport.Request{
		URL:    p.baseURL + p.dialect.EmbedPath,
		Header: transport.Bearer(key),
	}

	if p.dialect.Embed == EmbedText2Vec {
		call.Body = &text2vecRequest{Prompt: input, Model: model}
		var resp text2vecResponse
		if err := p.client.Do(ctx, call, &resp); err != nil {
			return nil, err
		}
		if len(resp.Data) != len(input) {
			return nil, domain.ResponseError(p.dialect.Name, "embedding count does not match input")
		}
		return &domain.EmbeddingResult{Embeddings: resp.Data, Model: model}, nil
	}

	body := &embedRequest{Model: model, Input: input}
	if p.dialect.Dimensions {
		body.Dimensions = opt.Dimensions
	}
	call.Body = body

	var resp embedResponse
	if err := p.client.Do(ctx, call, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(input) {
		return nil, domain.ResponseError(p.dialect.Name, "embedding count does not match input")
	}

	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	result := &domain.EmbeddingResult{
		Embeddings: make([][]float64, 0, len(resp.Data)),
		Model:      model,
	}
	if resp.Model != "" {
		result.Model = resp.Model
	}
	for _, d := range resp.Data {
		result.Embeddings = append(result.Embeddings, d.Embedding)
	}
	if resp.Usage != nil {
		result.PromptTokens = resp.Usage.PromptTokens
		result.TotalTokens = resp.Usage.TotalTokens
	}
	return result, nil
}

package compat

import (
	"context"
	"fmt"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/imageref"
)

// translate maps canonical messages onto the dialect. Roles the dialect does
// not accept are dropped; images are kept only for vision models.
func (p *Provider) translate(ctx context.Context, messages []domain.ChatMessage, model string) ([]wireMessage, error) {
	vision := p.catalog.SupportsVision(p.dialect.Name, model)

	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		if !p.dialect.accepts(m.Role) {
			continue
		}

		wm := wireMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == domain.RoleTool {
			wm.ToolCallID = m.ToolCallID
		}

		if m.Image != "" && vision && m.Role == domain.RoleUser {
			url, err := p.imageURL(ctx, m.Image)
			if err != nil {
				return nil, err
			}
			wm.Content = []contentPart{
				{Type: "text", Text: m.Content},
				{Type: "image_url", ImageURL: &imageURL{URL: url}},
			}
		}
		out = append(out, wm)
	}

	if len(out) == 0 {
		return nil, domain.EmptyInputError(p.dialect.Name)
	}
	return out, nil
}

// imageURL passes remote references through and inlines everything else.
func (p *Provider) imageURL(ctx context.Context, ref string) (string, error) {
	if imageref.IsRemote(ref) {
		return ref, nil
	}
	img, err := p.resolver.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image: %w", err)
	}
	return img.DataURI(), nil
}

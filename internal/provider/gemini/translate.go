package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/imageref"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

//nolint:gochecknoglobals // fixed request section
var safetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// systemText joins every system turn.
func systemText(messages []domain.ChatMessage) string {
	var parts []string
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// contents folds the transcript into alternating user/model turns.
//
// Non-assistant turns accumulate into the pending user input; each assistant
// turn flushes it as a user turn followed by the model turn. Only one image
// is kept (the last one seen) and, when present, only the final user turn is
// sent.
func (p *Provider) contents(ctx context.Context, messages []domain.ChatMessage) ([]content, error) {
	var (
		out   []content
		input string
		image *imageref.Image
	)

	userTurn := func(text string) content {
		if text == "" {
			text = " "
		}
		c := content{Role: roleUser, Parts: []part{{Text: text}}}
		if image != nil {
			c.Parts = append(c.Parts, part{InlineData: &inlineData{MIMEType: image.MIME, Data: image.Data}})
		}
		return c
	}

	for _, m := range messages {
		if m.Content == "" || m.Role == domain.RoleSystem {
			continue
		}
		if m.Image != "" {
			img, err := p.resolver.Resolve(ctx, m.Image)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve image: %w", err)
			}
			image = img
		}

		if m.Role != domain.RoleAssistant {
			input += "\n" + m.Content
			continue
		}
		out = append(out,
			userTurn(strings.TrimSpace(input)),
			content{Role: roleModel, Parts: []part{{Text: m.Content}}},
		)
		input = ""
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, domain.EmptyInputError(name)
	}
	out = append(out, userTurn(input))

	if image != nil {
		return out[len(out)-1:], nil
	}
	return out, nil
}

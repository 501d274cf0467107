package normalize

import (
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/davidbz/uniai/internal/domain"
)

// Accumulator folds streamed chunks into one aggregate result. Tool-call
// fragments sharing an index are merged.
type Accumulator struct {
	text  strings.Builder
	model string
	usage domain.Usage
	calls map[int]*domain.ToolCall
}

// Apply adds one chunk.
func (a *Accumulator) Apply(chunk *domain.ChatResult) {
	if chunk == nil {
		return
	}
	a.text.WriteString(chunk.Content)
	if a.model == "" {
		a.model = chunk.Model
	}
	a.usage = chunk.Usage

	for _, tc := range chunk.ToolCalls {
		if a.calls == nil {
			a.calls = make(map[int]*domain.ToolCall)
		}
		cur, ok := a.calls[tc.Index]
		if !ok {
			cur = &domain.ToolCall{Index: tc.Index}
			a.calls[tc.Index] = cur
		}
		if tc.ID != "" {
			cur.ID = tc.ID
		}
		if tc.Type != "" {
			cur.Type = tc.Type
		}
		if tc.Name != "" {
			cur.Name = tc.Name
		}
		cur.Arguments += tc.Arguments
	}
}

// Result returns the aggregate. Tool-call arguments that are not valid JSON
// are repaired when possible and kept verbatim otherwise.
func (a *Accumulator) Result() *domain.ChatResult {
	result := &domain.ChatResult{
		Content: a.text.String(),
		Model:   a.model,
		Object:  domain.KindCompletion,
		Usage:   a.usage,
	}

	if len(a.calls) == 0 {
		return result
	}

	indexes := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, i := range indexes {
		tc := *a.calls[i]
		if tc.Arguments != "" && !json.Valid([]byte(tc.Arguments)) {
			if repaired, err := jsonrepair.JSONRepair(tc.Arguments); err == nil {
				tc.Arguments = repaired
			}
		}
		result.ToolCalls = append(result.ToolCalls, tc)
	}
	return result
}

// Collect drains stream into one aggregate result and closes it. A failure
// discards the partial aggregate.
func Collect(stream *domain.ChatStream) (*domain.ChatResult, error) {
	defer stream.Close()

	var acc Accumulator
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return acc.Result(), nil
			}
			return nil, err
		}
		acc.Apply(chunk)
	}
}

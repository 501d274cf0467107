// Package normalize turns provider responses into canonical chat results.
//
// Streaming calls go through Stream, which pumps frames from a FrameSource
// through a provider DecodeFunc:
//
//	Init -> Streaming -> Completed | Failed
//
// Non-streaming calls go through Complete.
package normalize

import (
	"bytes"
	"context"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/observability"
)

// doneToken ends OpenAI-style event streams.
const doneToken = "[DONE]"

const maxLoggedFrame = 256

// Delta is what a provider extracts from one frame or one complete response.
type Delta struct {
	Content   string
	ToolCalls []domain.ToolCall
	// Model is the provider's model echo, if any.
	Model string
	// Usage is nil when the frame carries no usage.
	Usage *domain.Usage
	// BlockReason marks a safety rejection.
	BlockReason string
	// Failure is a provider error carried inside an otherwise valid frame.
	Failure string
	// FinishReason is used as content for a complete response with no text.
	FinishReason string
	// End marks the provider's own last frame.
	End bool
}

// DecodeFunc maps one frame to a delta. It returns (nil, nil) for frames
// that are valid but carry no payload, and an error for frames that do not
// parse; both are skipped.
type DecodeFunc func(frame Frame) (*Delta, error)

// Options configure one stream.
type Options struct {
	Provider string
	// Model is the requested model. It is echoed for the whole stream unless
	// the provider reports a model before the first chunk.
	Model string
	// SuppressEmpty drops frames with no text and no tool call.
	SuppressEmpty bool
	Decode        DecodeFunc
}

// Stream starts pumping src and returns the canonical lazy sequence. The
// source is closed when the stream ends or the consumer closes it.
func Stream(ctx context.Context, src FrameSource, opts Options) *domain.ChatStream {
	return domain.NewChatStream(ctx, func(ctx context.Context, emit func(*domain.ChatResult) bool) error {
		stop := context.AfterFunc(ctx, func() { _ = src.Close() })
		defer func() {
			stop()
			_ = src.Close()
		}()

		return pump(ctx, src, opts, emit)
	})
}

func pump(ctx context.Context, src FrameSource, opts Options, emit func(*domain.ChatResult) bool) error {
	logger := observability.FromContext(ctx)

	// model is locked once the first chunk goes out.
	model := ""
	locked := false
	var usage domain.Usage

	for src.Next() {
		frame := src.Frame()
		if bytes.Equal(frame.Data, []byte(doneToken)) {
			return nil
		}

		delta, err := opts.Decode(frame)
		if err != nil {
			logger.Debug("skipping malformed frame",
				observability.String("frame", clip(frame.Data)),
				observability.Error(err),
			)
			continue
		}
		if delta == nil {
			continue
		}

		if delta.BlockReason != "" {
			return &domain.ContentBlockedError{Provider: opts.Provider, Reason: delta.BlockReason}
		}
		if delta.Failure != "" {
			return domain.ResponseError(opts.Provider, delta.Failure)
		}

		if !locked && model == "" && delta.Model != "" {
			model = delta.Model
		}
		if delta.Usage != nil {
			usage = *delta.Usage
		}

		empty := delta.Content == "" && len(delta.ToolCalls) == 0
		if !(empty && opts.SuppressEmpty) {
			chunk := &domain.ChatResult{
				Content:   delta.Content,
				Model:     echo(model, opts.Model),
				Object:    domain.KindChunk,
				ToolCalls: delta.ToolCalls,
				Usage:     usage,
			}
			if len(delta.ToolCalls) > 0 {
				chunk.Object = domain.KindChunkToolCall
			}
			model, locked = chunk.Model, true
			if !emit(chunk) {
				return nil
			}
		}

		if delta.End {
			return nil
		}
	}

	if err := src.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.TransportError(opts.Provider, err)
	}
	return nil
}

// Complete builds the single canonical result of a non-streaming call.
func Complete(provider, requestedModel string, delta *Delta) (*domain.ChatResult, error) {
	if delta == nil {
		return nil, domain.ResponseError(provider, "empty response")
	}
	if delta.BlockReason != "" {
		return nil, &domain.ContentBlockedError{Provider: provider, Reason: delta.BlockReason}
	}
	if delta.Failure != "" {
		return nil, domain.ResponseError(provider, delta.Failure)
	}

	result := &domain.ChatResult{
		Content:   delta.Content,
		Model:     echo(delta.Model, requestedModel),
		Object:    domain.KindCompletion,
		ToolCalls: delta.ToolCalls,
	}
	if result.Content == "" && len(delta.ToolCalls) == 0 {
		result.Content = delta.FinishReason
	}
	if delta.Usage != nil {
		result.Usage = *delta.Usage
	}
	return result, nil
}

func echo(reported, requested string) string {
	if reported != "" {
		return reported
	}
	return requested
}

func clip(b []byte) string {
	if len(b) <= maxLoggedFrame {
		return string(b)
	}
	return string(b[:maxLoggedFrame]) + "..."
}

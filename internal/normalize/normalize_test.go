package normalize_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/normalize"
)

// fixtureFrame is a minimal provider chunk schema used by the fixtures below.
type fixtureFrame struct {
	Delta       *string           `json:"delta"`
	Model       string            `json:"model"`
	BlockReason string            `json:"blockReason"`
	Error       string            `json:"error"`
	Usage       *domain.Usage     `json:"usage"`
	Tools       []domain.ToolCall `json:"tools"`
	End         bool              `json:"end"`
}

func decodeFixture(frame normalize.Frame) (*normalize.Delta, error) {
	var f fixtureFrame
	if err := json.Unmarshal(frame.Data, &f); err != nil {
		return nil, err
	}
	d := &normalize.Delta{
		Model:       f.Model,
		BlockReason: f.BlockReason,
		Failure:     f.Error,
		Usage:       f.Usage,
		ToolCalls:   f.Tools,
		End:         f.End,
	}
	if f.Delta != nil {
		d.Content = *f.Delta
	}
	return d, nil
}

func sseResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func jsonBody(body string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(body))
}

func opts() normalize.Options {
	return normalize.Options{Provider: "fixture", Model: "requested", Decode: decodeFixture}
}

func drain(t *testing.T, stream *domain.ChatStream) ([]*domain.ChatResult, error) {
	t.Helper()
	var out []*domain.ChatResult
	for {
		r, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, r)
	}
}

func contents(results []*domain.ChatResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Content)
	}
	return out
}

func TestStream_SSE(t *testing.T) {
	t.Run("should emit deltas in order and complete on the done token", func(t *testing.T) {
		body := "data: {\"delta\":\"He\"}\n\n" +
			"data: {\"delta\":\"llo\"}\n\n" +
			"data: [DONE]\n\n" +
			"data: {\"delta\":\"ignored\"}\n\n"

		stream := normalize.Stream(context.Background(), normalize.NewSSESource(sseResponse(body)), opts())
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Equal(t, []string{"He", "llo"}, contents(results))
		for _, r := range results {
			require.Equal(t, domain.KindChunk, r.Object)
		}
	})

	t.Run("should skip keepalive and malformed frames", func(t *testing.T) {
		body := ": keepalive\n\n" +
			"data: {\"delta\":\"He\"}\n\n" +
			"\n\n" +
			"data: not json at all\n\n" +
			"data: {\"delta\":\"llo\"}\n\n"

		stream := normalize.Stream(context.Background(), normalize.NewSSESource(sseResponse(body)), opts())
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Equal(t, []string{"He", "llo"}, contents(results))
	})

	t.Run("should fail on a provider error frame", func(t *testing.T) {
		body := "data: {\"delta\":\"He\"}\n\n" +
			"data: {\"error\":\"quota exceeded\"}\n\n"

		stream := normalize.Stream(context.Background(), normalize.NewSSESource(sseResponse(body)), opts())
		results, err := drain(t, stream)

		require.Len(t, results, 1)
		require.ErrorIs(t, err, domain.ErrProviderResponse)
		require.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("should stop after the provider end flag", func(t *testing.T) {
		body := "data: {\"delta\":\"a\"}\n\n" +
			"data: {\"delta\":\"b\",\"end\":true}\n\n" +
			"data: {\"delta\":\"c\"}\n\n"

		stream := normalize.Stream(context.Background(), normalize.NewSSESource(sseResponse(body)), opts())
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, contents(results))
	})
}

func TestStream_JSON(t *testing.T) {
	t.Run("should read array elements as frames", func(t *testing.T) {
		body := "[{\"delta\":\"He\"},\n{\"delta\":\"llo\"}\n]"

		stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), opts())
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Equal(t, []string{"He", "llo"}, contents(results))
	})

	t.Run("should read newline delimited values as frames", func(t *testing.T) {
		body := "{\"delta\":\"a\"}\n{\"delta\":\"b\"}\n"

		stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), opts())
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, contents(results))
	})

	t.Run("should fail with content blocked and stop processing", func(t *testing.T) {
		body := `[{"delta":"He"},{"blockReason":"SAFETY"},{"delta":"never"}]`

		stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), opts())
		results, err := drain(t, stream)

		require.Equal(t, []string{"He"}, contents(results))

		var blocked *domain.ContentBlockedError
		require.ErrorAs(t, err, &blocked)
		require.Equal(t, "SAFETY", blocked.Reason)
		require.ErrorIs(t, err, domain.ErrContentBlocked)

		_, err = stream.Recv()
		require.ErrorIs(t, err, domain.ErrContentBlocked)
	})

	t.Run("should surface a truncated body as a transport error", func(t *testing.T) {
		body := `[{"delta":"He"},{"del`

		stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), opts())
		results, err := drain(t, stream)

		require.Equal(t, []string{"He"}, contents(results))
		require.ErrorIs(t, err, domain.ErrTransport)
	})

	t.Run("should complete an empty body", func(t *testing.T) {
		stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody("  ")), opts())
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Empty(t, results)
	})
}

func TestStream_Fields(t *testing.T) {
	t.Run("should lock the model echo to the first emitted chunk", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want string
		}{
			{"reported up front", `[{"delta":"a","model":"m-1"},{"delta":"b","model":"m-2"}]`, "m-1"},
			{"reported late", `[{"delta":"a"},{"delta":"b","model":"m-1"},{"delta":"c","model":"m-2"}]`, "requested"},
			{"reported on a suppressed frame", `[{"delta":"","model":"m-1"},{"delta":"a"},{"delta":"b","model":"m-2"}]`, "m-1"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				o := opts()
				o.SuppressEmpty = true

				stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(tt.body)), o)
				results, err := drain(t, stream)

				require.NoError(t, err)
				require.NotEmpty(t, results)
				for _, r := range results {
					require.Equal(t, tt.want, r.Model)
				}
			})
		}
	})

	t.Run("should carry the last reported usage and default to zero", func(t *testing.T) {
		body := `[{"delta":"a"},` +
			`{"delta":"b","usage":{"promptTokens":3,"completionTokens":1,"totalTokens":4}},` +
			`{"delta":"c"},` +
			`{"delta":"","usage":{"promptTokens":3,"completionTokens":3,"totalTokens":6}}]`

		stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), opts())
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Len(t, results, 4)
		require.Equal(t, domain.Usage{}, results[0].Usage)
		require.Equal(t, 4, results[1].TotalTokens)
		require.Equal(t, 4, results[2].TotalTokens)
		require.Equal(t, 6, results[3].TotalTokens)
	})

	t.Run("should suppress empty deltas when asked", func(t *testing.T) {
		body := `[{"delta":""},{"delta":"x"},{"delta":""}]`
		o := opts()
		o.SuppressEmpty = true

		stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), o)
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Equal(t, []string{"x"}, contents(results))
	})

	t.Run("should tag tool call chunks", func(t *testing.T) {
		body := `[{"tools":[{"index":0,"id":"call_1","name":"weather","arguments":"{\"ci"}]}]`
		o := opts()
		o.SuppressEmpty = true

		stream := normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), o)
		results, err := drain(t, stream)

		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, domain.KindChunkToolCall, results[0].Object)
		require.Equal(t, "weather", results[0].ToolCalls[0].Name)
	})
}

// blockingSource yields one frame, then blocks until closed.
type blockingSource struct {
	mu      sync.Mutex
	sent    bool
	closed  chan struct{}
	closeMu sync.Once
}

func newBlockingSource() *blockingSource {
	return &blockingSource{closed: make(chan struct{})}
}

func (b *blockingSource) Next() bool {
	b.mu.Lock()
	if !b.sent {
		b.sent = true
		b.mu.Unlock()
		return true
	}
	b.mu.Unlock()
	<-b.closed
	return false
}

func (b *blockingSource) Frame() normalize.Frame {
	return normalize.Frame{Data: []byte(`{"delta":"first"}`)}
}

func (b *blockingSource) Err() error { return errors.New("use of closed body") }

func (b *blockingSource) Close() error {
	b.closeMu.Do(func() { close(b.closed) })
	return nil
}

func TestStream_Close(t *testing.T) {
	t.Run("should release the transport when the consumer closes", func(t *testing.T) {
		src := newBlockingSource()
		stream := normalize.Stream(context.Background(), src, opts())

		first, err := stream.Recv()
		require.NoError(t, err)
		require.Equal(t, "first", first.Content)

		require.NoError(t, stream.Close())

		select {
		case <-src.closed:
		case <-time.After(time.Second):
			t.Fatal("source was not closed")
		}

		_, err = stream.Recv()
		require.ErrorIs(t, err, domain.ErrStreamClosed)
	})
}

func TestStream_CloseJSON(t *testing.T) {
	t.Run("should close a JSON stream blocked mid-body", func(t *testing.T) {
		for range 50 {
			pr, pw := io.Pipe()
			go func() {
				_, _ = pw.Write([]byte(`[{"delta":"a"},`))
			}()

			stream := normalize.Stream(context.Background(), normalize.NewJSONSource(pr), opts())

			first, err := stream.Recv()
			require.NoError(t, err)
			require.Equal(t, "a", first.Content)

			require.NoError(t, stream.Close())

			_, err = stream.Recv()
			require.ErrorIs(t, err, domain.ErrStreamClosed)
			_ = pw.Close()
		}
	})
}

func TestComplete(t *testing.T) {
	t.Run("should build the terminal result", func(t *testing.T) {
		result, err := normalize.Complete("fixture", "requested", &normalize.Delta{
			Content: "Hello!",
			Usage:   &domain.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		})

		require.NoError(t, err)
		require.Equal(t, "Hello!", result.Content)
		require.Equal(t, "requested", result.Model)
		require.Equal(t, domain.KindCompletion, result.Object)
		require.Equal(t, domain.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, result.Usage)
	})

	t.Run("should default missing usage to zero", func(t *testing.T) {
		result, err := normalize.Complete("fixture", "m", &normalize.Delta{Content: "x"})

		require.NoError(t, err)
		require.Equal(t, domain.Usage{}, result.Usage)
	})

	t.Run("should fall back to the finish reason when content is absent", func(t *testing.T) {
		result, err := normalize.Complete("fixture", "m", &normalize.Delta{FinishReason: "RECITATION"})

		require.NoError(t, err)
		require.Equal(t, "RECITATION", result.Content)
	})

	t.Run("should fail on block reasons and provider errors", func(t *testing.T) {
		_, err := normalize.Complete("fixture", "m", &normalize.Delta{BlockReason: "SAFETY"})
		require.ErrorIs(t, err, domain.ErrContentBlocked)

		_, err = normalize.Complete("fixture", "m", &normalize.Delta{Failure: "bad"})
		require.ErrorIs(t, err, domain.ErrProviderResponse)

		_, err = normalize.Complete("fixture", "m", nil)
		require.ErrorIs(t, err, domain.ErrProviderResponse)
	})
}

func TestCollect(t *testing.T) {
	t.Run("should equal the non-streaming result for the same fixture", func(t *testing.T) {
		body := "data: {\"delta\":\"Hel\",\"model\":\"m-1\"}\n\n" +
			"data: {\"delta\":\"lo!\",\"usage\":{\"promptTokens\":1,\"completionTokens\":1,\"totalTokens\":2}}\n\n" +
			"data: [DONE]\n\n"

		streamed, err := normalize.Collect(
			normalize.Stream(context.Background(), normalize.NewSSESource(sseResponse(body)), opts()),
		)
		require.NoError(t, err)

		complete, err := normalize.Complete("fixture", "requested", &normalize.Delta{
			Content: "Hello!",
			Model:   "m-1",
			Usage:   &domain.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		})
		require.NoError(t, err)

		require.Equal(t, complete, streamed)
	})

	t.Run("should merge and repair tool call fragments", func(t *testing.T) {
		body := `[` +
			`{"tools":[{"index":1,"id":"call_b","type":"function","name":"time","arguments":"{}"}]},` +
			`{"tools":[{"index":0,"id":"call_a","type":"function","name":"weather","arguments":"{\"city\": "}]},` +
			`{"tools":[{"index":0,"arguments":"\"Paris\""}]}` +
			`]`

		result, err := normalize.Collect(
			normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), opts()),
		)
		require.NoError(t, err)
		require.Len(t, result.ToolCalls, 2)

		first := result.ToolCalls[0]
		require.Equal(t, "call_a", first.ID)
		require.Equal(t, "weather", first.Name)
		require.JSONEq(t, `{"city":"Paris"}`, first.Arguments)

		require.Equal(t, "call_b", result.ToolCalls[1].ID)
		require.Equal(t, "{}", result.ToolCalls[1].Arguments)
	})

	t.Run("should return the failure", func(t *testing.T) {
		body := `[{"delta":"a"},{"blockReason":"OTHER"}]`

		result, err := normalize.Collect(
			normalize.Stream(context.Background(), normalize.NewJSONSource(jsonBody(body)), opts()),
		)

		require.Nil(t, result)
		require.ErrorIs(t, err, domain.ErrContentBlocked)
	})
}

package stability_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/provider/stability"
	"github.com/davidbz/uniai/internal/provider/transport"
	"github.com/davidbz/uniai/internal/store"
)

func TestProvider_Imagine(t *testing.T) {
	t.Run("should generate images and record the task", func(t *testing.T) {
		var (
			path string
			auth string
			body map[string]any
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path, auth = r.URL.Path, r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&body)
			_, _ = io.WriteString(w, `{"artifacts":[{"base64":"aW1n","seed":1,"finishReason":"SUCCESS"}]}`)
		}))
		t.Cleanup(srv.Close)
		p := stability.NewProvider(transport.Settings{Key: "sk", Proxy: srv.URL}, store.NewMemory())
		ctx := context.Background()

		result, err := p.Imagine(ctx, "a cat", domain.ImagineOption{NegativePrompt: "dogs"})
		require.NoError(t, err)

		require.Equal(t, "/v1/generation/stable-diffusion-v1-6/text-to-image", path)
		require.Equal(t, "Bearer sk", auth)
		require.Len(t, body["text_prompts"], 2)
		require.InDelta(t, 512, body["width"], 0)

		tasks, err := p.Tasks(ctx, result.TaskID)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, []string{"data:image/png;base64,aW1n"}, tasks[0].Images)
		require.Equal(t, "stability.ai", p.Name())
	})

	t.Run("should report filtered artifacts as blocked", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"artifacts":[{"base64":"","finishReason":"CONTENT_FILTERED"}]}`)
		}))
		t.Cleanup(srv.Close)
		p := stability.NewProvider(transport.Settings{Key: "sk", Proxy: srv.URL}, store.NewMemory())

		_, err := p.Imagine(context.Background(), "x", domain.ImagineOption{})

		require.ErrorIs(t, err, domain.ErrContentBlocked)
	})

	t.Run("should require a key", func(t *testing.T) {
		p := stability.NewProvider(transport.Settings{}, store.NewMemory())

		_, err := p.Imagine(context.Background(), "a cat", domain.ImagineOption{})

		require.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

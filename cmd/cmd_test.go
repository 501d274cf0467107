package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/uniai/internal/config"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/provider/registry"
	"github.com/davidbz/uniai/internal/store"
)

func TestRegisterProviders(t *testing.T) {
	t.Run("should register all twelve providers without credentials", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := registerProviders(context.Background(), reg, &config.ProvidersConfig{}, store.NewMemory())
		require.NoError(t, err)

		names, err := reg.List(context.Background())
		require.NoError(t, err)
		require.ElementsMatch(t, []string{
			"aliyun", "baidu", "deepseek", "glm", "google", "iflytek",
			"midjourney", "moonshot", "openai", "other", "stability.ai", "xai",
		}, names)
	})

	t.Run("should fail with a configuration error at call time", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.NoError(t, registerProviders(context.Background(), reg, &config.ProvidersConfig{}, store.NewMemory()))
		gateway := domain.NewGatewayService(reg, nil, "deepseek")

		_, err := gateway.Chat(context.Background(),
			[]domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
			domain.ChatOption{},
		)

		require.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestReadPrompt(t *testing.T) {
	t.Run("should prefer the argument", func(t *testing.T) {
		prompt, err := readPrompt([]string{"hello"}, strings.NewReader("ignored"))
		require.NoError(t, err)
		require.Equal(t, "hello", prompt)
	})

	t.Run("should read piped stdin", func(t *testing.T) {
		prompt, err := readPrompt(nil, strings.NewReader("  from pipe\n"))
		require.NoError(t, err)
		require.Equal(t, "from pipe", prompt)
	})
}

func TestModelsCmd(t *testing.T) {
	t.Run("should print the catalog filtered by provider", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"models", "--provider", "deepseek"})

		require.NoError(t, cmd.Execute())

		require.Contains(t, out.String(), "deepseek-chat")
		require.NotContains(t, out.String(), "gpt-4o")
	})
}

package params_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/uniai/internal/params"
)

func f(v float64) *float64 { return &v }

func n(v int) *int { return &v }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		temperature *float64
		topP        *float64
		maxLength   *int
		want        params.Sampling
	}{
		{
			name:     "absent values stay absent",
			provider: "openai",
			want:     params.Sampling{},
		},
		{
			name:        "in range values are unchanged",
			provider:    "openai",
			temperature: f(1.3),
			topP:        f(0.5),
			want:        params.Sampling{Temperature: f(1.3), TopP: f(0.5)},
		},
		{
			name:        "values above the ceiling take the ceiling",
			provider:    "glm",
			temperature: f(1.7),
			topP:        f(0.95),
			want:        params.Sampling{Temperature: f(1), TopP: f(0.9)},
		},
		{
			name:        "values below the floor take the floor",
			provider:    "glm",
			temperature: f(0),
			topP:        f(0),
			want:        params.Sampling{Temperature: f(0.1), TopP: f(0.1)},
		},
		{
			name:      "max length is clamped",
			provider:  "baidu",
			maxLength: n(1),
			want:      params.Sampling{MaxLength: n(2)},
		},
		{
			name:      "max length without a bound passes through",
			provider:  "openai",
			maxLength: n(100000),
			want:      params.Sampling{MaxLength: n(100000)},
		},
		{
			name:        "other provider is never clamped",
			provider:    "other",
			temperature: f(9),
			topP:        f(-1),
			want:        params.Sampling{Temperature: f(9), TopP: f(-1)},
		},
		{
			name:        "unknown provider is never clamped",
			provider:    "nope",
			temperature: f(3),
			want:        params.Sampling{Temperature: f(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := params.Normalize(tt.provider, tt.temperature, tt.topP, tt.maxLength)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []float64{-5, -0.01, 0, 0.005, 0.1, 0.5, 0.9, 0.99, 1, 1.5, 1.99, 2, 2.5, 100}
	lengths := []int{-1, 0, 1, 2, 100, 2048, 4096, 8192, 9000}

	for _, provider := range []string{
		"openai", "deepseek", "google", "glm", "iflytek", "baidu", "moonshot", "aliyun", "xai", "other",
	} {
		t.Run(provider, func(t *testing.T) {
			for _, v := range inputs {
				for _, l := range lengths {
					once := params.Normalize(provider, f(v), f(v), n(l))
					twice := params.Normalize(provider, once.Temperature, once.TopP, once.MaxLength)
					require.Equal(t, once, twice)
				}
			}
		})
	}
}

func TestBound_Clamp(t *testing.T) {
	var unbounded *params.Bound
	require.InDelta(t, 42.0, unbounded.Clamp(42), 0)

	b := &params.Bound{Min: 0.01, Max: 1}
	require.InDelta(t, 0.01, b.Clamp(0), 0)
	require.InDelta(t, 1.0, b.Clamp(1), 0)
	require.InDelta(t, 0.5, b.Clamp(0.5), 0)
}

func TestNormalize_NonFinite(t *testing.T) {
	for _, provider := range []string{"openai", "google", "baidu", "other"} {
		t.Run(provider, func(t *testing.T) {
			for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
				got := params.Normalize(provider, f(v), f(v), nil)

				require.Nil(t, got.Temperature)
				require.Nil(t, got.TopP)
			}
		})
	}
}

package domain_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/uniai/internal/domain"
)

func chunks(contents ...string) domain.StreamProducer {
	return func(_ context.Context, emit func(*domain.ChatResult) bool) error {
		for _, c := range contents {
			if !emit(&domain.ChatResult{Content: c, Object: domain.KindChunk}) {
				return nil
			}
		}
		return nil
	}
}

func TestChatStream_Recv(t *testing.T) {
	t.Run("should deliver results in order then EOF", func(t *testing.T) {
		stream := domain.NewChatStream(context.Background(), chunks("He", "llo"))

		first, err := stream.Recv()
		require.NoError(t, err)
		require.Equal(t, "He", first.Content)

		second, err := stream.Recv()
		require.NoError(t, err)
		require.Equal(t, "llo", second.Content)

		_, err = stream.Recv()
		require.ErrorIs(t, err, io.EOF)

		// Terminal state is sticky.
		_, err = stream.Recv()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("should deliver the failure after partial results", func(t *testing.T) {
		failure := errors.New("boom")
		stream := domain.NewChatStream(context.Background(),
			func(_ context.Context, emit func(*domain.ChatResult) bool) error {
				emit(&domain.ChatResult{Content: "partial"})
				return failure
			})

		r, err := stream.Recv()
		require.NoError(t, err)
		require.Equal(t, "partial", r.Content)

		_, err = stream.Recv()
		require.ErrorIs(t, err, failure)
	})
}

func TestChatStream_Close(t *testing.T) {
	t.Run("should stop the producer and release it", func(t *testing.T) {
		released := make(chan struct{})
		stream := domain.NewChatStream(context.Background(),
			func(ctx context.Context, emit func(*domain.ChatResult) bool) error {
				defer close(released)
				for {
					if !emit(&domain.ChatResult{Content: "x"}) {
						return ctx.Err()
					}
				}
			})

		_, err := stream.Recv()
		require.NoError(t, err)

		require.NoError(t, stream.Close())

		select {
		case <-released:
		case <-time.After(time.Second):
			t.Fatal("producer was not released")
		}

		_, err = stream.Recv()
		require.ErrorIs(t, err, domain.ErrStreamClosed)

		// Closing twice is harmless.
		require.NoError(t, stream.Close())
	})
}

func TestChatStream_Iter(t *testing.T) {
	t.Run("should range over all results", func(t *testing.T) {
		stream := domain.NewChatStream(context.Background(), chunks("a", "b", "c"))

		var got string
		for r, err := range stream.Iter() {
			require.NoError(t, err)
			got += r.Content
		}
		require.Equal(t, "abc", got)
	})

	t.Run("should yield the failure once", func(t *testing.T) {
		failure := errors.New("transport down")
		stream := domain.NewChatStream(context.Background(),
			func(_ context.Context, _ func(*domain.ChatResult) bool) error {
				return failure
			})

		var errs []error
		for _, err := range stream.Iter() {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		require.ErrorIs(t, errs[0], failure)
	})

	t.Run("should close the stream on early break", func(t *testing.T) {
		released := make(chan struct{})
		stream := domain.NewChatStream(context.Background(),
			func(_ context.Context, emit func(*domain.ChatResult) bool) error {
				defer close(released)
				for emit(&domain.ChatResult{Content: "x"}) {
				}
				return nil
			})

		for range stream.Iter() {
			break
		}

		select {
		case <-released:
		case <-time.After(time.Second):
			t.Fatal("producer was not released after break")
		}
	})
}

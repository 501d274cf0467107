package domain

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
)

// StreamProducer drives a stream. It calls emit once per canonical chunk, in
// order, and returns nil on natural completion or the failure that ended it.
// emit returns false once the consumer has closed the stream; the producer
// must then return promptly.
type StreamProducer func(ctx context.Context, emit func(*ChatResult) bool) error

// ChatStream is a cancelable lazy sequence of chat results.
//
// Rules:
//   - Recv returns results in producer order, then exactly one terminal error:
//     io.EOF after completion, the failure otherwise.
//   - Close stops forwarding, releases the producer's transport and waits for
//     it to exit. No result is delivered after Close returns.
type ChatStream struct {
	results <-chan *ChatResult
	errc    <-chan error
	done    <-chan struct{}
	cancel  context.CancelFunc

	mu       sync.Mutex
	terminal error
	closed   bool
}

// NewChatStream starts produce in its own goroutine and returns the consumer side.
func NewChatStream(ctx context.Context, produce StreamProducer) *ChatStream {
	ctx, cancel := context.WithCancel(ctx)

	results := make(chan *ChatResult)
	errc := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)

		emit := func(r *ChatResult) bool {
			select {
			case <-ctx.Done():
				return false
			default:
			}
			select {
			case results <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := produce(ctx, emit)
		if err != nil {
			errc <- err
		}
		close(errc)
		close(results)
	}()

	return &ChatStream{
		results: results,
		errc:    errc,
		done:    done,
		cancel:  cancel,
	}
}

// Recv returns the next result. It returns io.EOF once the stream completed
// and the failure error if the stream failed.
func (s *ChatStream) Recv() (*ChatResult, error) {
	s.mu.Lock()
	if s.terminal != nil {
		err := s.terminal
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	r, ok := <-s.results
	if ok {
		return r, nil
	}

	err := io.EOF
	if failure, has := <-s.errc; has && failure != nil {
		err = failure
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		err = ErrStreamClosed
	}
	if s.terminal == nil {
		s.terminal = err
	}
	return nil, s.terminal
}

// Close cancels the producer and waits for it to release its transport.
// It is safe to call more than once.
func (s *ChatStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	return nil
}

// Iter adapts the stream to a range-over-func sequence. Iteration ends
// silently on completion, yields (nil, err) once on failure, and closes the
// stream when the loop body breaks early.
func (s *ChatStream) Iter() iter.Seq2[*ChatResult, error] {
	return func(yield func(*ChatResult, error) bool) {
		defer s.Close()
		for {
			r, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

package normalize

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode"

	"github.com/openai/openai-go/packages/ssestream"
)

// Frame is one discrete unit of a provider's incremental response.
type Frame struct {
	// Event is the SSE event name, empty for unnamed events and JSON frames.
	Event string
	Data  []byte
}

// FrameSource yields frames until the transport ends or fails.
type FrameSource interface {
	Next() bool
	Frame() Frame
	Err() error
	Close() error
}

// sseSource adapts the openai-go event-stream decoder. Blank keepalive
// events are dropped here; everything else reaches the pump.
type sseSource struct {
	dec   ssestream.Decoder
	body  io.Closer
	frame Frame
}

// NewSSESource reads text/event-stream frames from resp.
func NewSSESource(resp *http.Response) FrameSource {
	src := &sseSource{body: resp.Body}
	if resp.Body != nil {
		src.dec = ssestream.NewDecoder(resp)
	}
	return src
}

func (s *sseSource) Next() bool {
	if s.dec == nil {
		return false
	}
	for s.dec.Next() {
		evt := s.dec.Event()
		data := bytes.TrimSpace(evt.Data)
		if len(data) == 0 {
			continue
		}
		s.frame = Frame{Event: evt.Type, Data: data}
		return true
	}
	return false
}

func (s *sseSource) Frame() Frame { return s.frame }

func (s *sseSource) Err() error {
	if s.dec == nil {
		return nil
	}
	return s.dec.Err()
}

func (s *sseSource) Close() error {
	if s.dec != nil {
		return s.dec.Close()
	}
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

// jsonSource reads either a single JSON array whose elements are frames
// (Gemini streamGenerateContent) or a sequence of concatenated / newline
// delimited JSON values.
type jsonSource struct {
	body    io.ReadCloser
	br      *bufio.Reader
	dec     *json.Decoder
	started bool
	array   bool
	done    bool
	frame   Frame
	err     error
}

// NewJSONSource reads JSON frames from body.
func NewJSONSource(body io.ReadCloser) FrameSource {
	return &jsonSource{body: body, br: bufio.NewReader(body)}
}

func (s *jsonSource) Next() bool {
	if s.done {
		return false
	}
	if !s.started {
		s.started = true
		if !s.open() {
			return false
		}
	}

	if s.array && !s.dec.More() {
		return s.finish(nil)
	}

	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) && !s.array {
			return s.finish(nil)
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return s.finish(fmt.Errorf("failed to decode JSON frame: %w", err))
	}

	s.frame = Frame{Data: raw}
	return true
}

// open peeks the first significant byte to pick array or sequence mode.
func (s *jsonSource) open() bool {
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.finish(nil)
			}
			return s.finish(err)
		}
		if unicode.IsSpace(rune(b)) {
			continue
		}
		_ = s.br.UnreadByte()
		s.array = b == '['
		break
	}

	s.dec = json.NewDecoder(s.br)
	if s.array {
		if _, err := s.dec.Token(); err != nil {
			return s.finish(fmt.Errorf("failed to open JSON array: %w", err))
		}
	}
	return true
}

func (s *jsonSource) finish(err error) bool {
	s.done = true
	s.err = err
	return false
}

func (s *jsonSource) Frame() Frame { return s.frame }

func (s *jsonSource) Err() error { return s.err }

// Close may run concurrently with Next; it only closes the body, which
// unblocks a pending Decode.
func (s *jsonSource) Close() error {
	return s.body.Close()
}

// Package imageref turns the image reference attached to a chat message into
// inline base64 data with a MIME type.
package imageref

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrUnresolvable is returned when a reference yields no MIME type or no data.
var ErrUnresolvable = errors.New("can not transfer image to base64")

//nolint:gochecknoglobals // compiled once
var dataURIPattern = regexp.MustCompile(`^data:image/([a-zA-Z]*);base64,([^"']*)$`)

//nolint:gochecknoglobals // keyword order matters: png is checked first
var urlKeywords = []string{"png", "jpg", "jpeg", "webp", "heic", "heif"}

const maxImageBytes = 20 << 20

// Image is an inline image payload.
type Image struct {
	MIME string
	Data string
}

// DataURI renders the image as a data URI.
func (i Image) DataURI() string {
	return "data:" + i.MIME + ";base64," + i.Data
}

// Resolver encodes image references. The zero value uses http.DefaultClient.
type Resolver struct {
	Client *http.Client
}

// Resolve tries, in order: data URI, raw base64 (assumed PNG), remote URL,
// local file path.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrUnresolvable
	}

	var (
		img *Image
		err error
	)
	switch {
	case strings.HasPrefix(ref, "data:"):
		img = fromDataURI(ref)
	case isBase64(ref):
		img = &Image{MIME: "image/png", Data: ref}
	case strings.HasPrefix(ref, "http"):
		img, err = r.fetch(ctx, ref)
	default:
		img, err = readFile(ref)
	}
	if err != nil {
		return nil, err
	}

	if img == nil || img.MIME == "" || img.MIME == "image/" || img.Data == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvable, truncate(ref))
	}
	return img, nil
}

// IsRemote reports whether ref is an http(s) URL that a provider can fetch itself.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func fromDataURI(ref string) *Image {
	m := dataURIPattern.FindStringSubmatch(ref)
	if m == nil {
		return nil
	}
	return &Image{MIME: "image/" + strings.ToLower(m[1]), Data: m[2]}
}

// isBase64 accepts strict standard base64 that does not name an existing file.
// JPEG payloads start with "/9j/", so a leading slash alone is not decisive.
func isBase64(s string) bool {
	if len(s)%4 != 0 || strings.HasPrefix(s, "http") {
		return false
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return false
	}
	_, err := os.Stat(s)
	return err != nil
}

func (r *Resolver) fetch(ctx context.Context, url string) (*Image, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return &Image{MIME: mimeFromURL(url), Data: base64.StdEncoding.EncodeToString(body)}, nil
}

func mimeFromURL(url string) string {
	lower := strings.ToLower(url)
	for _, kw := range urlKeywords {
		if strings.Contains(lower, kw) {
			return "image/" + strings.Replace(kw, "jpg", "jpeg", 1)
		}
	}
	return "image/png"
}

func readFile(path string) (*Image, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return &Image{MIME: "image/" + ext, Data: base64.StdEncoding.EncodeToString(body)}, nil
}

func truncate(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

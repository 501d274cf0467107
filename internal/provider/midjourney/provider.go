// Package midjourney drives a midjourney-proxy deployment.
package midjourney

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/provider/transport"
)

const (
	name       = "midjourney"
	discordCDN = "https://cdn.discordapp.com"
	secretKey  = "mj-api-secret"
)

// submit codes meaning the task was accepted: done, already exists, queued.
//
//nolint:gochecknoglobals // read-only table
var accepted = map[int]bool{1: true, 21: true, 22: true}

// Provider implements imagine, task and change against midjourney-proxy.
type Provider struct {
	baseURL  string
	token    string
	imgProxy string
	client   *transport.Client
}

// NewProvider creates a MidJourney provider.
func NewProvider(config Config) *Provider {
	return &Provider{
		baseURL:  config.BaseURL(""),
		token:    config.Key,
		imgProxy: strings.TrimRight(config.ImgProxy, "/"),
		client:   transport.NewClient(name, config.TimeoutDuration()),
	}
}

// Name returns the provider discriminator.
func (p *Provider) Name() string {
	return name
}

type submitResponse struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Result      string `json:"result"`
}

type proxyTask struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Progress    string `json:"progress"`
	ImageURL    string `json:"imageUrl"`
	FailReason  string `json:"failReason"`
	SubmitTime  int64  `json:"submitTime"`
}

// Imagine submits a prompt. Negative prompts and dimensions become
// Midjourney parameters.
func (p *Provider) Imagine(ctx context.Context, prompt string, opt domain.ImagineOption) (*domain.ImagineResult, error) {
	if prompt == "" {
		return nil, domain.EmptyInputError(name)
	}
	if opt.NegativePrompt != "" {
		prompt += " --no " + opt.NegativePrompt
	}
	if opt.Width > 0 && opt.Height > 0 {
		d := gcd(opt.Width, opt.Height)
		prompt += fmt.Sprintf(" --ar %d:%d", opt.Width/d, opt.Height/d)
	}

	return p.submit(ctx, "/mj/submit/imagine", map[string]any{"prompt": prompt})
}

// Change applies UPSCALE, VARIATION or REROLL to a finished task.
func (p *Provider) Change(ctx context.Context, taskID string, action domain.TaskType, index int) (*domain.ImagineResult, error) {
	if taskID == "" {
		return nil, domain.EmptyInputError(name)
	}
	body := map[string]any{"taskId": taskID, "action": string(action)}
	switch action {
	case domain.TaskUpscale, domain.TaskVariation:
		if index < 1 || index > 4 {
			return nil, fmt.Errorf("%w: %s index must be within [1,4], got %d", domain.ErrUnsupportedOperation, action, index)
		}
		body["index"] = index
	case domain.TaskReroll:
	default:
		return nil, fmt.Errorf("%w: %s does not support action %s", domain.ErrUnsupportedOperation, name, action)
	}

	return p.submit(ctx, "/mj/submit/change", body)
}

// Tasks fetches one task by id, or every task the proxy knows.
func (p *Provider) Tasks(ctx context.Context, id string) ([]domain.TaskRecord, error) {
	if p.baseURL == "" {
		return nil, domain.ConfigurationError(name, "endpoint not set")
	}

	if id != "" {
		var t proxyTask
		if err := p.client.Do(ctx, p.request(http.MethodGet, "/mj/task/"+url.PathEscape(id)+"/fetch", nil), &t); err != nil {
			return nil, err
		}
		if t.ID == "" {
			return []domain.TaskRecord{}, nil
		}
		return []domain.TaskRecord{p.record(t)}, nil
	}

	var tasks []proxyTask
	if err := p.client.Do(ctx, p.request(http.MethodGet, "/mj/task/list", nil), &tasks); err != nil {
		return nil, err
	}
	out := make([]domain.TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, p.record(t))
	}
	return out, nil
}

func (p *Provider) submit(ctx context.Context, path string, body any) (*domain.ImagineResult, error) {
	if p.baseURL == "" {
		return nil, domain.ConfigurationError(name, "endpoint not set")
	}

	var resp submitResponse
	if err := p.client.Do(ctx, p.request(http.MethodPost, path, body), &resp); err != nil {
		return nil, err
	}
	if !accepted[resp.Code] || resp.Result == "" {
		return nil, &domain.ProviderError{
			Provider: name,
			Code:     strconv.Itoa(resp.Code),
			Message:  resp.Description,
			Err:      domain.ErrProviderResponse,
		}
	}
	return &domain.ImagineResult{TaskID: resp.Result, Time: time.Now().UnixMilli()}, nil
}

func (p *Provider) request(method, path string, body any) transport.Request {
	header := http.Header{}
	if p.token != "" {
		header.Set(secretKey, p.token)
	}
	return transport.Request{Method: method, URL: p.baseURL + path, Header: header, Body: body}
}

func (p *Provider) record(t proxyTask) domain.TaskRecord {
	var images []string
	if t.ImageURL != "" {
		img := t.ImageURL
		if p.imgProxy != "" {
			img = strings.Replace(img, discordCDN, p.imgProxy, 1)
		}
		images = []string{img}
	}

	info := t.Description
	if info == "" {
		info = t.Status
	}

	progress, _ := strconv.Atoi(strings.TrimSuffix(t.Progress, "%"))

	return domain.TaskRecord{
		ID:       t.ID,
		Type:     domain.TaskType(t.Action),
		Images:   images,
		Info:     info,
		Fail:     t.FailReason,
		Progress: progress,
		Created:  t.SubmitTime,
		Model:    name,
	}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/observability"
)

// Handler handles HTTP requests.
type Handler struct {
	gateway *domain.GatewayService
	models  *catalog.Catalog
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(gateway *domain.GatewayService, models *catalog.Catalog) *Handler {
	return &Handler{
		gateway: gateway,
		models:  models,
	}
}

// ChatBody is the body of POST /v1/chat. Prompt is a shortcut for a single
// user message and is ignored when Messages is set.
type ChatBody struct {
	Prompt   string               `json:"prompt,omitempty"`
	Messages []domain.ChatMessage `json:"messages,omitempty"`
	Option   domain.ChatOption    `json:"option"`
}

// EmbeddingBody is the body of POST /v1/embedding.
type EmbeddingBody struct {
	Input  []string           `json:"input"`
	Option domain.EmbedOption `json:"option"`
}

// ImagineBody is the body of POST /v1/imagine.
type ImagineBody struct {
	Prompt string               `json:"prompt"`
	Option domain.ImagineOption `json:"option"`
}

// ChangeBody is the body of POST /v1/change.
type ChangeBody struct {
	Provider string          `json:"provider"`
	TaskID   string          `json:"taskId"`
	Action   domain.TaskType `json:"action"`
	Index    int             `json:"index,omitempty"`
}

// HandleChat processes chat requests, streaming when option.stream is set.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var body ChatBody
	if !decode(w, r, &body) {
		return
	}

	messages := body.Messages
	if len(messages) == 0 && body.Prompt != "" {
		messages = []domain.ChatMessage{{Role: domain.RoleUser, Content: body.Prompt}}
	}

	ctx := observability.WithProvider(r.Context(), body.Option.Provider)
	ctx = observability.WithModel(ctx, body.Option.Model)
	logger := observability.FromContext(ctx)
	logger.Info("chat request received",
		observability.Int("messages", len(messages)),
		observability.Bool("stream", body.Option.Stream),
	)

	if body.Option.Stream {
		h.streamChat(w, r.WithContext(ctx), messages, body.Option)
		return
	}

	result, err := h.gateway.Chat(ctx, messages, body.Option)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("chat succeeded", observability.Int("tokens", result.TotalTokens))
	writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) streamChat(
	w http.ResponseWriter,
	r *http.Request,
	messages []domain.ChatMessage,
	opt domain.ChatOption,
) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	stream, err := h.gateway.ChatStream(ctx, messages, opt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Close()

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	chunks := 0
	for result, err := range stream.Iter() {
		if err != nil {
			logger.Warn("stream failed", observability.Error(err), observability.Int("chunks", chunks))
			data, _ := json.Marshal(errorBody{Error: err.Error(), Kind: errorKind(err)})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
			flusher.Flush()
			return
		}

		data, encErr := json.Marshal(result)
		if encErr != nil {
			logger.Error("failed to encode chunk", observability.Error(encErr))
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		chunks++
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
	logger.Info("stream completed", observability.Int("chunks", chunks))
}

// HandleEmbedding processes embedding requests.
func (h *Handler) HandleEmbedding(w http.ResponseWriter, r *http.Request) {
	var body EmbeddingBody
	if !decode(w, r, &body) {
		return
	}

	result, err := h.gateway.Embedding(r.Context(), body.Input, body.Option)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleImagine submits an image generation task.
func (h *Handler) HandleImagine(w http.ResponseWriter, r *http.Request) {
	var body ImagineBody
	if !decode(w, r, &body) {
		return
	}

	result, err := h.gateway.Imagine(r.Context(), body.Prompt, body.Option)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleTask lists the image tasks of the provider in the path, optionally
// filtered by the id query parameter.
func (h *Handler) HandleTask(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.gateway.Task(r.Context(), r.PathValue("provider"), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []domain.TaskRecord{}
	}
	writeJSON(w, r, http.StatusOK, tasks)
}

// HandleChange applies an action to an image task.
func (h *Handler) HandleChange(w http.ResponseWriter, r *http.Request) {
	var body ChangeBody
	if !decode(w, r, &body) {
		return
	}

	result, err := h.gateway.Change(r.Context(), body.Provider, body.TaskID, body.Action, body.Index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

type modelEntry struct {
	Provider  string   `json:"provider"`
	Chat      []string `json:"chat,omitempty"`
	Embedding []string `json:"embedding,omitempty"`
	Imagine   []string `json:"imagine,omitempty"`
}

// HandleModels lists the registered providers with their catalog models.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	names, err := h.gateway.Providers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries := make([]modelEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, modelEntry{
			Provider:  name,
			Chat:      h.models.Models(name, catalog.Chat),
			Embedding: h.models.Models(name, catalog.Embedding),
			Imagine:   h.models.Models(name, catalog.Imagine),
		})
	}
	writeJSON(w, r, http.StatusOK, entries)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, r, http.StatusBadRequest, errorBody{
		Error: fmt.Sprintf("invalid request body: %v", err),
		Kind:  "invalid_request",
	})
	return false
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Already written status, can't change it, just log.
		observability.FromContext(r.Context()).Error("failed to encode response", observability.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	logger := observability.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", observability.Error(err), observability.Int("status", status))
	} else {
		logger.Warn("request rejected", observability.Error(err), observability.Int("status", status))
	}
	writeJSON(w, r, status, errorBody{Error: err.Error(), Kind: errorKind(err)})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrProviderNotFound),
		errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrUnsupportedOperation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrContentBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProviderResponse):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrTransport):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	case errors.Is(err, domain.ErrProviderNotFound):
		return "provider_not_found"
	case errors.Is(err, domain.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, domain.ErrUnsupportedOperation):
		return "unsupported"
	case errors.Is(err, domain.ErrContentBlocked):
		return "content_blocked"
	case errors.Is(err, domain.ErrProviderResponse):
		return "provider_response"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}

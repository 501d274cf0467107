package domain

import (
	"encoding/json"
	"time"
)

// Role is the speaker of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
)

// ResultKind tags a ChatResult as a terminal aggregate or a streamed chunk.
type ResultKind string

const (
	KindCompletion    ResultKind = "chat.completion"
	KindChunk         ResultKind = "chat.completion.chunk"
	KindChunkToolCall ResultKind = "chat.completion.chunk.tool"
)

// ChatMessage is one turn of a conversation transcript.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Image is a remote URL, a local path, raw base64 or a data URI.
	Image string `json:"img,omitempty"`
	// ToolCallID links a tool-result message to the call it answers.
	ToolCallID string `json:"tool,omitempty"`
}

// ChatOption configures a single chat call.
type ChatOption struct {
	Provider    string          `json:"provider,omitempty"`
	Model       string          `json:"model,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	TopP        *float64        `json:"top,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxLength   *int            `json:"maxLength,omitempty"`
	Tools       json.RawMessage `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"toolChoice,omitempty"`
}

// ChatRequest is what the Dispatcher hands to a chat provider.
type ChatRequest struct {
	Messages []ChatMessage
	Option   ChatOption
}

// ToolCall describes a function call requested by the model. In streaming
// mode a single call may arrive as several fragments sharing Index.
type ToolCall struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Usage tracks token consumption as reported by the provider.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ChatResult is the canonical chat result: one per non-streaming call, one
// per emitted event in streaming mode.
type ChatResult struct {
	Content   string     `json:"content"`
	Model     string     `json:"model"`
	Object    ResultKind `json:"object"`
	ToolCalls []ToolCall `json:"tools,omitempty"`
	Usage
}

// EmbedOption configures an embedding call.
type EmbedOption struct {
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// EmbeddingResult holds one vector per input text.
type EmbeddingResult struct {
	Embeddings   [][]float64 `json:"embedding"`
	Model        string      `json:"model"`
	PromptTokens int         `json:"promptTokens"`
	TotalTokens  int         `json:"totalTokens"`
}

// ImagineOption configures an image generation call.
type ImagineOption struct {
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	Num            int    `json:"num,omitempty"`
}

// ImagineResult identifies a submitted image task.
type ImagineResult struct {
	TaskID string `json:"taskId"`
	Time   int64  `json:"time"`
}

// TaskType names the kind of image task.
type TaskType string

const (
	TaskImagine     TaskType = "IMAGINE"
	TaskUpscale     TaskType = "UPSCALE"
	TaskVariation   TaskType = "VARIATION"
	TaskReroll      TaskType = "REROLL"
	TaskDescribe    TaskType = "DESCRIBE"
	TaskBlend       TaskType = "BLEND"
	TaskGeneration  TaskType = "generation"
	TaskGenerations TaskType = "generations"
)

// TaskRecord is the state of one image generation task.
type TaskRecord struct {
	ID       string   `json:"id"`
	Type     TaskType `json:"type"`
	Images   []string `json:"imgs"`
	Info     string   `json:"info"`
	Fail     string   `json:"fail"`
	Progress int      `json:"progress"`
	Created  int64    `json:"created"`
	Model    string   `json:"model"`
}

// NewTaskRecord builds a finished task record stamped with the current time.
func NewTaskRecord(id string, typ TaskType, model string, images []string) TaskRecord {
	return TaskRecord{
		ID:       id,
		Type:     typ,
		Images:   images,
		Info:     "success",
		Progress: 100,
		Created:  time.Now().UnixMilli(),
		Model:    model,
	}
}

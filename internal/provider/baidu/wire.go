package baidu

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages        []message `json:"messages"`
	Stream          bool      `json:"stream,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"`
	TopP            *float64  `json:"top_p,omitempty"`
	MaxOutputTokens *int      `json:"max_output_tokens,omitempty"`
	System          string    `json:"system,omitempty"`
}

type chatResponse struct {
	ID               string `json:"id"`
	Result           string `json:"result"`
	IsEnd            bool   `json:"is_end"`
	NeedClearHistory bool   `json:"need_clear_history"`
	Usage            *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

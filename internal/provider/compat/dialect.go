package compat

import "github.com/davidbz/uniai/internal/domain"

// EmbedStyle selects the embedding wire format.
type EmbedStyle int

const (
	// EmbedNone means the provider has no embedding endpoint.
	EmbedNone EmbedStyle = iota
	// EmbedOpenAI posts {model, input, dimensions} and reads data[].embedding.
	EmbedOpenAI
	// EmbedText2Vec posts {prompt, model} and reads data as a matrix.
	EmbedText2Vec
)

// Dialect captures how one OpenAI-compatible provider deviates from the
// reference schema.
type Dialect struct {
	Name      string
	BaseURL   string
	ChatPath  string
	EmbedPath string
	Embed     EmbedStyle
	// Roles lists the accepted roles; messages with other roles are dropped.
	Roles []domain.Role
	// SuppressEmpty drops stream frames with no text and no tool call.
	SuppressEmpty bool
	// StreamUsage asks for a final usage frame via stream_options.
	StreamUsage bool
	// EchoRequested reports the requested model instead of the provider echo.
	EchoRequested bool
	// KeyOptional allows calls without a credential.
	KeyOptional bool
	// Dimensions forwards EmbedOption.Dimensions.
	Dimensions bool
}

//nolint:gochecknoglobals // role sets shared by dialects
var (
	allRoles   = []domain.Role{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleDeveloper}
	noDevRoles = []domain.Role{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant, domain.RoleTool}
	chatRoles  = []domain.Role{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant}
)

// Dialects of the built-in OpenAI-compatible providers.
//
//nolint:gochecknoglobals // read-only table
var (
	OpenAI = Dialect{
		Name:        "openai",
		BaseURL:     "https://api.openai.com",
		ChatPath:    "/v1/chat/completions",
		Roles:       allRoles,
		StreamUsage: true,
	}
	DeepSeek = Dialect{
		Name:        "deepseek",
		BaseURL:     "https://api.deepseek.com",
		ChatPath:    "/chat/completions",
		Roles:       noDevRoles,
		StreamUsage: true,
	}
	GLM = Dialect{
		Name:          "glm",
		BaseURL:       "https://open.bigmodel.cn",
		ChatPath:      "/api/paas/v4/chat/completions",
		EmbedPath:     "/api/paas/v4/embeddings",
		Embed:         EmbedOpenAI,
		Roles:         noDevRoles,
		SuppressEmpty: true,
		Dimensions:    true,
	}
	IFlyTek = Dialect{
		Name:          "iflytek",
		BaseURL:       "https://spark-api-open.xf-yun.com",
		ChatPath:      "/v1/chat/completions",
		Roles:         noDevRoles,
		EchoRequested: true,
	}
	MoonShot = Dialect{
		Name:     "moonshot",
		BaseURL:  "https://api.moonshot.cn",
		ChatPath: "/v1/chat/completions",
		Roles:    noDevRoles,
	}
	AliYun = Dialect{
		Name:        "aliyun",
		BaseURL:     "https://dashscope.aliyuncs.com",
		ChatPath:    "/compatible-mode/v1/chat/completions",
		EmbedPath:   "/compatible-mode/v1/embeddings",
		Embed:       EmbedOpenAI,
		Roles:       noDevRoles,
		StreamUsage: true,
		Dimensions:  true,
	}
	XAI = Dialect{
		Name:        "xai",
		BaseURL:     "https://api.x.ai",
		ChatPath:    "/v1/chat/completions",
		Roles:       chatRoles,
		StreamUsage: true,
	}
	Other = Dialect{
		Name:        "other",
		ChatPath:    "/v1/chat/completions",
		EmbedPath:   "/embedding",
		Embed:       EmbedText2Vec,
		Roles:       allRoles,
		KeyOptional: true,
	}
)

func (d Dialect) accepts(role domain.Role) bool {
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}

package modelclient

import (
	"encoding/json"
	"strings"

	"github.com/mandate-run/mandate/internal/conversation"
	"github.com/mandate-run/mandate/internal/merrors"
)

const anthropicBaseURL = "https://api.anthropic.com/v1/messages"

// AnthropicAdapter (internal name "A") implements the Claude Messages API
// wire shape: a separate top-level system field, message content as an
// array of typed parts, a custom auth header, and a version header.
type AnthropicAdapter struct {
	BaseURL string
}

func (a AnthropicAdapter) Name() string         { return "A" }
func (a AnthropicAdapter) DefaultModel() string { return "claude-3-5-sonnet-20241022" }
func (a AnthropicAdapter) APIKeyEnvVar() string { return "ANTHROPIC_API_KEY" }

func (a AnthropicAdapter) FullURL(apiKey, model string) string {
	base := a.BaseURL
	if base == "" {
		base = anthropicBaseURL
	}
	return base
}

func (a AnthropicAdapter) Headers(apiKey string) map[string]string {
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": "2023-06-01",
		"content-type":      "application/json",
	}
}

type anthropicContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentPart `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

func (a AnthropicAdapter) BuildSingleTurnPayload(system, user, model string) ([]byte, error) {
	req := anthropicRequest{
		Model:     model,
		System:    system,
		MaxTokens: 4096,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContentPart{{Type: "text", Text: user}}},
		},
	}
	return json.Marshal(req)
}

func (a AnthropicAdapter) BuildConversationPayload(system string, history []conversation.Message, model string) ([]byte, error) {
	req := anthropicRequest{Model: model, System: system, MaxTokens: 4096}
	for _, m := range history {
		if m.Role == conversation.RoleSystem {
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{
			Role:    string(m.Role),
			Content: []anthropicContentPart{{Type: "text", Text: m.Content}},
		})
	}
	return json.Marshal(req)
}

type anthropicResponse struct {
	Content []anthropicContentPart `json:"content"`
}

func (a AnthropicAdapter) unwrap(raw []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", merrors.Wrap(err, merrors.CodeParse, "decoding anthropic envelope").WithContext("adapter", a.Name())
	}
	var parts []string
	for _, c := range resp.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n"), nil
}

func (a AnthropicAdapter) ParsePlan(raw []byte) (WriteFileCommand, error) {
	text, err := a.unwrap(raw)
	if err != nil {
		return WriteFileCommand{}, err
	}
	return parsePlanText(a.Name(), text, false)
}

func (a AnthropicAdapter) ParseChat(raw []byte) (string, error) {
	return a.unwrap(raw)
}

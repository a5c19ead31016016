package modelclient

import (
	"encoding/json"

	"github.com/mandate-run/mandate/internal/conversation"
	"github.com/mandate-run/mandate/internal/merrors"
)

const openAIBaseURL = "https://api.openai.com/v1/chat/completions"

// OpenAIAdapter (internal name "O") implements the flat-messages,
// system-role-first, bearer-auth wire shape used by OpenAI's Chat
// Completions API.
type OpenAIAdapter struct {
	BaseURL string
}

func (o OpenAIAdapter) Name() string         { return "O" }
func (o OpenAIAdapter) DefaultModel() string { return "gpt-4o" }
func (o OpenAIAdapter) APIKeyEnvVar() string { return "OPENAI_API_KEY" }

func (o OpenAIAdapter) FullURL(apiKey, model string) string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return openAIBaseURL
}

func (o OpenAIAdapter) Headers(apiKey string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

func (o OpenAIAdapter) BuildSingleTurnPayload(system, user, model string) ([]byte, error) {
	req := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	return json.Marshal(req)
}

func (o OpenAIAdapter) BuildConversationPayload(system string, history []conversation.Message, model string) ([]byte, error) {
	req := openAIRequest{Model: model}
	req.Messages = append(req.Messages, openAIMessage{Role: "system", Content: system})
	for _, m := range history {
		if m.Role == conversation.RoleSystem {
			continue
		}
		req.Messages = append(req.Messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}
	return json.Marshal(req)
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
}

func (o OpenAIAdapter) unwrap(raw []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", merrors.Wrap(err, merrors.CodeParse, "decoding openai envelope").WithContext("adapter", o.Name())
	}
	if len(resp.Choices) == 0 {
		return "", merrors.New(merrors.CodeParse, "openai envelope has no choices").WithContext("adapter", o.Name())
	}
	return resp.Choices[0].Message.Content, nil
}

func (o OpenAIAdapter) ParsePlan(raw []byte) (WriteFileCommand, error) {
	text, err := o.unwrap(raw)
	if err != nil {
		return WriteFileCommand{}, err
	}
	return parsePlanText(o.Name(), text, false)
}

func (o OpenAIAdapter) ParseChat(raw []byte) (string, error) {
	return o.unwrap(raw)
}

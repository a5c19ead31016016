package modelclient

import "github.com/mandate-run/mandate/internal/conversation"

const mistralBaseURL = "https://api.mistral.ai/v1/chat/completions"

// MistralAdapter (internal name "M") is identical in shape to OpenAIAdapter
// (spec.md §4.4: "M: identical to O in shape"), differing only in endpoint
// and API key environment variable.
type MistralAdapter struct {
	BaseURL string
}

func (m MistralAdapter) Name() string         { return "M" }
func (m MistralAdapter) DefaultModel() string { return "mistral-large-latest" }
func (m MistralAdapter) APIKeyEnvVar() string { return "MISTRAL_API_KEY" }

func (m MistralAdapter) FullURL(apiKey, model string) string {
	if m.BaseURL != "" {
		return m.BaseURL
	}
	return mistralBaseURL
}

func (m MistralAdapter) Headers(apiKey string) map[string]string {
	return OpenAIAdapter{}.Headers(apiKey)
}

func (m MistralAdapter) BuildSingleTurnPayload(system, user, model string) ([]byte, error) {
	return OpenAIAdapter{}.BuildSingleTurnPayload(system, user, model)
}

func (m MistralAdapter) BuildConversationPayload(system string, history []conversation.Message, model string) ([]byte, error) {
	return OpenAIAdapter{}.BuildConversationPayload(system, history, model)
}

func (m MistralAdapter) ParsePlan(raw []byte) (WriteFileCommand, error) {
	text, err := OpenAIAdapter{}.unwrap(raw)
	if err != nil {
		return WriteFileCommand{}, err
	}
	return parsePlanText(m.Name(), text, false)
}

func (m MistralAdapter) ParseChat(raw []byte) (string, error) {
	return OpenAIAdapter{}.unwrap(raw)
}

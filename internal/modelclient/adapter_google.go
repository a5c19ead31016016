package modelclient

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/mandate-run/mandate/internal/conversation"
	"github.com/mandate-run/mandate/internal/merrors"
)

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleAdapter (internal name "G") implements the Gemini generateContent
// wire shape: a contents array of turns (assistant role spelled "model"), a
// separate systemInstruction field, and the API key passed as a URL query
// parameter rather than a header.
type GoogleAdapter struct {
	BaseURL string
}

func (g GoogleAdapter) Name() string         { return "G" }
func (g GoogleAdapter) DefaultModel() string { return "gemini-1.5-pro" }
func (g GoogleAdapter) APIKeyEnvVar() string { return "GEMINI_API_KEY" }

func (g GoogleAdapter) FullURL(apiKey, model string) string {
	base := g.BaseURL
	if base == "" {
		base = googleBaseURL
	}
	return base + "/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(apiKey)
}

func (g GoogleAdapter) Headers(apiKey string) map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

type googlePart struct {
	Text string `json:"text"`
}

type googleTurn struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleSystemInstruction struct {
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	SystemInstruction *googleSystemInstruction `json:"systemInstruction,omitempty"`
	Contents          []googleTurn             `json:"contents"`
}

func geminiRole(role conversation.Role) string {
	if role == conversation.RoleAssistant {
		return "model"
	}
	return "user"
}

func (g GoogleAdapter) BuildSingleTurnPayload(system, user, model string) ([]byte, error) {
	req := googleRequest{
		Contents: []googleTurn{{Role: "user", Parts: []googlePart{{Text: user}}}},
	}
	if system != "" {
		req.SystemInstruction = &googleSystemInstruction{Parts: []googlePart{{Text: system}}}
	}
	return json.Marshal(req)
}

func (g GoogleAdapter) BuildConversationPayload(system string, history []conversation.Message, model string) ([]byte, error) {
	req := googleRequest{}
	if system != "" {
		req.SystemInstruction = &googleSystemInstruction{Parts: []googlePart{{Text: system}}}
	}
	for _, m := range history {
		if m.Role == conversation.RoleSystem {
			continue
		}
		req.Contents = append(req.Contents, googleTurn{Role: geminiRole(m.Role), Parts: []googlePart{{Text: m.Content}}})
	}
	return json.Marshal(req)
}

type googleCandidate struct {
	Content googleTurn `json:"content"`
}

type googleResponse struct {
	Candidates []googleCandidate `json:"candidates"`
}

func (g GoogleAdapter) unwrap(raw []byte) (string, error) {
	var resp googleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", merrors.Wrap(err, merrors.CodeParse, "decoding gemini envelope").WithContext("adapter", g.Name())
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", merrors.New(merrors.CodeParse, "gemini envelope has no candidate text").WithContext("adapter", g.Name())
	}
	var texts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n"), nil
}

func (g GoogleAdapter) ParsePlan(raw []byte) (WriteFileCommand, error) {
	text, err := g.unwrap(raw)
	if err != nil {
		return WriteFileCommand{}, err
	}
	// Adapter G additionally strips a leading triple-backtick fence before
	// attempting JSON parsing.
	return parsePlanText(g.Name(), text, true)
}

func (g GoogleAdapter) ParseChat(raw []byte) (string, error) {
	return g.unwrap(raw)
}

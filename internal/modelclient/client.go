package modelclient

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/time/rate"

	"github.com/mandate-run/mandate/internal/conversation"
	"github.com/mandate-run/mandate/internal/logging"
	"github.com/mandate-run/mandate/internal/merrors"
	"github.com/mandate-run/mandate/internal/metrics"
	"github.com/mandate-run/mandate/internal/policy"
)

// PolicySummary is the minimal slice of the policy document the Model
// Client needs to synthesize a policy-aware system instruction.
type PolicySummary struct {
	FileCreateAllowedDirectories []string
	AllowedCommands              []string
	BlockedCommands              []string
}

// SummarizePolicy extracts a PolicySummary from a live policy Engine.
func SummarizePolicy(e *policy.Engine) PolicySummary {
	return PolicySummary{
		FileCreateAllowedDirectories: e.AllowedDirectories("file-tool", policy.OpCreate),
		AllowedCommands:              e.AllowedCommands(),
		BlockedCommands:              e.BlockedCommands(),
	}
}

// providerEnvPriority is the fixed priority list consulted for automatic
// provider detection when none is given explicitly.
var providerEnvPriority = []struct {
	envVar   string
	adapter  func() Adapter
}{
	{"ANTHROPIC_API_KEY", func() Adapter { return AnthropicAdapter{} }},
	{"OPENAI_API_KEY", func() Adapter { return OpenAIAdapter{} }},
	{"GEMINI_API_KEY", func() Adapter { return GoogleAdapter{} }},
	{"MISTRAL_API_KEY", func() Adapter { return MistralAdapter{} }},
}

// DetectProvider inspects the fixed priority list of environment variables
// and returns the first adapter whose key is set.
func DetectProvider() (Adapter, error) {
	for _, candidate := range providerEnvPriority {
		if strings.TrimSpace(os.Getenv(candidate.envVar)) != "" {
			return candidate.adapter(), nil
		}
	}
	names := make([]string, len(providerEnvPriority))
	for i, c := range providerEnvPriority {
		names[i] = c.envVar
	}
	return nil, merrors.New(merrors.CodeConfiguration,
		"no provider API key set, expected one of "+strings.Join(names, ", "))
}

// Client owns one adapter and one model name, issues chat/plan calls, and
// synthesizes the policy-aware system instruction.
type Client struct {
	adapter Adapter
	model   string
	doer    HTTPDoer
	limiter *rate.Limiter
	logger  *logging.Logger

	policySummary PolicySummary
	tokenCounter  *tiktoken.Tiktoken
}

// NewClient constructs a Client for the given adapter, rate-limited to
// callsPerSecond outbound requests.
func NewClient(adapter Adapter, doer HTTPDoer, summary PolicySummary, logger *logging.Logger, callsPerSecond float64) *Client {
	if callsPerSecond <= 0 {
		callsPerSecond = 2
	}
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Client{
		adapter:       adapter,
		model:         adapter.DefaultModel(),
		doer:          doer,
		limiter:       rate.NewLimiter(rate.Limit(callsPerSecond), 1),
		logger:        logger,
		policySummary: summary,
		tokenCounter:  enc,
	}
}

// SetProvider switches the active adapter (and, if given, model name). The
// conversation history is untouched: it is owned by the Conversation Store,
// not the Client.
func (c *Client) SetProvider(adapter Adapter, model string) {
	c.adapter = adapter
	if model != "" {
		c.model = model
	} else {
		c.model = adapter.DefaultModel()
	}
}

// systemInstruction synthesizes the policy-aware system instruction: the
// allowed directories for file-create, the allowed/blocked command
// prefixes, and the two response shapes (or, in chat mode, the recognized
// operation names) the model is expected to produce.
func (c *Client) systemInstruction(chatMode bool) string {
	var sb strings.Builder
	sb.WriteString("You are an AI assistant that proposes file writes and shell commands.\n")

	sb.WriteString("Allowed directories for creating files: ")
	if len(c.policySummary.FileCreateAllowedDirectories) == 0 {
		sb.WriteString("(none)")
	} else {
		sb.WriteString(strings.Join(c.policySummary.FileCreateAllowedDirectories, ", "))
	}
	sb.WriteString("\n")

	if len(c.policySummary.AllowedCommands) > 0 {
		sb.WriteString("Allowed command prefixes: " + strings.Join(c.policySummary.AllowedCommands, ", ") + "\n")
	}
	if len(c.policySummary.BlockedCommands) > 0 {
		sb.WriteString("Blocked command substrings: " + strings.Join(c.policySummary.BlockedCommands, ", ") + "\n")
	}

	if chatMode {
		sb.WriteString("You may invoke: add_todo(\"title\",\"description\"), list_todos(), " +
			"mark_complete(id), delete_todo(id), execute_next(), execute_all(), execute_todo(id), " +
			"request_user_approval(\"reason\").\n")
	} else {
		sb.WriteString("Respond with a single JSON object: " +
			"{\"command\":\"write\",\"path\":\"...\",\"content\":\"...\",\"request_execution\":false} " +
			"or {\"command\":\"run\",\"path\":\"...\",\"content\":\"<shell command>\"}.\n")
	}
	return sb.String()
}

func (c *Client) apiKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(c.adapter.APIKeyEnvVar()))
	if key == "" {
		return "", merrors.New(merrors.CodeConfiguration,
			"missing "+c.adapter.APIKeyEnvVar()+" for provider "+c.adapter.Name())
	}
	return key, nil
}

func (c *Client) send(body []byte) ([]byte, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(context.Background()); err != nil {
		return nil, merrors.Wrap(err, merrors.CodeTransport, "rate limiter wait failed")
	}

	req := &Request{
		Method:  http.MethodPost,
		URL:     c.adapter.FullURL(key, c.model),
		Headers: c.adapter.Headers(key),
		Body:    body,
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		wrapped := merrors.Wrap(err, merrors.CodeTransport, "model call failed").WithContext("adapter", c.adapter.Name())
		metrics.RecordProviderCall(c.adapter.Name(), wrapped)
		return nil, wrapped
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := merrors.New(merrors.CodeTransport, fmt.Sprintf("model call returned status %d", resp.StatusCode)).
			WithContext("adapter", c.adapter.Name())
		metrics.RecordProviderCall(c.adapter.Name(), statusErr)
		return nil, statusErr
	}

	metrics.RecordProviderCall(c.adapter.Name(), nil)
	c.logCost("request", body)
	return resp.Body, nil
}

func (c *Client) logCost(stage string, body []byte) {
	if c.logger == nil || c.tokenCounter == nil {
		return
	}
	tokens := len(c.tokenCounter.Encode(string(body), nil, nil))
	c.logger.LogCost(stage, map[string]any{
		"adapter": c.adapter.Name(),
		"model":   c.model,
		"tokens":  tokens,
	})
}

// Plan issues a single-turn plan-mode request and parses the structured
// write-file command out of the reply.
func (c *Client) Plan(userText string) (WriteFileCommand, error) {
	payload, err := c.adapter.BuildSingleTurnPayload(c.systemInstruction(false), userText, c.model)
	if err != nil {
		return WriteFileCommand{}, merrors.Wrap(err, merrors.CodeParse, "building plan payload")
	}
	raw, err := c.send(payload)
	if err != nil {
		return WriteFileCommand{}, err
	}
	return c.adapter.ParsePlan(raw)
}

// Chat issues a single-turn chat-mode request and returns the raw reply
// text.
func (c *Client) Chat(userText string) (string, error) {
	payload, err := c.adapter.BuildSingleTurnPayload(c.systemInstruction(true), userText, c.model)
	if err != nil {
		return "", merrors.Wrap(err, merrors.CodeParse, "building chat payload")
	}
	raw, err := c.send(payload)
	if err != nil {
		return "", err
	}
	return c.adapter.ParseChat(raw)
}

// ChatWithHistory issues a conversation-aware chat-mode request.
func (c *Client) ChatWithHistory(history []conversation.Message) (string, error) {
	payload, err := c.adapter.BuildConversationPayload(c.systemInstruction(true), history, c.model)
	if err != nil {
		return "", merrors.Wrap(err, merrors.CodeParse, "building conversation payload")
	}
	raw, err := c.send(payload)
	if err != nil {
		return "", err
	}
	return c.adapter.ParseChat(raw)
}

// ProviderName returns the internal name ("A"/"O"/"G"/"M") of the active adapter.
func (c *Client) ProviderName() string {
	return c.adapter.Name()
}

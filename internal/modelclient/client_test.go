package modelclient

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	response *Response
	err      error
	lastReq  *Request
}

func (f *fakeDoer) Do(req *Request) (*Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func openAIEnvelope(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return body
}

func TestPlanParsesOpenAIStyleEnvelope(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	planJSON := `{"command":"write","path":"src/a.txt","content":"hi"}`
	doer := &fakeDoer{response: &Response{StatusCode: 200, Body: openAIEnvelope(planJSON)}}

	client := NewClient(OpenAIAdapter{}, doer, PolicySummary{}, nil, 1000)
	cmd, err := client.Plan("create a.txt containing hi")
	require.NoError(t, err)
	assert.Equal(t, "write", cmd.Command)
	assert.Equal(t, "src/a.txt", cmd.Path)
	assert.Equal(t, "hi", cmd.Content)
}

func TestPlanFailsOnMalformedJSON(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	doer := &fakeDoer{response: &Response{StatusCode: 200, Body: openAIEnvelope("not json at all")}}
	client := NewClient(OpenAIAdapter{}, doer, PolicySummary{}, nil, 1000)

	_, err := client.Plan("do something")
	assert.Error(t, err)
}

func TestChatReturnsRawText(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	doer := &fakeDoer{response: &Response{StatusCode: 200, Body: openAIEnvelope("hello there")}}
	client := NewClient(OpenAIAdapter{}, doer, PolicySummary{}, nil, 1000)

	reply, err := client.Chat("hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
}

func TestMissingAPIKeyIsConfigurationError(t *testing.T) {
	os.Unsetenv("OPENAI_API_KEY")
	doer := &fakeDoer{}
	client := NewClient(OpenAIAdapter{}, doer, PolicySummary{}, nil, 1000)

	_, err := client.Chat("hi")
	assert.Error(t, err)
}

func TestNonOKStatusIsTransportError(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	doer := &fakeDoer{response: &Response{StatusCode: 500, Body: []byte("boom")}}
	client := NewClient(OpenAIAdapter{}, doer, PolicySummary{}, nil, 1000)

	_, err := client.Chat("hi")
	assert.Error(t, err)
}

func TestSetProviderSwitchesAdapter(t *testing.T) {
	doer := &fakeDoer{}
	client := NewClient(AnthropicAdapter{}, doer, PolicySummary{}, nil, 1000)
	assert.Equal(t, "A", client.ProviderName())

	client.SetProvider(OpenAIAdapter{}, "")
	assert.Equal(t, "O", client.ProviderName())
}

func TestGeminiAdapterStripsCodeFence(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": "```json\n{\"command\":\"write\",\"path\":\"a.txt\",\"content\":\"x\"}\n```"}}}},
		},
	})

	cmd, err := GoogleAdapter{}.ParsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", cmd.Path)
}

func TestDetectProviderUsesPriorityOrder(t *testing.T) {
	os.Unsetenv("ANTHROPIC_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("MISTRAL_API_KEY")
	t.Setenv("GEMINI_API_KEY", "key")

	adapter, err := DetectProvider()
	require.NoError(t, err)
	assert.Equal(t, "G", adapter.Name())
}

func TestDetectProviderFailsWhenNoneSet(t *testing.T) {
	os.Unsetenv("ANTHROPIC_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("MISTRAL_API_KEY")

	_, err := DetectProvider()
	assert.Error(t, err)
}

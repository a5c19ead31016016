package boundary

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandate-run/mandate/internal/modelclient"
)

func TestNetHTTPDoerRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	doer := NewNetHTTPDoer(0)
	resp, err := doer.Do(&modelclient.Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer test"},
		Body:    []byte("payload"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))
}

package boundary

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/mandate-run/mandate/internal/modelclient"
)

// NetHTTPDoer is the default modelclient.HTTPDoer, backed by net/http. The
// Model Client's adapters are decoupled from net/http directly (see
// internal/modelclient/types.go) so they can be exercised in tests without
// a real transport; this is the production implementation.
type NetHTTPDoer struct {
	Client *http.Client
}

// NewNetHTTPDoer constructs a NetHTTPDoer with a bounded request timeout.
func NewNetHTTPDoer(timeout time.Duration) *NetHTTPDoer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NetHTTPDoer{Client: &http.Client{Timeout: timeout}}
}

// Do issues req and adapts the net/http response back into modelclient's
// transport-agnostic Response shape.
func (d *NetHTTPDoer) Do(req *modelclient.Request) (*modelclient.Response, error) {
	httpReq, err := http.NewRequest(req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &modelclient.Response{StatusCode: resp.StatusCode, Body: body}, nil
}

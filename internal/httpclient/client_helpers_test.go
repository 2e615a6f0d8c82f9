package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestClient returns a client closed at test end. A nil cfg uses the
// defaults.
func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

// newTestServer starts a manifest host that runs handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// readBody reads the whole response body and closes it.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	require.NotNil(t, resp)
	defer discardBody(resp)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// discardBody closes resp when there is one; failed requests return nil.
func discardBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_ = resp.Body.Close()
}

package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

// Request builders for exercising fastglue handlers directly, without a
// listening server. Handlers only ever see a *fastglue.Request, so a bare
// RequestCtx is enough.

func newRequest(method string) *fastglue.Request {
	ctx := &fasthttp.RequestCtx{}
	if method != "" {
		ctx.Request.Header.SetMethod(method)
	}
	return &fastglue.Request{RequestCtx: ctx}
}

// NewRequest returns an empty request with no method or body
func NewRequest(t *testing.T) *fastglue.Request {
	t.Helper()
	return newRequest("")
}

// NewGETRequest returns a GET request, for handlers that only read query
// parameters like the webhook verification handshake.
func NewGETRequest(t *testing.T) *fastglue.Request {
	t.Helper()
	return newRequest(fasthttp.MethodGet)
}

// NewJSONRequest returns a POST request carrying body as JSON, the shape
// the management API and webhook receiver see.
func NewJSONRequest(t *testing.T, body any) *fastglue.Request {
	t.Helper()

	req := newRequest(fasthttp.MethodPost)
	req.RequestCtx.Request.Header.SetContentType("application/json")
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		req.RequestCtx.Request.SetBody(data)
	}
	return req
}

// SetQueryParam adds a query parameter to the request
func SetQueryParam(req *fastglue.Request, key, value string) {
	req.RequestCtx.QueryArgs().Set(key, value)
}

// GetResponseBody returns the body a handler wrote
func GetResponseBody(req *fastglue.Request) []byte {
	return req.RequestCtx.Response.Body()
}

// GetResponseStatusCode returns the status code a handler wrote
func GetResponseStatusCode(req *fastglue.Request) int {
	return req.RequestCtx.Response.StatusCode()
}

package tangguh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSize = 10 * 1024 * 1024

// Transport issues the actual network calls, attaching the current
// credential as a bearer token and decoding the backend envelope into the
// uniform Response shape. Failures surface as *TransportError.
type Transport struct {
	httpClient *http.Client

	// tokenSource returns the current access token, empty when signed out.
	tokenSource func() string
}

// NewTransport creates a transport with the given timeout.
func NewTransport(timeout time.Duration, tokenSource func() string) *Transport {
	if tokenSource == nil {
		tokenSource = func() string { return "" }
	}
	return &Transport{
		httpClient:  &http.Client{Timeout: timeout},
		tokenSource: tokenSource,
	}
}

// envelope mirrors the wire shape {success,data,message,errors}.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []FieldError    `json:"errors"`
}

// Do performs one HTTP call. A 2xx answer returns (*Response, nil); any
// other outcome returns a *TransportError, carrying the decoded response
// when one was received.
func (t *Transport) Do(ctx context.Context, method, rawURL string, params url.Values, data any, extra http.Header) (*Response, error) {
	var body io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, &TransportError{Method: method, URL: rawURL, Err: err}
		}
		body = bytes.NewReader(encoded)
	}

	fullURL := rawURL
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		fullURL = rawURL + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err}
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range extra {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if token := t.tokenSource(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{
			Method:  method,
			URL:     rawURL,
			Err:     err,
			Timeout: isTimeout(err),
		}
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err, Timeout: isTimeout(err)}
	}

	resp := decodeResponse(httpResp, raw)
	if httpResp.StatusCode >= 400 {
		return resp, &TransportError{Method: method, URL: rawURL, Response: resp}
	}
	return resp, nil
}

func decodeResponse(httpResp *http.Response, raw []byte) *Response {
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		resp.Data = env.Data
		resp.Message = env.Message
		resp.Errors = env.Errors
		if env.Success != nil {
			resp.Success = *env.Success
		} else {
			resp.Success = httpResp.StatusCode < 400
		}
	} else {
		resp.Success = httpResp.StatusCode < 400
	}
	return resp
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

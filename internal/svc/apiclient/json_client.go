package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mkrupp/homecase-console/internal/domain"
	context_ "github.com/mkrupp/homecase-console/internal/infra/context"
	"github.com/mkrupp/homecase-console/internal/infra/logging"
)

const (
	TraceIDHeader        = "X-Request-ID"
	AuthorizationHeader  = "Authorization"
	AcceptLanguageHeader = "Accept-Language"
	ContentTypeJSON      = "application/json"
)

var (
	// ErrMalformedJSON is returned when a successful response does not carry valid JSON.
	ErrMalformedJSON = errors.New("malformed json response")
	// ErrInvalidBasePath is returned when the base path is not an absolute URL.
	ErrInvalidBasePath = errors.New("invalid base path")
)

// JSONClient performs JSON requests against one API base path on behalf of
// an optional bearer token.
type JSONClient struct {
	base       *url.URL
	token      string
	httpClient *http.Client
	log        logging.Logger
}

// NewJSONClient binds basePath and token to a client.
// An empty token sends no Authorization header.
// If httpClient is nil, http.DefaultClient will be used.
func NewJSONClient(basePath, token string, httpClient *http.Client) (*JSONClient, error) {
	base, err := url.Parse(basePath)
	if err != nil {
		return nil, fmt.Errorf("parse base path: %w", err)
	}

	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBasePath, basePath)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &JSONClient{
		base:       base,
		token:      token,
		httpClient: httpClient,
		log:        logging.GetLogger("svc.apiclient.json_client"),
	}, nil
}

// Token returns the bearer token the client was bound to.
func (c *JSONClient) Token() string {
	return c.token
}

// URL resolves path and params against the base path.
// The path is URL-decoded first; a query embedded in the path is kept, and
// each key in params is set once per value so the last value wins.
func (c *JSONClient) URL(path string, params url.Values) (*url.URL, error) {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return nil, fmt.Errorf("unescape path: %w", err)
	}

	ref, err := url.Parse(decoded)
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}

	u := *c.base
	u.RawPath = ""
	u.Fragment = ""

	if ref.Path != "" {
		u.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	}

	query := ref.Query()

	for key, values := range params {
		for _, value := range values {
			query.Set(key, value)
		}
	}

	u.RawQuery = query.Encode()

	return &u, nil
}

// FetchJSON issues exactly one request and returns the raw JSON body of a
// 2xx response. Non-2xx responses are returned as *domain.HTTPError.
// A 204 yields JSON null; an empty or non-JSON 2xx body yields
// ErrMalformedJSON.
func (c *JSONClient) FetchJSON(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	body []byte,
) (_ json.RawMessage, err error) {
	u, err := c.URL(path, params)
	if err != nil {
		return nil, err
	}

	log := c.log.With(logging.Group("http", "method", method, "url", u.Redacted()))

	defer func() {
		switch {
		case err == nil:
			log.DebugContext(ctx, "request done")
		case errors.Is(err, domain.ErrHTTP):
			log.WarnContext(ctx, "request rejected", "error", err)
		default:
			log.ErrorContext(ctx, "request failed", "error", err)
		}
	}()

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, domain.NewHTTPError(resp.StatusCode, statusText(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return json.RawMessage("null"), nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedJSON)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedJSON, truncate(raw, 64))
	}

	return json.RawMessage(raw), nil
}

// Do marshals in (when non-nil) as the request body and unmarshals the JSON
// response into out (when non-nil).
func (c *JSONClient) Do(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	in any,
	out any,
) error {
	var body []byte

	if in != nil {
		var err error

		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	raw, err := c.FetchJSON(ctx, method, path, params, body)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrMalformedJSON, fmt.Errorf("unmarshal response: %w", err))
	}

	return nil
}

func (c *JSONClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", ContentTypeJSON)
	req.Header.Set("Accept", ContentTypeJSON)

	if c.token != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+c.token)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	if locale, ok := context_.LocaleFromContext(ctx); ok {
		req.Header.Set(AcceptLanguageHeader, locale.String())
	}
}

// statusText returns the reason phrase the server sent, or the standard one.
func statusText(resp *http.Response) string {
	if text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)); ok {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	return http.StatusText(resp.StatusCode)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}

	return string(b[:n]) + "..."
}

package engagement

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "engagedl/pkg/errors"
	"engagedl/pkg/logger"
	"engagedl/pkg/metrics"
	"github.com/tidwall/gjson"
)

// Client performs authenticated submissions against the engagement API.
// It holds one set of credentials for its whole lifetime and acquires a
// bearer token at most once.
type Client struct {
	creds         Credentials
	tokenURL      string
	httpClient    *http.Client
	logger        logger.Logger
	state         TokenState
	tokenRequests int
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for all calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenURL overrides the token endpoint
func WithTokenURL(url string) Option {
	return func(c *Client) { c.tokenURL = url }
}

// WithLogger sets the client logger
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// WithToken starts the client in the authenticated state
func WithToken(token string) Option {
	return func(c *Client) { c.state = Authenticated(token) }
}

// NewClient creates a client for creds
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		creds:      creds,
		tokenURL:   DefaultTokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.GetLogger()
	}
	return c
}

// RequestOption adjusts a single submission
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers map[string]string
	timeout time.Duration
}

// WithHeader adds a header to the submission
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithRequestTimeout bounds the submission
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.timeout = d }
}

type groupBy struct {
	GroupBy []string `json:"group_by"`
}

type submitBody struct {
	TweetIDs        []string `json:"tweet_ids"`
	EngagementTypes []string `json:"engagement_types"`
	Groupings       struct {
		UserGroups groupBy `json:"user_groups"`
	} `json:"groupings"`
}

func newSubmitBody(ids []string, types []Type) submitBody {
	body := submitBody{TweetIDs: ids, EngagementTypes: typeNames(types)}
	body.Groupings.UserGroups.GroupBy = []string{"tweet.id", "engagement.type"}
	return body
}

// Submit posts one batch of identifiers to endpoint. The caller keeps the
// batch within MaxBatchSize. Empty types means DefaultTypes. Submit never
// returns an error directly; every failure, including a failed lazy token
// acquisition, comes back as a Failed result.
func (c *Client) Submit(ctx context.Context, endpoint string, ids []string, types []Type, opts ...RequestOption) BatchResult {
	if len(types) == 0 {
		types = DefaultTypes()
	}
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	if !c.state.IsAuthenticated() {
		if err := c.Authenticate(ctx); err != nil {
			return Failed(err)
		}
	}

	if ro.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ro.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(newSubmitBody(ids, types))
	if err != nil {
		return Failed(errs.Wrap(errs.ErrorTypeParsing, "failed to encode request", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Failed(errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Authorization", "Bearer "+c.state.Token())
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveRequest("batch", 0, duration)
		c.logger.ErrorWithFields("Batch request failed", map[string]interface{}{
			"url":      endpoint,
			"ids":      len(ids),
			"error":    err.Error(),
			"duration": duration,
		})
		return Failed(errs.Wrap(errs.ErrorTypeNetwork, "batch request failed", err))
	}
	defer resp.Body.Close()

	metrics.ObserveRequest("batch", resp.StatusCode, duration)
	logger.LogRequest(c.logger, req.Method, endpoint, resp.StatusCode, duration)

	body, err := readBody(resp)
	if err != nil {
		c.logger.WithError(err).Error("Failed to read batch response")
		return Failed(errs.Wrap(errs.ErrorTypeNetwork, "failed to read response", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := errs.FromStatus(resp.StatusCode, "batch request rejected", body)
		if resp.StatusCode == http.StatusTooManyRequests {
			logger.LogRateLimit(c.logger, endpoint, retryAfter(resp))
		}
		c.logger.ErrorWithFields("Batch request rejected", map[string]interface{}{
			"status": resp.StatusCode,
			"reason": apiErr.Reason,
			"errors": apiErr.Details,
			"ids":    len(ids),
		})
		return Failed(apiErr)
	}

	if !gjson.ValidBytes(body) {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("Batch response is not valid JSON", map[string]interface{}{
			"status":       resp.StatusCode,
			"body_preview": preview,
		})
		return Failed(&errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "response is not valid JSON",
			Code:    resp.StatusCode,
		})
	}

	return Ok(body)
}

// readBody reads the response, inflating it when the server used gzip.
// Setting Accept-Encoding by hand disables the transport's own handling.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

func retryAfter(resp *http.Response) int {
	var seconds int
	if v := resp.Header.Get("Retry-After"); v != "" {
		fmt.Sscanf(v, "%d", &seconds)
	}
	return seconds
}

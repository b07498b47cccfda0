// Package directory is the typed client for the cloud management service
// that owns organizations, networks, and clients. It hides pagination,
// client-side rate limiting, and retry-with-backoff behind a small
// request/response contract; callers only ever see full collections or a
// terminal error.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/fleetaudit/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production dashboard API endpoint.
	DefaultBaseURL = "https://api.meraki.com/api/v1"

	// perPage is the page size requested from list endpoints.
	perPage = 1000

	defaultMaxRetries = 3
	defaultRetryWait  = time.Second
)

// APIError is a non-2xx response from the directory service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("directory API error: status=%d message=%q", e.Status, e.Message)
}

// Client talks to the directory service over HTTPS. All calls are
// rate-limited through a shared token bucket so concurrent scans cannot
// exceed the service's request budget.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	// MaxRetries bounds re-attempts after 429 or 5xx responses.
	MaxRetries int
	// RetryWait is the backoff base, doubled per attempt, used when the
	// service does not send Retry-After.
	RetryWait time.Duration
}

// NewClient creates a directory client. rps caps outbound request rate
// across all goroutines sharing the client.
func NewClient(baseURL, apiKey string, rps float64, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 8
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpc:      &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		MaxRetries: defaultMaxRetries,
		RetryWait:  defaultRetryWait,
	}
}

// GetOrganization fetches one organization by ID.
func (c *Client) GetOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	var org models.Organization
	if err := c.do(ctx, http.MethodGet, "/organizations/"+url.PathEscape(orgID), nil, nil, &org); err != nil {
		return nil, fmt.Errorf("get organization %q: %w", orgID, err)
	}
	return &org, nil
}

// ListNetworks returns every network in the organization, following
// pagination until exhausted.
func (c *Client) ListNetworks(ctx context.Context, orgID string) ([]models.Network, error) {
	networks, err := listPages[models.Network](ctx, c,
		"/organizations/"+url.PathEscape(orgID)+"/networks", nil)
	if err != nil {
		return nil, fmt.Errorf("list networks for org %q: %w", orgID, err)
	}
	return networks, nil
}

// ListClients returns every client seen on the network within the lookback
// window, following pagination until exhausted.
func (c *Client) ListClients(ctx context.Context, networkID string, lookback time.Duration) ([]models.Client, error) {
	query := url.Values{}
	query.Set("timespan", strconv.Itoa(int(lookback.Seconds())))
	clients, err := listPages[models.Client](ctx, c,
		"/networks/"+url.PathEscape(networkID)+"/clients", query)
	if err != nil {
		return nil, fmt.Errorf("list clients for network %q: %w", networkID, err)
	}
	return clients, nil
}

// UpdateClientPolicy applies a device policy (e.g. "Blocked") to one client.
func (c *Client) UpdateClientPolicy(ctx context.Context, networkID, clientID, policy string) (*models.ClientPolicy, error) {
	body := map[string]string{"devicePolicy": policy}
	var result models.ClientPolicy
	path := "/networks/" + url.PathEscape(networkID) + "/clients/" + url.PathEscape(clientID) + "/policy"
	if err := c.do(ctx, http.MethodPut, path, nil, body, &result); err != nil {
		return nil, fmt.Errorf("update policy for client %q: %w", clientID, err)
	}
	return &result, nil
}

// listPages fetches path and every rel=next page after it, concatenating
// the decoded items.
func listPages[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("perPage", strconv.Itoa(perPage))

	var all []T
	next := path + "?" + query.Encode()
	for next != "" {
		var page []T
		link, err := c.doRaw(ctx, http.MethodGet, next, nil, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		next = link
	}
	return all, nil
}

// do issues a single-resource request (no pagination).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	_, err := c.doRaw(ctx, method, target, body, out)
	return err
}

// doRaw performs one HTTP call with rate limiting and bounded retries.
// It returns the rel=next link path, if the response advertises one.
func (c *Client) doRaw(ctx context.Context, method, target string, body, out any) (string, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encode request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+target, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			if attempt < c.MaxRetries {
				c.logger.Warn("directory request failed, retrying",
					zap.String("path", target), zap.Int("attempt", attempt+1), zap.Error(err))
				if werr := sleepCtx(ctx, c.backoff(attempt)); werr != nil {
					return "", werr
				}
				continue
			}
			return "", fmt.Errorf("%s %s: %w", method, target, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.backoff(attempt))
			drain(resp)
			if attempt < c.MaxRetries {
				c.logger.Warn("directory request throttled, backing off",
					zap.String("path", target),
					zap.Int("status", resp.StatusCode),
					zap.Duration("wait", retryAfter))
				if werr := sleepCtx(ctx, retryAfter); werr != nil {
					return "", werr
				}
				continue
			}
			return "", &APIError{Status: resp.StatusCode, Message: "retries exhausted"}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return "", &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				resp.Body.Close()
				return "", fmt.Errorf("decode %s response: %w", target, err)
			}
		}
		next := nextLink(resp.Header.Get("Link"), c.baseURL)
		resp.Body.Close()
		return next, nil
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.RetryWait << attempt
}

// nextLink extracts the rel=next target from a Link header and strips the
// base URL so the result can be re-issued as a path.
func nextLink(header, baseURL string) string {
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		if len(fields) < 2 {
			continue
		}
		if !strings.Contains(fields[1], `rel=next`) && !strings.Contains(fields[1], `rel="next"`) {
			continue
		}
		target := strings.Trim(strings.TrimSpace(fields[0]), "<>")
		return strings.TrimPrefix(target, baseURL)
	}
	return ""
}

func parseRetryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

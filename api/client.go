package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

// Backend routes, relative to the base URL.
const (
	PathToken                     = "/api/v1/oauth2/token"
	PathRefresh                   = "/api/v1/oauth2/refresh"
	PathUserMe                    = "/api/v1/user/me"
	PathConfigs                   = "/api/v1/configs"
	PathBasicAuthValidationErrors = "/api/v1/basicAuthValidationErrors"
	PathBasicAuth                 = "/api/v1/basicAuth"
	PathFlowsSearch               = "/flows/search"
	PathExecutionsSearch          = "/executions/search"
	apiPrefix                     = "/api/v1"
)

const defaultTimeout = 30 * time.Second

// Settings is the backend /configs document.
type Settings struct {
	oauth2.ProviderSettings
	IsBasicAuthInitialized bool   `json:"isBasicAuthInitialized"`
	Version                string `json:"version,omitempty"`
}

// AuthorizationFunc returns the Authorization header for a request, or "".
type AuthorizationFunc func(ctx context.Context) string

// Client calls the console backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	authorization AuthorizationFunc
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAuthorization sets the header source used by the workspace queries and
// the basic-auth endpoints.
func WithAuthorization(f AuthorizationFunc) Option {
	return func(cl *Client) {
		cl.authorization = f
	}
}

// New creates a client for the backend at baseURL (scheme://host[:port]).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BearerAuthorization formats an access token as a bearer header value.
func BearerAuthorization(accessToken string) string {
	if accessToken == "" {
		return ""
	}
	return "Bearer " + accessToken
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, authz string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) authorizationFor(ctx context.Context) string {
	if c.authorization == nil {
		return ""
	}
	return c.authorization(ctx)
}

func decodeEnvelope(env oauth2.TokenEnvelope) (*oauth2.TokenResponse, error) {
	if env.Error != "" {
		return nil, errors.New(env.Error)
	}
	if env.TokenResponse == "" {
		return nil, errors.New("missing tokenResponse")
	}
	var tr oauth2.TokenResponse
	if err := json.Unmarshal([]byte(env.TokenResponse), &tr); err != nil {
		return nil, fmt.Errorf("decode tokenResponse: %w", err)
	}
	return &tr, nil
}

// ExchangeCode asks the backend to redeem an authorization code.
func (c *Client) ExchangeCode(ctx context.Context, req oauth2.ExchangeRequest) (*oauth2.TokenResponse, error) {
	var env oauth2.TokenEnvelope
	if err := c.do(ctx, http.MethodPost, PathToken, nil, req, "", &env); err != nil {
		return nil, fmt.Errorf("[api ExchangeCode] %w", err)
	}
	tr, err := decodeEnvelope(env)
	if err != nil {
		return nil, fmt.Errorf("[api ExchangeCode] %w", err)
	}
	return tr, nil
}

// RefreshToken asks the backend to redeem a refresh token.
func (c *Client) RefreshToken(ctx context.Context, req oauth2.RefreshRequest) (*oauth2.TokenResponse, error) {
	var env oauth2.TokenEnvelope
	if err := c.do(ctx, http.MethodPost, PathRefresh, nil, req, "", &env); err != nil {
		return nil, fmt.Errorf("[api RefreshToken] %w", err)
	}
	tr, err := decodeEnvelope(env)
	if err != nil {
		return nil, fmt.Errorf("[api RefreshToken] %w", err)
	}
	return tr, nil
}

// UserInfo fetches the profile for accessToken.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*users.UserInfo, error) {
	var u users.UserInfo
	if err := c.do(ctx, http.MethodGet, PathUserMe, nil, nil, BearerAuthorization(accessToken), &u); err != nil {
		return nil, fmt.Errorf("[api UserInfo] %w", err)
	}
	return &u, nil
}

// Configs fetches the backend settings.
func (c *Client) Configs(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.do(ctx, http.MethodGet, PathConfigs, nil, nil, "", &s); err != nil {
		return nil, fmt.Errorf("[api Configs] %w", err)
	}
	return &s, nil
}

// BasicAuthValidationErrors lists problems with the configured basic-auth
// credentials. An empty list means they are valid.
func (c *Client) BasicAuthValidationErrors(ctx context.Context) ([]string, error) {
	var errs []string
	if err := c.do(ctx, http.MethodGet, PathBasicAuthValidationErrors, nil, nil, c.authorizationFor(ctx), &errs); err != nil {
		return nil, fmt.Errorf("[api BasicAuthValidationErrors] %w", err)
	}
	return errs, nil
}

// SetupBasicAuth creates the basic-auth user. Replacing an existing user
// needs its credentials in the client authorization.
func (c *Client) SetupBasicAuth(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, PathBasicAuth, nil, body, c.authorizationFor(ctx), nil); err != nil {
		return fmt.Errorf("[api SetupBasicAuth] %w", err)
	}
	return nil
}

type searchTotal struct {
	Total int64 `json:"total"`
}

func tenantPath(tenant, suffix string) string {
	if tenant == "" {
		return apiPrefix + suffix
	}
	return apiPrefix + "/" + url.PathEscape(tenant) + suffix
}

func (c *Client) count(ctx context.Context, path string) (int64, error) {
	q := url.Values{}
	q.Set("size", "1")
	q.Set("onlyTotal", "true")
	var st searchTotal
	if err := c.do(ctx, http.MethodGet, path, q, nil, c.authorizationFor(ctx), &st); err != nil {
		return 0, err
	}
	return st.Total, nil
}

// CountFlows returns the number of flows visible in tenant.
func (c *Client) CountFlows(ctx context.Context, tenant string) (int64, error) {
	n, err := c.count(ctx, tenantPath(tenant, PathFlowsSearch))
	if err != nil {
		return 0, fmt.Errorf("[api CountFlows] %w", err)
	}
	return n, nil
}

// CountExecutions returns the number of executions visible in tenant.
func (c *Client) CountExecutions(ctx context.Context, tenant string) (int64, error) {
	n, err := c.count(ctx, tenantPath(tenant, PathExecutionsSearch))
	if err != nil {
		return 0, fmt.Errorf("[api CountExecutions] %w", err)
	}
	return n, nil
}

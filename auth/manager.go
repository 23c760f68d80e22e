package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	xoauth2 "golang.org/x/oauth2"

	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/logging"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
	"github.com/TechQuilaMx/kestra-rbac-oauth/token"
)

// Deps holds the collaborators of a Manager.
type Deps struct {
	Storage   storage.Storage // Short-lived session storage for CSRF context and tokens
	Backend   TokenBackend    // Backend proxy for code exchange and refresh
	Navigator Navigator       // Performs full navigations to the provider
	Logger    *zerolog.Logger // nil uses the global logger
}

// Manager runs the client side of the OAuth2 Authorization Code flow. It owns
// the current TokenSet and the CSRF context. Token exchange and refresh go
// through the backend so the client secret never reaches the console.
type Manager struct {
	cfg       oauth2.Config
	authCfg   *xoauth2.Config
	storage   storage.Storage
	tokens    *token.Repo
	backend   TokenBackend
	navigator Navigator
	logger    zerolog.Logger

	mu      sync.RWMutex
	current *token.TokenSet
	// epoch is bumped whenever the session is cleared. Token requests only
	// commit their result when it has not moved.
	epoch uint64
}

var errSessionEnded = errors.New("session ended while the request was in flight")

// NewManager validates cfg and loads any persisted TokenSet. A stored set
// that is expired and cannot be refreshed is discarded; an unreadable one is
// cleared.
func NewManager(ctx context.Context, cfg oauth2.Config, deps Deps) (*Manager, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, ErrConfigMissing
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("[auth NewManager] %w: %w", ErrConfigMissing, err)
	}
	if deps.Storage == nil || deps.Backend == nil || deps.Navigator == nil {
		return nil, errors.New("[auth NewManager] storage, backend and navigator are required")
	}

	m := &Manager{
		cfg: cfg,
		authCfg: &xoauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes(),
			Endpoint: xoauth2.Endpoint{
				AuthURL:  cfg.AuthorizationEndpoint,
				TokenURL: cfg.TokenEndpoint,
			},
		},
		storage:   deps.Storage,
		tokens:    token.NewRepo(deps.Storage),
		backend:   deps.Backend,
		navigator: deps.Navigator,
		logger:    logging.OrDefault(deps.Logger).With().Str("component", "oauth2").Logger(),
	}
	m.loadTokens(ctx)
	return m, nil
}

// Config returns the resolved configuration.
func (m *Manager) Config() oauth2.Config {
	return m.cfg
}

func (m *Manager) loadTokens(ctx context.Context) {
	ts, err := m.tokens.Load(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("discarding stored tokens")
		if err := m.tokens.Clear(ctx); err != nil {
			m.logger.Err(err).Msg("failed to clear stored tokens")
		}
		return
	}
	if !ts.IsPresent() {
		return
	}
	if ts.IsExpired(token.NowTimeFunc()) && !ts.HasRefreshToken() {
		m.logger.Debug().Msg("stored tokens expired without refresh token")
		if err := m.tokens.Clear(ctx); err != nil {
			m.logger.Err(err).Msg("failed to clear stored tokens")
		}
		return
	}
	m.current = ts
}

// authorizationURL builds the provider authorize URL for a CSRF context.
func (m *Manager) authorizationURL(c csrfContext) string {
	return m.authCfg.AuthCodeURL(c.state,
		xoauth2.SetAuthURLParam("response_type", string(m.cfg.ResponseType)),
		xoauth2.SetAuthURLParam("nonce", c.nonce),
	)
}

// RedirectToLogin starts a new authorization attempt. Any previous CSRF
// context is overwritten, so only the latest attempt can complete.
func (m *Manager) RedirectToLogin(ctx context.Context) error {
	c, err := newCsrfContext()
	if err != nil {
		return fmt.Errorf("[Manager RedirectToLogin] %w", err)
	}
	if err := c.save(ctx, m.storage); err != nil {
		return fmt.Errorf("[Manager RedirectToLogin] %w", err)
	}

	if err := m.navigator.Navigate(ctx, m.authorizationURL(c)); err != nil {
		return fmt.Errorf("[Manager RedirectToLogin] navigate: %w", err)
	}
	return nil
}

// AbandonLogin drops the CSRF context of an authorization that will not
// complete, such as one the provider denied.
func (m *Manager) AbandonLogin(ctx context.Context) error {
	if err := clearCsrfContext(ctx, m.storage); err != nil {
		return fmt.Errorf("[Manager AbandonLogin] %w", err)
	}
	return nil
}

// HandleCallback validates state against the stored CSRF context and
// exchanges code for tokens. The CSRF context is consumed whatever the
// outcome.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (*token.TokenSet, error) {
	stored, err := loadState(ctx, m.storage)
	if clearErr := clearCsrfContext(ctx, m.storage); clearErr != nil {
		m.logger.Err(clearErr).Msg("failed to clear csrf context")
	}
	if err != nil {
		return nil, fmt.Errorf("[Manager HandleCallback] %w", err)
	}
	if !statesMatch(stored, state) {
		return nil, ErrCsrfValidation
	}

	epoch := m.currentEpoch()
	ts, err := m.exchangeCodeForTokens(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := m.commit(ctx, epoch, ts); err != nil {
		if errors.Is(err, errSessionEnded) {
			return nil, fmt.Errorf("[Manager HandleCallback] %w: %w", ErrTokenExchange, err)
		}
		return nil, fmt.Errorf("[Manager HandleCallback] %w", err)
	}
	return ts.Clone(), nil
}

func (m *Manager) exchangeCodeForTokens(ctx context.Context, code string) (*token.TokenSet, error) {
	resp, err := m.backend.ExchangeCode(ctx, oauth2.ExchangeRequest{
		Code:        code,
		RedirectURI: m.cfg.RedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("[Manager exchangeCodeForTokens] %w: %w", ErrTokenExchange, err)
	}
	if resp == nil || resp.AccessToken == "" {
		return nil, fmt.Errorf("[Manager exchangeCodeForTokens] %w: empty token response", ErrTokenExchange)
	}
	return token.NewTokenSet(*resp, token.NowTimeFunc(), ""), nil
}

// RefreshAccessToken exchanges the refresh token for a new TokenSet and
// returns the new access token. On backend failure the session is cleared.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	refreshToken, epoch := "", m.epoch
	if m.current != nil {
		refreshToken = m.current.RefreshToken
	}
	m.mu.RUnlock()

	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	resp, err := m.backend.RefreshToken(ctx, oauth2.RefreshRequest{RefreshToken: refreshToken})
	if err == nil && (resp == nil || resp.AccessToken == "") {
		err = errors.New("empty token response")
	}
	if err != nil {
		if clearErr := m.clearEpoch(ctx, epoch); clearErr != nil {
			m.logger.Err(clearErr).Msg("failed to clear session after refresh failure")
		}
		return "", fmt.Errorf("[Manager RefreshAccessToken] %w: %w", ErrTokenRefresh, err)
	}

	ts := token.NewTokenSet(*resp, token.NowTimeFunc(), refreshToken)
	if err := m.commit(ctx, epoch, ts); err != nil {
		if errors.Is(err, errSessionEnded) {
			m.logger.Debug().Msg("dropping refreshed tokens after logout")
			return "", fmt.Errorf("[Manager RefreshAccessToken] %w: %w", ErrTokenRefresh, err)
		}
		return "", fmt.Errorf("[Manager RefreshAccessToken] %w", err)
	}
	return ts.AccessToken, nil
}

// GetAccessToken returns the access token while it is outside the expiry
// buffer, otherwise "". It never refreshes.
func (m *Manager) GetAccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.current.AccessTokenValid(token.NowTimeFunc()) {
		return ""
	}
	return m.current.AccessToken
}

// IsTokenExpired reports whether the access token is expired or about to
// expire. Having no tokens counts as expired.
func (m *Manager) IsTokenExpired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.IsExpired(token.NowTimeFunc())
}

// HasTokens reports whether an access or refresh token is held, regardless
// of expiry.
func (m *Manager) HasTokens() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.IsPresent()
}

// Tokens returns a copy of the current set, or nil.
func (m *Manager) Tokens() *token.TokenSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// SetTokens replaces the current set and persists it.
func (m *Manager) SetTokens(ctx context.Context, ts *token.TokenSet) error {
	ts = ts.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ts
	if ts == nil {
		return m.tokens.Clear(ctx)
	}
	return m.tokens.Save(ctx, ts)
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// commit stores ts unless the session was cleared since epoch was read.
// Storage is written under the lock so a concurrent clear cannot interleave.
func (m *Manager) commit(ctx context.Context, epoch uint64, ts *token.TokenSet) error {
	ts = ts.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return errSessionEnded
	}
	m.current = ts
	return m.tokens.Save(ctx, ts)
}

func (m *Manager) clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx)
}

// clearEpoch clears the session only if nothing cleared it since epoch.
func (m *Manager) clearEpoch(ctx context.Context, epoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return nil
	}
	return m.clearLocked(ctx)
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.epoch++
	m.current = nil
	return errors.Join(m.tokens.Clear(ctx), clearCsrfContext(ctx, m.storage))
}

// LogoutURL is the provider end-session URL, or the post-logout redirect when
// the provider has no logout endpoint.
func (m *Manager) LogoutURL() string {
	redirect := m.cfg.PostLogoutRedirectURI
	if redirect == "" {
		redirect = m.cfg.RedirectURI
	}
	if m.cfg.LogoutEndpoint == "" {
		return redirect
	}

	q := url.Values{}
	q.Set("client_id", m.cfg.ClientID)
	q.Set("post_logout_redirect_uri", redirect)
	sep := "?"
	if strings.Contains(m.cfg.LogoutEndpoint, "?") {
		sep = "&"
	}
	return m.cfg.LogoutEndpoint + sep + q.Encode()
}

// Logout clears tokens and CSRF context, then navigates to the provider's
// logout endpoint. Navigation failures are only logged.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.clear(ctx)
	if navErr := m.navigator.Navigate(ctx, m.LogoutURL()); navErr != nil {
		m.logger.Err(navErr).Msg("logout navigation failed")
	}
	if err != nil {
		return fmt.Errorf("[Manager Logout] %w", err)
	}
	return nil
}

package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/TechQuilaMx/kestra-rbac-oauth/auth"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/logging"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
	"github.com/TechQuilaMx/kestra-rbac-oauth/token"
	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

// AuthState is the authentication state of a Session.
type AuthState int

const (
	Unauthenticated AuthState = iota
	Pending                   // Tokens held, not yet verified
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// ProfileFetcher loads the profile of the access token's owner.
type ProfileFetcher interface {
	UserInfo(ctx context.Context, accessToken string) (*users.UserInfo, error)
}

// Deps holds the collaborators of a Session.
type Deps struct {
	Storage   storage.Storage
	Backend   auth.TokenBackend
	Profiles  ProfileFetcher
	Navigator auth.Navigator
	Logger    *zerolog.Logger
}

const verifyKey = "verify"

// Session owns the single OAuth2 engine of the console along with the
// authentication state and the cached profile. Create one with New and
// release it with Close.
type Session struct {
	deps   Deps
	logger zerolog.Logger

	mu          sync.RWMutex
	engine      *auth.Manager
	initialized bool
	state       AuthState
	accessToken string
	profile     *users.UserInfo
	// generation is bumped by Logout so that in-flight work started before
	// the logout cannot resurrect the session.
	generation uint64

	verifyGroup singleflight.Group
	bgCtx       context.Context
	bgCancel    context.CancelFunc
	wg          sync.WaitGroup
}

// New creates an uninitialized session.
func New(deps Deps) (*Session, error) {
	if deps.Storage == nil || deps.Backend == nil || deps.Profiles == nil || deps.Navigator == nil {
		return nil, errors.New("[sessions New] storage, backend, profiles and navigator are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		deps:     deps,
		logger:   logging.OrDefault(deps.Logger).With().Str("component", "session").Logger(),
		bgCtx:    ctx,
		bgCancel: cancel,
	}, nil
}

// Close stops background verification and drops the engine.
func (s *Session) Close() {
	s.bgCancel()
	s.wg.Wait()

	s.mu.Lock()
	s.engine = nil
	s.initialized = false
	s.mu.Unlock()
}

// Initialize constructs the engine on first call. A config without client id
// is logged and ignored. When tokens are held a background verification
// (refresh if needed, then profile fetch) is started; further calls only
// repeat that check.
func (s *Session) Initialize(ctx context.Context, cfg oauth2.Config) error {
	if strings.TrimSpace(cfg.ClientID) == "" {
		s.logger.Warn().Err(auth.ErrConfigMissing).Msg("oauth2 initialization skipped")
		return nil
	}

	s.mu.Lock()
	if s.engine == nil {
		engine, err := auth.NewManager(ctx, cfg, auth.Deps{
			Storage:   s.deps.Storage,
			Backend:   s.deps.Backend,
			Navigator: s.deps.Navigator,
			Logger:    &s.logger,
		})
		if err != nil {
			s.mu.Unlock()
			if errors.Is(err, auth.ErrConfigMissing) {
				s.logger.Warn().Err(err).Msg("oauth2 initialization skipped")
				return nil
			}
			return fmt.Errorf("[Session Initialize] %w", err)
		}
		s.engine = engine
		s.initialized = true
	}
	engine := s.engine
	s.mu.Unlock()

	if engine.HasTokens() {
		s.mu.Lock()
		if s.state == Unauthenticated {
			s.state = Pending
		}
		s.mu.Unlock()
		s.startVerification()
	}
	return nil
}

func (s *Session) startVerification() {
	if s.bgCtx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Verify(s.bgCtx); err != nil {
			s.logger.Debug().Err(err).Msg("background verification interrupted")
		}
	}()
}

// Verify joins the verification in flight, or starts one, and returns the
// resulting state. The verification itself is not bound to ctx, only the
// wait is.
func (s *Session) Verify(ctx context.Context) (AuthState, error) {
	ch := s.verifyGroup.DoChan(verifyKey, func() (any, error) {
		return s.verify(s.bgCtx), nil
	})
	select {
	case <-ctx.Done():
		return s.State(), ctx.Err()
	case res := <-ch:
		return res.Val.(AuthState), nil
	}
}

func (s *Session) verify(ctx context.Context) AuthState {
	s.mu.RLock()
	engine, gen := s.engine, s.generation
	s.mu.RUnlock()

	if engine == nil || !engine.HasTokens() {
		s.degrade(gen)
		return s.State()
	}

	accessToken := engine.GetAccessToken()
	if accessToken == "" {
		refreshed, err := engine.RefreshAccessToken(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("session verification failed")
			s.degrade(gen)
			return s.State()
		}
		accessToken = refreshed
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return s.State()
	}
	s.state = Authenticated
	s.accessToken = accessToken
	s.mu.Unlock()

	s.FetchUserInfo(ctx)
	return s.State()
}

// degrade drops authentication unless a logout already did.
func (s *Session) degrade(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	s.state = Unauthenticated
	s.accessToken = ""
	s.profile = nil
}

func (s *Session) engineOrErr() (*auth.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil, auth.ErrNotInitialized
	}
	return s.engine, nil
}

// Login redirects to the provider.
func (s *Session) Login(ctx context.Context) error {
	engine, err := s.engineOrErr()
	if err != nil {
		return fmt.Errorf("[Session Login] %w", err)
	}
	return engine.RedirectToLogin(ctx)
}

// AbandonLogin forgets a login started by Login that will not come back.
func (s *Session) AbandonLogin(ctx context.Context) error {
	engine, err := s.engineOrErr()
	if err != nil {
		return fmt.Errorf("[Session AbandonLogin] %w", err)
	}
	return engine.AbandonLogin(ctx)
}

// HandleCallback completes the authorization started by Login and loads the
// profile.
func (s *Session) HandleCallback(ctx context.Context, code, state string) error {
	engine, err := s.engineOrErr()
	if err != nil {
		return fmt.Errorf("[Session HandleCallback] %w", err)
	}

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	ts, err := engine.HandleCallback(ctx, code, state)
	if err != nil {
		s.degrade(gen)
		return err
	}

	s.mu.Lock()
	s.state = Authenticated
	s.accessToken = ts.AccessToken
	s.mu.Unlock()

	s.FetchUserInfo(ctx)
	return nil
}

// GetAccessToken returns a usable access token, refreshing when it has
// expired. A failed refresh ends the session and yields "".
func (s *Session) GetAccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine == nil {
		return "", nil
	}

	if t := engine.GetAccessToken(); t != "" {
		return t, nil
	}
	if !engine.HasTokens() {
		return "", nil
	}

	t, err := s.RefreshAccessToken(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("access token refresh failed")
		return "", nil
	}
	return t, nil
}

// RefreshAccessToken forces a refresh. On failure the session becomes
// unauthenticated and the error is returned.
func (s *Session) RefreshAccessToken(ctx context.Context) (string, error) {
	engine, err := s.engineOrErr()
	if err != nil {
		return "", fmt.Errorf("[Session RefreshAccessToken] %w", err)
	}

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	t, err := engine.RefreshAccessToken(ctx)
	if err != nil {
		s.degrade(gen)
		return "", err
	}

	s.mu.Lock()
	if s.generation == gen {
		s.accessToken = t
	}
	s.mu.Unlock()
	return t, nil
}

// FetchUserInfo reloads the profile when authenticated with a cached access
// token. A failure clears the profile and leaves the auth state alone.
func (s *Session) FetchUserInfo(ctx context.Context) {
	s.mu.RLock()
	ok := s.state == Authenticated && s.accessToken != ""
	accessToken, gen := s.accessToken, s.generation
	s.mu.RUnlock()
	if !ok {
		return
	}

	profile, err := s.deps.Profiles.UserInfo(ctx, accessToken)
	if err == nil && profile == nil {
		err = errors.New("empty profile")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	if err != nil {
		s.logger.Warn().Err(fmt.Errorf("%w: %w", auth.ErrProfileFetch, err)).Msg("profile cleared")
		s.profile = nil
		return
	}
	s.profile = profile
}

// Logout resets the session, then lets the engine clear its tokens and
// navigate to the provider. The reset happens even when the engine fails or
// was never created.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	s.state = Unauthenticated
	s.accessToken = ""
	s.profile = nil
	engine := s.engine
	s.mu.Unlock()

	if engine == nil {
		if err := token.NewRepo(s.deps.Storage).Clear(ctx); err != nil {
			return fmt.Errorf("[Session Logout] %w", err)
		}
		return nil
	}
	return engine.Logout(ctx)
}

// Engine returns the OAuth2 engine, or nil before Initialize.
func (s *Session) Engine() *auth.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *Session) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsAuthenticated() bool {
	return s.State() == Authenticated
}

func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// HasTokens reports whether the engine holds tokens.
func (s *Session) HasTokens() bool {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	return engine != nil && engine.HasTokens()
}

// AccessToken returns the cached access token without refreshing.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// UserInfo returns a copy of the cached profile, or nil.
func (s *Session) UserInfo() *users.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

func (s *Session) HasPermission(permission string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.HasPermission(permission)
}

func (s *Session) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.HasRole(role)
}

func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Admin()
}

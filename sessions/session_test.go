package sessions_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TechQuilaMx/kestra-rbac-oauth/auth"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/utils"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
	"github.com/TechQuilaMx/kestra-rbac-oauth/sessions"
	"github.com/TechQuilaMx/kestra-rbac-oauth/storage/memory"
	"github.com/TechQuilaMx/kestra-rbac-oauth/token"
	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

var testNow = time.UnixMilli(1_700_000_000_000)

type fakeBackend struct {
	mu           sync.Mutex
	refreshCalls int
	exchangeResp *oauth2.TokenResponse
	refreshResp  *oauth2.TokenResponse
	refreshErr   error
	refreshGate  chan struct{}
	// refreshing receives once a refresh has reached the backend.
	refreshing chan struct{}
}

func (f *fakeBackend) ExchangeCode(context.Context, oauth2.ExchangeRequest) (*oauth2.TokenResponse, error) {
	return f.exchangeResp, nil
}

func (f *fakeBackend) RefreshToken(context.Context, oauth2.RefreshRequest) (*oauth2.TokenResponse, error) {
	if f.refreshing != nil {
		select {
		case f.refreshing <- struct{}{}:
		default:
		}
	}
	if f.refreshGate != nil {
		<-f.refreshGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshResp, f.refreshErr
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type fakeProfiles struct {
	mu      sync.Mutex
	profile *users.UserInfo
	err     error
	tokens  []string
}

func (f *fakeProfiles) UserInfo(_ context.Context, accessToken string) (*users.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, accessToken)
	return f.profile.Clone(), f.err
}

func (f *fakeProfiles) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type testFixture struct {
	storage  *memory.Store
	backend  *fakeBackend
	profiles *fakeProfiles
	urls     []string
	session  *sessions.Session
	cfg      oauth2.Config
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	prev := token.NowTimeFunc
	token.NowTimeFunc = func() time.Time { return testNow }
	t.Cleanup(func() { token.NowTimeFunc = prev })

	f := &testFixture{
		storage: memory.New(0),
		backend: &fakeBackend{},
		profiles: &fakeProfiles{profile: &users.UserInfo{
			Authenticated: true,
			Username:      "jane",
			Roles:         []string{"operator"},
			Permissions:   []string{"flows.view", "executions.view"},
		}},
		cfg: oauth2.ConfigFromSettings(oauth2.ProviderSettings{
			ClientID:     "kestra-ui",
			AuthEndpoint: "https://idp.example.com/auth",
		}, "http://localhost:8080"),
	}

	s, err := sessions.New(sessions.Deps{
		Storage:  f.storage,
		Backend:  f.backend,
		Profiles: f.profiles,
		Navigator: auth.NavigatorFunc(func(_ context.Context, u string) error {
			f.urls = append(f.urls, u)
			return nil
		}),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	f.session = s
	return f
}

func (f *testFixture) storeTokens(t *testing.T, ts *token.TokenSet) {
	t.Helper()
	require.NoError(t, token.NewRepo(f.storage).Save(context.Background(), ts))
}

func (f *testFixture) storedTokens(t *testing.T) *token.TokenSet {
	t.Helper()
	ts, err := token.NewRepo(f.storage).Load(context.Background())
	require.NoError(t, err)
	return ts
}

func TestSession_Initialize(t *testing.T) {
	t.Run("without client id is a no-op", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.session.Initialize(context.Background(), oauth2.Config{}))
		require.False(t, f.session.Initialized())
		require.Nil(t, f.session.Engine())
	})

	t.Run("without tokens stays unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.session.Initialize(context.Background(), f.cfg))
		require.True(t, f.session.Initialized())
		require.Equal(t, sessions.Unauthenticated, f.session.State())
		require.False(t, f.session.HasTokens())
	})

	t.Run("valid stored tokens verify to authenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storeTokens(t, &token.TokenSet{AccessToken: "at", ExpiresAt: testNow.UnixMilli() + 3_600_000})

		require.NoError(t, f.session.Initialize(context.Background(), f.cfg))
		state, err := f.session.Verify(context.Background())
		require.NoError(t, err)
		require.Equal(t, sessions.Authenticated, state)
		require.Equal(t, "at", f.session.AccessToken())
		require.Equal(t, "jane", f.session.UserInfo().Username)
		require.Zero(t, f.backend.calls())
	})

	t.Run("re-entrant call keeps the engine", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storeTokens(t, &token.TokenSet{AccessToken: "at", ExpiresAt: testNow.UnixMilli() + 3_600_000})

		require.NoError(t, f.session.Initialize(context.Background(), f.cfg))
		engine := f.session.Engine()
		require.NoError(t, f.session.Initialize(context.Background(), f.cfg))
		require.Same(t, engine, f.session.Engine())

		_, err := f.session.Verify(context.Background())
		require.NoError(t, err)
		require.True(t, f.session.IsAuthenticated())
	})
}

func TestSession_Verify(t *testing.T) {
	t.Run("expired tokens are refreshed once for concurrent callers", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storeTokens(t, &token.TokenSet{AccessToken: "old", RefreshToken: "rt", ExpiresAt: testNow.UnixMilli() - 1000})
		f.backend.refreshResp = &oauth2.TokenResponse{AccessToken: "new", ExpiresIn: 3600}
		f.backend.refreshGate = make(chan struct{})

		require.NoError(t, f.session.Initialize(context.Background(), f.cfg))
		require.Equal(t, sessions.Pending, f.session.State())

		var wg sync.WaitGroup
		results := make([]sessions.AuthState, 5)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				st, err := f.session.Verify(context.Background())
				require.NoError(t, err)
				results[i] = st
			}(i)
		}
		close(f.backend.refreshGate)
		wg.Wait()

		for _, st := range results {
			require.Equal(t, sessions.Authenticated, st)
		}
		require.Equal(t, 1, f.backend.calls())
		require.Equal(t, "new", f.session.AccessToken())
		require.Equal(t, "rt", f.storedTokens(t).RefreshToken)
	})

	t.Run("refresh failure ends unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storeTokens(t, &token.TokenSet{AccessToken: "old", RefreshToken: "rt", ExpiresAt: testNow.UnixMilli() - 1000})
		f.backend.refreshErr = errors.New("invalid_grant")

		require.NoError(t, f.session.Initialize(context.Background(), f.cfg))
		state, err := f.session.Verify(context.Background())
		require.NoError(t, err)
		require.Equal(t, sessions.Unauthenticated, state)
		require.False(t, f.session.HasTokens())
		require.Nil(t, f.storedTokens(t))
	})

	t.Run("wait is bounded by the caller context", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storeTokens(t, &token.TokenSet{AccessToken: "old", RefreshToken: "rt", ExpiresAt: testNow.UnixMilli() - 1000})
		f.backend.refreshResp = &oauth2.TokenResponse{AccessToken: "new", ExpiresIn: 3600}
		f.backend.refreshGate = make(chan struct{})
		defer close(f.backend.refreshGate)

		require.NoError(t, f.session.Initialize(context.Background(), f.cfg))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		state, err := f.session.Verify(ctx)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, sessions.Pending, state)
	})
}

func TestSession_HandleCallback(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.exchangeResp = &oauth2.TokenResponse{AccessToken: "at", RefreshToken: utils.Ptr("rt"), ExpiresIn: 300}
	ctx := context.Background()

	require.ErrorIs(t, f.session.Login(ctx), auth.ErrNotInitialized)
	require.NoError(t, f.session.Initialize(ctx, f.cfg))
	require.NoError(t, f.session.Login(ctx))
	require.Len(t, f.urls, 1)

	state, err := f.storage.Get(ctx, "oauth2_state")
	require.NoError(t, err)

	require.NoError(t, f.session.HandleCallback(ctx, "code", state))
	require.True(t, f.session.IsAuthenticated())
	require.Equal(t, "at", f.session.AccessToken())
	require.Equal(t, []string{"at"}, f.profiles.tokens)
	require.True(t, f.session.HasRole("OPERATOR"))
	require.True(t, f.session.HasPermission("flows.view"))
	require.False(t, f.session.HasPermission("Flows.View"))
	require.False(t, f.session.IsAdmin())

	t.Run("bad state is rejected", func(t *testing.T) {
		err := f.session.HandleCallback(ctx, "code", "nope")
		require.ErrorIs(t, err, auth.ErrCsrfValidation)
		require.False(t, f.session.IsAuthenticated())
	})
}

func TestSession_FetchUserInfo(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.session.FetchUserInfo(ctx)
	require.Empty(t, f.profiles.tokens)

	f.storeTokens(t, &token.TokenSet{AccessToken: "at", ExpiresAt: testNow.UnixMilli() + 3_600_000})
	require.NoError(t, f.session.Initialize(ctx, f.cfg))
	_, err := f.session.Verify(ctx)
	require.NoError(t, err)
	require.NotNil(t, f.session.UserInfo())

	f.profiles.setErr(errors.New("boom"))
	f.session.FetchUserInfo(ctx)
	require.Nil(t, f.session.UserInfo())
	require.True(t, f.session.IsAuthenticated())
	require.False(t, f.session.HasPermission("flows.view"))
	require.False(t, f.session.HasRole("operator"))
}

func TestSession_GetAccessToken(t *testing.T) {
	t.Run("refresh failure yields empty token and logs out", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storeTokens(t, &token.TokenSet{AccessToken: "old", RefreshToken: "rt", ExpiresAt: testNow.UnixMilli() - 1000})
		f.backend.refreshErr = errors.New("expired")
		ctx := context.Background()

		require.NoError(t, f.session.Initialize(ctx, f.cfg))
		_, _ = f.session.Verify(ctx)

		tok, err := f.session.GetAccessToken(ctx)
		require.NoError(t, err)
		require.Empty(t, tok)
		require.Equal(t, sessions.Unauthenticated, f.session.State())
	})

	t.Run("explicit refresh failure is returned", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storeTokens(t, &token.TokenSet{AccessToken: "old", RefreshToken: "rt", ExpiresAt: testNow.UnixMilli() + 3_600_000})
		f.backend.refreshErr = errors.New("expired")
		ctx := context.Background()

		require.NoError(t, f.session.Initialize(ctx, f.cfg))
		_, err := f.session.Verify(ctx)
		require.NoError(t, err)

		_, err = f.session.RefreshAccessToken(ctx)
		require.ErrorIs(t, err, auth.ErrTokenRefresh)
		require.False(t, f.session.IsAuthenticated())
		require.Nil(t, f.storedTokens(t))
	})

	t.Run("uninitialized session has no token", func(t *testing.T) {
		f := setupTestFixture(t)
		tok, err := f.session.GetAccessToken(context.Background())
		require.NoError(t, err)
		require.Empty(t, tok)
	})
}

func TestSession_Logout(t *testing.T) {
	t.Run("resets everything", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		f.storeTokens(t, &token.TokenSet{AccessToken: "at", RefreshToken: "rt", ExpiresAt: testNow.UnixMilli() + 3_600_000})
		require.NoError(t, f.session.Initialize(ctx, f.cfg))
		_, err := f.session.Verify(ctx)
		require.NoError(t, err)
		require.True(t, f.session.IsAuthenticated())

		require.NoError(t, f.session.Logout(ctx))
		require.False(t, f.session.IsAuthenticated())
		require.Empty(t, f.session.AccessToken())
		require.Nil(t, f.session.UserInfo())
		require.Nil(t, f.storedTokens(t))
		require.Len(t, f.urls, 1)
	})

	t.Run("refresh in flight cannot restore the session", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		f.storeTokens(t, &token.TokenSet{AccessToken: "old", RefreshToken: "rt", ExpiresAt: testNow.UnixMilli() - 1000})
		f.backend.refreshResp = &oauth2.TokenResponse{AccessToken: "new", RefreshToken: utils.Ptr("rt2"), ExpiresIn: 3600}
		f.backend.refreshGate = make(chan struct{})
		f.backend.refreshing = make(chan struct{}, 1)

		require.NoError(t, f.session.Initialize(ctx, f.cfg))
		<-f.backend.refreshing

		require.NoError(t, f.session.Logout(ctx))
		require.False(t, f.session.HasTokens())
		require.Nil(t, f.storedTokens(t))

		close(f.backend.refreshGate)
		state, err := f.session.Verify(ctx)
		require.NoError(t, err)
		require.Equal(t, sessions.Unauthenticated, state)
		require.Equal(t, 1, f.backend.calls())
		require.False(t, f.session.HasTokens())
		require.Nil(t, f.storedTokens(t))
		require.Empty(t, f.session.AccessToken())

		state, err = f.session.Verify(ctx)
		require.NoError(t, err)
		require.Equal(t, sessions.Unauthenticated, state)
	})

	t.Run("holds without an engine", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storeTokens(t, &token.TokenSet{AccessToken: "at", ExpiresAt: testNow.UnixMilli() + 3_600_000})

		require.NoError(t, f.session.Logout(context.Background()))
		require.Equal(t, sessions.Unauthenticated, f.session.State())
		require.Nil(t, f.storedTokens(t))
	})
}

func TestAuthState_String(t *testing.T) {
	require.Equal(t, "unauthenticated", sessions.Unauthenticated.String())
	require.Equal(t, "pending", sessions.Pending.String())
	require.Equal(t, "authenticated", sessions.Authenticated.String())
}

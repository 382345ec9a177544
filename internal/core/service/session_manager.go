package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
	"github.com/comanda/restaurant-console/internal/infrastructure/queue"
)

const (
	flightCheckAuth = "check-auth"
	flightRefresh   = "refresh"

	loginFallbackMessage = "Login failed"
)

// displayMessager is implemented by errors that carry a message fit for the UI.
type displayMessager interface {
	DisplayMessage() string
}

// SessionManager owns the authenticated session: identity, access token and
// refresh token. It persists them through a CredentialStore and keeps them
// valid through the refresh protocol.
//
// All operations are serialized: at most one of login, logout, refresh,
// checkAuth or setUser runs at a time. Concurrent CheckAuth calls share one
// execution, as do concurrent RefreshAccessToken calls.
type SessionManager struct {
	client ports.AuthClient
	store  ports.CredentialStore
	log    zerolog.Logger

	mu      sync.RWMutex
	session domain.Session
	pending int

	sem   *semaphore.Weighted
	group singleflight.Group

	flightMu sync.Mutex
	flights  map[string]*flight

	opsMu  sync.Mutex
	ops    map[uint64]context.CancelFunc
	nextOp uint64

	baseCtx   context.Context
	closeBase context.CancelFunc

	events *queue.Broadcaster[domain.Session]
}

// flight is a shared execution of CheckAuth or RefreshAccessToken. Its
// context is cancelled once every waiting caller has gone away.
type flight struct {
	ctx     context.Context
	end     func()
	waiters int
}

func NewSessionManager(client ports.AuthClient, store ports.CredentialStore, log zerolog.Logger) *SessionManager {
	base, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		client:    client,
		store:     store,
		log:       log.With().Str("component", "session_manager").Logger(),
		session:   domain.Session{State: domain.StateUnauthenticated},
		sem:       semaphore.NewWeighted(1),
		flights:   make(map[string]*flight),
		ops:       make(map[uint64]context.CancelFunc),
		baseCtx:   base,
		closeBase: cancel,
		events:    queue.NewBroadcaster[domain.Session](log),
	}
}

// Snapshot returns a copy of the current session state.
func (m *SessionManager) Snapshot() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// AccessToken returns the in-memory access token, empty when logged out.
func (m *SessionManager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.AccessToken
}

// Subscribe calls fn with the current snapshot and then with every state
// change, in order, on a dedicated goroutine.
func (m *SessionManager) Subscribe(fn func(domain.Session)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events.Subscribe(fn, m.snapshotLocked())
}

// ClearError drops the last failure message.
func (m *SessionManager) ClearError() {
	m.mutate(func(s *domain.Session) { s.Error = "" })
}

// Close cancels in-flight operations and stops notifying subscribers.
func (m *SessionManager) Close() {
	m.closeBase()
	m.events.Close()
}

// Hydrate restores the session from the credential store. The session is
// authenticated only when all three slots are present. No network call is made.
func (m *SessionManager) Hydrate(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)

	stored, err := m.loadStored(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSlotEmpty) {
			m.log.Debug().Msg("no stored session to hydrate")
			return nil
		}
		return fmt.Errorf("hydrate session: %w", err)
	}

	m.mutate(func(s *domain.Session) {
		s.User = stored.user
		s.AccessToken = stored.accessToken
		s.RefreshToken = stored.refreshToken
		s.IsAuthenticated = true
		s.State = domain.StateAuthenticated
	})
	m.log.Info().Str("user_id", stored.user.ID).Msg("session hydrated from storage")
	return nil
}

// Login authenticates with email and password. On any failure the session is
// cleared, a display message is stored in Error and the error is returned.
func (m *SessionManager) Login(ctx context.Context, creds domain.Credentials) error {
	ctx, end := m.begin(ctx)
	defer end()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)

	m.startOp(domain.StateAuthenticating)
	defer m.finishOp()

	if err := creds.Validate(); err != nil {
		m.failLogin(ctx, err)
		return err
	}

	res, err := m.client.Login(ctx, creds.Email, creds.Password)
	if err == nil {
		err = checkLoginResult(res)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.failLogin(ctx, err)
		return fmt.Errorf("login: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	durability := domain.DurabilityFor(creds.Remember)
	if err := m.persistAll(ctx, res.AccessToken, res.RefreshToken, res.User, durability); err != nil {
		m.failLogin(ctx, err)
		return fmt.Errorf("login: %w", err)
	}

	m.mutate(func(s *domain.Session) {
		s.User = res.User.Clone()
		s.AccessToken = res.AccessToken
		s.RefreshToken = res.RefreshToken
		s.IsAuthenticated = true
		s.Error = ""
	})

	m.log.Info().
		Str("user_id", res.User.ID).
		Str("role", res.User.RoleName()).
		Str("durability", string(durability)).
		Msg("login succeeded")
	return nil
}

// Logout invalidates the session server-side on a best-effort basis and then
// unconditionally clears memory and storage. It never fails.
func (m *SessionManager) Logout(ctx context.Context) {
	// Responses of superseded operations must not resurrect the session.
	m.cancelInFlight()

	_ = m.sem.Acquire(context.WithoutCancel(ctx), 1)
	defer m.sem.Release(1)

	m.startOp("")
	defer m.finishOp()

	if token := m.AccessToken(); token != "" {
		if err := m.client.Logout(ctx, token); err != nil {
			m.log.Warn().Err(err).Msg("server-side logout failed, clearing local session anyway")
		}
	}

	m.clearAll(context.WithoutCancel(ctx), "")
	m.log.Info().Msg("logged out")
}

// RefreshAccessToken exchanges the stored refresh token for a new access
// token. Without a stored refresh token it returns false immediately and
// touches nothing. Any other failure ends the session.
func (m *SessionManager) RefreshAccessToken(ctx context.Context) bool {
	if _, _, err := m.store.Get(ctx, domain.SlotRefreshToken); err != nil {
		if !errors.Is(err, domain.ErrSlotEmpty) {
			m.log.Warn().Err(err).Msg("read refresh token")
		}
		return false
	}

	v, err := m.shared(ctx, flightRefresh, func(fctx context.Context) any {
		if err := m.sem.Acquire(fctx, 1); err != nil {
			return false
		}
		defer m.sem.Release(1)

		m.startOp(domain.StateRevalidating)
		defer m.finishOp()

		_, err := m.refresh(fctx)
		return err == nil
	})
	if err != nil {
		return false
	}
	ok, _ := v.(bool)
	return ok
}

// CheckAuth validates the stored session against the server. An expired
// access token is recovered with exactly one refresh and one retry. It never
// fails; callers inspect Snapshot afterwards.
func (m *SessionManager) CheckAuth(ctx context.Context) {
	_, _ = m.shared(ctx, flightCheckAuth, func(fctx context.Context) any {
		m.checkAuth(fctx)
		return nil
	})
}

// SetUser replaces the user record after a profile edit.
func (m *SessionManager) SetUser(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return fmt.Errorf("set user: %w: user id is required", domain.ErrInvalidInput)
	}
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)

	if !m.Snapshot().IsAuthenticated {
		return domain.ErrNotAuthenticated
	}

	durability := domain.DurabilitySession
	if _, d, err := m.store.Get(ctx, domain.SlotUser); err == nil {
		durability = d
	}
	if err := m.persistUser(ctx, user, durability); err != nil {
		return fmt.Errorf("set user: %w", err)
	}
	m.mutate(func(s *domain.Session) { s.User = user.Clone() })
	return nil
}

func (m *SessionManager) checkAuth(ctx context.Context) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.sem.Release(1)

	state := domain.StateAuthenticating
	if m.Snapshot().IsAuthenticated {
		state = domain.StateRevalidating
	}
	m.startOp(state)
	defer m.finishOp()

	stored, err := m.loadStored(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(err, domain.ErrSlotEmpty) {
			m.log.Warn().Err(err).Msg("read stored session")
		}
		m.clearAll(ctx, "")
		return
	}

	token := stored.accessToken
	user, err := m.client.Me(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.log.Info().Err(err).Msg("access token rejected, refreshing")
		token, err = m.refresh(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNoRefreshToken) {
				m.clearAll(ctx, "")
			}
			return
		}
		user, err = m.client.Me(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Msg("session revalidation failed after refresh")
			m.clearAll(ctx, "")
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	if user == nil {
		m.clearAll(ctx, "")
		return
	}

	if err := m.persistUser(ctx, user, stored.userDurability); err != nil {
		m.log.Warn().Err(err).Msg("persist revalidated user")
	}
	m.mutate(func(s *domain.Session) {
		s.User = user.Clone()
		s.AccessToken = token
		s.RefreshToken = stored.refreshToken
		s.IsAuthenticated = true
		s.Error = ""
	})
	m.log.Debug().Str("user_id", user.ID).Msg("session validated")
}

// refresh runs the refresh exchange and returns the new access token. The
// caller must hold the semaphore. The in-memory token is only replaced while
// the session is authenticated; callers restoring a session install it
// themselves.
func (m *SessionManager) refresh(ctx context.Context) (string, error) {
	refreshToken, durability, err := m.store.Get(ctx, domain.SlotRefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSlotEmpty) {
			return "", domain.ErrNoRefreshToken
		}
		return "", err
	}

	token, err := m.client.Refresh(ctx, refreshToken)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil || token == "" {
		if err == nil {
			err = errors.New("empty access token")
		}
		m.log.Warn().Err(err).Msg("token refresh failed, ending session")
		m.clearAll(ctx, "")
		return "", err
	}

	if err := m.store.Set(context.WithoutCancel(ctx), domain.SlotAccessToken, token, durability); err != nil {
		m.log.Error().Err(err).Msg("persist refreshed access token")
		m.clearAll(ctx, "")
		return "", err
	}
	m.mutate(func(s *domain.Session) {
		if !s.IsAuthenticated {
			return
		}
		s.AccessToken = token
		s.RefreshToken = refreshToken
		s.Error = ""
	})
	m.log.Debug().Msg("access token refreshed")
	return token, nil
}

// shared runs fn once for all concurrent callers using the same key. fn gets
// a context that survives individual callers and is cancelled when the last
// caller leaves, on Logout, or on Close.
func (m *SessionManager) shared(ctx context.Context, key string, fn func(context.Context) any) (any, error) {
	m.flightMu.Lock()
	f, ok := m.flights[key]
	if !ok {
		fctx, end := m.begin(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, end: end}
		m.flights[key] = f
	}
	f.waiters++
	ch := m.group.DoChan(key, func() (any, error) {
		defer m.finishFlight(key, f)
		return fn(f.ctx), nil
	})
	m.flightMu.Unlock()

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		m.flightMu.Lock()
		f.waiters--
		if f.waiters == 0 {
			// Nobody wants the result any more; later callers start afresh.
			if m.flights[key] == f {
				delete(m.flights, key)
				m.group.Forget(key)
			}
			f.end()
		}
		m.flightMu.Unlock()
		return nil, ctx.Err()
	}
}

func (m *SessionManager) finishFlight(key string, f *flight) {
	m.flightMu.Lock()
	if m.flights[key] == f {
		delete(m.flights, key)
		m.group.Forget(key)
	}
	m.flightMu.Unlock()
	f.end()
}

// begin derives an operation context that Logout and Close can cancel.
func (m *SessionManager) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(m.baseCtx, cancel)

	m.opsMu.Lock()
	id := m.nextOp
	m.nextOp++
	m.ops[id] = cancel
	m.opsMu.Unlock()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			stop()
			m.opsMu.Lock()
			delete(m.ops, id)
			m.opsMu.Unlock()
			cancel()
		})
	}
}

func (m *SessionManager) cancelInFlight() {
	m.opsMu.Lock()
	defer m.opsMu.Unlock()
	for _, cancel := range m.ops {
		cancel()
	}
}

func (m *SessionManager) startOp(state domain.State) {
	m.mutate(func(s *domain.Session) {
		m.pending++
		if state != "" {
			s.State = state
		}
	})
}

func (m *SessionManager) finishOp() {
	m.mutate(func(s *domain.Session) {
		m.pending--
		if s.IsAuthenticated {
			s.State = domain.StateAuthenticated
		} else {
			s.State = domain.StateUnauthenticated
		}
	})
}

func (m *SessionManager) failLogin(ctx context.Context, err error) {
	m.log.Warn().Err(err).Msg("login failed")
	m.clearAll(context.WithoutCancel(ctx), displayMessage(err, loginFallbackMessage))
}

// clearAll wipes storage and memory, leaving message in Error.
func (m *SessionManager) clearAll(ctx context.Context, message string) {
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.log.Error().Err(err).Msg("clear credential store")
	}
	m.mutate(func(s *domain.Session) {
		s.User = nil
		s.AccessToken = ""
		s.RefreshToken = ""
		s.IsAuthenticated = false
		s.State = domain.StateUnauthenticated
		s.Error = message
	})
}

// mutate applies fn under the lock and publishes the resulting snapshot.
func (m *SessionManager) mutate(fn func(s *domain.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.session)
	m.events.Publish(m.snapshotLocked())
}

func (m *SessionManager) snapshotLocked() domain.Session {
	s := m.session
	s.User = m.session.User.Clone()
	s.IsLoading = m.pending > 0
	return s
}

type storedSession struct {
	accessToken    string
	refreshToken   string
	user           *domain.User
	userDurability domain.Durability
}

// loadStored reads all three slots; a missing or unreadable slot yields ErrSlotEmpty.
func (m *SessionManager) loadStored(ctx context.Context) (*storedSession, error) {
	access, _, err := m.store.Get(ctx, domain.SlotAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, _, err := m.store.Get(ctx, domain.SlotRefreshToken)
	if err != nil {
		return nil, err
	}
	raw, durability, err := m.store.Get(ctx, domain.SlotUser)
	if err != nil {
		return nil, err
	}
	if access == "" || refresh == "" || raw == "" {
		return nil, domain.ErrSlotEmpty
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.log.Warn().Err(err).Msg("stored user record is corrupt")
		return nil, domain.ErrSlotEmpty
	}
	return &storedSession{
		accessToken:    access,
		refreshToken:   refresh,
		user:           &user,
		userDurability: durability,
	}, nil
}

func (m *SessionManager) persistAll(ctx context.Context, access, refresh string, user *domain.User, d domain.Durability) error {
	ctx = context.WithoutCancel(ctx)
	if err := m.store.Set(ctx, domain.SlotAccessToken, access, d); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := m.store.Set(ctx, domain.SlotRefreshToken, refresh, d); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return m.persistUser(ctx, user, d)
}

func (m *SessionManager) persistUser(ctx context.Context, user *domain.User, d domain.Durability) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := m.store.Set(context.WithoutCancel(ctx), domain.SlotUser, string(raw), d); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

func checkLoginResult(res *ports.LoginResult) error {
	switch {
	case res == nil:
		return errors.New("empty login response")
	case res.User == nil:
		return errors.New("login response missing user")
	case res.AccessToken == "" || res.RefreshToken == "":
		return errors.New("login response missing tokens")
	}
	return nil
}

func displayMessage(err error, fallback string) string {
	var dm displayMessager
	if errors.As(err, &dm) && dm.DisplayMessage() != "" {
		return dm.DisplayMessage()
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	return fallback
}

package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultFreshnessMargin is how close to expiry an access token may get
// before the Manager refreshes it instead of sending it.
const DefaultFreshnessMargin = 10 * time.Second

// Manager owns a client's session. It hands out access tokens, refreshes
// them when they are about to expire or have been rejected, and tears the
// session down when the server refuses it.
//
// All refresh decisions run under one mutex, so concurrent callers that see
// the same stale token cause a single POST /refresh between them.
type Manager struct {
	Client *SDKClient
	Store  Store
	Logger *slog.Logger

	// FreshnessMargin overrides DefaultFreshnessMargin.
	FreshnessMargin time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time

	// lock is a one-slot semaphore rather than a mutex so that waiting for
	// an in-flight refresh can be abandoned when the caller's context ends.
	lockOnce sync.Once
	lock     chan struct{}
	knownBad string

	hooksMu sync.Mutex
	onEnded []func()
}

// NewManager returns a Manager backed by store.
func NewManager(client *SDKClient, store Store) *Manager {
	return &Manager{Client: client, Store: store}
}

func (m *Manager) acquire(ctx context.Context) error {
	m.lockOnce.Do(func() { m.lock = make(chan struct{}, 1) })
	select {
	case m.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) release() { <-m.lock }

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) margin() time.Duration {
	if m.FreshnessMargin > 0 {
		return m.FreshnessMargin
	}
	return DefaultFreshnessMargin
}

// OnSessionEnded registers fn to run whenever an existing session ends:
// logout, a refused refresh, a refused retry or a new login replacing it.
// Callbacks run after the Manager's lock is released and may call back into
// it.
func (m *Manager) OnSessionEnded(fn func()) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.onEnded = append(m.onEnded, fn)
}

func (m *Manager) sessionEnded() {
	m.hooksMu.Lock()
	hooks := append([]func(){}, m.onEnded...)
	m.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// fresh reports whether token's exp is beyond the freshness margin. The
// token is not verified; the server does that. Unreadable tokens are stale.
func (m *Manager) fresh(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return m.now().Add(m.margin()).Before(claims.ExpiresAt.Time)
}

// GetOrRefreshAccess returns an access token worth sending. Without a
// session it fails with ErrSessionMissing and makes no request. A refused
// refresh clears the session and returns ErrSessionRejected; a network
// failure returns an ErrNetwork error and keeps it. A caller whose context
// ends while another goroutine is refreshing gets the context's error.
func (m *Manager) GetOrRefreshAccess(ctx context.Context) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	token, ended, err := m.getOrRefreshLocked(ctx)
	m.release()

	if ended {
		m.sessionEnded()
	}
	return token, err
}

func (m *Manager) getOrRefreshLocked(ctx context.Context) (string, bool, error) {
	s, err := m.Store.Get(ctx)
	if err != nil {
		return "", false, err
	}
	if s == nil {
		return "", false, ErrSessionMissing
	}
	if !s.complete() {
		m.logger().Warn("stored session is incomplete, discarding it")
		return "", m.clearLocked(ctx), ErrSessionMissing
	}

	if s.AccessToken != m.knownBad && m.fresh(s.AccessToken) {
		return s.AccessToken, false, nil
	}
	return m.refreshLocked(ctx, s)
}

func (m *Manager) refreshLocked(ctx context.Context, s *Session) (string, bool, error) {
	log := m.logger()

	pair, err := m.Client.Refresh(ctx, s.RefreshToken)
	switch {
	case err == nil:
	case isUnauthorized(err):
		log.Info("refresh token rejected, ending session")
		return "", m.clearLocked(ctx), ErrSessionRejected
	default:
		log.Warn("refresh failed, keeping session", "error", err)
		return "", false, err
	}

	if err := m.Store.Set(ctx, &Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}); err != nil {
		// The old refresh token is spent; without the new one the session
		// cannot continue.
		log.Error("failed to store refreshed session", "error", err)
		return "", m.clearLocked(ctx), fmt.Errorf("authsdk: store session: %w", err)
	}
	m.knownBad = ""
	return pair.AccessToken, false, nil
}

// clearLocked removes the stored session and reports whether there was one.
func (m *Manager) clearLocked(ctx context.Context) bool {
	m.knownBad = ""

	s, err := m.Store.Get(ctx)
	existed := err != nil || s != nil

	if err := m.Store.Set(ctx, nil); err != nil {
		m.logger().Error("failed to clear session", "error", err)
	}
	return existed
}

// markBad records that the server rejected token, if it is still the stored
// access token. A caller holding an older token changes nothing.
func (m *Manager) markBad(ctx context.Context, token string) {
	if err := m.acquire(ctx); err != nil {
		return
	}
	defer m.release()

	s, err := m.Store.Get(ctx)
	if err == nil && s != nil && s.AccessToken == token {
		m.knownBad = token
	}
}

// endIfCurrent clears the session if token is still its access token.
func (m *Manager) endIfCurrent(ctx context.Context, token string) {
	if err := m.acquire(ctx); err != nil {
		return
	}
	ended := false
	if s, err := m.Store.Get(ctx); err == nil && s != nil && s.AccessToken == token {
		ended = m.clearLocked(ctx)
	}
	m.release()

	if ended {
		m.sessionEnded()
	}
}

type callState int

const (
	stateNormal callState = iota
	stateRefreshing
	stateRetryOnce
	stateFailed
)

// Call runs fn with an access token. fn reports that the server rejected
// the token by returning an error matching ErrUnauthorized. Call then
// refreshes once and retries once; a second rejection ends the session and
// returns ErrSessionRejected. Any other result of fn is returned as is.
func (m *Manager) Call(ctx context.Context, fn func(ctx context.Context, accessToken string) error) error {
	var (
		state = stateNormal
		token string
		err   error
	)

	for {
		switch state {
		case stateNormal:
			if token, err = m.GetOrRefreshAccess(ctx); err != nil {
				return err
			}
			if err = fn(ctx, token); !m.rejected(ctx, err) {
				return err
			}
			state = stateRefreshing

		case stateRefreshing:
			m.markBad(ctx, token)
			if token, err = m.GetOrRefreshAccess(ctx); err != nil {
				return err
			}
			state = stateRetryOnce

		case stateRetryOnce:
			if err = fn(ctx, token); !m.rejected(ctx, err) {
				return err
			}
			state = stateFailed

		case stateFailed:
			m.logger().Info("access token rejected after refresh, ending session")
			m.endIfCurrent(ctx, token)
			return ErrSessionRejected
		}
	}
}

// rejected reports a server rejection. A cancelled call proves nothing about
// the token.
func (m *Manager) rejected(ctx context.Context, err error) bool {
	return errors.Is(err, ErrUnauthorized) && ctx.Err() == nil
}

// Do sends an authenticated request to path under Call. The request is
// rebuilt for the retry, so body is bytes rather than a reader. A 401 is
// consumed; any other response is returned for the caller to close.
func (m *Manager) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	var resp *http.Response

	err := m.Call(ctx, func(ctx context.Context, accessToken string) error {
		h := bearer(accessToken)
		for k, v := range headers {
			h[k] = v
		}

		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}

		res, err := m.Client.doRequest(ctx, method, path, r, h)
		if err != nil {
			return err
		}
		if res.StatusCode == http.StatusUnauthorized {
			defer res.Body.Close()
			raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
			return parseErrorResponse(res, raw)
		}

		resp = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoJSON is Do with a JSON request body (when in is not nil) and a JSON
// response decoded into out (when out is not nil). Non-2xx responses come
// back as *OAuth2Error.
func (m *Manager) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var (
		body    []byte
		headers = map[string]string{"Accept": "application/json"}
	)
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
		headers["Content-Type"] = "application/json"
	}

	resp, err := m.Do(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseErrorResponse(resp, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Login replaces any current session with one for assertion. A refused
// assertion returns ErrLoginRejected and leaves no session behind.
func (m *Manager) Login(ctx context.Context, assertion string) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	ended := m.clearLocked(ctx)

	pair, err := m.Client.Login(ctx, assertion)
	if err == nil {
		err = m.Store.Set(ctx, &Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	}
	m.release()

	if ended {
		m.sessionEnded()
	}

	switch {
	case err == nil:
		return nil
	case isUnauthorized(err):
		return ErrLoginRejected
	default:
		return err
	}
}

// Logout clears the session locally, then asks the server to revoke it.
// When the stored access token is stale or known bad it is first exchanged
// with the refresh token, so the revoke carries a token the server accepts.
// The server side is best effort: failures are logged, not returned, and a
// refresh token the server never hears about expires on its own.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	s, err := m.Store.Get(ctx)
	stale := err == nil && s != nil && (s.AccessToken == m.knownBad || !m.fresh(s.AccessToken))
	ended := m.clearLocked(ctx)
	m.release()

	if ended {
		m.sessionEnded()
	}
	if err != nil || s == nil || !s.complete() {
		return nil
	}

	access := s.AccessToken
	if stale {
		pair, err := m.Client.Refresh(ctx, s.RefreshToken)
		if err != nil {
			m.logger().Warn("refresh before logout failed", "error", err)
			return nil
		}
		access = pair.AccessToken
	}

	if err := m.Client.Logout(ctx, access); err != nil {
		m.logger().Warn("server logout failed", "error", err)
	}
	return nil
}

// User fetches the signed-in user.
func (m *Manager) User(ctx context.Context) (*UserResponse, error) {
	var u UserResponse
	if err := m.DoJSON(ctx, http.MethodGet, "/v1/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

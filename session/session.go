// Package session tracks the signed-in user and keeps the access token fresh.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/wagtee/go-client/booking"
	"github.com/wagtee/go-client/logger"
	cstr "github.com/wagtee/go-client/string"
	"github.com/wagtee/go-client/tokens"
)

const (
	// DefaultRefreshLeeway is how long before expiry a token counts as expiring.
	DefaultRefreshLeeway = 5 * time.Minute
	// DefaultTokenLifetime is assumed when neither the token nor storage carries an expiry.
	DefaultTokenLifetime = 50 * time.Minute
)

// ErrNotAuthenticated is returned when an operation needs a signed-in user.
var ErrNotAuthenticated = errors.New("session: not authenticated")

type Option func(*Session)

func WithLogger(log logger.Logger) Option {
	return func(s *Session) { s.logger = log }
}

// WithClock replaces time.Now for expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithRefreshLeeway(d time.Duration) Option {
	return func(s *Session) { s.leeway = d }
}

func WithTokenLifetime(d time.Duration) Option {
	return func(s *Session) { s.lifetime = d }
}

// WithAutoRefresh turns the proactive refresh loop on or off. It is on by default.
func WithAutoRefresh(enabled bool) Option {
	return func(s *Session) { s.auto = enabled }
}

// Session is safe for concurrent use.
type Session struct {
	client   *booking.Client
	logger   logger.Logger
	now      func() time.Time
	leeway   time.Duration
	lifetime time.Duration
	auto     bool

	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	wake      chan struct{}

	mu        sync.RWMutex
	user      *booking.User
	expiresAt time.Time
}

// New returns a signed-out Session. Call Bootstrap to restore stored credentials.
func New(parent context.Context, client *booking.Client, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		client:   client,
		logger:   client.API().Logger(),
		now:      time.Now,
		leeway:   DefaultRefreshLeeway,
		lifetime: DefaultTokenLifetime,
		auto:     true,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("[session]")
	client.API().OnRefresh(func(p tokens.Pair) {
		s.setExpiry(s.expiry(p))
	})
	client.API().OnAuthFailure(s.reset)
	if s.auto {
		s.waitGroup.Add(1)
		go s.run()
	}
	return s
}

// Close stops the refresh loop. Stored credentials are kept.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
	})
	return nil
}

func (s *Session) run() {
	defer s.waitGroup.Done()
	for {
		var fire <-chan time.Time
		var timer *time.Timer
		// Tokens already inside the leeway are refreshed on their next 401.
		if exp := s.ExpiresAt(); !exp.IsZero() {
			if d := exp.Sub(s.now()) - s.leeway; d > 0 {
				timer = time.NewTimer(d)
				fire = timer.C
			} else {
				s.logger.Debug("access token expires within %s, not scheduling a refresh", s.leeway)
			}
		}
		select {
		case <-s.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			s.logger.Debug("access token expiring at %s, refreshing", s.ExpiresAt().Format(time.RFC3339))
			if !s.client.ForceRefresh(s.ctx) && s.ctx.Err() == nil {
				s.logger.Warn("proactive token refresh failed")
				s.reset()
			}
		}
	}
}

func (s *Session) reschedule() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// expiry resolves the expiry of p: the access token's exp claim, then the stored
// expiry, then now plus the default lifetime.
func (s *Session) expiry(p tokens.Pair) time.Time {
	if exp, err := tokens.ExpiryFromJWT(p.Access); err == nil {
		return exp
	}
	if !p.ExpiresAt.IsZero() {
		return p.ExpiresAt
	}
	return s.now().Add(s.lifetime)
}

func (s *Session) setExpiry(exp time.Time) {
	s.mu.Lock()
	s.expiresAt = exp
	s.mu.Unlock()
	s.reschedule()
}

func (s *Session) reset() {
	s.mu.Lock()
	s.user = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	s.reschedule()
}

func (s *Session) User() *booking.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) IsAuthenticated() bool {
	return s.User() != nil
}

// ExpiresAt is the access token expiry, or zero when signed out.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// ExpiringSoon reports whether the access token expires within the refresh leeway.
func (s *Session) ExpiringSoon() bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !s.now().Add(s.leeway).Before(exp)
}

// signIn persists the credentials of a login or register reply.
func (s *Session) signIn(ctx context.Context, auth booking.AuthResponse) error {
	pair := tokens.Pair{Access: auth.Access, Refresh: auth.Refresh}
	pair.ExpiresAt = s.expiry(pair)
	if err := s.client.API().Storage().Save(ctx, pair); err != nil {
		return errors.Wrap(err, "session: save tokens")
	}
	user := auth.User
	s.mu.Lock()
	s.user = &user
	s.expiresAt = pair.ExpiresAt
	s.mu.Unlock()
	s.reschedule()
	s.logger.Info("signed in as %s", cstr.MaskEmail(user.Email))
	return nil
}

// Login signs in with email and password. A failed call returns an *api.Error.
func (s *Session) Login(ctx context.Context, email, password string) (*booking.User, error) {
	res := s.client.Auth.Login(ctx, booking.LoginRequest{Email: email, Password: cstr.MaskedString(password)})
	if err := res.Err(); err != nil {
		return nil, err
	}
	if err := s.signIn(ctx, res.Data); err != nil {
		return nil, err
	}
	return s.User(), nil
}

func (s *Session) Register(ctx context.Context, req booking.RegisterRequest) (*booking.User, error) {
	res := s.client.Auth.Register(ctx, req)
	if err := res.Err(); err != nil {
		return nil, err
	}
	if err := s.signIn(ctx, res.Data); err != nil {
		return nil, err
	}
	return s.User(), nil
}

// Logout revokes the refresh token on the server when possible and always clears
// local credentials.
func (s *Session) Logout(ctx context.Context) error {
	if refresh := s.client.RefreshToken(ctx); refresh != "" {
		if err := s.client.Auth.Logout(ctx, refresh).Err(); err != nil {
			s.logger.Warn("server logout failed: %s", err)
		}
	}
	s.reset()
	if err := s.client.ClearTokens(ctx); err != nil {
		return errors.Wrap(err, "session: clear tokens")
	}
	return nil
}

// Bootstrap restores a session from stored credentials. An expired access token is
// refreshed first; a failed profile fetch gets one refresh and one retry. It returns
// false, with credentials cleared, when no usable session could be restored.
func (s *Session) Bootstrap(ctx context.Context) (bool, error) {
	pair, err := s.client.API().Storage().Load(ctx)
	if errors.Is(err, tokens.ErrNotFound) || (err == nil && pair.Access == "") {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "session: load tokens")
	}
	s.setExpiry(s.expiry(pair))

	if !s.now().Before(s.ExpiresAt()) {
		s.logger.Debug("stored access token expired, refreshing")
		if !s.client.ForceRefresh(ctx) {
			return false, s.abandon(ctx)
		}
	}
	res := s.client.Auth.Profile(ctx)
	if !res.Success {
		s.logger.Debug("profile fetch failed (%s), refreshing once", res.Code)
		if !s.client.ForceRefresh(ctx) {
			return false, s.abandon(ctx)
		}
		if res = s.client.Auth.Profile(ctx); !res.Success {
			return false, s.abandon(ctx)
		}
	}
	user := res.Data
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return true, nil
}

func (s *Session) abandon(ctx context.Context) error {
	s.reset()
	if err := s.client.ClearTokens(ctx); err != nil {
		return errors.Wrap(err, "session: clear tokens")
	}
	return nil
}

// RefreshIfNeeded refreshes the access token when it is expiring soon. It returns
// false only when a needed refresh failed.
func (s *Session) RefreshIfNeeded(ctx context.Context) bool {
	if !s.ExpiringSoon() {
		return true
	}
	return s.client.ForceRefresh(ctx)
}

// Profile reloads the current user from the server.
func (s *Session) Profile(ctx context.Context) (*booking.User, error) {
	if !s.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	user, err := s.client.Auth.Profile(ctx).Unwrap()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return &user, nil
}

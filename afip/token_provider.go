package afip

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultRefreshSkew is how long before expiry a ticket stops being handed out.
	DefaultRefreshSkew = 5 * time.Minute
	// DefaultTicketLifetime is assumed for every issued ticket. It is an approximation:
	// an earlier expirationTime reported by WSAA takes precedence.
	DefaultTicketLifetime = 12 * time.Hour
)

// Authenticator performs a full WSAA round-trip. ExpiresAt on the result is the
// remote expirationTime, or zero when unknown.
type Authenticator func(ctx context.Context) (Ticket, error)

// TokenProvider owns the access ticket shared by every WSFE call.
type TokenProvider struct {
	authenticate Authenticator
	store        TicketStore

	// mu serializes logins and guards ticket and lastAuth. Readers use snap so they
	// never wait behind a WSAA round-trip.
	mu       sync.Mutex
	ticket   Ticket
	lastAuth time.Time
	snap     atomic.Pointer[snapshot]

	refreshSkew time.Duration
	lifetime    time.Duration
	now         func() time.Time
}

type snapshot struct {
	ticket   Ticket
	lastAuth time.Time
}

type ProviderOption func(*TokenProvider)

// WithTicketStore persists tickets between restarts. Store failures are logged and ignored.
func WithTicketStore(s TicketStore) ProviderOption {
	return func(p *TokenProvider) { p.store = s }
}

func WithClock(now func() time.Time) ProviderOption {
	return func(p *TokenProvider) { p.now = now }
}

func WithTicketLifetime(d time.Duration) ProviderOption {
	return func(p *TokenProvider) { p.lifetime = d }
}

// NewTokenProvider creates a provider without authenticating. A still valid ticket
// from the store is adopted.
func NewTokenProvider(auth Authenticator, opts ...ProviderOption) *TokenProvider {
	p := &TokenProvider{
		authenticate: auth,
		refreshSkew:  DefaultRefreshSkew,
		lifetime:     DefaultTicketLifetime,
		now:          time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	p.restore()
	return p
}

func (p *TokenProvider) restore() {
	if p.store == nil {
		return
	}
	t, err := p.store.Load()
	if err != nil {
		logger.Debugf("TokenProvider: no stored ticket: %v", err)
		return
	}
	if !t.ValidAt(p.now(), p.refreshSkew) {
		logger.Debug("TokenProvider: stored ticket expired, ignoring")
		return
	}
	p.ticket = t
	p.publishLocked()
	logger.Infof("TokenProvider: reusing stored ticket valid until %s", t.ExpiresAt.Format(time.RFC3339))
}

// IsValid reports whether a ticket exists and expires more than the safety margin from now.
func (p *TokenProvider) IsValid() bool {
	_, ok := p.currentIfValid()
	return ok
}

// Current returns the held ticket whether valid or not.
func (p *TokenProvider) Current() (Ticket, bool) {
	s := p.load()
	return s.ticket, !s.ticket.IsZero()
}

// LastAuthentication returns the time of the last successful WSAA login.
func (p *TokenProvider) LastAuthentication() (time.Time, bool) {
	s := p.load()
	return s.lastAuth, !s.lastAuth.IsZero()
}

// EnsureValid returns the cached ticket, authenticating first when it is missing or
// about to expire. Concurrent callers share a single WSAA round-trip.
func (p *TokenProvider) EnsureValid(ctx context.Context) (Ticket, error) {
	if t, ok := p.currentIfValid(); ok {
		return t, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// double check after taking the lock
	if t, ok := p.currentIfValidLocked(); ok {
		return t, nil
	}

	logger.Debug("TokenProvider: ticket missing or expiring, authenticating")
	return p.authenticateLocked(ctx)
}

// Authenticate logs in to WSAA. Without force a valid cached ticket is returned instead.
func (p *TokenProvider) Authenticate(ctx context.Context, force bool) (Ticket, error) {
	if !force {
		return p.EnsureValid(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.discardStoredLocked()
	return p.authenticateLocked(ctx)
}

// Refresh forces a new login unless another caller already replaced stale. A zero
// stale means the caller holds no ticket, so any valid ticket counts as renewed.
func (p *TokenProvider) Refresh(ctx context.Context, stale Ticket) (Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if stale.IsZero() || !p.ticket.sameAs(stale) {
		if t, ok := p.currentIfValidLocked(); ok {
			logger.Debug("TokenProvider: ticket already renewed by another caller")
			return t, nil
		}
	}
	p.discardStoredLocked()
	return p.authenticateLocked(ctx)
}

func (p *TokenProvider) currentIfValid() (Ticket, bool) {
	t := p.load().ticket
	if !t.ValidAt(p.now(), p.refreshSkew) {
		return Ticket{}, false
	}
	return t, true
}

func (p *TokenProvider) load() snapshot {
	if s := p.snap.Load(); s != nil {
		return *s
	}
	return snapshot{}
}

// caller holds p.mu
func (p *TokenProvider) publishLocked() {
	p.snap.Store(&snapshot{ticket: p.ticket, lastAuth: p.lastAuth})
}

// caller holds p.mu
func (p *TokenProvider) currentIfValidLocked() (Ticket, bool) {
	if !p.ticket.ValidAt(p.now(), p.refreshSkew) {
		return Ticket{}, false
	}
	return p.ticket, true
}

func (p *TokenProvider) authenticateLocked(ctx context.Context) (Ticket, error) {
	t, err := p.authenticate(ctx)
	if err != nil {
		return Ticket{}, err
	}
	if t.Token == "" || t.Sign == "" {
		return Ticket{}, &AuthError{Kind: ErrAuthentication, Message: "WSAA returned empty token or sign"}
	}

	now := p.now()
	expires := now.Add(p.lifetime)
	if !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(expires) {
		expires = t.ExpiresAt
	}
	if t.IssuedAt.IsZero() {
		t.IssuedAt = now
	}
	t.ExpiresAt = expires

	p.ticket = t
	p.lastAuth = now
	p.publishLocked()

	if p.store != nil {
		if err := p.store.Save(t); err != nil {
			logger.Warnf("TokenProvider: could not persist ticket: %v", err)
		}
	}

	logger.Infof("TokenProvider: WSAA ticket valid until %s", expires.Format(time.RFC3339))
	return t, nil
}

func (p *TokenProvider) discardStoredLocked() {
	if p.store == nil {
		return
	}
	if err := p.store.Remove(); err != nil {
		logger.Debugf("TokenProvider: could not remove stored ticket: %v", err)
	}
}

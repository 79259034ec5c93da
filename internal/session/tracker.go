// ABOUTME: Session tracker moving a client between Anonymous and Authenticated
// ABOUTME: Reconciles the persisted identity marker against the account store on load

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/commons/internal/auth"
	"github.com/2389/commons/internal/identity"
	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

// State is the tracker's position in the session state machine.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Accounts is the subset of the identity service the tracker needs.
type Accounts interface {
	Authenticate(ctx context.Context, username, password string) (*store.Account, error)
	Validate(ctx context.Context, accountID string) (*store.Account, error)
}

// Tokens signs and verifies the marker token.
type Tokens interface {
	auth.TokenVerifier
	auth.TokenIssuer
}

// Tracker holds the current identity of one client. It is safe for
// concurrent use but is meant for a single caller.
type Tracker struct {
	accounts Accounts
	tokens   Tokens
	marker   MarkerStore
	ttl      time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	account *store.Account
}

// NewTracker creates a Tracker in the Anonymous state.
func NewTracker(accounts Accounts, tokens Tokens, marker MarkerStore, ttl time.Duration) *Tracker {
	return &Tracker{
		accounts: accounts,
		tokens:   tokens,
		marker:   marker,
		ttl:      ttl,
		logger:   slog.Default().With("component", "session"),
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.account == nil {
		return Anonymous
	}
	return Authenticated
}

// Current returns a copy of the authenticated account, or nil when anonymous.
func (t *Tracker) Current() *store.Account {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.account == nil {
		return nil
	}
	a := *t.account
	return &a
}

// Actor returns the policy actor for the current identity, nil when anonymous.
func (t *Tracker) Actor() *policy.Actor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return policy.ActorFor(t.account)
}

// Login authenticates and persists the identity marker. On failure the
// tracker is left in its previous state.
func (t *Tracker) Login(ctx context.Context, username, password string) (*store.Account, error) {
	a, err := t.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	token, err := t.tokens.Generate(a.ID, t.ttl)
	if err != nil {
		return nil, fmt.Errorf("issuing session token: %w", err)
	}
	if err := t.marker.Save(token); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.account = a
	t.mu.Unlock()

	t.logger.Info("logged in", "username", a.Username)
	return a, nil
}

// Logout returns to Anonymous and clears the marker.
func (t *Tracker) Logout() error {
	t.mu.Lock()
	t.account = nil
	t.mu.Unlock()

	if err := t.marker.Clear(); err != nil {
		return err
	}
	t.logger.Debug("logged out")
	return nil
}

// Restore runs the start-up reconciliation: the tracker starts Anonymous and
// becomes Authenticated only if the persisted marker still names a live,
// unbanned account. An invalid marker is cleared. Returns the restored
// account, or nil when the session stays anonymous.
func (t *Tracker) Restore(ctx context.Context) (*store.Account, error) {
	t.mu.Lock()
	t.account = nil
	t.mu.Unlock()

	token, err := t.marker.Load()
	if err != nil {
		if errors.Is(err, ErrNoMarker) {
			return nil, nil
		}
		return nil, err
	}

	accountID, err := t.tokens.Verify(token)
	if err != nil {
		t.logger.Debug("discarding session marker", "reason", err)
		return nil, t.marker.Clear()
	}

	a, err := t.validate(ctx, accountID)
	if err != nil || a == nil {
		return nil, err
	}

	t.mu.Lock()
	t.account = a
	t.mu.Unlock()
	return a, nil
}

// Reconcile re-checks the authenticated account. A ban or deletion
// observed since login forces the tracker back to Anonymous.
func (t *Tracker) Reconcile(ctx context.Context) (State, error) {
	t.mu.Lock()
	current := t.account
	t.mu.Unlock()
	if current == nil {
		return Anonymous, nil
	}

	a, err := t.validate(ctx, current.ID)
	if err != nil {
		return t.State(), err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.account = a
	if a == nil {
		return Anonymous, nil
	}
	return Authenticated, nil
}

// validate loads the account. A missing or banned account clears the
// marker and yields nil with no error; store failures are returned as is.
func (t *Tracker) validate(ctx context.Context, accountID string) (*store.Account, error) {
	a, err := t.accounts.Validate(ctx, accountID)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, identity.ErrAccountBanned) {
		t.logger.Info("session ended", "account_id", accountID, "reason", err)
		return nil, t.marker.Clear()
	}
	return nil, err
}

package session

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carelink/whatsapp-bot/internal/model/bot"
	"github.com/carelink/whatsapp-bot/internal/service/token"
)

// DefaultInactivityTimeout is the policy default. An earlier deployment
// used 30 minutes; the value is configurable, not a constant of the
// design.
const DefaultInactivityTimeout = 24 * time.Hour

// ErrEmptyIdentity rejects operations without an identity key.
var ErrEmptyIdentity = errors.New("session: identity is required")

type entry struct {
	mu      sync.Mutex
	session bot.Session
}

// Store is a concurrent map from identity key to Session. The map has
// its own lock; each entry carries a per-identity lock so concurrent
// events for the same user serialize without blocking unrelated
// identities.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	issuer  *token.Issuer
	timeout time.Duration
	now     func() time.Time
}

// NewStore builds a Store backed by issuer for token expiry checks and
// sliding refresh. timeout <= 0 selects the policy default.
func NewStore(issuer *token.Issuer, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	return &Store{
		entries: make(map[string]*entry),
		issuer:  issuer,
		timeout: timeout,
		now:     time.Now,
	}
}

// Scope gives the caller exclusive access to one identity's session for
// the duration of an Update callback. All mutations go through it so the
// whole read-modify-write stays under the per-identity lock.
type Scope struct {
	store   *Store
	session *bot.Session
}

// Session returns the live session. Mutations persist when the Update
// callback returns.
func (sc *Scope) Session() *bot.Session {
	return sc.session
}

// UpdateState sets the conversation state and merges attrs into the
// session attributes, overwriting existing keys.
func (sc *Scope) UpdateState(state bot.State, attrs map[string]string) {
	sc.session.State = state
	for k, v := range attrs {
		sc.session.Attributes[k] = v
	}
	sc.session.LastActivity = sc.store.now()
}

// Authenticate marks the session authenticated as userType with the
// given backend user id. The lifecycle credential on Session.Token is
// always issued locally so expiry checks and sliding refresh stay
// within the issuer's signing key; a backend credential, when the
// record API returned one, is opaque to us and rides along as an
// attribute for record API calls.
func (sc *Scope) Authenticate(userType bot.UserType, userID, backendTok string) error {
	issued, err := sc.store.issuer.Issue(userID, string(userType), 0)
	if err != nil {
		return err
	}
	sc.session.UserType = userType
	sc.session.Authenticated = true
	sc.session.Token = issued
	sc.session.Attributes[bot.AttrUserID] = userID
	if backendTok != "" {
		sc.session.Attributes[bot.AttrCareToken] = backendTok
	} else {
		delete(sc.session.Attributes, bot.AttrCareToken)
	}
	sc.session.LastActivity = sc.store.now()
	return nil
}

// Logout deauthenticates the session and returns it to the NEW state.
// Attributes and user type are kept for audit, not for authorization.
// Credentials never survive a logout.
func (sc *Scope) Logout() {
	sc.session.Authenticated = false
	sc.session.Token = ""
	delete(sc.session.Attributes, bot.AttrCareToken)
	sc.session.State = bot.StateNew
	sc.session.LastActivity = sc.store.now()
}

// Clear resets the session to its creation defaults.
func (sc *Scope) Clear() {
	sc.session.Reset(sc.store.now())
}

// Update runs fn while holding the per-identity lock. Expiry policy is
// applied before fn sees the session: an inactive or token-expired
// session is silently reset, otherwise a sliding token refresh is
// attempted and written back. Every processed event counts as activity,
// so the inactivity window slides even when fn only reads.
func (s *Store) Update(identity string, fn func(*Scope) error) error {
	if identity == "" {
		return ErrEmptyIdentity
	}

	e := s.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	s.applyExpiryPolicy(e)
	if err := fn(&Scope{store: s, session: &e.session}); err != nil {
		return err
	}
	e.session.LastActivity = s.now()
	return nil
}

// GetOrCreate returns a snapshot of the identity's session, creating a
// fresh unauthenticated one for unseen identities.
func (s *Store) GetOrCreate(identity string) (bot.Session, error) {
	var snapshot bot.Session
	err := s.Update(identity, func(sc *Scope) error {
		snapshot = sc.copyOut()
		return nil
	})
	return snapshot, err
}

// UpdateState transitions the session and merges attrs atomically.
func (s *Store) UpdateState(identity string, state bot.State, attrs map[string]string) error {
	return s.Update(identity, func(sc *Scope) error {
		sc.UpdateState(state, attrs)
		return nil
	})
}

// Authenticate marks the identity's session authenticated. See
// Scope.Authenticate.
func (s *Store) Authenticate(identity string, userType bot.UserType, userID, tok string) error {
	return s.Update(identity, func(sc *Scope) error {
		return sc.Authenticate(userType, userID, tok)
	})
}

// Logout deauthenticates the identity's session.
func (s *Store) Logout(identity string) error {
	return s.Update(identity, func(sc *Scope) error {
		sc.Logout()
		return nil
	})
}

// Clear resets the identity's session to creation defaults.
func (s *Store) Clear(identity string) error {
	return s.Update(identity, func(sc *Scope) error {
		sc.Clear()
		return nil
	})
}

func (sc *Scope) copyOut() bot.Session {
	out := *sc.session
	out.Attributes = make(map[string]string, len(sc.session.Attributes))
	for k, v := range sc.session.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// entry finds or inserts the per-identity entry under the map lock.
func (s *Store) entry(identity string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok {
		now := s.now()
		e = &entry{session: bot.Session{
			Identity:     identity,
			State:        bot.StateNew,
			Attributes:   map[string]string{},
			LastActivity: now,
			CreatedAt:    now,
		}}
		s.entries[identity] = e
		logrus.WithField("identity", identity).Debug("session created")
	}
	return e
}

// applyExpiryPolicy runs with the entry lock held. Resets take priority;
// a session that survives them gets a sliding token refresh so continued
// use extends the authenticated window without re-authentication.
func (s *Store) applyExpiryPolicy(e *entry) {
	now := s.now()
	sess := &e.session

	if now.Sub(sess.LastActivity) > s.timeout {
		logrus.WithField("identity", sess.Identity).Info("session inactive, resetting")
		sess.Reset(now)
		return
	}

	if !sess.Authenticated {
		return
	}

	if sess.Token == "" || s.issuer.IsExpired(sess.Token) {
		logrus.WithField("identity", sess.Identity).Info("session token expired, resetting")
		sess.Reset(now)
		return
	}

	refreshed, err := s.issuer.Refresh(sess.Token, 0)
	if err != nil {
		logrus.WithField("identity", sess.Identity).WithError(err).Warn("token refresh failed, resetting session")
		sess.Reset(now)
		return
	}
	sess.Token = refreshed
}

package gateway

import (
	"context"
	"sync"

	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Client holds one browser session's auth state against an Identity server.
// Listeners are always invoked outside the client's lock.
type Client struct {
	identity *Identity

	mu        sync.Mutex
	session   *Session
	listeners []listenerEntry
	nextID    uint64
}

var _ Auth = (*Client)(nil)

// NewClient builds a client, restoring the session carried by accessToken when the
// identity server still accepts it. An empty, stale or revoked token, or one whose
// identity was deleted, yields a signed-out client.
func NewClient(ctx context.Context, identity *Identity, accessToken string) *Client {
	c := &Client{identity: identity}
	if accessToken != "" {
		s, err := identity.Restore(ctx, accessToken)
		if err == nil {
			c.session = s
		} else if ReasonOf(err) != ReasonNoSession {
			logger.L().Warn("restore session failed", zap.Error(err))
		}
	}
	return c
}

// AccessToken returns the current token, or "" when signed out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	s, err := c.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(s)
	c.fire(EventSignedIn, s)
	return copySession(s), nil
}

func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*Session, error) {
	s, err := c.identity.SignUp(ctx, email, password, redirectTo)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	c.set(s)
	c.fire(EventSignedIn, s)
	return copySession(s), nil
}

// SignOut clears the local session whatever the server answers.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	var err error
	if s != nil {
		err = c.identity.Revoke(ctx, s.User.ID)
	}
	c.fire(EventSignedOut, nil)
	return err
}

// GetSession returns the current session, dropping it first when it has expired.
// A session the identity server no longer accepts is dropped with a SIGNED_OUT event.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, authErr(ReasonUnavailable, err)
	}
	c.mu.Lock()
	s := c.session
	if s != nil && s.Expired(c.identity.now()) {
		c.session = nil
		s = nil
	}
	s = copySession(s)
	c.mu.Unlock()
	if s == nil {
		return nil, nil
	}
	if err := c.check(ctx, s); err != nil {
		return nil, nil
	}
	return s, nil
}

// OnSessionChange registers fn and delivers INITIAL_SESSION to it asynchronously.
func (c *Client) OnSessionChange(fn Listener) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	go func() {
		c.mu.Lock()
		registered := c.registered(id)
		s := copySession(c.session)
		c.mu.Unlock()
		if registered {
			fn(EventInitialSession, s)
		}
	}()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for idx, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:idx], c.listeners[idx+1:]...)
				return
			}
		}
	}
}

func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	s, err := c.verified(ctx)
	if err != nil {
		return err
	}
	if err := c.identity.UpdatePassword(ctx, s.User.ID, password); err != nil {
		return err
	}
	c.fire(EventUserUpdated, s)
	return nil
}

func (c *Client) DeleteUser(ctx context.Context) error {
	s, err := c.verified(ctx)
	if err != nil {
		return err
	}
	if err := c.identity.DeleteUser(ctx, s.User.ID); err != nil {
		return err
	}
	c.set(nil)
	c.fire(EventSignedOut, nil)
	return nil
}

func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	s, err := c.verified(ctx)
	if err != nil {
		return nil, err
	}
	fresh, err := c.identity.Reissue(ctx, s.User.ID)
	if err != nil {
		return nil, err
	}
	c.set(fresh)
	c.fire(EventTokenRefreshed, fresh)
	return copySession(fresh), nil
}

func (c *Client) current() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.Expired(c.identity.now()) {
		return nil, authErr(ReasonNoSession, nil)
	}
	return copySession(c.session), nil
}

func (c *Client) verified(ctx context.Context) (*Session, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	if err := c.check(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// check asks the identity server whether s is still live. A revoked session is
// dropped if it is still the held one; an unreachable server keeps it.
func (c *Client) check(ctx context.Context, s *Session) error {
	_, err := c.identity.Restore(ctx, s.AccessToken)
	if err == nil {
		return nil
	}
	if ReasonOf(err) != ReasonNoSession {
		logger.L().Warn("session check failed", zap.String("user_id", s.User.ID.String()), zap.Error(err))
		return nil
	}

	c.mu.Lock()
	held := c.session != nil && c.session.AccessToken == s.AccessToken
	if held {
		c.session = nil
	}
	c.mu.Unlock()
	if held {
		c.fire(EventSignedOut, nil)
	}
	return err
}

func (c *Client) set(s *Session) {
	c.mu.Lock()
	c.session = copySession(s)
	c.mu.Unlock()
}

func (c *Client) registered(id uint64) bool {
	for _, l := range c.listeners {
		if l.id == id {
			return true
		}
	}
	return false
}

func (c *Client) fire(event AuthEvent, s *Session) {
	c.mu.Lock()
	fns := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		fns = append(fns, l.fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(event, copySession(s))
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

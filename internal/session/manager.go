// Package session owns the per-browser-session auth state: the gateway session, the
// authenticated user and their profile, bridged from gateway auth events.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/gateway"
	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/notify"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

// ProfileStore provisions and reads profiles.
type ProfileStore interface {
	// EnsureProfile inserts {id, email, role: user} if absent and returns the stored row.
	EnsureProfile(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error)
}

// State is a snapshot of one browser session.
type State struct {
	Session *gateway.Session `json:"-"`
	User    *gateway.User    `json:"user"`
	Profile *models.Profile  `json:"profile"`
	Loading bool             `json:"loading"`
}

func (s State) IsAdmin() bool { return s.Profile.IsAdmin() }

type Options struct {
	Audience       string
	RedirectTo     string
	ResolveTimeout time.Duration
	Sink           notify.Sink
}

type subscriber struct {
	id uint64
	fn func(State)
}

// ticket identifies one resolution. Initial tickets come from the startup paths
// (INITIAL_SESSION and the GetSession query).
type ticket struct {
	seq     uint64
	initial bool
}

// Manager bridges one gateway client to a State. Resolutions are numbered: a resolution
// that started before a newer one is discarded when it completes, and startup
// resolutions are discarded once any explicit auth event has been seen.
type Manager struct {
	auth     gateway.Auth
	profiles ProfileStore
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	seq         uint64
	explicit    bool
	started     bool
	closed      bool
	ready       chan struct{}
	readyClosed bool
	unsubscribe func()
	subs        []subscriber
	nextSub     uint64
}

func NewManager(auth gateway.Auth, profiles ProfileStore, opts Options) *Manager {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 5 * time.Second
	}
	if opts.Sink == nil {
		opts.Sink = notify.Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		auth:     auth,
		profiles: profiles,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Loading: true},
		ready:    make(chan struct{}),
	}
}

// Start subscribes to session changes and queries the current session once in the background.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	unsubscribe := m.auth.OnSessionChange(m.onAuthEvent)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		unsubscribe()
		return
	}
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	go m.initialSession()
}

// Wait blocks until the first resolution completed, the manager closed or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Viewer() Viewer {
	st := m.State()
	v := Viewer{Audience: m.opts.Audience, Resolving: st.Loading, Admin: st.IsAdmin()}
	if st.User != nil {
		v.UserID = st.User.ID
		v.Email = st.User.Email
	}
	return v
}

// AccessToken returns the current session token, or "".
func (m *Manager) AccessToken() string {
	st := m.State()
	if st.Session == nil {
		return ""
	}
	return st.Session.AccessToken
}

// Sink returns the notification sink of this browser session.
func (m *Manager) Sink() notify.Sink { return m.opts.Sink }

// SignIn reports failures as a notification and returns them; state changes arrive
// through the SIGNED_IN event.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if _, err := m.auth.SignInWithPassword(ctx, email, password); err != nil {
		logger.L().Info("sign in failed", zap.String("reason", string(gateway.ReasonOf(err))))
		m.opts.Sink.Notify(ctx, notify.Failure("Erreur de connexion", userMessage(err)))
		return err
	}
	return nil
}

func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	if _, err := m.auth.SignUp(ctx, email, password, m.opts.RedirectTo); err != nil {
		logger.L().Info("sign up failed", zap.String("reason", string(gateway.ReasonOf(err))))
		m.opts.Sink.Notify(ctx, notify.Failure("Erreur d'inscription", userMessage(err)))
		return err
	}
	m.opts.Sink.Notify(ctx, notify.Info("Inscription réussie", "Vérifiez votre email pour confirmer votre compte."))
	return nil
}

// SignOut clears local state even when the gateway call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.auth.SignOut(ctx)
	if err != nil {
		logger.L().Warn("remote sign out failed", zap.Error(err))
	}
	m.apply(m.begin(false), nil, nil)
	return err
}

// Refresh renews the access token; the resulting resolution re-reads the profile.
func (m *Manager) Refresh(ctx context.Context) error {
	if _, err := m.auth.Refresh(ctx); err != nil {
		return err
	}
	return nil
}

// Revalidate asks the gateway whether the held session is still live. A session
// revoked elsewhere comes back as SIGNED_OUT and clears the state before this returns.
func (m *Manager) Revalidate(ctx context.Context) error {
	if m.AccessToken() == "" {
		return nil
	}
	_, err := m.auth.GetSession(ctx)
	return err
}

func (m *Manager) UpdatePassword(ctx context.Context, password string) error {
	return m.auth.UpdatePassword(ctx, password)
}

// DeleteUser removes the identity and then signs out locally.
func (m *Manager) DeleteUser(ctx context.Context) error {
	if err := m.auth.DeleteUser(ctx); err != nil {
		return err
	}
	_ = m.SignOut(ctx)
	return nil
}

// Subscribe registers fn for every applied state change.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Close detaches from the gateway. Results arriving afterwards are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.subs = nil
	m.markReady()
	m.mu.Unlock()

	m.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) onAuthEvent(event gateway.AuthEvent, s *gateway.Session) {
	t := m.begin(event == gateway.EventInitialSession)
	if event == gateway.EventSignedOut || s == nil {
		m.apply(t, nil, nil)
		return
	}
	m.resolve(t, s)
}

func (m *Manager) initialSession() {
	ctx, cancel := context.WithTimeout(m.ctx, m.opts.ResolveTimeout)
	defer cancel()

	s, err := m.auth.GetSession(ctx)
	if err != nil {
		logger.L().Error("get session failed", zap.String("audience", m.opts.Audience), zap.Error(err))
		m.mu.Lock()
		if !m.closed {
			m.state.Loading = false
			m.markReady()
		}
		m.mu.Unlock()
		return
	}
	t := m.begin(true)
	if s == nil {
		m.apply(t, nil, nil)
		return
	}
	m.resolve(t, s)
}

func (m *Manager) resolve(t ticket, s *gateway.Session) {
	ctx, cancel := context.WithTimeout(m.ctx, m.opts.ResolveTimeout)
	defer cancel()

	p, err := m.profiles.EnsureProfile(ctx, s.User.ID, s.User.Email)
	if err != nil {
		logger.L().Error("profile resolution failed", zap.String("user_id", s.User.ID.String()), zap.Error(err))
		p = nil
	}
	m.apply(t, s, p)
}

func (m *Manager) begin(initial bool) ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if !initial {
		m.explicit = true
	}
	return ticket{seq: m.seq, initial: initial}
}

// current reports whether t may still be applied. mu must be held.
func (m *Manager) current(t ticket) bool {
	if m.closed || t.seq != m.seq {
		return false
	}
	return !(t.initial && m.explicit)
}

func (m *Manager) apply(t ticket, s *gateway.Session, p *models.Profile) {
	m.mu.Lock()
	if !m.current(t) {
		m.mu.Unlock()
		return
	}

	if s == nil {
		m.state = State{}
	} else {
		prev := m.state
		if p == nil && prev.Profile != nil && prev.User != nil && prev.User.ID == s.User.ID {
			p = prev.Profile
		}
		user := s.User
		m.state = State{Session: s, User: &user, Profile: p}
	}
	m.markReady()

	st := m.state
	fns := make([]func(State), 0, len(m.subs))
	for _, sub := range m.subs {
		fns = append(fns, sub.fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// markReady must be called with mu held.
func (m *Manager) markReady() {
	if !m.readyClosed {
		m.readyClosed = true
		close(m.ready)
	}
}

func userMessage(err error) string {
	return gateway.MessageFor(gateway.ReasonOf(err))
}

// Package appstate holds the per-user application state: one history mirror
// and one content mirror per kind, opened when the user authenticates and
// torn down on logout or after going idle.
package appstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/content"
	"github.com/ASHISH26940/marketing-ops-api/pkg/history"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// DefaultIdleTTL closes sessions untouched for this long.
const DefaultIdleTTL = 30 * time.Minute

// Repos are the repositories every session is built on.
type Repos struct {
	History history.Repository
	Content content.Repository
}

// Session is one user's state.
type Session struct {
	UserID  uuid.UUID
	History *history.Store
	content map[content.Kind]*content.Store

	initMu  sync.Mutex
	loaded  bool
	mu      sync.Mutex
	touched time.Time
}

// Content returns the store of kind. Every kind has one.
func (s *Session) Content(kind content.Kind) *content.Store {
	return s.content[kind]
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touched = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.touched)
}

// load fills every mirror. A history failure is returned and retried on the
// next Open; content failures leave that kind empty and are only logged.
func (s *Session) load(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.loaded {
		return nil
	}
	if err := s.History.EnsureHistoryEntries(ctx); err != nil {
		return err
	}
	for _, kind := range content.AllKinds() {
		if err := s.content[kind].Load(ctx); err != nil {
			log.Warnf("load: %s unavailable for user %s: %v", kind, s.UserID, err)
		}
	}
	s.loaded = true
	return nil
}

// Registry owns all open sessions.
type Registry struct {
	repos   Repos
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	cron     *cron.Cron
}

func NewRegistry(repos Repos, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		repos:    repos,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open returns the user's session, creating and loading it on first use.
func (r *Registry) Open(ctx context.Context, userID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	sess, ok := r.sessions[userID]
	if !ok {
		sess = r.newSession(userID)
		r.sessions[userID] = sess
		log.Infof("Open: session created for user %s", userID)
	}
	r.mu.Unlock()

	sess.touch(r.now())
	if err := sess.load(ctx); err != nil {
		return nil, fmt.Errorf("failed to open session for user %s: %w", userID, err)
	}
	return sess, nil
}

func (r *Registry) newSession(userID uuid.UUID) *Session {
	sess := &Session{
		UserID:  userID,
		History: history.NewStore(r.repos.History, userID),
		content: make(map[content.Kind]*content.Store),
	}
	for _, kind := range content.AllKinds() {
		sess.content[kind] = content.NewStore(r.repos.Content, kind, userID)
	}
	return sess
}

// Close drops the user's session. It reports whether one was open.
func (r *Registry) Close(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[userID]; !ok {
		return false
	}
	delete(r.sessions, userID)
	log.Infof("Close: session closed for user %s", userID)
	return true
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	closed := 0
	for id, sess := range r.sessions {
		if sess.idleSince(now) > r.idleTTL {
			delete(r.sessions, id)
			closed++
		}
	}
	if closed > 0 {
		log.Infof("Sweep: closed %d idle sessions, %d remain", closed, len(r.sessions))
	}
	return closed
}

// StartJanitor runs Sweep on a cron schedule such as "@every 5m".
func (r *Registry) StartJanitor(schedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("session janitor already running")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Sweep() }); err != nil {
		return fmt.Errorf("failed to schedule session janitor: %w", err)
	}
	c.Start()
	r.cron = c
	log.Infof("Session janitor started with schedule %s (idle ttl %s)", schedule, r.idleTTL)
	return nil
}

// Stop halts the janitor and waits for a running sweep to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

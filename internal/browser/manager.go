package browser

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/uirun/uirun/internal/domain"
)

const defaultIdleTTL = 5 * time.Minute

// session is the live page for one run. Its mutex is held for the whole
// duration of a leased step, so Close and ReapIdle see a consistent view.
type session struct {
	mu         sync.Mutex
	page       Page
	lastActive time.Time
}

// Preflight vets a starting URL right before a session opens to it. It
// runs on every session creation, including re-creation after an idle
// reclaim, so a check done earlier cannot go stale.
type Preflight func(ctx context.Context, url string) error

// Manager keeps at most one live session per run. Sessions are created
// lazily on first acquire and torn down on close, shutdown, or after
// sitting idle past the TTL.
type Manager struct {
	driver    Driver
	idleTTL   time.Duration
	preflight Preflight

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a session manager. A nil preflight disables the
// pre-open URL check.
func NewManager(driver Driver, idleTTL time.Duration, preflight Preflight) *Manager {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &Manager{
		driver:    driver,
		idleTTL:   idleTTL,
		preflight: preflight,
		sessions:  make(map[string]*session),
	}
}

// Lease is exclusive access to a run's page. Release must be called
// exactly once, after the step using the page has finished.
type Lease struct {
	Page Page

	sess     *session
	released bool
}

func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	l.sess.lastActive = time.Now()
	l.sess.mu.Unlock()
}

// Acquire returns a lease on the run's session, creating it if needed.
// Creating a session runs the preflight check, opens a fresh page and
// navigates it to startingURL; if any of that fails nothing is
// registered, so a later acquire starts over. The returned flag is true
// when a new session was opened.
func (m *Manager) Acquire(ctx context.Context, runID, startingURL string) (*Lease, bool, error) {
	for {
		m.mu.Lock()
		sess, ok := m.sessions[runID]
		if !ok {
			sess = &session{lastActive: time.Now()}
			sess.mu.Lock()
			m.sessions[runID] = sess
			m.mu.Unlock()

			if m.preflight != nil {
				if err := m.preflight(ctx, startingURL); err != nil {
					m.drop(runID, sess)
					sess.mu.Unlock()
					return nil, false, err
				}
			}

			page, err := m.driver.NewPage(ctx)
			if err != nil {
				m.drop(runID, sess)
				sess.mu.Unlock()
				return nil, false, sessionUnavailable(err)
			}
			if err := page.Navigate(ctx, startingURL); err != nil {
				if cerr := page.Close(ctx); cerr != nil {
					log.Printf("WARN: failed to close page after navigation failure: %v", cerr)
				}
				m.drop(runID, sess)
				sess.mu.Unlock()
				return nil, false, err
			}
			sess.page = page
			return &Lease{Page: page, sess: sess}, true, nil
		}
		m.mu.Unlock()

		sess.mu.Lock()
		if sess.page == nil {
			// Torn down while we waited for the lock.
			sess.mu.Unlock()
			m.drop(runID, sess)
			continue
		}
		return &Lease{Page: sess.page, sess: sess}, false, nil
	}
}

// Close tears down the run's session. A step already holding the lease
// finishes first. Closing a run without a session is a no-op; the
// returned flag is true only when a live session was torn down.
func (m *Manager) Close(ctx context.Context, runID string) (bool, error) {
	m.mu.Lock()
	sess, ok := m.sessions[runID]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}

	sess.mu.Lock()
	var err error
	closed := false
	if sess.page != nil {
		err = sess.page.Close(ctx)
		sess.page = nil
		closed = true
	}
	sess.mu.Unlock()

	m.drop(runID, sess)
	return closed, err
}

// ReapIdle closes sessions idle past the TTL and returns their run IDs.
// A session with a step in flight is never reclaimed.
func (m *Manager) ReapIdle(ctx context.Context) []string {
	m.mu.Lock()
	candidates := make(map[string]*session, len(m.sessions))
	for runID, sess := range m.sessions {
		candidates[runID] = sess
	}
	m.mu.Unlock()

	var reclaimed []string
	for runID, sess := range candidates {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.page != nil && time.Since(sess.lastActive) >= m.idleTTL {
			if err := sess.page.Close(ctx); err != nil {
				log.Printf("WARN: failed to close idle session for run %s: %v", runID, err)
			}
			sess.page = nil
			reclaimed = append(reclaimed, runID)
		}
		dead := sess.page == nil
		sess.mu.Unlock()

		if dead {
			m.drop(runID, sess)
		}
	}
	return reclaimed
}

// Active reports the number of tracked sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes every session and then the underlying browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for runID, sess := range sessions {
		sess.mu.Lock()
		if sess.page != nil {
			if err := sess.page.Close(ctx); err != nil {
				log.Printf("WARN: failed to close session for run %s: %v", runID, err)
			}
			sess.page = nil
		}
		sess.mu.Unlock()
	}
	return m.driver.Shutdown(ctx)
}

func (m *Manager) drop(runID string, sess *session) {
	m.mu.Lock()
	if m.sessions[runID] == sess {
		delete(m.sessions, runID)
	}
	m.mu.Unlock()
}

func sessionUnavailable(err error) error {
	var se *domain.StepError
	if errors.As(err, &se) {
		return err
	}
	return domain.WrapStepError(domain.ErrKindSessionUnavailable, "browser session could not be created", err)
}

package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/uirun/uirun/internal/domain"
)

type fakePage struct {
	mu        sync.Mutex
	navigated []string
	closed    bool
	navErr    error
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *fakePage) ClickText(ctx context.Context, text string) error         { return nil }
func (p *fakePage) ClickSelector(ctx context.Context, selector string) error { return nil }
func (p *fakePage) TypeByID(ctx context.Context, field, value string) error  { return nil }
func (p *fakePage) WaitText(ctx context.Context, text string) error          { return nil }
func (p *fakePage) AssertText(ctx context.Context, text string) error        { return nil }
func (p *fakePage) WaitURLContains(ctx context.Context, frag string) error   { return nil }
func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error)           { return []byte{1}, nil }
func (p *fakePage) Settle(ctx context.Context)                               {}
func (p *fakePage) Info(ctx context.Context) (string, string)                { return "", "" }

func (p *fakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeDriver struct {
	mu       sync.Mutex
	pages    []*fakePage
	newErr   error
	navErr   error
	shutdown bool
}

func (d *fakeDriver) NewPage(ctx context.Context) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.newErr != nil {
		return nil, d.newErr
	}
	p := &fakePage{navErr: d.navErr}
	d.pages = append(d.pages, p)
	return p, nil
}

func (d *fakeDriver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdown = true
	return nil
}

func (d *fakeDriver) pageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pages)
}

func (d *fakeDriver) page(i int) *fakePage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pages[i]
}

func TestManagerAcquireCreatesSessionOnce(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	m := NewManager(driver, time.Minute, nil)

	lease, created, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if !created {
		t.Fatal("expected first acquire to create the session")
	}
	lease.Release()

	if driver.pageCount() != 1 {
		t.Fatalf("expected 1 page, got %d", driver.pageCount())
	}
	if got := driver.page(0).navigated; len(got) != 1 || got[0] != "https://example.com/" {
		t.Fatalf("unexpected navigations: %v", got)
	}

	lease, created, err = m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if created {
		t.Fatal("expected second acquire to reuse the session")
	}
	lease.Release()

	if driver.pageCount() != 1 {
		t.Fatalf("expected session reuse, got %d pages", driver.pageCount())
	}
}

func TestManagerAcquireSerializesPerRun(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	m := NewManager(driver, time.Minute, nil)

	lease, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	got := make(chan *Lease, 1)
	go func() {
		l, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
		if err != nil {
			t.Errorf("concurrent acquire failed: %v", err)
		}
		got <- l
	}()

	select {
	case <-got:
		t.Fatal("second acquire completed while the lease was held")
	case <-time.After(50 * time.Millisecond):
	}

	lease.Release()

	select {
	case l := <-got:
		l.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never completed after release")
	}

	if driver.pageCount() != 1 {
		t.Fatalf("expected a single shared page, got %d", driver.pageCount())
	}
}

func TestManagerCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	m := NewManager(driver, time.Minute, nil)

	lease, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	lease.Release()

	closed, err := m.Close(ctx, "run-1")
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !closed {
		t.Fatal("expected close to tear down the session")
	}
	if !driver.page(0).isClosed() {
		t.Fatal("expected the page to be closed")
	}

	closed, err = m.Close(ctx, "run-1")
	if err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if closed {
		t.Fatal("expected second close to be a no-op")
	}
	if m.Active() != 0 {
		t.Fatalf("expected no sessions, got %d", m.Active())
	}

	// A later acquire starts a fresh session.
	_, created, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire after close failed: %v", err)
	}
	if !created {
		t.Fatal("expected acquire after close to create a new session")
	}
}

func TestManagerCloseWaitsForStepInFlight(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	m := NewManager(driver, time.Minute, nil)

	lease, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if _, err := m.Close(ctx, "run-1"); err != nil {
			t.Errorf("close failed: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("close completed while a step held the lease")
	case <-time.After(50 * time.Millisecond):
	}
	if driver.page(0).isClosed() {
		t.Fatal("page closed under an active lease")
	}

	lease.Release()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close never completed after the lease was released")
	}
	if !driver.page(0).isClosed() {
		t.Fatal("expected the page to be closed after drain")
	}
}

func TestManagerReapIdleSkipsBusySessions(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	m := NewManager(driver, 10*time.Millisecond, nil)

	lease, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	time.Sleep(25 * time.Millisecond)
	if reclaimed := m.ReapIdle(ctx); len(reclaimed) != 0 {
		t.Fatalf("reaped a session with a step in flight: %v", reclaimed)
	}
	if driver.page(0).isClosed() {
		t.Fatal("busy session was closed")
	}

	lease.Release()
	time.Sleep(25 * time.Millisecond)

	reclaimed := m.ReapIdle(ctx)
	if len(reclaimed) != 1 || reclaimed[0] != "run-1" {
		t.Fatalf("expected run-1 to be reclaimed, got %v", reclaimed)
	}
	if !driver.page(0).isClosed() {
		t.Fatal("expected the idle page to be closed")
	}
	if m.Active() != 0 {
		t.Fatalf("expected no sessions, got %d", m.Active())
	}

	// The run recovers with a fresh session on the next acquire.
	_, created, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire after reap failed: %v", err)
	}
	if !created {
		t.Fatal("expected acquire after reap to create a new session")
	}
}

func TestManagerReapIdleKeepsFreshSessions(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	m := NewManager(driver, time.Minute, nil)

	lease, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	lease.Release()

	if reclaimed := m.ReapIdle(ctx); len(reclaimed) != 0 {
		t.Fatalf("reaped a fresh session: %v", reclaimed)
	}
	if m.Active() != 1 {
		t.Fatalf("expected the session to survive, got %d active", m.Active())
	}
}

func TestManagerAcquireDriverFailure(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{newErr: errors.New("chrome exploded")}
	m := NewManager(driver, time.Minute, nil)

	_, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err == nil {
		t.Fatal("expected acquire to fail")
	}
	if kind := domain.KindOf(err); kind != domain.ErrKindSessionUnavailable {
		t.Fatalf("expected SessionUnavailable, got %q", kind)
	}
	if m.Active() != 0 {
		t.Fatalf("expected no session registered, got %d", m.Active())
	}
}

func TestManagerPreflightBlocksSessionCreation(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	blocked := domain.NewStepError(domain.ErrKindSsrfBlocked, "address 127.0.0.1 is loopback")
	checks := 0
	m := NewManager(driver, time.Minute, func(ctx context.Context, url string) error {
		checks++
		return blocked
	})

	_, _, err := m.Acquire(ctx, "run-1", "http://127.0.0.1/")
	if kind := domain.KindOf(err); kind != domain.ErrKindSsrfBlocked {
		t.Fatalf("expected SsrfBlocked, got %v", err)
	}
	if driver.pageCount() != 0 {
		t.Fatalf("expected no page to be opened, got %d", driver.pageCount())
	}
	if m.Active() != 0 {
		t.Fatalf("expected no session registered, got %d", m.Active())
	}
	if checks != 1 {
		t.Fatalf("expected one preflight check, got %d", checks)
	}
}

func TestManagerPreflightRunsOncePerSession(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	checks := 0
	m := NewManager(driver, time.Minute, func(ctx context.Context, url string) error {
		checks++
		return nil
	})

	for i := 0; i < 3; i++ {
		lease, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
		if err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
		lease.Release()
	}
	if checks != 1 {
		t.Fatalf("expected preflight only on creation, got %d checks", checks)
	}

	if _, err := m.Close(ctx, "run-1"); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	lease, created, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire after close failed: %v", err)
	}
	lease.Release()
	if !created {
		t.Fatal("expected a fresh session after close")
	}
	if checks != 2 {
		t.Fatalf("expected preflight to rerun on re-creation, got %d checks", checks)
	}
}

func TestManagerNavigationFailureRegistersNothing(t *testing.T) {
	ctx := context.Background()
	navErr := domain.NewStepError(domain.ErrKindSessionUnavailable, "failed to open https://example.com/")
	driver := &fakeDriver{navErr: navErr}
	m := NewManager(driver, time.Minute, nil)

	_, _, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err == nil {
		t.Fatal("expected acquire to fail")
	}
	if kind := domain.KindOf(err); kind != domain.ErrKindSessionUnavailable {
		t.Fatalf("expected SessionUnavailable, got %q", kind)
	}
	if !driver.page(0).isClosed() {
		t.Fatal("expected the half-opened page to be closed")
	}
	if m.Active() != 0 {
		t.Fatalf("expected no session registered, got %d", m.Active())
	}

	// Once navigation works the run gets a session as usual.
	driver.mu.Lock()
	driver.navErr = nil
	driver.mu.Unlock()

	_, created, err := m.Acquire(ctx, "run-1", "https://example.com/")
	if err != nil {
		t.Fatalf("acquire after recovery failed: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh session after recovery")
	}
}

func TestManagerShutdownClosesEverything(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	m := NewManager(driver, time.Minute, nil)

	for _, runID := range []string{"run-1", "run-2"} {
		lease, _, err := m.Acquire(ctx, runID, "https://example.com/")
		if err != nil {
			t.Fatalf("acquire %s failed: %v", runID, err)
		}
		lease.Release()
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	for i := 0; i < driver.pageCount(); i++ {
		if !driver.page(i).isClosed() {
			t.Fatalf("page %d still open after shutdown", i)
		}
	}
	if !driver.shutdown {
		t.Fatal("expected the driver to be shut down")
	}
	if m.Active() != 0 {
		t.Fatalf("expected no sessions, got %d", m.Active())
	}
}

func TestXpathLiteralQuoting(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{`with "quotes"`, `'with "quotes"'`},
		{"it's", `"it's"`},
		{`both "and" it's`, `concat('both "and" it', "'", 's')`},
	}
	for _, tc := range cases {
		if got := xpathLiteral(tc.in); got != tc.want {
			t.Errorf("xpathLiteral(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

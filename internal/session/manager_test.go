package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kerosindigital/bsky.link/internal/bsky"
)

type fakeExchanger struct {
	creates    atomic.Int32
	refreshes  atomic.Int32
	delay      time.Duration
	createErr  error
	refreshErr error
	mu         sync.Mutex
	seen       []string
}

func (f *fakeExchanger) CreateSession(ctx context.Context, identifier, password string) (bsky.Session, error) {
	n := f.creates.Add(1)
	if f.createErr != nil {
		return bsky.Session{}, f.createErr
	}
	return bsky.Session{AccessJwt: "access-c" + strconv.Itoa(int(n)), RefreshJwt: "refresh-c" + strconv.Itoa(int(n))}, nil
}

func (f *fakeExchanger) RefreshSession(ctx context.Context, refreshToken string) (bsky.Session, error) {
	n := f.refreshes.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, refreshToken)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.refreshErr != nil {
		return bsky.Session{}, f.refreshErr
	}
	return bsky.Session{AccessJwt: "access-r" + strconv.Itoa(int(n)), RefreshJwt: "refresh-r" + strconv.Itoa(int(n))}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(f *fakeExchanger) (*Manager, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(f, "me.bsky.social", "app-pass", 90*time.Minute)
	m.now = c.now
	return m, c
}

func TestAcquireSetsExpiry(t *testing.T) {
	f := &fakeExchanger{}
	m, c := newTestManager(f)
	if !m.Expired() {
		t.Fatalf("new manager must start expired")
	}
	if err := m.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Token() != "access-c1" {
		t.Fatalf("token: %q", m.Token())
	}
	if want := c.t.Add(90 * time.Minute); !m.ExpiresAt().Equal(want) {
		t.Fatalf("expiresAt: got %s want %s", m.ExpiresAt(), want)
	}
}

func TestEnsureFreshNoExchangeWhileValid(t *testing.T) {
	f := &fakeExchanger{}
	m, c := newTestManager(f)
	_ = m.Acquire(context.Background())
	c.add(90 * time.Minute) // now == expiresAt is still valid
	if err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.refreshes.Load() != 0 || f.creates.Load() != 1 {
		t.Fatalf("unexpected exchanges: refresh=%d create=%d", f.refreshes.Load(), f.creates.Load())
	}
}

func TestEnsureFreshRefreshesOnceWhenExpired(t *testing.T) {
	f := &fakeExchanger{}
	m, c := newTestManager(f)
	_ = m.Acquire(context.Background())
	c.add(90*time.Minute + time.Second)
	if err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.refreshes.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", f.refreshes.Load())
	}
	if f.seen[0] != "refresh-c1" {
		t.Fatalf("refresh used %q", f.seen[0])
	}
	if m.Token() != "access-r1" || m.Expired() {
		t.Fatalf("state not updated: token=%q expired=%v", m.Token(), m.Expired())
	}
	if err := m.EnsureFresh(context.Background()); err != nil || f.refreshes.Load() != 1 {
		t.Fatalf("second call must be a no-op: err=%v refreshes=%d", err, f.refreshes.Load())
	}
}

func TestEnsureFreshWithoutRefreshTokenAcquires(t *testing.T) {
	f := &fakeExchanger{}
	m, _ := newTestManager(f)
	if err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.creates.Load() != 1 || f.refreshes.Load() != 0 {
		t.Fatalf("expected acquire: create=%d refresh=%d", f.creates.Load(), f.refreshes.Load())
	}
}

func TestRefreshFailureLeavesStateAndRetriesNextTime(t *testing.T) {
	f := &fakeExchanger{}
	m, c := newTestManager(f)
	_ = m.Acquire(context.Background())
	before := m.ExpiresAt()
	c.add(2 * time.Hour)
	f.refreshErr = errors.New("connection reset")
	if err := m.EnsureFresh(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if m.Token() != "access-c1" || !m.ExpiresAt().Equal(before) {
		t.Fatalf("failed refresh mutated state")
	}
	f.refreshErr = nil
	if err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.refreshes.Load() != 2 || m.Token() != "access-r2" {
		t.Fatalf("expected retry on next call: refreshes=%d token=%q", f.refreshes.Load(), m.Token())
	}
}

func TestRejectedRefreshTokenFallsBackToAcquire(t *testing.T) {
	f := &fakeExchanger{refreshErr: &bsky.APIError{Status: 400, Code: "ExpiredToken"}}
	m, c := newTestManager(f)
	_ = m.Acquire(context.Background())
	c.add(2 * time.Hour)
	if err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.creates.Load() != 2 || m.Token() != "access-c2" {
		t.Fatalf("expected re-acquire: creates=%d token=%q", f.creates.Load(), m.Token())
	}
}

func TestConcurrentEnsureFreshSharesOneRefresh(t *testing.T) {
	f := &fakeExchanger{delay: 50 * time.Millisecond}
	m, c := newTestManager(f)
	_ = m.Acquire(context.Background())
	c.add(2 * time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.EnsureFresh(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if got := f.refreshes.Load(); got != 1 {
		t.Fatalf("expected a single refresh, got %d", got)
	}
}

func TestCallerCancellationDoesNotAbortRefresh(t *testing.T) {
	f := &fakeExchanger{delay: 80 * time.Millisecond}
	m, c := newTestManager(f)
	_ = m.Acquire(context.Background())
	c.add(2 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.EnsureFresh(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	// the shared exchange keeps running; a patient caller joins it
	if err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.refreshes.Load() != 1 || m.Token() != "access-r1" {
		t.Fatalf("refreshes=%d token=%q", f.refreshes.Load(), m.Token())
	}
}

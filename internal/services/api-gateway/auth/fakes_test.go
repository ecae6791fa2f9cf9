package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	authcore "github.com/NordCoder/Gatekeeper/internal/auth"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memDirectory struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*user.User
	err    error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{byID: map[int64]*user.User{}}
}

func (d *memDirectory) failWith(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *memDirectory) taken(self int64, username, email string) bool {
	for _, u := range d.byID {
		if u.ID == self {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

func (d *memDirectory) Create(_ context.Context, u *user.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if d.taken(0, u.Username, u.Email) {
		return user.ErrConflict
	}
	d.nextID++
	u.ID = d.nextID
	cp := *u
	d.byID[u.ID] = &cp
	return nil
}

func (d *memDirectory) find(match func(*user.User) bool) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	for _, u := range d.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (d *memDirectory) GetByID(_ context.Context, id int64) (*user.User, error) {
	return d.find(func(u *user.User) bool { return u.ID == id })
}

func (d *memDirectory) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return d.find(func(u *user.User) bool { return u.Email == email })
}

func (d *memDirectory) GetByUsername(_ context.Context, username string) (*user.User, error) {
	return d.find(func(u *user.User) bool { return u.Username == username })
}

func (d *memDirectory) Update(_ context.Context, id int64, p user.Patch) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	var username, email string
	if p.Username != nil {
		username = *p.Username
	}
	if p.Email != nil {
		email = *p.Email
	}
	if d.taken(id, username, email) {
		return nil, user.ErrConflict
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	cp := *u
	return &cp, nil
}

func (d *memDirectory) Delete(_ context.Context, id int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byID[id]; !ok {
		return false, nil
	}
	delete(d.byID, id)
	return true, nil
}

func (d *memDirectory) List(_ context.Context) ([]*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make([]*user.User, 0, len(d.byID))
	for _, u := range d.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *memDirectory) HasRole(_ context.Context, role domainauth.Role) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	for _, u := range d.byID {
		if u.Role == role {
			return true, nil
		}
	}
	return false, nil
}

type memLedger struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*domainauth.LedgerEntry
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[int64]*domainauth.LedgerEntry{}}
}

func (l *memLedger) Record(_ context.Context, userID int64, token string, expiresAt time.Time) (*domainauth.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	e := &domainauth.LedgerEntry{ID: l.nextID, UserID: userID, TokenHash: authcore.HashToken(token), ExpiresAt: expiresAt}
	l.entries[e.ID] = e
	cp := *e
	return &cp, nil
}

func (l *memLedger) FindByValue(_ context.Context, token string) (*domainauth.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := authcore.HashToken(token)
	for _, e := range l.entries {
		if e.TokenHash == h {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domainauth.ErrEntryNotFound
}

func (l *memLedger) Revoke(_ context.Context, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; !ok {
		return false, nil
	}
	delete(l.entries, id)
	return true, nil
}

func (l *memLedger) RevokeAllForUser(_ context.Context, userID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := false
	for id, e := range l.entries {
		if e.UserID == userID {
			delete(l.entries, id)
			removed = true
		}
	}
	return removed, nil
}

func (l *memLedger) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, e := range l.entries {
		if e.ExpiresAt.Before(now) {
			delete(l.entries, id)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) IsLive(_ context.Context, token string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := authcore.HashToken(token)
	for _, e := range l.entries {
		if e.TokenHash == h {
			return e.ExpiresAt.After(now), nil
		}
	}
	return false, nil
}

func (l *memLedger) countFor(userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n
}

type passTx struct{ calls int }

func (t *passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []user.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev user.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []user.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]user.EventKind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

var errStorage = errors.New("connection refused")

type env struct {
	clock  *fakeClock
	users  *memDirectory
	ledger *memLedger
	tx     *passTx
	events *recordingPublisher
	codec  *authcore.Codec
	uc     *Usecase
	guard  *Guard
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		clock:  newClock(),
		users:  newMemDirectory(),
		ledger: newMemLedger(),
		tx:     &passTx{},
		events: &recordingPublisher{},
	}
	codec, err := authcore.NewCodec(authcore.CodecConfig{
		Secret:   []byte("unit-test-secret"),
		Issuer:   "gatekeeper",
		Audience: "gatekeeper-users",
		TTL:      time.Hour,
		Now:      e.clock.Now,
	})
	require.NoError(t, err)
	e.codec = codec

	e.uc, err = NewUseCase(e.users, e.ledger, authcore.NewHasher(bcrypt.MinCost), codec, Config{
		Events: e.events,
		Now:    e.clock.Now,
	})
	require.NoError(t, err)
	e.guard = NewGuard(e.uc, e.users, e.ledger, e.tx, GuardOpts{Events: e.events, Now: e.clock.Now})
	return e
}

// signup registers an account and logs it in.
func (e *env) signup(t *testing.T, username string) (int64, string) {
	t.Helper()
	id, err := e.uc.Register(context.Background(), username, emailOf(username), "correct-horse")
	require.NoError(t, err)
	return id, e.login(t, username)
}

// signupAdmin seeds the bootstrap admin and logs it in.
func (e *env) signupAdmin(t *testing.T, username string) (int64, string) {
	t.Helper()
	id, created, err := e.uc.BootstrapAdmin(context.Background(), BootstrapAccount{
		Username: username, Email: emailOf(username), Password: "correct-horse",
	})
	require.NoError(t, err)
	require.True(t, created)
	return id, e.login(t, username)
}

func (e *env) login(t *testing.T, username string) string {
	t.Helper()
	s, err := e.uc.Login(context.Background(), emailOf(username), "correct-horse")
	require.NoError(t, err)
	return s.Token
}

func emailOf(username string) string { return strings.ToLower(username) + "@example.com" }

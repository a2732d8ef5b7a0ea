// Package directory owns the in-memory user table and its persistence.
//
// Every mutation is staged on a copy of the table, serialized and saved to
// the backing store; the copy replaces the live table only after the save
// succeeds, so readers never observe a state that was not persisted.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"empire-mine/internal/domain"
)

const (
	bootstrapAdminEmail = "admin@empiremine.com"
	bootstrapAdminCode  = "ADMIN001"
	bootstrapBalance    = 10000
)

// Directory is the single source of truth for user records.
type Directory struct {
	mu    sync.RWMutex
	store domain.Store
	log   *zap.Logger
	now   func() time.Time

	state table
}

// table is treated as immutable once published; mutations go through clone.
type table struct {
	order   []string
	byID    map[string]domain.User
	byCode  map[string]string
	byEmail map[string]string
}

type Option func(*Directory)

func WithLogger(l *zap.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.log = l
		}
	}
}

// WithNowFunc overrides the clock used for bootstrap timestamps.
func WithNowFunc(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

func New(store domain.Store, opts ...Option) *Directory {
	d := &Directory{
		store: store,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
		state: newTable(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Load reads the users blob from the store. When no blob exists yet the
// bootstrap admin is seeded and persisted.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := d.store.Load(ctx, domain.UsersKey)
	if err != nil {
		return fmt.Errorf("%w: load users: %v", domain.ErrPersistence, err)
	}
	if raw == nil {
		next := newTable()
		next.put(d.bootstrapAdmin())
		if err := d.persist(ctx, next); err != nil {
			return err
		}
		d.state = next
		d.log.Info("user directory seeded", zap.String("admin_id", domain.BootstrapAdminID))
		return nil
	}

	var users []domain.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return fmt.Errorf("%w: decode users: %v", domain.ErrPersistence, err)
	}
	next := newTable()
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if _, dup := next.byID[u.ID]; dup {
			return fmt.Errorf("%w: decode users: id %s repeated: %w", domain.ErrPersistence, u.ID, domain.ErrInvalidUser)
		}
		if err := next.conflict(u); err != nil {
			return fmt.Errorf("%w: decode users: %w", domain.ErrPersistence, err)
		}
		next.put(u)
	}
	d.state = next
	d.log.Info("user directory loaded", zap.Int("users", len(next.order)))
	return nil
}

func (d *Directory) bootstrapAdmin() domain.User {
	now := d.now()
	return domain.User{
		ID:           domain.BootstrapAdminID,
		Email:        bootstrapAdminEmail,
		Name:         "Admin",
		Role:         domain.RoleAdmin,
		IsActivated:  true,
		Balance:      bootstrapBalance,
		ReferralCode: bootstrapAdminCode,
		ReferralLink: "https://empiremine.com/register?ref=" + domain.BootstrapAdminID,
		ActivatedAt:  &now,
		RegisteredAt: now,
	}
}

func (d *Directory) GetByID(_ context.Context, id string) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.state.byID[id]
	return u, ok
}

// GetByReferralCode matches codes case-insensitively.
func (d *Directory) GetByReferralCode(_ context.Context, code string) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.state.byCode[domain.NormalizeCode(code)]
	if !ok {
		return domain.User{}, false
	}
	return d.state.byID[id], true
}

func (d *Directory) GetByEmail(_ context.Context, email string) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.state.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, false
	}
	return d.state.byID[id], true
}

// All returns a snapshot in registration order.
func (d *Directory) All(_ context.Context) []domain.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.User, 0, len(d.state.order))
	for _, id := range d.state.order {
		out = append(out, d.state.byID[id])
	}
	return out
}

// Referees lists users whose referredBy resolves to code.
func (d *Directory) Referees(_ context.Context, code string) []domain.User {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.User
	for _, id := range d.state.order {
		u := d.state.byID[id]
		if domain.NormalizeCode(u.ReferredBy) == code {
			out = append(out, u)
		}
	}
	return out
}

// Upsert replaces the record for u.ID, creating it if new, then persists the table.
func (d *Directory) Upsert(ctx context.Context, u domain.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: empty id", domain.ErrInvalidUser)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commit(ctx, u)
}

// Update applies fn to a copy of the stored user and persists the result.
// If fn returns an error nothing is written and the error is returned as is.
func (d *Directory) Update(ctx context.Context, id string, fn func(u *domain.User) error) (domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.state.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err := fn(&cur); err != nil {
		return domain.User{}, err
	}
	cur.ID = id
	if err := d.commit(ctx, cur); err != nil {
		return domain.User{}, err
	}
	return cur, nil
}

// commit must be called with mu held for writing.
func (d *Directory) commit(ctx context.Context, u domain.User) error {
	if err := d.state.conflict(u); err != nil {
		return err
	}

	next := d.state.clone()
	next.put(u)
	if err := d.persist(ctx, next); err != nil {
		return err
	}
	d.state = next
	return nil
}

func (d *Directory) persist(ctx context.Context, t table) error {
	users := make([]domain.User, 0, len(t.order))
	for _, id := range t.order {
		users = append(users, t.byID[id])
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("%w: encode users: %v", domain.ErrPersistence, err)
	}
	if err := d.store.Save(ctx, domain.UsersKey, raw); err != nil {
		d.log.Error("persist users failed", zap.Error(err))
		return fmt.Errorf("%w: save users: %v", domain.ErrPersistence, err)
	}
	return nil
}

func newTable() table {
	return table{
		byID:    map[string]domain.User{},
		byCode:  map[string]string{},
		byEmail: map[string]string{},
	}
}

func (t table) clone() table {
	next := table{
		order:   append([]string(nil), t.order...),
		byID:    make(map[string]domain.User, len(t.byID)+1),
		byCode:  make(map[string]string, len(t.byCode)+1),
		byEmail: make(map[string]string, len(t.byEmail)+1),
	}
	for k, v := range t.byID {
		next.byID[k] = v
	}
	for k, v := range t.byCode {
		next.byCode[k] = v
	}
	for k, v := range t.byEmail {
		next.byEmail[k] = v
	}
	return next
}

// conflict reports a referral code or email already held by another user.
func (t table) conflict(u domain.User) error {
	if code := domain.NormalizeCode(u.ReferralCode); code != "" {
		if owner, ok := t.byCode[code]; ok && owner != u.ID {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateReferralCode, code)
		}
	}
	if email := domain.NormalizeEmail(u.Email); email != "" {
		if owner, ok := t.byEmail[email]; ok && owner != u.ID {
			return fmt.Errorf("%w: %s", domain.ErrEmailTaken, email)
		}
	}
	return nil
}

// put inserts or replaces u and keeps the secondary indexes in step.
func (t *table) put(u domain.User) {
	if prev, ok := t.byID[u.ID]; ok {
		if c := domain.NormalizeCode(prev.ReferralCode); c != "" && t.byCode[c] == u.ID {
			delete(t.byCode, c)
		}
		if e := domain.NormalizeEmail(prev.Email); e != "" && t.byEmail[e] == u.ID {
			delete(t.byEmail, e)
		}
	} else {
		t.order = append(t.order, u.ID)
	}
	t.byID[u.ID] = u
	if c := domain.NormalizeCode(u.ReferralCode); c != "" {
		t.byCode[c] = u.ID
	}
	if e := domain.NormalizeEmail(u.Email); e != "" {
		t.byEmail[e] = u.ID
	}
}

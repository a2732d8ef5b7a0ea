package directory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"empire-mine/internal/domain"
	"empire-mine/internal/repo"
)

var dummyTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// flakyStore delegates to a MemoryStore until failSave is set.
type flakyStore struct {
	*repo.MemoryStore
	failSave bool
	saves    int
}

func (f *flakyStore) Save(ctx context.Context, key string, value []byte) error {
	if f.failSave {
		return errors.New("disk full")
	}
	f.saves++
	return f.MemoryStore.Save(ctx, key, value)
}

func newLoaded(t *testing.T) (*Directory, *flakyStore) {
	t.Helper()
	st := &flakyStore{MemoryStore: repo.NewMemoryStore()}
	d := New(st, WithNowFunc(func() time.Time { return dummyTime }))
	require.NoError(t, d.Load(context.Background()))
	return d, st
}

func TestLoad_SeedsBootstrapAdmin(t *testing.T) {
	d, st := newLoaded(t)
	ctx := context.Background()

	admin, ok := d.GetByID(ctx, "admin_1")
	require.True(t, ok)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, admin.IsActivated)
	assert.Equal(t, int64(10000), admin.Balance)
	assert.Equal(t, "ADMIN001", admin.ReferralCode)
	assert.Equal(t, dummyTime, admin.RegisteredAt)

	raw, err := st.Load(ctx, domain.UsersKey)
	require.NoError(t, err)
	var persisted []domain.User
	require.NoError(t, json.Unmarshal(raw, &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, "admin_1", persisted[0].ID)
}

func TestLoad_ReadsExistingBlob(t *testing.T) {
	ctx := context.Background()
	st := repo.NewMemoryStore()
	users := []domain.User{
		{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA"},
		{ID: "u2", Email: "b@x.io", ReferralCode: "EMBBBBBB", ReferredBy: "EMAAAAAA"},
	}
	raw, _ := json.Marshal(users)
	require.NoError(t, st.Save(ctx, domain.UsersKey, raw))

	d := New(st)
	require.NoError(t, d.Load(ctx))

	_, ok := d.GetByID(ctx, "admin_1")
	assert.False(t, ok, "bootstrap must only run on an empty store")
	got := d.All(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].ID)
	assert.Equal(t, "u2", got[1].ID)
}

func TestLoad_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	st := repo.NewMemoryStore()
	require.NoError(t, st.Save(ctx, domain.UsersKey, []byte("{not json")))

	err := New(st).Load(ctx)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestLoad_RejectsDuplicates(t *testing.T) {
	tests := []struct {
		name  string
		users []domain.User
		want  error
	}{
		{
			name: "repeated id",
			users: []domain.User{
				{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA"},
				{ID: "u1", Email: "b@x.io", ReferralCode: "EMBBBBBB"},
			},
			want: domain.ErrInvalidUser,
		},
		{
			name: "shared referral code",
			users: []domain.User{
				{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA"},
				{ID: "u2", Email: "b@x.io", ReferralCode: "emaaaaaa"},
			},
			want: domain.ErrDuplicateReferralCode,
		},
		{
			name: "shared email",
			users: []domain.User{
				{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA"},
				{ID: "u2", Email: "A@X.io", ReferralCode: "EMBBBBBB"},
			},
			want: domain.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := repo.NewMemoryStore()
			raw, _ := json.Marshal(tt.users)
			require.NoError(t, st.Save(ctx, domain.UsersKey, raw))

			d := New(st)
			err := d.Load(ctx)
			assert.ErrorIs(t, err, domain.ErrPersistence)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, d.All(ctx))
		})
	}
}

func TestLookups(t *testing.T) {
	d, _ := newLoaded(t)
	ctx := context.Background()
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "u1", Email: "Jane@Example.com", ReferralCode: "EMABC123"}))

	tests := []struct {
		name   string
		lookup func() (domain.User, bool)
		wantID string
	}{
		{"by id", func() (domain.User, bool) { return d.GetByID(ctx, "u1") }, "u1"},
		{"by code exact", func() (domain.User, bool) { return d.GetByReferralCode(ctx, "EMABC123") }, "u1"},
		{"by code lower case", func() (domain.User, bool) { return d.GetByReferralCode(ctx, "emabc123") }, "u1"},
		{"by code padded", func() (domain.User, bool) { return d.GetByReferralCode(ctx, " EMabc123 ") }, "u1"},
		{"by email any case", func() (domain.User, bool) { return d.GetByEmail(ctx, "jane@example.COM") }, "u1"},
		{"unknown id", func() (domain.User, bool) { return d.GetByID(ctx, "nope") }, ""},
		{"unknown code", func() (domain.User, bool) { return d.GetByReferralCode(ctx, "EMZZZZZZ") }, ""},
		{"empty code", func() (domain.User, bool) { return d.GetByReferralCode(ctx, "") }, ""},
		{"unknown email", func() (domain.User, bool) { return d.GetByEmail(ctx, "x@y.z") }, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			u, ok := test.lookup()
			if test.wantID == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, test.wantID, u.ID)
		})
	}
}

func TestUpsert_ReplacesAndReindexes(t *testing.T) {
	d, st := newLoaded(t)
	ctx := context.Background()
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "u1", Email: "a@x.io", ReferralCode: "EMOLD001"}))
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "u1", Email: "b@x.io", ReferralCode: "EMNEW001", Balance: 7}))

	_, ok := d.GetByReferralCode(ctx, "EMOLD001")
	assert.False(t, ok)
	_, ok = d.GetByEmail(ctx, "a@x.io")
	assert.False(t, ok)
	u, ok := d.GetByReferralCode(ctx, "EMNEW001")
	require.True(t, ok)
	assert.Equal(t, int64(7), u.Balance)
	assert.Len(t, d.All(ctx), 2)
	assert.Equal(t, 3, st.saves, "seed plus one save per upsert")
}

func TestUpsert_RejectsConflicts(t *testing.T) {
	d, _ := newLoaded(t)
	ctx := context.Background()
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA"}))

	err := d.Upsert(ctx, domain.User{ID: "u2", Email: "b@x.io", ReferralCode: "emaaaaaa"})
	assert.ErrorIs(t, err, domain.ErrDuplicateReferralCode)

	err = d.Upsert(ctx, domain.User{ID: "u2", Email: "A@X.IO", ReferralCode: "EMBBBBBB"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	err = d.Upsert(ctx, domain.User{Email: "c@x.io"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, ok := d.GetByID(ctx, "u2")
	assert.False(t, ok)
}

func TestUpsert_PersistenceFailureLeavesMemoryUntouched(t *testing.T) {
	d, st := newLoaded(t)
	ctx := context.Background()
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA", Balance: 100}))

	st.failSave = true
	err := d.Upsert(ctx, domain.User{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA", Balance: 999})
	require.ErrorIs(t, err, domain.ErrPersistence)
	err = d.Upsert(ctx, domain.User{ID: "u2", Email: "b@x.io", ReferralCode: "EMBBBBBB"})
	require.ErrorIs(t, err, domain.ErrPersistence)

	u, _ := d.GetByID(ctx, "u1")
	assert.Equal(t, int64(100), u.Balance)
	_, ok := d.GetByReferralCode(ctx, "EMBBBBBB")
	assert.False(t, ok)
	assert.Len(t, d.All(ctx), 2)
}

func TestUpdate(t *testing.T) {
	d, st := newLoaded(t)
	ctx := context.Background()
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA", Balance: 10}))

	t.Run("applies mutation", func(t *testing.T) {
		got, err := d.Update(ctx, "u1", func(u *domain.User) error {
			u.Balance += 5
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(15), got.Balance)
		stored, _ := d.GetByID(ctx, "u1")
		assert.Equal(t, int64(15), stored.Balance)
	})

	t.Run("callback error aborts", func(t *testing.T) {
		before := st.saves
		boom := errors.New("boom")
		_, err := d.Update(ctx, "u1", func(u *domain.User) error {
			u.Balance = 0
			return boom
		})
		assert.ErrorIs(t, err, boom)
		stored, _ := d.GetByID(ctx, "u1")
		assert.Equal(t, int64(15), stored.Balance)
		assert.Equal(t, before, st.saves)
	})

	t.Run("id cannot be changed", func(t *testing.T) {
		got, err := d.Update(ctx, "u1", func(u *domain.User) error {
			u.ID = "other"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "u1", got.ID)
		_, ok := d.GetByID(ctx, "other")
		assert.False(t, ok)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := d.Update(ctx, "ghost", func(u *domain.User) error { return nil })
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("persistence failure", func(t *testing.T) {
		st.failSave = true
		defer func() { st.failSave = false }()
		_, err := d.Update(ctx, "u1", func(u *domain.User) error {
			u.Balance = 1
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrPersistence)
		stored, _ := d.GetByID(ctx, "u1")
		assert.Equal(t, int64(15), stored.Balance)
	})
}

func TestReferees(t *testing.T) {
	d, _ := newLoaded(t)
	ctx := context.Background()
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "a", Email: "a@x.io", ReferralCode: "EMAAAAAA"}))
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "b", Email: "b@x.io", ReferralCode: "EMBBBBBB", ReferredBy: "EMAAAAAA"}))
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "c", Email: "c@x.io", ReferralCode: "EMCCCCCC", ReferredBy: "emaaaaaa"}))
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "d", Email: "d@x.io", ReferralCode: "EMDDDDDD", ReferredBy: "EMBBBBBB"}))

	got := d.Referees(ctx, "EMAAAAAA")
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Empty(t, d.Referees(ctx, ""))
}

func TestPersistedBlobRoundTrips(t *testing.T) {
	d, st := newLoaded(t)
	ctx := context.Background()
	require.NoError(t, d.Upsert(ctx, domain.User{ID: "u1", Email: "a@x.io", ReferralCode: "EMAAAAAA", Balance: 42}))

	reloaded := New(st)
	require.NoError(t, reloaded.Load(ctx))
	u, ok := reloaded.GetByReferralCode(ctx, "EMAAAAAA")
	require.True(t, ok)
	assert.Equal(t, int64(42), u.Balance)
	assert.Len(t, reloaded.All(ctx), 2)
}

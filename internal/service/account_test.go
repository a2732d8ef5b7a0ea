package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"empire-mine/internal/domain"
)

func newAccounts(d domain.UserDirectory) *AccountService {
	return NewAccountService(d, WithNowFunc(func() time.Time { return dummyTime }))
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name        string
		args        RegisterArgs
		expectedErr error
		check       func(t *testing.T, u domain.User)
	}{
		{
			name: "without referral code",
			args: RegisterArgs{Email: "jane@example.com", Password: "pw", Name: "Jane"},
			check: func(t *testing.T, u domain.User) {
				assert.Equal(t, "Jane", u.Name)
				assert.Empty(t, u.ReferredBy)
				assert.Equal(t, domain.RoleUser, u.Role)
				assert.False(t, u.IsActivated)
				assert.Zero(t, u.Balance)
				assert.Regexp(t, `^EM[0-9A-Z]{6}$`, u.ReferralCode)
				assert.Equal(t, "https://empiremine.com/register?ref="+u.ID, u.ReferralLink)
				assert.Equal(t, dummyTime, u.RegisteredAt)
				assert.NotEmpty(t, u.PasswordHash)
				assert.NotEqual(t, "pw", u.PasswordHash)
			},
		},
		{
			name: "with lower-case referral code stores canonical code",
			args: RegisterArgs{Email: "kim@example.com", ReferralCode: "admin001"},
			check: func(t *testing.T, u domain.User) {
				assert.Equal(t, "ADMIN001", u.ReferredBy)
				assert.Equal(t, "kim", u.Name, "name defaults to email local part")
			},
		},
		{
			name:        "unknown referral code",
			args:        RegisterArgs{Email: "bob@example.com", ReferralCode: "EMNOPE00"},
			expectedErr: domain.ErrInvalidReferralCode,
		},
		{
			name:        "duplicate email",
			args:        RegisterArgs{Email: "ADMIN@empiremine.com"},
			expectedErr: domain.ErrEmailTaken,
		},
		{
			name:        "missing email",
			args:        RegisterArgs{Email: "  "},
			expectedErr: domain.ErrInvalidUser,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d, _ := newDirectory(t)
			svc := newAccounts(d)
			u, err := svc.Register(context.Background(), test.args)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				return
			}
			require.NoError(t, err)
			stored, ok := d.GetByID(context.Background(), u.ID)
			require.True(t, ok)
			assert.Equal(t, u, stored)
			if test.check != nil {
				test.check(t, u)
			}
		})
	}
}

func TestRegister_RetriesReferralCodeCollision(t *testing.T) {
	d, _ := newDirectory(t)
	svc := newAccounts(d)
	codes := []string{"ADMIN001", "ADMIN001", "EMFRESH1"}
	svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	u, err := svc.Register(context.Background(), RegisterArgs{Email: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "EMFRESH1", u.ReferralCode)
}

func TestRegister_GivesUpAfterRepeatedCollisions(t *testing.T) {
	d, _ := newDirectory(t)
	svc := newAccounts(d)
	svc.newCode = func() (string, error) { return "ADMIN001", nil }

	_, err := svc.Register(context.Background(), RegisterArgs{Email: "a@b.c"})
	assert.ErrorIs(t, err, domain.ErrDuplicateReferralCode)
}

func TestLogin(t *testing.T) {
	d, _ := newDirectory(t)
	svc := newAccounts(d)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterArgs{Email: "jane@example.com", Password: "hunter2"})
	require.NoError(t, err)

	u, err := svc.Login(ctx, "JANE@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)

	_, err = svc.Login(ctx, "jane@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "x")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	// the bootstrap admin has no password hash and logs in by email alone
	admin, err := svc.Login(ctx, "admin@empiremine.com", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}

func TestSetPassword(t *testing.T) {
	d, _ := newDirectory(t)
	svc := newAccounts(d)
	ctx := context.Background()

	require.NoError(t, svc.SetPassword(ctx, "admin_1", "s3cret-admin"))
	_, err := svc.Login(ctx, "admin@empiremine.com", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	admin, err := svc.Login(ctx, "admin@empiremine.com", "s3cret-admin")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), admin.Balance, "only the hash changes")

	assert.ErrorIs(t, svc.SetPassword(ctx, "admin_1", ""), domain.ErrInvalidUser)
	assert.ErrorIs(t, svc.SetPassword(ctx, "nobody", "whatever"), domain.ErrUserNotFound)
}

func TestCheckReferralCodeAndDownline(t *testing.T) {
	d, _ := newDirectory(t)
	svc := newAccounts(d)
	ctx := context.Background()

	assert.True(t, svc.CheckReferralCode(ctx, "admin001"))
	assert.False(t, svc.CheckReferralCode(ctx, "EMXXXXXX"))
	assert.False(t, svc.CheckReferralCode(ctx, " "))

	a, err := svc.Register(ctx, RegisterArgs{Email: "a@x.io", ReferralCode: "ADMIN001"})
	require.NoError(t, err)
	b, err := svc.Register(ctx, RegisterArgs{Email: "b@x.io", ReferralCode: a.ReferralCode})
	require.NoError(t, err)

	down, err := svc.Downline(ctx, "admin_1")
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, a.ID, down[0].ID)

	down, err = svc.Downline(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, b.ID, down[0].ID)

	_, err = svc.Downline(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRegisterThenActivateEndToEnd(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()
	accounts, ledger, activation := newAccounts(d), NewLedgerService(d), newActivation(d)

	a, err := accounts.Register(ctx, RegisterArgs{Email: "a@x.io", ReferralCode: "ADMIN001"})
	require.NoError(t, err)
	_, err = ledger.Deposit(ctx, a.ID, 500)
	require.NoError(t, err)

	res, err := activation.Activate(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Balance)
	require.Len(t, res.Credits, 1)

	admin, err := accounts.Get(ctx, "admin_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10200), admin.Balance)
	assert.Equal(t, int64(200), admin.TotalEarnings)
	assert.Equal(t, 1, admin.Referrals)
}

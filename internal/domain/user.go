package domain

import (
	"context"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	// ActivationFee is debited once when an account is activated (KES).
	ActivationFee int64 = 500

	// MaxBonusLevel bounds the referral cascade; ancestors beyond it receive nothing.
	MaxBonusLevel = 3

	// BootstrapAdminID is the account seeded into an empty store.
	BootstrapAdminID = "admin_1"

	// UsersKey is the backing-store key holding the serialized user table.
	UsersKey = "users"
)

// BonusTable maps cascade level to the bonus credited to the ancestor at that level.
var BonusTable = map[int]int64{
	1: 200,
	2: 150,
	3: 50,
}

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"` // "user"/"admin"
	PasswordHash  string     `json:"passwordHash,omitempty"`
	ReferralCode  string     `json:"referralCode"`
	ReferredBy    string     `json:"referredBy,omitempty"`
	ReferralLink  string     `json:"referralLink"`
	Balance       int64      `json:"balance"`
	IsActivated   bool       `json:"isActivated"`
	Referrals     int        `json:"referrals"`
	TotalEarnings int64      `json:"totalEarnings"`
	ActivatedAt   *time.Time `json:"activatedAt,omitempty"`
	RegisteredAt  time.Time  `json:"registeredAt"`
}

// Store is the key-value persistence port behind the user directory.
// Load returns nil, nil when the key has never been saved.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// UserDirectory is the lookup and mutation surface the services depend on.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (User, bool)
	GetByReferralCode(ctx context.Context, code string) (User, bool)
	GetByEmail(ctx context.Context, email string) (User, bool)
	Upsert(ctx context.Context, u User) error
	Update(ctx context.Context, id string, fn func(u *User) error) (User, error)
	All(ctx context.Context) []User
	Referees(ctx context.Context, code string) []User
}

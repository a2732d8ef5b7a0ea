package handler

import (
	"time"

	"empire-mine/internal/domain"
)

// UserView is the public shape of a user; the password hash never leaves the server.
type UserView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
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

func toView(u domain.User) UserView {
	return UserView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		ReferralCode:  u.ReferralCode,
		ReferredBy:    u.ReferredBy,
		ReferralLink:  u.ReferralLink,
		Balance:       u.Balance,
		IsActivated:   u.IsActivated,
		Referrals:     u.Referrals,
		TotalEarnings: u.TotalEarnings,
		ActivatedAt:   u.ActivatedAt,
		RegisteredAt:  u.RegisteredAt,
	}
}

func toViews(us []domain.User) []UserView {
	out := make([]UserView, 0, len(us))
	for _, u := range us {
		out = append(out, toView(u))
	}
	return out
}

type listOut struct {
	Total int        `json:"total"`
	Items []UserView `json:"items"`
}

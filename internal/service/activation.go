package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"empire-mine/internal/domain"
)

// BonusCredit records one ancestor credited by the referral cascade.
type BonusCredit struct {
	Level        int    `json:"level"`
	UserID       string `json:"userId"`
	ReferralCode string `json:"referralCode"`
	Amount       int64  `json:"amount"`
}

// ActivationResult describes a committed activation.
type ActivationResult struct {
	UserID      string        `json:"userId"`
	Balance     int64         `json:"balance"`
	ActivatedAt time.Time     `json:"activatedAt"`
	Credits     []BonusCredit `json:"credits"`
}

// ActivationService debits the activation fee and pays the referral cascade.
type ActivationService struct {
	// mu serialises activations so the cascade fires exactly once per user.
	mu  sync.Mutex
	dir domain.UserDirectory
	options
}

func NewActivationService(dir domain.UserDirectory, opts ...Option) *ActivationService {
	return &ActivationService{dir: dir, options: buildOptions(opts)}
}

// Activate moves userID from unactivated to activated.
//
// It fails with domain.ErrUserNotFound, domain.ErrAlreadyActivated or
// domain.ErrInsufficientBalance without touching any record. Once the
// activation is persisted, up to domain.MaxBonusLevel ancestors are credited
// by following referredBy codes; a code that does not resolve ends the
// cascade quietly. If crediting an ancestor cannot be persisted the cascade
// stops and the committed result is returned along with a wrapped
// domain.ErrPersistence.
func (s *ActivationService) Activate(ctx context.Context, userID string) (*ActivationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var referredBy string
	activated, err := s.dir.Update(ctx, userID, func(u *domain.User) error {
		if u.IsActivated {
			return domain.ErrAlreadyActivated
		}
		if u.Balance < domain.ActivationFee {
			return domain.ErrInsufficientBalance
		}
		referredBy = u.ReferredBy
		u.Balance -= domain.ActivationFee
		u.IsActivated = true
		u.ActivatedAt = &now
		return nil
	})
	activationsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		s.log.Warn("activation rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("activate user %s: %w", userID, err)
	}
	s.log.Info("account activated",
		zap.String("user_id", userID),
		zap.Int64("fee", domain.ActivationFee),
		zap.Int64("balance", activated.Balance),
	)

	res := &ActivationResult{
		UserID:      activated.ID,
		Balance:     activated.Balance,
		ActivatedAt: now,
	}
	credits, err := s.payCascade(ctx, referredBy)
	res.Credits = credits
	if err != nil {
		return res, fmt.Errorf("referral bonus for %s: %w", userID, err)
	}
	return res, nil
}

// payCascade walks at most MaxBonusLevel referredBy links starting at code.
// The level bound alone ends a cyclic chain; an ancestor met twice is credited twice.
func (s *ActivationService) payCascade(ctx context.Context, code string) ([]BonusCredit, error) {
	credits := make([]BonusCredit, 0, domain.MaxBonusLevel)
	for level := 1; level <= domain.MaxBonusLevel && code != ""; level++ {
		referrer, ok := s.dir.GetByReferralCode(ctx, code)
		if !ok {
			s.log.Debug("referral chain truncated", zap.Int("level", level), zap.String("code", code))
			break
		}

		bonus := domain.BonusTable[level]
		firstLevel := level == 1
		updated, err := s.dir.Update(ctx, referrer.ID, func(u *domain.User) error {
			u.Balance += bonus
			u.TotalEarnings += bonus
			if firstLevel {
				u.Referrals++
			}
			return nil
		})
		if err != nil {
			s.log.Error("referral bonus not persisted",
				zap.Int("level", level), zap.String("referrer_id", referrer.ID), zap.Error(err))
			return credits, err
		}

		referralBonusTotal.WithLabelValues(levelLabel(level)).Add(float64(bonus))
		s.log.Info("referral bonus credited",
			zap.Int("level", level),
			zap.String("referrer_id", updated.ID),
			zap.Int64("amount", bonus),
		)
		credits = append(credits, BonusCredit{
			Level:        level,
			UserID:       updated.ID,
			ReferralCode: updated.ReferralCode,
			Amount:       bonus,
		})
		code = updated.ReferredBy
	}
	return credits, nil
}

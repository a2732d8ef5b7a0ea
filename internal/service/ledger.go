package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"empire-mine/internal/domain"
)

// LedgerService applies balance movements that originate outside the
// activation flow: approved deposits, task/ad rewards, and game stakes.
//
// totalEarnings tracks inbound rewards only; deposits and debits never touch it.
type LedgerService struct {
	dir domain.UserDirectory
	options
}

func NewLedgerService(dir domain.UserDirectory, opts ...Option) *LedgerService {
	return &LedgerService{dir: dir, options: buildOptions(opts)}
}

func (s *LedgerService) Deposit(ctx context.Context, userID string, amount int64) (domain.User, error) {
	return s.apply(ctx, "deposit", userID, amount, func(u *domain.User) error {
		u.Balance += amount
		return nil
	})
}

func (s *LedgerService) Reward(ctx context.Context, userID string, amount int64) (domain.User, error) {
	return s.apply(ctx, "reward", userID, amount, func(u *domain.User) error {
		u.Balance += amount
		u.TotalEarnings += amount
		return nil
	})
}

func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64) (domain.User, error) {
	return s.apply(ctx, "debit", userID, amount, func(u *domain.User) error {
		if u.Balance < amount {
			return domain.ErrInsufficientBalance
		}
		u.Balance -= amount
		return nil
	})
}

func (s *LedgerService) apply(ctx context.Context, kind, userID string, amount int64, fn func(u *domain.User) error) (domain.User, error) {
	if amount <= 0 {
		return domain.User{}, domain.ErrInvalidAmount
	}
	u, err := s.dir.Update(ctx, userID, fn)
	if err != nil {
		return domain.User{}, fmt.Errorf("%s for %s: %w", kind, userID, err)
	}
	ledgerCreditsTotal.WithLabelValues(kind).Add(float64(amount))
	s.log.Info("ledger movement",
		zap.String("kind", kind),
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.Int64("balance", u.Balance),
	)
	return u, nil
}

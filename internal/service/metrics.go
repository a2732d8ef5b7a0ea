package service

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"empire-mine/internal/domain"
)

var (
	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "activations_total", Help: "Account activation attempts by outcome"},
		[]string{"outcome"},
	)
	referralBonusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "referral_bonus_kes_total", Help: "Referral bonus credited, by cascade level"},
		[]string{"level"},
	)
	ledgerCreditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ledger_kes_total", Help: "Ledger movements by kind"},
		[]string{"kind"},
	)
)

func init() { prometheus.MustRegister(activationsTotal, referralBonusTotal, ledgerCreditsTotal) }

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAlreadyActivated):
		return "already_activated"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}

func levelLabel(level int) string { return strconv.Itoa(level) }

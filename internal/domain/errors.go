package domain

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAlreadyActivated    = errors.New("account already activated")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPersistence wraps any failure writing to or reading from the backing store.
	ErrPersistence = errors.New("persistence failure")

	ErrInvalidReferralCode   = errors.New("invalid referral code")
	ErrDuplicateReferralCode = errors.New("referral code already in use")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidUser           = errors.New("invalid user record")
)

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"empire-mine/internal/domain"
	"empire-mine/pkg/utils"
)

const codeAttempts = 5

// RegisterArgs contain the arguments of the Register method.
type RegisterArgs struct {
	Email    string
	Password string
	// Name defaults to the local part of Email.
	Name string
	// ReferralCode is optional; when set it must belong to an existing user.
	ReferralCode string
}

// AccountService covers registration, login and referral lookups.
type AccountService struct {
	dir domain.UserDirectory
	options

	newID   func() string
	newCode func() (string, error)
}

func NewAccountService(dir domain.UserDirectory, opts ...Option) *AccountService {
	return &AccountService{
		dir:     dir,
		options: buildOptions(opts),
		newID:   utils.NewID,
		newCode: utils.NewReferralCode,
	}
}

// Register creates an unactivated user with a zero balance.
func (s *AccountService) Register(ctx context.Context, args RegisterArgs) (domain.User, error) {
	email := strings.TrimSpace(args.Email)
	if email == "" {
		return domain.User{}, fmt.Errorf("%w: email is required", domain.ErrInvalidUser)
	}
	if _, taken := s.dir.GetByEmail(ctx, email); taken {
		return domain.User{}, domain.ErrEmailTaken
	}

	var referredBy string
	if code := strings.TrimSpace(args.ReferralCode); code != "" {
		referrer, ok := s.dir.GetByReferralCode(ctx, code)
		if !ok {
			return domain.User{}, domain.ErrInvalidReferralCode
		}
		referredBy = referrer.ReferralCode
	}

	name := strings.TrimSpace(args.Name)
	if name == "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			name = email[:at]
		} else {
			name = "user"
		}
	}

	id := s.newID()
	u := domain.User{
		ID:           id,
		Email:        email,
		Name:         name,
		Role:         domain.RoleUser,
		ReferredBy:   referredBy,
		ReferralLink: utils.ReferralLink(id),
		RegisteredAt: s.now(),
	}
	if args.Password != "" {
		hash, err := utils.HashPassword(args.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("%w: %v", domain.ErrInvalidUser, err)
		}
		u.PasswordHash = hash
	}

	for attempt := 0; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return domain.User{}, fmt.Errorf("generate referral code: %w", err)
		}
		if _, clash := s.dir.GetByReferralCode(ctx, code); clash {
			if attempt+1 >= codeAttempts {
				return domain.User{}, domain.ErrDuplicateReferralCode
			}
			continue
		}
		u.ReferralCode = code

		err = s.dir.Upsert(ctx, u)
		if errors.Is(err, domain.ErrDuplicateReferralCode) && attempt+1 < codeAttempts {
			continue
		}
		if err != nil {
			return domain.User{}, fmt.Errorf("register %s: %w", email, err)
		}
		break
	}

	s.log.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("referral_code", u.ReferralCode),
		zap.String("referred_by", u.ReferredBy),
	)
	return u, nil
}

// Login resolves a user by email. The password is checked only for users
// registered with one; accounts without a hash log in by email alone.
func (s *AccountService) Login(ctx context.Context, email, password string) (domain.User, error) {
	u, ok := s.dir.GetByEmail(ctx, email)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if u.PasswordHash != "" && !utils.CheckPassword(password, u.PasswordHash) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

// SetPassword replaces the password of id. An empty password is rejected.
func (s *AccountService) SetPassword(ctx context.Context, id, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidUser)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidUser, err)
	}
	if _, err := s.dir.Update(ctx, id, func(u *domain.User) error {
		u.PasswordHash = hash
		return nil
	}); err != nil {
		return fmt.Errorf("set password %s: %w", id, err)
	}
	s.log.Info("password updated", zap.String("user_id", id))
	return nil
}

func (s *AccountService) Get(ctx context.Context, id string) (domain.User, error) {
	u, ok := s.dir.GetByID(ctx, id)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *AccountService) List(ctx context.Context) []domain.User { return s.dir.All(ctx) }

// CheckReferralCode reports whether code belongs to a registered user.
func (s *AccountService) CheckReferralCode(ctx context.Context, code string) bool {
	if domain.NormalizeCode(code) == "" {
		return false
	}
	_, ok := s.dir.GetByReferralCode(ctx, code)
	return ok
}

// Downline lists the users directly referred by id.
func (s *AccountService) Downline(ctx context.Context, id string) ([]domain.User, error) {
	u, ok := s.dir.GetByID(ctx, id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.dir.Referees(ctx, u.ReferralCode), nil
}

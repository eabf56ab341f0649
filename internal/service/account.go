package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"culturehub-api/internal/geo"
	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
	"culturehub-api/pkg/uid"
)

const (
	maxNameLength     = 50
	minPasswordLength = 6
)

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate changes the fields that are set.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// AccountService manages identities, profiles and saved locations.
type AccountService struct {
	accounts repository.AccountRepository
	now      Clock
	logger   *zap.Logger
	hashCost int
}

// NewAccountService creates an account service.
func NewAccountService(accounts repository.AccountRepository, now Clock, logger *zap.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		now:      now,
		logger:   logger.Named("accounts"),
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates an account. Emails are stored lower-cased.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}

	taken, err := s.accounts.EmailTaken(ctx, email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("email already registered: %w", model.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := &model.Account{
		ID:           uid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Favorites:    []string{},
		VisitedSites: []string{},
		Inventory:    []model.InventoryEntry{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.String("account_id", account.ID))
	return account, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords both
// yield model.ErrUnauthorized.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	}
	return account, nil
}

// Get returns an account by id.
func (s *AccountService) Get(ctx context.Context, id string) (*model.Account, error) {
	return s.accounts.Get(ctx, id)
}

// UpdateProfile changes name and/or email.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*model.Account, error) {
	var name, email string
	if upd.Name != nil {
		name = strings.TrimSpace(*upd.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
	}
	if upd.Email != nil {
		var err error
		if email, err = normalizeEmail(*upd.Email); err != nil {
			return nil, err
		}
		taken, err := s.accounts.EmailTaken(ctx, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("email already taken: %w", model.ErrConflict)
		}
	}

	var account *model.Account
	err := retryOnConflict(ctx, func() error {
		var err error
		if account, err = s.accounts.Get(ctx, id); err != nil {
			return err
		}
		if upd.Name != nil {
			account.Name = name
		}
		if upd.Email != nil {
			account.Email = email
		}
		account.UpdatedAt = s.now()
		return s.accounts.Save(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateLocation saves a new current location. The visited set is emptied
// in the same write.
func (s *AccountService) UpdateLocation(ctx context.Context, id string, p model.Point) (*model.Account, error) {
	if !geo.ValidPoint(p) {
		return nil, validationError("coordinates out of range")
	}

	var account *model.Account
	err := retryOnConflict(ctx, func() error {
		var err error
		if account, err = s.accounts.Get(ctx, id); err != nil {
			return err
		}
		account.SetLocation(p)
		account.UpdatedAt = s.now()
		return s.accounts.Save(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Count returns the number of accounts.
func (s *AccountService) Count(ctx context.Context) (int64, error) {
	return s.accounts.Count(ctx)
}

func validateName(name string) error {
	if name == "" {
		return validationError("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return validationError("name must be at most %d characters", maxNameLength)
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationError("invalid email address")
	}
	return email, nil
}

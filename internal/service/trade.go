package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
	"culturehub-api/pkg/uid"
)

const (
	// TradeCodePrefix is the prefix of every trade code.
	TradeCodePrefix = "TRD-"

	// DefaultTradeCodeTTL is how long a trade code stays valid.
	DefaultTradeCodeTTL = time.Hour

	tradeCodeBytes = 16
)

// TradeService runs the trade exchange. An account issues a code to
// receive; any other account holding a site can send one unit of it to the
// issuer by presenting the code. The first completed trade consumes it.
type TradeService struct {
	tx        repository.Transactor
	accounts  repository.AccountRepository
	codes     repository.TradeCodeRepository
	transfers repository.TransferRepository
	ttl       time.Duration
	now       Clock
	logger    *zap.Logger
}

// NewTradeService creates a trade service on the store.
func NewTradeService(store repository.Store, ttl time.Duration, now Clock, logger *zap.Logger) *TradeService {
	if ttl <= 0 {
		ttl = DefaultTradeCodeTTL
	}
	return &TradeService{
		tx:        store,
		accounts:  store.Accounts(),
		codes:     store.TradeCodes(),
		transfers: store.Transfers(),
		ttl:       ttl,
		now:       now,
		logger:    logger.Named("trades"),
	}
}

// GenerateCode mints a new code bound to the account. Outstanding codes of
// the same account stay valid.
func (s *TradeService) GenerateCode(ctx context.Context, accountID string) (*model.TradeCode, error) {
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw := make([]byte, tradeCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate trade code: %w", err)
		}

		now := s.now()
		code := &model.TradeCode{
			Code:      TradeCodePrefix + strings.ToUpper(hex.EncodeToString(raw)),
			AccountID: accountID,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
		}
		err := s.codes.Create(ctx, code)
		if errors.Is(err, model.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("trade code generated", zap.String("account_id", accountID), zap.Time("expires_at", code.ExpiresAt))
		return code, nil
	}
	return nil, fmt.Errorf("failed to generate a unique trade code: %w", model.ErrConflict)
}

// RedeemCode looks up the account a code is bound to. It never consumes
// the code.
func (s *TradeService) RedeemCode(ctx context.Context, code string) (*model.Account, error) {
	tc, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Get(ctx, tc.AccountID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidOrExpiredCode
	}
	return account, err
}

// ExecuteTrade moves one unit of siteID from the sender to the account the
// code is bound to, and consumes the code. Debit, credit, both history
// events, the code deletion and the ledger record commit together or not
// at all.
func (s *TradeService) ExecuteTrade(ctx context.Context, fromAccountID, code, siteID string) (*model.Transfer, error) {
	if siteID == "" {
		return nil, validationError("siteId is required")
	}

	var transfer *model.Transfer
	err := retryOnConflict(ctx, func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			tc, err := s.resolve(ctx, code)
			if err != nil {
				return err
			}
			if tc.AccountID == fromAccountID {
				return validationError("cannot trade with your own code")
			}

			from, err := s.accounts.Get(ctx, fromAccountID)
			if err != nil {
				return err
			}
			to, err := s.accounts.Get(ctx, tc.AccountID)
			if errors.Is(err, model.ErrNotFound) {
				return model.ErrInvalidOrExpiredCode
			}
			if err != nil {
				return err
			}

			now := s.now()
			if err := from.Debit(siteID, to.ID, now); err != nil {
				return err
			}
			to.Credit(siteID, from.ID, now)
			from.UpdatedAt = now
			to.UpdatedAt = now

			if err := s.accounts.Save(ctx, from); err != nil {
				return err
			}
			if err := s.accounts.Save(ctx, to); err != nil {
				return err
			}

			// A concurrent trade that consumed the code first wins.
			if err := s.codes.Delete(ctx, tc.Code); err != nil {
				if errors.Is(err, model.ErrNotFound) {
					return model.ErrInvalidOrExpiredCode
				}
				return err
			}

			transfer = &model.Transfer{
				ID:            uid.New(),
				SiteID:        siteID,
				FromAccountID: from.ID,
				ToAccountID:   to.ID,
				Code:          tc.Code,
				TransferredAt: now,
			}
			return s.transfers.Append(ctx, transfer)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trade completed",
		zap.String("site_id", siteID),
		zap.String("from_account_id", transfer.FromAccountID),
		zap.String("to_account_id", transfer.ToAccountID))
	return transfer, nil
}

// History returns the ledger entries the account took part in, newest
// first.
func (s *TradeService) History(ctx context.Context, accountID string) ([]model.Transfer, error) {
	return s.transfers.ListByAccount(ctx, accountID)
}

// resolve returns a code that exists and has not expired. Stores evict
// lazily, so expiry is always checked here.
func (s *TradeService) resolve(ctx context.Context, code string) (*model.TradeCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, model.ErrInvalidOrExpiredCode
	}

	tc, err := s.codes.Get(ctx, code)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, err
	}
	if tc.Expired(s.now()) {
		return nil, model.ErrInvalidOrExpiredCode
	}
	return tc, nil
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"culturehub-api/internal/cache"
	"culturehub-api/internal/model"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "cht_"

	// DefaultSessionTTL is the default session lifetime (7 days)
	DefaultSessionTTL = 7 * 24 * time.Hour

	sessionKeyPrefix = "session:"
)

// SessionService issues opaque bearer tokens and keeps their data in the
// cache, so a Redis-backed cache shares sessions across instances.
type SessionService struct {
	cache  cache.Cache
	ttl    time.Duration
	now    Clock
	logger *zap.Logger
}

// NewSessionService creates a session service.
func NewSessionService(c cache.Cache, ttl time.Duration, now Clock, logger *zap.Logger) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		cache:  c,
		ttl:    ttl,
		now:    now,
		logger: logger.Named("sessions"),
	}
}

// Issue creates a new session token for the account.
func (s *SessionService) Issue(ctx context.Context, account *model.Account) (string, *model.SessionData, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	now := s.now()
	data := &model.SessionData{
		AccountID: account.ID,
		Email:     account.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize session data: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+token, jsonData, s.ttl); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w: %w", model.ErrTransient, err)
	}

	s.logger.Debug("session issued", zap.String("account_id", account.ID), zap.Time("expires_at", data.ExpiresAt))
	return token, data, nil
}

// Validate returns the session behind token, or model.ErrUnauthorized.
func (s *SessionService) Validate(ctx context.Context, token string) (*model.SessionData, error) {
	if !strings.HasPrefix(token, TokenPrefix) {
		return nil, fmt.Errorf("invalid token format: %w", model.ErrUnauthorized)
	}

	key := sessionKeyPrefix + token
	jsonData, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("token not found or expired: %w", model.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w: %w", model.ErrTransient, err)
	}

	var data model.SessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse session data: %w", err)
	}

	if !s.now().Before(data.ExpiresAt) {
		_ = s.cache.Delete(ctx, key)
		return nil, fmt.Errorf("token expired: %w", model.ErrUnauthorized)
	}

	return &data, nil
}

// Revoke deletes a session. Unknown tokens are not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+token)
}

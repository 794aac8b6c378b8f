// Package service implements the authentication core: session issuance and
// resolution, and the login flow that ties the credential check, the attempt
// ledger, the abuse detector, and the notification sink together.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/store"
)

var (
	// ErrInvalidCredentials covers unknown username, inactive account, and
	// wrong password alike; the distinction must never reach the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccessKeyMismatch is returned when the account requires an access
	// key and the supplied one is absent or wrong.
	ErrAccessKeyMismatch = errors.New("access key incorrect")
	// ErrSessionInvalid is returned when a token is absent, tampered,
	// expired, revoked, or its owning admin has been deactivated.
	ErrSessionInvalid = errors.New("invalid session")
)

// AuthService owns session tokens and the login flow.
type AuthService struct {
	store    *store.Store
	detector *security.Detector
	notifier notify.Notifier
	logger   *slog.Logger
	secret   []byte
	lifetime time.Duration
}

// NewAuthService creates an AuthService. lifetime is the absolute session
// duration applied to both the JWT expiry and the stored session row.
func NewAuthService(st *store.Store, detector *security.Detector, notifier notify.Notifier, logger *slog.Logger, secret string, lifetime time.Duration) *AuthService {
	return &AuthService{
		store:    st,
		detector: detector,
		notifier: notifier,
		logger:   logger,
		secret:   []byte(secret),
		lifetime: lifetime,
	}
}

// SessionLifetime returns the configured session duration, used by the
// handler to set the cookie max-age.
func (s *AuthService) SessionLifetime() time.Duration {
	return s.lifetime
}

type sessionClaims struct {
	AdminID int64 `json:"admin_id"`
	jwt.RegisteredClaims
}

// LoginInput is the validated login request plus request metadata.
type LoginInput struct {
	Username  string
	Password  string
	AccessKey string
	IPAddress string
	UserAgent string
}

// LoginResult is returned on full login success.
type LoginResult struct {
	Admin     *model.Admin
	Token     string
	ExpiresAt time.Time
}

// Login runs the full credential check. Every attempt, successful or not, is
// recorded in the ledger as a single terminal row once the outcome is known.
// Credential failures feed the abuse detector; access-key mismatches are
// recorded but do not, since the caller has already proven a valid password.
// Storage errors during verification fail closed.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	admin, err := s.store.GetAdminByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.failAttempt(ctx, in)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up admin: %w", err)
	}

	if !admin.IsActive {
		s.failAttempt(ctx, in)
		return nil, ErrInvalidCredentials
	}

	if !auth.CheckPassword(in.Password, admin.PasswordHash) {
		s.failAttempt(ctx, in)
		return nil, ErrInvalidCredentials
	}

	// The base admin bypasses the access-key requirement.
	if !admin.IsBaseAdmin && admin.AccessKey != nil && *admin.AccessKey != "" {
		if in.AccessKey != *admin.AccessKey {
			s.recordAttempt(ctx, in, false)
			return nil, ErrAccessKeyMismatch
		}
	}

	s.recordAttempt(ctx, in, true)

	token, expiresAt, err := s.IssueSession(ctx, admin.ID, in.IPAddress, in.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		s.logger.Warn("update last login failed", "admin_id", admin.ID, "error", err)
	}
	s.recordActivity(ctx, &admin.ID, "LOGIN", in.IPAddress, in.UserAgent)
	s.notifier.LoginSuccess(admin.Username, in.IPAddress)

	return &LoginResult{Admin: admin, Token: token, ExpiresAt: expiresAt}, nil
}

// IssueSession signs a token for the admin and persists the session row.
func (s *AuthService) IssueSession(ctx context.Context, adminID int64, ip, userAgent string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.lifetime)

	claims := sessionClaims{
		AdminID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps concurrent sessions for one admin distinct;
			// iat/exp alone only have one-second precision and the token
			// column is unique.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "warden",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	session := &model.Session{
		AdminID:   adminID,
		Token:     token,
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: expiresAt,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// ResolveSession validates a bearer token. The signature check cheaply
// rejects tampering before touching storage, but the stored session row is
// the source of truth: a signed, unexpired token no longer grants access
// after explicit logout, and expiry and the owning admin's active flag are
// re-checked on every call.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*model.Session, *model.Admin, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, nil, ErrSessionInvalid
	}

	session, err := s.store.GetSessionByToken(ctx, token, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrSessionInvalid
		}
		return nil, nil, fmt.Errorf("look up session: %w", err)
	}

	if session.AdminID != claims.AdminID {
		return nil, nil, ErrSessionInvalid
	}

	admin, err := s.store.GetAdminByID(ctx, session.AdminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrSessionInvalid
		}
		return nil, nil, fmt.Errorf("look up session admin: %w", err)
	}
	if !admin.IsActive {
		return nil, nil, ErrSessionInvalid
	}

	return session, admin, nil
}

// RevokeSession deletes the session row. Idempotent; revoking an absent or
// garbage token is not an error.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	return s.store.DeleteSessionByToken(ctx, token)
}

// Logout revokes the session and records the audit-trail entry.
func (s *AuthService) Logout(ctx context.Context, token string, adminID *int64, ip, userAgent string) error {
	if token != "" {
		if err := s.RevokeSession(ctx, token); err != nil {
			return err
		}
	}
	s.recordActivity(ctx, adminID, "LOGOUT", ip, userAgent)
	return nil
}

// failAttempt records a failed credential attempt and re-evaluates the abuse
// detector for the source address.
func (s *AuthService) failAttempt(ctx context.Context, in LoginInput) {
	s.recordAttempt(ctx, in, false)
	s.detector.Evaluate(ctx, in.IPAddress)
}

// recordAttempt appends to the ledger, log-and-continue on error.
func (s *AuthService) recordAttempt(ctx context.Context, in LoginInput, success bool) {
	username := in.Username
	attempt := &model.LoginAttempt{
		IPAddress: in.IPAddress,
		Username:  &username,
		Success:   success,
		UserAgent: in.UserAgent,
	}
	if err := s.store.RecordAttempt(ctx, attempt); err != nil {
		s.logger.Error("record login attempt failed", "ip", in.IPAddress, "error", err)
	}
}

// recordActivity appends to the audit trail, best-effort.
func (s *AuthService) recordActivity(ctx context.Context, adminID *int64, action, ip, userAgent string) {
	entry := &model.ActivityEntry{
		AdminID:   adminID,
		Action:    action,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.store.RecordActivity(ctx, entry); err != nil {
		s.logger.Warn("record activity failed", "action", action, "error", err)
	}
}

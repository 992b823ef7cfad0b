package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/auth"
	"github.com/derushio/d-next-ddd-example-sub002/internal/config"
	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	pkglogger "github.com/derushio/d-next-ddd-example-sub002/pkg/logger"
)

const notifyTimeout = 10 * time.Second

// UserRepository is the account lookup used by sign-in and the admin bootstrap
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// CredentialChecker compares a password with an account's hash, or a dummy
// hash when user is nil
type CredentialChecker interface {
	Verify(password string, user *models.User) bool
}

// SessionIssuer signs the tokens returned on success
type SessionIssuer interface {
	IssueSession(user *models.User) (*auth.TokenPair, error)
}

// RateLimiter is the sliding window check consulted before any account work
type RateLimiter interface {
	CheckLimit(ctx context.Context, key string) (*models.RateLimitResult, error)
}

// LockoutTracker records attempts and derives lock state from them
type LockoutTracker interface {
	RecordAttempt(ctx context.Context, in AttemptInput) error
	CheckLockout(ctx context.Context, email string) (*models.LockoutStatus, error)
}

// SignInInput is one sign-in request
type SignInInput struct {
	Email     string `validate:"required,email,max=254"`
	Password  string `validate:"required,max=1024"`
	IPAddress string
	UserAgent string
}

// UserResponse is the public view of the signed-in account
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SignInResult represents the response from a successful sign-in
type SignInResult struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         *UserResponse `json:"user"`
}

// AuthService composes rate limiting, lockout, credential checks and session
// issuance into one sign-in decision
type AuthService struct {
	users        UserRepository
	verifier     CredentialChecker
	sessions     SessionIssuer
	limiter      RateLimiter
	lockout      LockoutTracker
	notifier     LockoutNotifier
	timing       *auth.TimingDelay
	rateLimitKey string
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
	notifyWG     sync.WaitGroup
}

// AuthServiceDeps bundles the collaborators of AuthService
type AuthServiceDeps struct {
	Users       UserRepository
	Verifier    CredentialChecker
	Sessions    SessionIssuer
	Limiter     RateLimiter
	Lockout     LockoutTracker
	Notifier    LockoutNotifier
	Timing      *auth.TimingDelay
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. rateLimitKey is one of the
// config.RateLimitKey* strategies.
func NewAuthService(deps AuthServiceDeps, rateLimitKey string) *AuthService {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewLogLockoutNotifier(deps.Logger)
	}
	return &AuthService{
		users:        deps.Users,
		verifier:     deps.Verifier,
		sessions:     deps.Sessions,
		limiter:      deps.Limiter,
		lockout:      deps.Lockout,
		notifier:     notifier,
		timing:       deps.Timing,
		rateLimitKey: rateLimitKey,
		logger:       deps.Logger,
		auditLogger:  deps.AuditLogger,
	}
}

// RateLimitKey builds the limiter key for a sign-in request. The ip strategy
// falls back to the email when no client address is known.
func RateLimitKey(strategy, ipAddress, email string) string {
	switch strategy {
	case config.RateLimitKeyEmail:
		return "signin:" + email
	case config.RateLimitKeyIPEmail:
		return "signin:" + ipAddress + ":" + email
	default:
		if ipAddress == "" {
			return "signin:" + email
		}
		return "signin:" + ipAddress
	}
}

// SignIn authenticates a user. Unknown accounts and wrong passwords both
// yield models.ErrInvalidCredentials after the same amount of hashing work.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	start := time.Now()
	in.Email = normalizeEmail(in.Email)

	if err := ValidateRequest(&in); err != nil {
		return nil, err
	}

	key := RateLimitKey(s.rateLimitKey, in.IPAddress, in.Email)
	limit, err := s.limiter.CheckLimit(ctx, key)
	if err != nil {
		s.logger.Error("rate limit check failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !limit.Allowed {
		s.auditLogger.LogRateLimited(ctx, key, limit.Current, limit.Limit, limit.RetryAfter)
		return nil, &models.RateLimitError{RetryAfter: limit.RetryAfter}
	}

	status, err := s.lockout.CheckLockout(ctx, in.Email)
	if err != nil {
		s.logger.Error("lockout check failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if status.IsLocked {
		s.audit(ctx, in, "", false, models.FailureReasonAccountLocked)
		return nil, &models.AccountLockedError{
			LockoutUntil:      *status.LockoutUntil,
			RemainingAttempts: status.RemainingAttempts,
		}
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if err != nil {
		user = nil
	}

	ok := s.verifier.Verify(in.Password, user)

	attempt := AttemptInput{
		Email:     in.Email,
		Success:   ok,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}
	if !ok {
		attempt.FailureReason = models.FailureReasonInvalidCredentials
	}
	if err := s.lockout.RecordAttempt(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !ok {
		userID := ""
		if user != nil {
			userID = user.ID
		}
		// unknown emails take the same re-check so the read pattern does not
		// reveal whether the account exists
		if status.RemainingAttempts <= 1 {
			s.handleLockTransition(ctx, in, user != nil)
		}
		s.audit(ctx, in, userID, false, models.FailureReasonInvalidCredentials)
		s.timing.WaitFrom(ctx, start)
		return nil, models.ErrInvalidCredentials
	}

	pair, err := s.sessions.IssueSession(user)
	if err != nil {
		s.logger.Error("failed to issue session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user signed in", slog.String("user_id", user.ID))
	s.audit(ctx, in, user.ID, true, "")

	return &SignInResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User: &UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
		},
	}, nil
}

// handleLockTransition re-reads the status after the failure that used the
// last allowance and, if the account is now locked and has an owner, notifies
// them in the background
func (s *AuthService) handleLockTransition(ctx context.Context, in SignInInput, notify bool) {
	status, err := s.lockout.CheckLockout(ctx, in.Email)
	if err != nil {
		s.logger.Warn("lockout re-check failed", slog.Any("error", err))
		return
	}
	if !status.IsLocked || status.LockoutUntil == nil {
		return
	}

	until := *status.LockoutUntil
	s.auditLogger.LogAccountLocked(ctx, in.Email, in.IPAddress, status.FailedAttempts, until)
	if !notify {
		return
	}

	notifyCtx := context.WithoutCancel(ctx)
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		ctx, cancel := context.WithTimeout(notifyCtx, notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyLockout(ctx, in.Email, until); err != nil {
			s.logger.Warn("lockout notification failed", slog.Any("error", err))
		}
	}()
}

// Drain blocks until in-flight lockout notifications have finished
func (s *AuthService) Drain() {
	s.notifyWG.Wait()
}

func (s *AuthService) audit(ctx context.Context, in SignInInput, userID string, success bool, reason string) {
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventSignIn,
		UserID:        userID,
		Email:         in.Email,
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
		Success:       success,
		FailureReason: reason,
	})
}

package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/auth"
	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	IssueSessionFunc func(user *models.User) (*auth.TokenPair, error)
}

func (m *MockSessionIssuer) IssueSession(user *models.User) (*auth.TokenPair, error) {
	if m.IssueSessionFunc != nil {
		return m.IssueSessionFunc(user)
	}
	return &auth.TokenPair{AccessToken: "access-" + user.ID, RefreshToken: "refresh-" + user.ID}, nil
}

// MockLockoutNotifier records notifications
type MockLockoutNotifier struct {
	mu    sync.Mutex
	Calls []string
	Err   error
}

func (m *MockLockoutNotifier) NotifyLockout(_ context.Context, email string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, email)
	return m.Err
}

func (m *MockLockoutNotifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// InMemoryAttemptRepository is a LoginAttemptRepository with the same
// boundary rules as the SQL implementations
type InMemoryAttemptRepository struct {
	mu       sync.Mutex
	Attempts []models.LoginAttempt

	// Err, when set, is returned by every method
	Err error

	snapshotCalls int
}

func NewInMemoryAttemptRepository() *InMemoryAttemptRepository {
	return &InMemoryAttemptRepository{}
}

func (r *InMemoryAttemptRepository) RecordAttempt(_ context.Context, attempt *models.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Attempts = append(r.Attempts, *attempt)
	return nil
}

func (r *InMemoryAttemptRepository) GetLockoutSnapshot(_ context.Context, email string, window time.Duration) (*models.LockoutSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshotCalls++
	if r.Err != nil {
		return nil, r.Err
	}

	var snap models.LockoutSnapshot
	for _, a := range r.Attempts {
		if a.Email != email || !a.Success {
			continue
		}
		if snap.LastSuccessAt == nil || a.CreatedAt.After(*snap.LastSuccessAt) {
			t := a.CreatedAt
			snap.LastSuccessAt = &t
		}
	}

	for _, a := range r.Attempts {
		if a.Email != email || a.Success {
			continue
		}
		if snap.LastSuccessAt != nil && a.CreatedAt.Before(*snap.LastSuccessAt) {
			continue
		}
		if snap.LastFailureAt == nil || a.CreatedAt.After(*snap.LastFailureAt) {
			t := a.CreatedAt
			snap.LastFailureAt = &t
		}
	}
	if snap.LastFailureAt == nil {
		return &snap, nil
	}

	boundary := snap.LastFailureAt.Add(-window)
	if snap.LastSuccessAt != nil && snap.LastSuccessAt.After(boundary) {
		boundary = *snap.LastSuccessAt
	}
	for _, a := range r.Attempts {
		if a.Email != email || a.Success || a.CreatedAt.Before(boundary) || a.CreatedAt.After(*snap.LastFailureAt) {
			continue
		}
		snap.FailedCount++
	}
	return &snap, nil
}

// SnapshotReads reports how many times GetLockoutSnapshot was called
func (r *InMemoryAttemptRepository) SnapshotReads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotCalls
}

func (r *InMemoryAttemptRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}

	kept := r.Attempts[:0]
	var deleted int64
	for _, a := range r.Attempts {
		if a.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.Attempts = kept
	return deleted, nil
}

// ForEmail returns a copy of the attempts for email in insertion order
func (r *InMemoryAttemptRepository) ForEmail(email string) []models.LoginAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LoginAttempt
	for _, a := range r.Attempts {
		if strings.EqualFold(a.Email, email) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

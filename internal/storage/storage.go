package storage

//go:generate mockgen -source=storage.go -destination=mocks/mock_store.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/akeren/waitlist-foundry/internal/models"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
)

var (
	ErrEmailExists = errors.New("email already on the waitlist")
	ErrNotFound    = errors.New("waitlist entry not found")
)

// ConflictMessage is the caller-facing text for a duplicate email.
const ConflictMessage = "This email is already on the waitlist"

// Store persists waitlist entries keyed by unique email.
type Store interface {
	// TryEnroll inserts entry if its email is absent and returns the row count
	// observed right after the insert. Duplicates yield a CONFLICT AppError.
	TryEnroll(ctx context.Context, entry *models.WaitlistEntry) (int64, error)
	Count(ctx context.Context) (int64, error)
	// Search matches term case-insensitively against name or email, newest first.
	Search(ctx context.Context, term string, page, pageSize int) ([]models.WaitlistEntry, int64, error)
	// BulkImport inserts entries one by one; duplicates are skipped, other
	// failures are recorded and the batch continues.
	BulkImport(ctx context.Context, entries []models.WaitlistEntry) (ImportResult, error)
	// DeleteByID is a no-op for unknown ids.
	DeleteByID(ctx context.Context, id uint) error

	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
	UseCaseBreakdown(ctx context.Context) ([]UseCaseCount, error)
	// ListAll returns every entry, oldest first.
	ListAll(ctx context.Context) ([]models.WaitlistEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

type ImportFailure struct {
	Index  int    `json:"index"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
	Failed   []ImportFailure `json:"failed"`
}

func (r ImportResult) Total() int {
	return r.Imported + r.Skipped + len(r.Failed)
}

type UseCaseCount struct {
	UseCase string `json:"use_case"`
	Count   int64  `json:"count"`
}

// NormalizePage clamps page and pageSize to at least 1 and returns the row offset.
func NormalizePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return page, pageSize, (page - 1) * pageSize
}

func NewConflictError(err error) *apperrors.AppError {
	if err == nil {
		err = ErrEmailExists
	}
	return apperrors.NewConflictError(ConflictMessage, errors.Join(ErrEmailExists, err))
}

// IsEmailExists reports whether err signals a duplicate email.
func IsEmailExists(err error) bool {
	return errors.Is(err, ErrEmailExists)
}

package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/internal/storage"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

const mysqlDuplicateEntry = 1062

// likeEscape reads the same in sqlite, postgres and mysql string literals.
const (
	likeEscape   = "!"
	searchClause = "LOWER(name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!'"
)

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// NowUTC is the gorm NowFunc for every connection. created_at must be stored
// in one zone for ordering and range counts to hold.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// stampUTC fills a missing created_at and moves a supplied one to UTC.
func stampUTC(entry *models.WaitlistEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = NowUTC()
		return
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
}

// containsPattern builds a LIKE pattern matching term literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// Dialector maps a dialect name onto its gorm driver.
func Dialector(dialect, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectSQLite, "sqlite3":
		return sqlite.Open(dsn), nil
	case DialectPostgres, "postgresql":
		return postgres.Open(dsn), nil
	case DialectMySQL:
		return gormmysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}
}

type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) TryEnroll(ctx context.Context, entry *models.WaitlistEntry) (int64, error) {
	if entry == nil {
		return 0, apperrors.NewInvalidRequestError("entry cannot be nil", nil)
	}
	entry.Email = strings.TrimSpace(entry.Email)

	var existing int64
	if err := s.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("email = ?", entry.Email).
		Count(&existing).Error; err != nil {
		return 0, apperrors.NewDatabaseError("unable to check waitlist entry", err)
	}

	if existing > 0 {
		return 0, storage.NewConflictError(nil)
	}

	stampUTC(entry)
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if isDuplicateKey(err) {
			return 0, storage.NewConflictError(err)
		}
		return 0, apperrors.NewDatabaseError("unable to create waitlist entry", err)
	}

	return s.Count(ctx)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.WaitlistEntry{}).Count(&total).Error; err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}
	return total, nil
}

func (s *Store) Search(ctx context.Context, term string, page, pageSize int) ([]models.WaitlistEntry, int64, error) {
	_, pageSize, offset := storage.NormalizePage(page, pageSize)
	term = strings.ToLower(strings.TrimSpace(term))

	// Applied separately to the count and the page query so the two
	// statements never share conditions.
	filter := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Model(&models.WaitlistEntry{})
		if term != "" {
			like := containsPattern(term)
			tx = tx.Where(searchClause, like, like)
		}
		return tx
	}

	var total int64
	if err := s.db.WithContext(ctx).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	entries := make([]models.WaitlistEntry, 0, pageSize)
	if err := s.db.WithContext(ctx).
		Scopes(filter).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, 0, apperrors.NewDatabaseError("unable to fetch waitlist entries", err)
	}

	return entries, total, nil
}

func (s *Store) BulkImport(ctx context.Context, entries []models.WaitlistEntry) (storage.ImportResult, error) {
	result := storage.ImportResult{Failed: []storage.ImportFailure{}}

	for i := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		entry := entries[i]
		entry.ID = 0
		entry.Email = strings.TrimSpace(entry.Email)
		stampUTC(&entry)

		err := s.db.WithContext(ctx).Create(&entry).Error
		switch {
		case err == nil:
			result.Imported++
		case isDuplicateKey(err):
			result.Skipped++
		default:
			result.Failed = append(result.Failed, storage.ImportFailure{
				Index:  i,
				Email:  entry.Email,
				Reason: "unable to store entry",
			})
		}
	}

	return result, nil
}

func (s *Store) DeleteByID(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Delete(&models.WaitlistEntry{}, id).Error; err != nil {
		return apperrors.NewDatabaseError("unable to delete waitlist entry", err)
	}
	return nil
}

func (s *Store) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Count(&total).Error; err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}
	return total, nil
}

func (s *Store) UseCaseBreakdown(ctx context.Context) ([]storage.UseCaseCount, error) {
	var rows []struct {
		UseCase string
		Total   int64
	}

	if err := s.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Select("use_case, COUNT(*) AS total").
		Group("use_case").
		Order("total DESC").
		Order("use_case ASC").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.NewDatabaseError("unable to aggregate use cases", err)
	}

	breakdown := make([]storage.UseCaseCount, 0, len(rows))
	for _, row := range rows {
		breakdown = append(breakdown, storage.UseCaseCount{UseCase: row.UseCase, Count: row.Total})
	}
	return breakdown, nil
}

func (s *Store) ListAll(ctx context.Context) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	if err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, apperrors.NewDatabaseError("unable to fetch waitlist entries", err)
	}
	return entries, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateKeyError(err) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

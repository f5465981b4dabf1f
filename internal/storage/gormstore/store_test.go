package gormstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/internal/storage"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type StoreTestSuite struct {
	suite.Suite
	db    *gorm.DB
	store *Store
	ctx   context.Context
}

func (suite *StoreTestSuite) SetupTest() {
	dsn := filepath.Join(suite.T().TempDir(), "waitlist.db") + "?_busy_timeout=5000"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        NowUTC,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)

	sqlDB, err := db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	suite.Require().NoError(db.AutoMigrate(models.ModelRegistry...))

	suite.db = db
	suite.store = New(db)
	suite.ctx = context.Background()
}

func (suite *StoreTestSuite) TearDownTest() {
	suite.NoError(suite.store.Close())
}

func newEntry(name, email string) *models.WaitlistEntry {
	return &models.WaitlistEntry{Name: name, Email: email, UseCase: "analytics"}
}

func (suite *StoreTestSuite) TestTryEnroll_AssignsIDAndPosition() {
	entry := newEntry("Ana", "ana@example.com")

	position, err := suite.store.TryEnroll(suite.ctx, entry)

	suite.Require().NoError(err)
	suite.Equal(int64(1), position)
	suite.NotZero(entry.ID)
	suite.False(entry.CreatedAt.IsZero())
}

func (suite *StoreTestSuite) TestTryEnroll_DuplicateEmailIsConflict() {
	_, err := suite.store.TryEnroll(suite.ctx, newEntry("Ana", "ana@example.com"))
	suite.Require().NoError(err)

	_, err = suite.store.TryEnroll(suite.ctx, newEntry("Ana Again", "ana@example.com"))

	suite.Require().Error(err)
	suite.True(apperrors.IsConflict(err))
	suite.True(storage.IsEmailExists(err))
	suite.Equal(storage.ConflictMessage, apperrors.GetHumanReadableMessage(err))

	count, err := suite.store.Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)
}

func (suite *StoreTestSuite) TestTryEnroll_TrimsEmailBeforeChecking() {
	_, err := suite.store.TryEnroll(suite.ctx, newEntry("Ana", "ana@example.com"))
	suite.Require().NoError(err)

	_, err = suite.store.TryEnroll(suite.ctx, newEntry("Ana", "  ana@example.com  "))
	suite.True(apperrors.IsConflict(err))
}

func (suite *StoreTestSuite) TestTryEnroll_AnaBoAnaScenario() {
	position, err := suite.store.TryEnroll(suite.ctx, newEntry("Ana", "ana@x.io"))
	suite.Require().NoError(err)
	suite.Equal(int64(1), position)

	position, err = suite.store.TryEnroll(suite.ctx, newEntry("Bo", "bo@x.io"))
	suite.Require().NoError(err)
	suite.Equal(int64(2), position)

	_, err = suite.store.TryEnroll(suite.ctx, newEntry("Ana", "ana@x.io"))
	suite.True(apperrors.IsConflict(err))

	count, err := suite.store.Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(2), count)
}

func (suite *StoreTestSuite) TestTryEnroll_PositionMatchesCountAfterInsert() {
	for i := 0; i < 5; i++ {
		position, err := suite.store.TryEnroll(suite.ctx, newEntry("User", fmt.Sprintf("user%d@example.com", i)))
		suite.Require().NoError(err)

		count, err := suite.store.Count(suite.ctx)
		suite.Require().NoError(err)
		suite.Equal(count, position)
	}
}

func (suite *StoreTestSuite) TestTryEnroll_ConcurrentSameEmailOnlyOneWins() {
	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.store.TryEnroll(context.Background(), newEntry("Racer", "race@example.com"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.IsConflict(err):
				conflicts++
			}
		}()
	}
	wg.Wait()

	suite.Equal(1, successes)
	suite.Equal(workers-1, conflicts)

	count, err := suite.store.Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)
}

func (suite *StoreTestSuite) TestSearch_EmptyTermReturnsEverythingNewestFirst() {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := newEntry(fmt.Sprintf("User %d", i), fmt.Sprintf("user%d@example.com", i))
		entry.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		suite.Require().NoError(suite.db.Create(entry).Error)
	}

	entries, total, err := suite.store.Search(suite.ctx, "", 1, 50)
	suite.Require().NoError(err)

	count, err := suite.store.Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(count, total)
	suite.Require().Len(entries, 3)
	suite.Equal("user2@example.com", entries[0].Email)
	suite.Equal("user0@example.com", entries[2].Email)
}

func (suite *StoreTestSuite) TestSearch_MatchesNameOrEmailCaseInsensitively() {
	suite.Require().NoError(suite.db.Create(newEntry("Alice Smith", "alice@acme.io")).Error)
	suite.Require().NoError(suite.db.Create(newEntry("Bob", "bob@SMITHWORKS.dev")).Error)
	suite.Require().NoError(suite.db.Create(newEntry("Carol", "carol@example.com")).Error)

	entries, total, err := suite.store.Search(suite.ctx, "smith", 1, 10)

	suite.Require().NoError(err)
	suite.Equal(int64(2), total)
	suite.Len(entries, 2)
}

func (suite *StoreTestSuite) TestSearch_PaginatesAndClamps() {
	for i := 0; i < 5; i++ {
		suite.Require().NoError(suite.db.Create(newEntry("User", fmt.Sprintf("user%d@example.com", i))).Error)
	}

	entries, total, err := suite.store.Search(suite.ctx, "", 2, 2)
	suite.Require().NoError(err)
	suite.Equal(int64(5), total)
	suite.Len(entries, 2)

	entries, _, err = suite.store.Search(suite.ctx, "", 3, 2)
	suite.Require().NoError(err)
	suite.Len(entries, 1)

	entries, _, err = suite.store.Search(suite.ctx, "", 0, 0)
	suite.Require().NoError(err)
	suite.Len(entries, 1)
}

func (suite *StoreTestSuite) TestSearch_TreatsWildcardsLiterally() {
	suite.Require().NoError(suite.db.Create(newEntry("Ana", "ana@x.com")).Error)
	suite.Require().NoError(suite.db.Create(newEntry("Snake_Case", "snake@x.com")).Error)
	suite.Require().NoError(suite.db.Create(newEntry("Hey!", "full%off@x.com")).Error)

	cases := map[string]int64{
		"_":     1,
		"%":     1,
		"!":     1,
		"a_a":   0,
		"e_c":   1,
		"l%o":   1,
		"ana":   1,
		"!%":    0,
		"":      3,
		"SNAKE": 1,
	}

	for term, want := range cases {
		entries, total, err := suite.store.Search(suite.ctx, term, 1, 50)
		suite.Require().NoError(err, term)
		suite.Equal(want, total, "term %q", term)
		suite.Len(entries, int(want), "term %q", term)
	}
}

func (suite *StoreTestSuite) TestBulkImport_SkipsDuplicates() {
	_, err := suite.store.TryEnroll(suite.ctx, newEntry("Existing", "existing@example.com"))
	suite.Require().NoError(err)

	batch := []models.WaitlistEntry{
		*newEntry("One", "one@example.com"),
		*newEntry("Existing", "existing@example.com"),
		*newEntry("Two", "two@example.com"),
		*newEntry("One Again", "one@example.com"),
	}

	result, err := suite.store.BulkImport(suite.ctx, batch)

	suite.Require().NoError(err)
	suite.Equal(2, result.Imported)
	suite.Equal(2, result.Skipped)
	suite.Empty(result.Failed)
	suite.Equal(len(batch), result.Total())

	count, err := suite.store.Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(3), count)
}

func (suite *StoreTestSuite) TestBulkImport_KeepsOriginalTimestamps() {
	joined := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := newEntry("Old", "old@example.com")
	entry.CreatedAt = joined

	_, err := suite.store.BulkImport(suite.ctx, []models.WaitlistEntry{*entry})
	suite.Require().NoError(err)

	all, err := suite.store.ListAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(all, 1)
	suite.True(joined.Equal(all[0].CreatedAt))
}

func (suite *StoreTestSuite) TestDeleteByID() {
	entry := newEntry("Ana", "ana@example.com")
	_, err := suite.store.TryEnroll(suite.ctx, entry)
	suite.Require().NoError(err)

	suite.NoError(suite.store.DeleteByID(suite.ctx, entry.ID+100))
	count, err := suite.store.Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)

	suite.NoError(suite.store.DeleteByID(suite.ctx, entry.ID))
	count, err = suite.store.Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(0), count)
}

func (suite *StoreTestSuite) TestCountCreatedBetween() {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{-time.Hour, time.Hour, 5 * time.Hour, 30 * time.Hour} {
		entry := newEntry("User", fmt.Sprintf("user%d@example.com", i))
		entry.CreatedAt = day.Add(offset)
		suite.Require().NoError(suite.db.Create(entry).Error)
	}

	total, err := suite.store.CountCreatedBetween(suite.ctx, day, day.Add(24*time.Hour))

	suite.Require().NoError(err)
	suite.Equal(int64(2), total)
}

func (suite *StoreTestSuite) TestCreatedAt_StoredInUTCOnNonUTCHost() {
	local := time.Local
	time.Local = time.FixedZone("UTC-5", -5*60*60)
	defer func() { time.Local = local }()

	ana := newEntry("Ana", "ana@x.io")
	_, err := suite.store.TryEnroll(suite.ctx, ana)
	suite.Require().NoError(err)
	suite.Equal(time.UTC, ana.CreatedAt.Location())

	bo := newEntry("Bo", "bo@x.io")
	bo.CreatedAt = time.Now().Add(-time.Hour).In(time.Local)
	_, err = suite.store.BulkImport(suite.ctx, []models.WaitlistEntry{*bo})
	suite.Require().NoError(err)

	now := time.Now()
	today, err := suite.store.CountCreatedBetween(suite.ctx, now.Add(-time.Minute), now.Add(time.Minute))
	suite.Require().NoError(err)
	suite.Equal(int64(1), today)

	entries, _, err := suite.store.Search(suite.ctx, "", 1, 50)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 2)
	suite.Equal("ana@x.io", entries[0].Email)
	suite.Equal("bo@x.io", entries[1].Email)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%ana%", containsPattern("ana"))
	assert.Equal(t, "%!_%", containsPattern("_"))
	assert.Equal(t, "%50!%!!%", containsPattern("50%!"))
}

func (suite *StoreTestSuite) TestUseCaseBreakdown() {
	useCases := []string{"analytics", "analytics", "support", "analytics", "support", "other"}
	for i, uc := range useCases {
		entry := newEntry("User", fmt.Sprintf("user%d@example.com", i))
		entry.UseCase = uc
		suite.Require().NoError(suite.db.Create(entry).Error)
	}

	breakdown, err := suite.store.UseCaseBreakdown(suite.ctx)

	suite.Require().NoError(err)
	suite.Equal([]storage.UseCaseCount{
		{UseCase: "analytics", Count: 3},
		{UseCase: "support", Count: 2},
		{UseCase: "other", Count: 1},
	}, breakdown)
}

func (suite *StoreTestSuite) TestListAll_OldestFirst() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 2; i >= 0; i-- {
		entry := newEntry("User", fmt.Sprintf("user%d@example.com", i))
		entry.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		suite.Require().NoError(suite.db.Create(entry).Error)
	}

	all, err := suite.store.ListAll(suite.ctx)

	suite.Require().NoError(err)
	suite.Require().Len(all, 3)
	suite.Equal("user0@example.com", all[0].Email)
	suite.Equal("user2@example.com", all[2].Email)
}

func (suite *StoreTestSuite) TestPing() {
	suite.NoError(suite.store.Ping(suite.ctx))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestDialector(t *testing.T) {
	for _, dialect := range []string{"sqlite", "SQLite3", "postgres", "postgresql", "mysql"} {
		d, err := Dialector(dialect, "dsn")
		if err != nil {
			t.Fatalf("expected dialect %q to be supported: %v", dialect, err)
		}
		if d == nil {
			t.Fatalf("expected dialector for %q", dialect)
		}
	}

	if _, err := Dialector("oracle", "dsn"); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}

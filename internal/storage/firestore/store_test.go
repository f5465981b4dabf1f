package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/internal/storage"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentID_IsStablePerEmail(t *testing.T) {
	assert.Equal(t, DocumentID("ana@example.com"), DocumentID("ana@example.com"))
	assert.NotEqual(t, DocumentID("ana@example.com"), DocumentID("bo@example.com"))
	assert.Len(t, DocumentID("ana@example.com"), 64)
}

func TestDocumentRoundTrip(t *testing.T) {
	company := "Acme"
	entry := &models.WaitlistEntry{
		ID:        7,
		Name:      "Ana",
		Email:     "ana@example.com",
		Company:   &company,
		UseCase:   "analytics",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	assert.Equal(t, *entry, toDocument(entry).toModel())
}

func searchFixture() []models.WaitlistEntry {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return []models.WaitlistEntry{
		{ID: 1, Name: "Alice Smith", Email: "alice@acme.io", CreatedAt: base},
		{ID: 2, Name: "Bob", Email: "bob@SMITHWORKS.dev", CreatedAt: base.Add(time.Hour)},
		{ID: 3, Name: "Carol", Email: "carol@example.com", CreatedAt: base.Add(2 * time.Hour)},
		{ID: 4, Name: "Dan_Smith", Email: "dan@example.com", CreatedAt: base.Add(2 * time.Hour)},
	}
}

func emails(entries []models.WaitlistEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Email)
	}
	return out
}

func TestSearchPage(t *testing.T) {
	tests := []struct {
		name      string
		term      string
		page      int
		pageSize  int
		wantTotal int64
		want      []string
	}{
		{name: "empty term newest first, id breaks ties", page: 1, pageSize: 50, wantTotal: 4,
			want: []string{"dan@example.com", "carol@example.com", "bob@SMITHWORKS.dev", "alice@acme.io"}},
		{name: "case-insensitive name or email", term: " SMITH ", page: 1, pageSize: 50, wantTotal: 3,
			want: []string{"dan@example.com", "bob@SMITHWORKS.dev", "alice@acme.io"}},
		{name: "wildcards are literal", term: "_", page: 1, pageSize: 50, wantTotal: 1,
			want: []string{"dan@example.com"}},
		{name: "second page", page: 2, pageSize: 3, wantTotal: 4,
			want: []string{"alice@acme.io"}},
		{name: "page past the end", page: 5, pageSize: 2, wantTotal: 4, want: []string{}},
		{name: "non-positive paging clamps to one row", page: 0, pageSize: 0, wantTotal: 4,
			want: []string{"dan@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, total := searchPage(searchFixture(), tt.term, tt.page, tt.pageSize)

			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.want, emails(entries))
		})
	}
}

func TestTally(t *testing.T) {
	breakdown := tally([]string{"support", "analytics", "other", "analytics", "support", "analytics", "beta"})

	assert.Equal(t, []storage.UseCaseCount{
		{UseCase: "analytics", Count: 3},
		{UseCase: "support", Count: 2},
		{UseCase: "beta", Count: 1},
		{UseCase: "other", Count: 1},
	}, breakdown)
	assert.Empty(t, tally(nil))
}

func TestOpen_RequiresProjectID(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

// Runs against the emulator only: FIRESTORE_EMULATOR_HOST=localhost:8080.
func TestStore_AgainstEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "waitlist-test")
	require.NoError(t, err)

	collection := fmt.Sprintf("waitlist_%d", time.Now().UnixNano())
	store := New(client, collection)
	defer store.Close()

	position, err := store.TryEnroll(ctx, &models.WaitlistEntry{Name: "Ana", Email: "ana@x.io", UseCase: "analytics"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), position)

	position, err = store.TryEnroll(ctx, &models.WaitlistEntry{Name: "Bo", Email: "bo@x.io", UseCase: "support"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), position)

	_, err = store.TryEnroll(ctx, &models.WaitlistEntry{Name: "Ana", Email: "ana@x.io", UseCase: "analytics"})
	assert.True(t, apperrors.IsConflict(err))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	result, err := store.BulkImport(ctx, []models.WaitlistEntry{
		{Name: "Bo", Email: "bo@x.io", UseCase: "support"},
		{Name: "Cy", Email: "cy@x.io", UseCase: "support"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	entries, total, err := store.Search(ctx, "", 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 3)
	assert.Equal(t, "cy@x.io", entries[0].Email)

	require.NoError(t, store.DeleteByID(ctx, 9999))
	require.NoError(t, store.DeleteByID(ctx, entries[0].ID))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

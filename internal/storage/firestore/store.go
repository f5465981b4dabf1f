package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/internal/storage"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection = "waitlist"
	countersDoc       = "_counters/waitlist"
)

type Config struct {
	ProjectID       string `env:"FIRESTORE_PROJECT_ID"`
	CredentialsFile string `env:"FIREBASE_SERVICE_ACCOUNT_PATH"`
	Collection      string `env:"FIRESTORE_COLLECTION" envDefault:"waitlist"`
}

// document is the stored shape. Firestore cannot encode uint, so ids are int64.
type document struct {
	ID        int64     `firestore:"id"`
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Company   *string   `firestore:"company"`
	UseCase   string    `firestore:"useCase"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func toDocument(e *models.WaitlistEntry) document {
	return document{
		ID:        int64(e.ID),
		Name:      e.Name,
		Email:     e.Email,
		Company:   e.Company,
		UseCase:   e.UseCase,
		CreatedAt: e.CreatedAt,
	}
}

func (d document) toModel() models.WaitlistEntry {
	return models.WaitlistEntry{
		ID:        uint(d.ID),
		Name:      d.Name,
		Email:     d.Email,
		Company:   d.Company,
		UseCase:   d.UseCase,
		CreatedAt: d.CreatedAt,
	}
}

// Store keeps one document per email, keyed by the email's sha256 so that
// Create enforces uniqueness. Numeric ids come from a counter document
// updated in the same transaction.
type Store struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

var _ storage.Store = (*Store)(nil)

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("firestore: FIRESTORE_PROJECT_ID is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}

	return New(client, cfg.Collection), nil
}

func New(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = defaultCollection
	}
	return &Store{
		client:     client,
		collection: collection,
		now:        time.Now,
	}
}

func DocumentID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

func (s *Store) entries() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *Store) counter() *firestore.DocumentRef {
	return s.client.Doc(countersDoc)
}

// insert reports storage.ErrEmailExists when the email document is present.
func (s *Store) insert(ctx context.Context, entry *models.WaitlistEntry) error {
	entry.Email = strings.TrimSpace(entry.Email)
	ref := s.entries().Doc(DocumentID(entry.Email))

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err == nil {
			return storage.ErrEmailExists
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		next := int64(1)
		snap, err := tx.Get(s.counter())
		switch {
		case err == nil:
			last, dataErr := snap.DataAt("last")
			if dataErr != nil {
				return dataErr
			}
			if n, ok := last.(int64); ok {
				next = n + 1
			}
		case status.Code(err) != codes.NotFound:
			return err
		}

		entry.ID = uint(next)
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = s.now().UTC()
		}

		if err := tx.Set(s.counter(), map[string]interface{}{"last": next}); err != nil {
			return err
		}
		return tx.Create(ref, toDocument(entry))
	})
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, storage.ErrEmailExists) || status.Code(err) == codes.AlreadyExists
}

func (s *Store) TryEnroll(ctx context.Context, entry *models.WaitlistEntry) (int64, error) {
	if entry == nil {
		return 0, apperrors.NewInvalidRequestError("entry cannot be nil", nil)
	}

	if err := s.insert(ctx, entry); err != nil {
		if isAlreadyExists(err) {
			return 0, storage.NewConflictError(err)
		}
		return 0, apperrors.NewDatabaseError("unable to create waitlist entry", err)
	}

	return s.Count(ctx)
}

func (s *Store) count(ctx context.Context, q firestore.Query) (int64, error) {
	result, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, err
	}

	value, ok := result["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("firestore: unexpected count result %T", result["all"])
	}
	return value.GetIntegerValue(), nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	total, err := s.count(ctx, s.entries().Query)
	if err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}
	return total, nil
}

func (s *Store) all(ctx context.Context, direction firestore.Direction) ([]models.WaitlistEntry, error) {
	snaps, err := s.entries().OrderBy("createdAt", direction).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	entries := make([]models.WaitlistEntry, 0, len(snaps))
	for _, snap := range snaps {
		var doc document
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		entries = append(entries, doc.toModel())
	}
	return entries, nil
}

// Search filters in memory; Firestore has no substring matching.
func (s *Store) Search(ctx context.Context, term string, page, pageSize int) ([]models.WaitlistEntry, int64, error) {
	all, err := s.all(ctx, firestore.Desc)
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError("unable to fetch waitlist entries", err)
	}

	entries, total := searchPage(all, term, page, pageSize)
	return entries, total, nil
}

// searchPage orders entries newest first, keeps those whose name or email
// contains term case-insensitively and cuts out the requested page.
func searchPage(all []models.WaitlistEntry, term string, page, pageSize int) ([]models.WaitlistEntry, int64) {
	_, pageSize, offset := storage.NormalizePage(page, pageSize)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	term = strings.ToLower(strings.TrimSpace(term))
	matched := all[:0]
	for _, e := range all {
		if term == "" ||
			strings.Contains(strings.ToLower(e.Name), term) ||
			strings.Contains(strings.ToLower(e.Email), term) {
			matched = append(matched, e)
		}
	}

	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.WaitlistEntry{}, total
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total
}

func (s *Store) BulkImport(ctx context.Context, entries []models.WaitlistEntry) (storage.ImportResult, error) {
	result := storage.ImportResult{Failed: []storage.ImportFailure{}}

	for i := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		entry := entries[i]
		entry.ID = 0

		err := s.insert(ctx, &entry)
		switch {
		case err == nil:
			result.Imported++
		case isAlreadyExists(err):
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
	snaps, err := s.entries().Where("id", "==", int64(id)).Documents(ctx).GetAll()
	if err != nil {
		return apperrors.NewDatabaseError("unable to delete waitlist entry", err)
	}

	for _, snap := range snaps {
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return apperrors.NewDatabaseError("unable to delete waitlist entry", err)
		}
	}
	return nil
}

func (s *Store) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	q := s.entries().Where("createdAt", ">=", from).Where("createdAt", "<", to)

	total, err := s.count(ctx, q)
	if err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}
	return total, nil
}

func (s *Store) UseCaseBreakdown(ctx context.Context) ([]storage.UseCaseCount, error) {
	snaps, err := s.entries().Select("useCase").Documents(ctx).GetAll()
	if err != nil {
		return nil, apperrors.NewDatabaseError("unable to aggregate use cases", err)
	}

	useCases := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		v, err := snap.DataAt("useCase")
		if err != nil {
			continue
		}
		if uc, ok := v.(string); ok {
			useCases = append(useCases, uc)
		}
	}
	return tally(useCases), nil
}

// tally counts use cases, most common first and alphabetical on ties.
func tally(useCases []string) []storage.UseCaseCount {
	counts := make(map[string]int64)
	for _, uc := range useCases {
		counts[uc]++
	}

	breakdown := make([]storage.UseCaseCount, 0, len(counts))
	for uc, n := range counts {
		breakdown = append(breakdown, storage.UseCaseCount{UseCase: uc, Count: n})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count == breakdown[j].Count {
			return breakdown[i].UseCase < breakdown[j].UseCase
		}
		return breakdown[i].Count > breakdown[j].Count
	})
	return breakdown
}

func (s *Store) ListAll(ctx context.Context) ([]models.WaitlistEntry, error) {
	entries, err := s.all(ctx, firestore.Asc)
	if err != nil {
		return nil, apperrors.NewDatabaseError("unable to fetch waitlist entries", err)
	}
	return entries, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.counter().Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

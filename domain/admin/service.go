package admin

import (
	"bytes"
	"context"
	"math"
	"time"

	"github.com/akeren/waitlist-foundry/domain/waitlist"
	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/internal/storage"
	"github.com/akeren/waitlist-foundry/internal/transfer"
	"github.com/akeren/waitlist-foundry/pkg/constants"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/akeren/waitlist-foundry/pkg/utils"
)

const recentSignupsLimit = 10

type AdminService interface {
	// Stats summarizes signups for the dashboard. Day boundaries are UTC.
	Stats(ctx context.Context) (*StatsResponse, error)

	ListUsers(ctx context.Context, search string, page, limit int) (*UsersResponse, error)

	// DeleteUser succeeds for unknown ids.
	DeleteUser(ctx context.Context, id uint) error

	ExportCSV(ctx context.Context) (*ExportFile, error)

	// Import validates rows and bulk inserts the valid ones. Invalid rows are
	// reported as failed with their position in rows.
	Import(ctx context.Context, rows []transfer.Row) (*ImportResponse, error)
}

type adminService struct {
	logger *log.Logger
	store  storage.Store
	now    func() time.Time
}

func NewAdminService(logger *log.Logger, store storage.Store) AdminService {
	return &adminService{logger: logger, store: store, now: time.Now}
}

func (s *adminService) Stats(ctx context.Context) (*StatsResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.AddDate(0, 0, 1)
	weekStart := startOfDay.AddDate(0, 0, -6)
	lastWeekStart := weekStart.AddDate(0, 0, -7)

	total, err := s.store.Count(ctx)
	if err != nil {
		logger.Error("Failed to count waitlist entries", "error", err)
		return nil, err
	}

	today, err := s.store.CountCreatedBetween(ctx, startOfDay, endOfDay)
	if err != nil {
		logger.Error("Failed to count today's signups", "error", err)
		return nil, err
	}

	thisWeek, err := s.store.CountCreatedBetween(ctx, weekStart, endOfDay)
	if err != nil {
		logger.Error("Failed to count this week's signups", "error", err)
		return nil, err
	}

	lastWeek, err := s.store.CountCreatedBetween(ctx, lastWeekStart, weekStart)
	if err != nil {
		logger.Error("Failed to count last week's signups", "error", err)
		return nil, err
	}

	breakdown, err := s.store.UseCaseBreakdown(ctx)
	if err != nil {
		logger.Error("Failed to load use case breakdown", "error", err)
		return nil, err
	}

	recent, _, err := s.store.Search(ctx, "", 1, recentSignupsLimit)
	if err != nil {
		logger.Error("Failed to load recent signups", "error", err)
		return nil, err
	}

	useCases := make([]UseCaseStat, 0, len(breakdown))
	for _, b := range breakdown {
		useCases = append(useCases, UseCaseStat{UseCase: b.UseCase, Label: utils.FormatUseCase(b.UseCase), Count: b.Count})
	}

	hours := math.Max(1, now.Sub(startOfDay).Hours())

	return &StatsResponse{
		TotalSignups:    total,
		TodaySignups:    today,
		ThisWeekSignups: thisWeek,
		LastWeekSignups: lastWeek,
		WeeklyGrowth:    weeklyGrowth(thisWeek, lastWeek),
		SignupsPerHour:  round1(float64(today) / hours),
		UseCases:        useCases,
		RecentSignups:   nonNil(recent),
	}, nil
}

// weeklyGrowth is the percentage change from last week. With no signups last
// week any activity counts as 100%.
func weeklyGrowth(thisWeek, lastWeek int64) float64 {
	if lastWeek == 0 {
		if thisWeek > 0 {
			return 100
		}
		return 0
	}
	return round1(float64(thisWeek-lastWeek) / float64(lastWeek) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *adminService) ListUsers(ctx context.Context, search string, page, limit int) (*UsersResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	page, limit, _ = storage.NormalizePage(page, limit)

	users, total, err := s.store.Search(ctx, search, page, limit)
	if err != nil {
		logger.Error("Failed to search waitlist entries", "search", search, "error", err)
		return nil, err
	}

	return &UsersResponse{
		Users: nonNil(users),
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

func (s *adminService) DeleteUser(ctx context.Context, id uint) error {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if id == 0 {
		logger.Error("DeleteUser received invalid ID")
		return apperrors.NewInvalidRequestError("invalid entry ID", nil)
	}

	if err := s.store.DeleteByID(ctx, id); err != nil {
		logger.Error("Failed to delete waitlist entry", "id", id, "error", err)
		return err
	}

	logger.Info("Waitlist entry deleted", "id", id)
	return nil
}

func (s *adminService) ExportCSV(ctx context.Context) (*ExportFile, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		logger.Error("Failed to load waitlist for export", "error", err)
		return nil, err
	}

	var buf bytes.Buffer
	if err := transfer.WriteCSV(&buf, entries); err != nil {
		logger.Error("Failed to encode CSV export", "error", err)
		return nil, apperrors.NewInternalServerError("unable to build export", err)
	}

	return &ExportFile{Body: buf.Bytes(), FileName: transfer.FileName(s.now()), Rows: len(entries)}, nil
}

func (s *adminService) Import(ctx context.Context, rows []transfer.Row) (*ImportResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	response := &ImportResponse{Failed: []storage.ImportFailure{}, Total: len(rows)}

	valid := make([]models.WaitlistEntry, 0, len(rows))
	origin := make([]int, 0, len(rows))

	for i, row := range rows {
		if row.Err != nil {
			response.Failed = append(response.Failed, storage.ImportFailure{Index: i, Email: row.Entry.Email, Reason: row.Err.Error()})
			continue
		}

		req := &waitlist.JoinWaitlistRequest{
			Name:    row.Entry.Name,
			Email:   row.Entry.Email,
			Company: row.Entry.Company,
			UseCase: row.Entry.UseCase,
		}
		req.Normalize()
		if err := waitlist.ValidateJoinRequest(req); err != nil {
			response.Failed = append(response.Failed, storage.ImportFailure{Index: i, Email: row.Entry.Email, Reason: describeValidation(err)})
			continue
		}

		entry := *waitlist.ToWaitlistEntryModel(req)
		entry.CreatedAt = row.Entry.CreatedAt
		valid = append(valid, entry)
		origin = append(origin, i)
	}

	result, err := s.store.BulkImport(ctx, valid)
	if err != nil {
		logger.Error("Bulk import aborted", "error", err)
		return nil, err
	}

	for _, f := range result.Failed {
		if f.Index >= 0 && f.Index < len(origin) {
			f.Index = origin[f.Index]
		}
		response.Failed = append(response.Failed, f)
	}
	response.Imported = result.Imported
	response.Skipped = result.Skipped

	logger.Info("Waitlist import finished",
		"imported", response.Imported,
		"skipped", response.Skipped,
		"failed", len(response.Failed),
	)
	return response, nil
}

func describeValidation(err error) string {
	fields, ok := apperrors.GetDetails(err).([]apperrors.ValidationErrorResponse)
	if !ok || len(fields) == 0 {
		return apperrors.GetHumanReadableMessage(err)
	}
	return fields[0].Field + ": " + fields[0].Message
}

func nonNil(entries []models.WaitlistEntry) []models.WaitlistEntry {
	if entries == nil {
		return []models.WaitlistEntry{}
	}
	return entries
}

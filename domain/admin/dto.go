package admin

import (
	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/internal/storage"
)

type UseCaseStat struct {
	UseCase string `json:"use_case"`
	Label   string `json:"label"`
	Count   int64  `json:"count"`
}

type StatsResponse struct {
	TotalSignups    int64                  `json:"totalSignups"`
	TodaySignups    int64                  `json:"todaySignups"`
	ThisWeekSignups int64                  `json:"thisWeekSignups"`
	LastWeekSignups int64                  `json:"lastWeekSignups"`
	WeeklyGrowth    float64                `json:"weeklyGrowth"`
	SignupsPerHour  float64                `json:"signupsPerHour"`
	UseCases        []UseCaseStat          `json:"useCases"`
	RecentSignups   []models.WaitlistEntry `json:"recentSignups"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type UsersResponse struct {
	Users      []models.WaitlistEntry `json:"users"`
	Pagination Pagination             `json:"pagination"`
}

type ImportResponse struct {
	Imported int                     `json:"imported"`
	Skipped  int                     `json:"skipped"`
	Failed   []storage.ImportFailure `json:"failed"`
	Total    int                     `json:"total"`
}

type ExportFile struct {
	Body     []byte
	FileName string
	Rows     int
}

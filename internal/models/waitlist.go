package models

import "time"

// WaitlistEntry is a single signup. Entries are never updated once stored.
type WaitlistEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null;uniqueIndex:idx_waitlist_email;size:255" json:"email"`
	Company   *string   `json:"company"`
	UseCase   string    `gorm:"column:use_case;not null" json:"use_case"`
	CreatedAt time.Time `gorm:"index:idx_waitlist_created_at" json:"created_at"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist"
}

// CompanyOrEmpty dereferences Company for display and export.
func (e *WaitlistEntry) CompanyOrEmpty() string {
	if e == nil || e.Company == nil {
		return ""
	}
	return *e.Company
}

package waitlist

import (
	"strings"

	"github.com/akeren/waitlist-foundry/internal/models"
)

type JoinWaitlistRequest struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Email   string  `json:"email" validate:"required,max=255,email,email_tld"`
	Company *string `json:"company" validate:"omitempty,max=255"`
	UseCase string  `json:"useCase" validate:"required,max=2000"`
}

// Normalize trims every field in place. A blank company becomes nil.
func (r *JoinWaitlistRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.UseCase = strings.TrimSpace(r.UseCase)

	if r.Company != nil {
		company := strings.TrimSpace(*r.Company)
		if company == "" {
			r.Company = nil
		} else {
			r.Company = &company
		}
	}
}

type JoinWaitlistResponse struct {
	Success    bool   `json:"success"`
	Position   int64  `json:"position"`
	TotalCount int64  `json:"totalCount"`
	Message    string `json:"message"`
}

type WaitlistCountResponse struct {
	Count int64 `json:"count"`
}

// ========================================
// Mappers
// ========================================

func ToWaitlistEntryModel(req *JoinWaitlistRequest) *models.WaitlistEntry {
	if req == nil {
		return nil
	}
	return &models.WaitlistEntry{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
		UseCase: req.UseCase,
	}
}

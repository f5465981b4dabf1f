package waitlist

import (
	"strings"
	"sync"

	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func joinValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("email_tld", hasDottedDomain)
	})
	return validate
}

// hasDottedDomain accepts addresses whose domain has at least two labels
// and a TLD of two or more characters.
func hasDottedDomain(fl validator.FieldLevel) bool {
	email := fl.Field().String()

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}

	labels := strings.Split(email[at+1:], ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" {
			return false
		}
	}
	return len(labels[len(labels)-1]) >= 2
}

// ValidateJoinRequest checks a normalized request. It never touches storage.
func ValidateJoinRequest(req *JoinWaitlistRequest) error {
	if req == nil {
		return apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	if err := joinValidator().Struct(req); err != nil {
		fields := apperrors.FormatValidationErrors(err, req)
		if len(fields) == 0 {
			return apperrors.NewInvalidRequestError("Invalid request payload", err)
		}
		return apperrors.NewValidationError("Invalid request payload", fields)
	}

	return nil
}

package waitlist

import (
	"testing"

	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()

	details, ok := apperrors.GetDetails(err).([]apperrors.ValidationErrorResponse)
	require.True(t, ok, "expected field details, got %T", apperrors.GetDetails(err))

	out := make(map[string]string, len(details))
	for _, d := range details {
		out[d.Field] = d.Message
	}
	return out
}

func TestValidateJoinRequest_Valid(t *testing.T) {
	req := &JoinWaitlistRequest{Name: "Ana", Email: "ana@x.io", Company: strPtr("Acme"), UseCase: "analytics"}

	assert.NoError(t, ValidateJoinRequest(req))
}

func TestValidateJoinRequest_MissingFields(t *testing.T) {
	req := &JoinWaitlistRequest{Name: "  ", Email: "", UseCase: "\t"}
	req.Normalize()

	err := ValidateJoinRequest(req)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	fields := fieldsOf(t, err)
	assert.Equal(t, "This field is required", fields["name"])
	assert.Equal(t, "This field is required", fields["email"])
	assert.Equal(t, "This field is required", fields["useCase"])
}

func TestValidateJoinRequest_EmailShape(t *testing.T) {
	cases := map[string]bool{
		"ana@x.io":              true,
		"first.last@mail.co.uk": true,
		"ana":                   false,
		"ana@":                  false,
		"@x.io":                 false,
		"ana@localhost":         false,
		"ana@x.":                false,
		"ana@x.c":               false,
		"ana x@x.io":            false,
	}

	for email, valid := range cases {
		t.Run(email, func(t *testing.T) {
			err := ValidateJoinRequest(&JoinWaitlistRequest{Name: "Ana", Email: email, UseCase: "analytics"})
			if valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, "Invalid email format", fieldsOf(t, err)["email"])
		})
	}
}

func TestJoinWaitlistRequest_Normalize(t *testing.T) {
	req := &JoinWaitlistRequest{Name: " Ana ", Email: " ana@x.io\n", Company: strPtr(" Acme "), UseCase: " ml "}

	req.Normalize()

	assert.Equal(t, "Ana", req.Name)
	assert.Equal(t, "ana@x.io", req.Email)
	require.NotNil(t, req.Company)
	assert.Equal(t, "Acme", *req.Company)
	assert.Equal(t, "ml", req.UseCase)
}

func TestValidateJoinRequest_Nil(t *testing.T) {
	assert.Error(t, ValidateJoinRequest(nil))
}

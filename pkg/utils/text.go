package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatUseCase turns a slug such as "data-analytics" into "Data Analytics".
func FormatUseCase(useCase string) string {
	s := strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(useCase))
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}

package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/pkg/constants"
	"github.com/akeren/waitlist-foundry/pkg/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type emailData struct {
	Name        string
	Email       string
	Company     string
	UseCase     string
	Position    int64
	ProductName string
	AppURL      string
	JoinedAt    string
}

func newEmailData(cfg Config, entry models.WaitlistEntry, position int64) emailData {
	return emailData{
		Name:        entry.Name,
		Email:       entry.Email,
		Company:     entry.CompanyOrEmpty(),
		UseCase:     utils.FormatUseCase(entry.UseCase),
		Position:    position,
		ProductName: cfg.ProductName,
		AppURL:      strings.TrimRight(cfg.AppURL, "/"),
		JoinedAt:    entry.CreatedAt.UTC().Format(constants.RFC3339DateTimeFormat),
	}
}

func render(name string, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func confirmationMessage(cfg Config, entry models.WaitlistEntry, position int64) (Message, error) {
	data := newEmailData(cfg, entry, position)

	html, err := render("confirmation.html", data)
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      entry.Email,
		Subject: fmt.Sprintf("You're on the %s waitlist! (#%d)", data.ProductName, position),
		HTML:    html,
		Text: fmt.Sprintf(
			"Hi %s,\n\nThanks for joining the %s waitlist. You are number #%d in line.\n\nWe will reach out as soon as your spot opens up.\n%s\n",
			data.Name, data.ProductName, position, data.AppURL,
		),
	}, nil
}

func adminAlertMessage(cfg Config, entry models.WaitlistEntry, position int64) (Message, error) {
	data := newEmailData(cfg, entry, position)

	html, err := render("admin_alert.html", data)
	if err != nil {
		return Message{}, err
	}

	company := data.Company
	if company == "" {
		company = "Not provided"
	}

	return Message{
		To:      cfg.AdminEmail,
		Subject: fmt.Sprintf("New waitlist signup: %s (#%d)", data.Name, position),
		HTML:    html,
		Text: fmt.Sprintf(
			"Name: %s\nEmail: %s\nCompany: %s\nUse case: %s\nPosition: #%d\nJoined: %s\n",
			data.Name, data.Email, company, data.UseCase, position, data.JoinedAt,
		),
	}, nil
}

// Package transfer reads and writes waitlist entries in the CSV export
// format and the JSON import format.
package transfer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/waitlist-foundry/internal/models"
)

// JoinedAtLayout is the timestamp format written to the Joined At column.
const JoinedAtLayout = "2006-01-02T15:04:05.000Z07:00"

var Header = []string{"ID", "Name", "Email", "Company", "Use Case", "Joined At"}

var (
	ErrEmptyFile     = errors.New("import file is empty")
	ErrMissingColumn = errors.New("missing required column")
)

// Row is one decoded record. Err is set when the record itself could not be
// decoded; the batch keeps going.
type Row struct {
	Entry models.WaitlistEntry
	Err   error
}

// FileName is the attachment name used for an export taken at t.
func FileName(t time.Time) string {
	return "waitlist-export-" + t.UTC().Format("2006-01-02T15-04-05") + ".csv"
}

func WriteCSV(w io.Writer, entries []models.WaitlistEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, e := range entries {
		record := []string{
			strconv.FormatUint(uint64(e.ID), 10),
			e.Name,
			e.Email,
			e.CompanyOrEmpty(),
			e.UseCase,
			e.CreatedAt.UTC().Format(JoinedAtLayout),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV decodes a file in the export format. Columns are matched by header
// name, so ID and Joined At are optional and extra columns are ignored.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeColumn(name)] = i
	}
	for _, required := range []string{"name", "email", "usecase"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	field := func(record []string, column string) string {
		i, ok := columns[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rows = append(rows, Row{Err: err})
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if isBlank(record) {
			continue
		}

		row := Row{Entry: models.WaitlistEntry{
			Name:    field(record, "name"),
			Email:   field(record, "email"),
			Company: optional(field(record, "company")),
			UseCase: field(record, "usecase"),
		}}
		row.Entry.CreatedAt, row.Err = ParseJoinedAt(field(record, "joinedat"))
		rows = append(rows, row)
	}

	return rows, nil
}

type jsonRecord struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Company      *string `json:"company"`
	UseCase      string  `json:"useCase"`
	UseCaseSnake string  `json:"use_case"`
	CreatedAt    string  `json:"createdAt"`
	CreatedSnake string  `json:"created_at"`
}

// DecodeJSON reads a JSON array of entries. Both camelCase and snake_case
// keys are accepted for the use case and timestamp.
func DecodeJSON(r io.Reader) ([]Row, error) {
	var records []jsonRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("decode json: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		useCase := rec.UseCase
		if useCase == "" {
			useCase = rec.UseCaseSnake
		}
		createdAt := rec.CreatedAt
		if createdAt == "" {
			createdAt = rec.CreatedSnake
		}

		row := Row{Entry: models.WaitlistEntry{
			Name:    strings.TrimSpace(rec.Name),
			Email:   strings.TrimSpace(rec.Email),
			UseCase: strings.TrimSpace(useCase),
		}}
		if rec.Company != nil {
			row.Entry.Company = optional(strings.TrimSpace(*rec.Company))
		}
		row.Entry.CreatedAt, row.Err = ParseJoinedAt(strings.TrimSpace(createdAt))
		rows = append(rows, row)
	}

	return rows, nil
}

// ParseJoinedAt accepts RFC 3339 and the SQLite "YYYY-MM-DD HH:MM:SS" form.
// An empty value yields the zero time so the store assigns one.
func ParseJoinedAt(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid joined at %q", v)
}

func normalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\uFEFF")
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "", "_", "").Replace(name)
	if name == "createdat" {
		return "joinedat"
	}
	return name
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

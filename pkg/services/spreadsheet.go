package services

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
)

// MappingProfile maps spreadsheet headers onto row payload fields for one
// upload source. Headers are matched case-insensitively after trimming.
type MappingProfile struct {
	// Sheet names the worksheet to read; empty means the first sheet.
	Sheet string `yaml:"sheet,omitempty"`
	// HeaderRow is the 1-based row carrying the column headers.
	HeaderRow int `yaml:"header_row,omitempty"`
	// Columns maps a header cell text to the payload field it feeds.
	Columns map[string]string `yaml:"columns"`
}

// SpreadsheetService turns uploaded workbooks into raw batch row payloads.
type SpreadsheetService interface {
	// Parse reads the workbook and returns one payload map per data row.
	// A non-empty sheet overrides the profile's; with no profile for the
	// source, headers become field names verbatim (lowercased, spaces
	// collapsed to underscores).
	Parse(r io.Reader, source, sheet string) ([]map[string]any, error)
}

type spreadsheetService struct {
	profiles map[string]MappingProfile
	logger   *zap.Logger
}

// NewSpreadsheetService loads mapping profiles from path (optional; a missing
// file just means header-derived fields for every source).
func NewSpreadsheetService(path string, logger *zap.Logger) (SpreadsheetService, error) {
	profiles := map[string]MappingProfile{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read mapping profiles: %w", err)
			}
			logger.Warn("Mapping profiles file not found, using header-derived fields", zap.String("path", path))
		} else if err := yaml.Unmarshal(data, &profiles); err != nil {
			return nil, fmt.Errorf("failed to parse mapping profiles: %w", err)
		}
	}

	return &spreadsheetService{profiles: profiles, logger: logger}, nil
}

var _ SpreadsheetService = (*spreadsheetService)(nil)

func (s *spreadsheetService) Parse(r io.Reader, source, sheet string) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Validation("cannot open workbook: %v", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	profile, hasProfile := s.profiles[source]

	if sheet == "" {
		sheet = profile.Sheet
	}
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.Validation("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.Validation("cannot read sheet %q: %v", sheet, err)
	}

	headerRow := profile.HeaderRow
	if headerRow < 1 {
		headerRow = 1
	}
	if len(rows) < headerRow {
		return nil, apperrors.Validation("sheet %q has no header row", sheet)
	}

	fields := headerFields(rows[headerRow-1], profile.Columns, hasProfile)
	if len(fields) == 0 {
		return nil, apperrors.Validation("no usable columns in sheet %q", sheet)
	}

	var payloads []map[string]any
	for _, cells := range rows[headerRow:] {
		payload := make(map[string]any, len(fields))
		empty := true
		for col, field := range fields {
			if col >= len(cells) {
				continue
			}
			value := strings.TrimSpace(cells[col])
			if value == "" {
				continue
			}
			payload[field] = value
			empty = false
		}
		if !empty {
			payloads = append(payloads, payload)
		}
	}

	s.logger.Info("Parsed workbook",
		zap.String("source", source),
		zap.String("sheet", sheet),
		zap.Int("rows", len(payloads)),
		zap.Bool("profile", hasProfile))

	return payloads, nil
}

// headerFields resolves each column index to a payload field name. With a
// profile, only mapped headers survive; without one, every non-empty header
// is normalized into a field name.
func headerFields(headers []string, columns map[string]string, hasProfile bool) map[int]string {
	mapped := make(map[string]string, len(columns))
	for header, field := range columns {
		mapped[strings.ToLower(strings.TrimSpace(header))] = field
	}

	fields := make(map[int]string)
	for col, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			continue
		}
		if hasProfile {
			if field, ok := mapped[strings.ToLower(header)]; ok {
				fields[col] = field
			}
			continue
		}
		fields[col] = normalizeHeader(header)
	}

	return fields
}

func normalizeHeader(header string) string {
	return strings.Join(strings.Fields(strings.ToLower(header)), "_")
}

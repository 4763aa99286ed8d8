package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/qrqcrew/callsign-notes/internal/domain"
	apperrors "github.com/qrqcrew/callsign-notes/internal/errors"
)

// CSVSource fetches a roster published as CSV (e.g. an exported spreadsheet).
// Target columns are resolved by case-insensitive name match against the
// header row, which follows a configurable number of metadata rows.
type CSVSource struct {
	client         *http.Client
	url            string
	callsignColumn string
	numberColumn   string
	skipRows       int
	logger         zerolog.Logger
}

// NewCSVSource creates a CSV roster source
func NewCSVSource(url, callsignColumn, numberColumn string, skipRows int, logger zerolog.Logger) *CSVSource {
	return &CSVSource{
		client:         &http.Client{Timeout: 30 * time.Second},
		url:            url,
		callsignColumn: callsignColumn,
		numberColumn:   numberColumn,
		skipRows:       skipRows,
		logger:         logger,
	}
}

// FetchMembers retrieves and parses the CSV roster
func (s *CSVSource) FetchMembers(ctx context.Context) ([]domain.Member, error) {
	data, err := fetchWithRetry(ctx, s.client, s.url, s.logger)
	if err != nil {
		return nil, err
	}
	return s.parse(data)
}

func (s *CSVSource) parse(data string) ([]domain.Member, error) {
	reader := csv.NewReader(strings.NewReader(data))
	reader.FieldsPerRecord = -1

	// Skip leading metadata rows
	for i := 0; i < s.skipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, apperrors.NewParseError("CSV has no header row after skipping metadata")
		}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewParseError("CSV has no header row after skipping metadata")
	}

	callsignCol, ok := findColumnByName(header, s.callsignColumn)
	if !ok {
		return nil, apperrors.NewParseError(fmt.Sprintf("could not find callsign column %q in CSV", s.callsignColumn))
	}
	numberCol, ok := findColumnByName(header, s.numberColumn)
	if !ok {
		return nil, apperrors.NewParseError(fmt.Sprintf("could not find number column %q in CSV", s.numberColumn))
	}

	s.logger.Debug().
		Int("callsign_col", callsignCol).
		Int("number_col", numberCol).
		Msg("Resolved CSV columns")

	seen := make(map[string]struct{})
	var members []domain.Member
	row := s.skipRows + 1 // 1-indexed header position

	for {
		row++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn().Int("row", row).Err(err).Msg("Failed to parse CSV row")
			continue
		}

		if callsignCol >= len(record) {
			continue
		}
		callsign := strings.ToUpper(strings.TrimSpace(record[callsignCol]))
		if callsign == "" {
			continue
		}
		if !IsValidCallsign(callsign) {
			s.logger.Debug().Int("row", row).Str("callsign", callsign).Msg("Invalid callsign pattern")
			continue
		}
		if _, dup := seen[callsign]; dup {
			s.logger.Debug().Int("row", row).Str("callsign", callsign).Msg("Duplicate callsign")
			continue
		}

		if numberCol >= len(record) {
			s.logger.Debug().Int("row", row).Str("callsign", callsign).Msg("Missing member number")
			continue
		}
		number, err := strconv.ParseUint(strings.TrimSpace(record[numberCol]), 10, 32)
		if err != nil {
			s.logger.Debug().
				Int("row", row).
				Str("callsign", callsign).
				Str("value", record[numberCol]).
				Msg("Invalid member number")
			continue
		}

		seen[callsign] = struct{}{}
		members = append(members, domain.Member{
			Callsign: callsign,
			MemberID: strconv.FormatUint(number, 10),
		})
	}

	sortByCallsign(members)
	return members, nil
}

// findColumnByName resolves a column index by case-insensitive,
// whitespace-trimmed name match
func findColumnByName(header []string, name string) (int, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == target {
			return i, true
		}
	}
	return 0, false
}

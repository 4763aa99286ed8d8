package roster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/qrqcrew/callsign-notes/internal/domain"
	apperrors "github.com/qrqcrew/callsign-notes/internal/errors"
)

// Source defines the interface for fetching an organization's roster
type Source interface {
	// FetchMembers retrieves, parses and validates the member list.
	// The result is deduplicated by callsign and sorted ascending.
	FetchMembers(ctx context.Context) ([]domain.Member, error)
}

const (
	maxFetchAttempts = 3
	backoffBase      = 500 * time.Millisecond
)

// callsignPattern is the amateur-radio callsign grammar: 1-2 letters,
// 1 digit, 1-4 letters, matched against the trimmed uppercase form.
var callsignPattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z]{1,4}$`)

// IsValidCallsign reports whether s matches the callsign grammar
func IsValidCallsign(s string) bool {
	return callsignPattern.MatchString(s)
}

// fetchWithRetry performs an HTTP GET with exponential backoff.
// Non-2xx responses count as failures and are retried like transport errors.
func fetchWithRetry(ctx context.Context, client *http.Client, url string, logger zerolog.Logger) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", apperrors.NewFetchError("failed to build request", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if readErr != nil {
					return "", apperrors.NewFetchError("failed to read response body", readErr)
				}
				return string(body), nil
			}
			lastErr = fmt.Errorf("HTTP error: %s", resp.Status)
		}

		if attempt < maxFetchAttempts {
			delay := backoffBase * (1 << (attempt - 1))
			logger.Warn().
				Int("attempt", attempt).
				Dur("retry_in", delay).
				Err(lastErr).
				Msg("Fetch attempt failed, retrying")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return "", apperrors.NewFetchError(fmt.Sprintf("fetch failed after %d attempts", maxFetchAttempts), lastErr)
}

// sortByCallsign sorts members ascending by callsign (ordinal comparison)
func sortByCallsign(members []domain.Member) {
	sort.Slice(members, func(i, j int) bool {
		return members[i].Callsign < members[j].Callsign
	})
}

package roster

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/qrqcrew/callsign-notes/internal/domain"
	apperrors "github.com/qrqcrew/callsign-notes/internal/errors"
)

// silentKeySuffix marks deceased members on SKCC-style rosters
const silentKeySuffix = "/SK"

// HTMLSource fetches a roster published as an HTML table. Cells are
// addressed by column index; rows without data cells (header rows) and
// rows with too few cells are skipped.
type HTMLSource struct {
	client      *http.Client
	url         string
	callsignIdx int
	numberIdx   int
	logger      zerolog.Logger
}

// NewHTMLSource creates an HTML table roster source
func NewHTMLSource(url string, callsignIdx, numberIdx int, logger zerolog.Logger) *HTMLSource {
	return &HTMLSource{
		// Membership pages can be several MB, allow a longer timeout than CSV
		client:      &http.Client{Timeout: 60 * time.Second},
		url:         url,
		callsignIdx: callsignIdx,
		numberIdx:   numberIdx,
		logger:      logger,
	}
}

// FetchMembers retrieves and parses the HTML roster
func (s *HTMLSource) FetchMembers(ctx context.Context) ([]domain.Member, error) {
	html, err := fetchWithRetry(ctx, s.client, s.url, s.logger)
	if err != nil {
		return nil, err
	}
	return s.parse(html)
}

func (s *HTMLSource) parse(html string) ([]domain.Member, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.NewParseError("failed to parse HTML document")
	}

	seen := make(map[string]struct{})
	var members []domain.Member

	doc.Find("table.skcc_table tr").Each(func(row int, tr *goquery.Selection) {
		cells := tr.Find("td")

		// Header rows use <th>, not <td>
		if cells.Length() == 0 {
			return
		}
		if cells.Length() <= s.callsignIdx || cells.Length() <= s.numberIdx {
			s.logger.Debug().Int("row", row).Int("cells", cells.Length()).Msg("Not enough columns")
			return
		}

		raw := strings.ToUpper(strings.TrimSpace(cells.Eq(s.callsignIdx).Text()))

		// Silent Keys are dropped entirely
		if strings.HasSuffix(raw, silentKeySuffix) {
			s.logger.Debug().Int("row", row).Str("callsign", raw).Msg("Skipping Silent Key")
			return
		}

		// Strip any remaining /suffix (e.g. portable designators) before validation
		callsign := strings.TrimSpace(strings.SplitN(raw, "/", 2)[0])
		if callsign == "" {
			return
		}
		if !IsValidCallsign(callsign) {
			s.logger.Debug().Int("row", row).Str("callsign", callsign).Msg("Invalid callsign pattern")
			return
		}
		if _, dup := seen[callsign]; dup {
			s.logger.Debug().Int("row", row).Str("callsign", callsign).Msg("Duplicate callsign")
			return
		}

		// Member IDs may carry award suffixes like "2C" or "3S"; keep as-is
		memberID := strings.TrimSpace(cells.Eq(s.numberIdx).Text())
		if memberID == "" {
			s.logger.Debug().Int("row", row).Str("callsign", callsign).Msg("Empty member ID")
			return
		}

		seen[callsign] = struct{}{}
		members = append(members, domain.Member{
			Callsign: callsign,
			MemberID: memberID,
		})
	})

	sortByCallsign(members)
	return members, nil
}

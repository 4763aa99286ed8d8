// Package notes renders the callsign notes file for one organization
// and decides whether a rendered file differs from the committed one.
package notes

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/qrqcrew/callsign-notes/internal/domain"
)

// generatedPrefix marks the timestamp header line, which is excluded
// from change detection so unchanged rosters produce no commit
const generatedPrefix = "# Generated:"

// Generator renders members into the Ham2K PoLo callsign notes format
type Generator struct {
	emoji string
	label string
	url   string
}

// NewGenerator creates a notes generator. url may be empty.
func NewGenerator(emoji, label, url string) *Generator {
	return &Generator{emoji: emoji, label: label, url: url}
}

// Generate renders the notes file. Output is deterministic apart from
// the generation timestamp: members are sorted ascending by callsign.
func (g *Generator) Generate(members []domain.Member) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Callsign Notes for Ham2K PoLo\n", g.label)
	fmt.Fprintf(&b, "%s %s\n", generatedPrefix, time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	if g.url != "" {
		fmt.Fprintf(&b, "# %s\n", g.url)
	}
	b.WriteString("# Do not edit manually - this file is auto-generated\n")
	b.WriteString("\n")

	sorted := make([]domain.Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Callsign < sorted[j].Callsign
	})

	for _, m := range sorted {
		if m.Nickname != nil && *m.Nickname != "" {
			fmt.Fprintf(&b, "%s %s %s - %s #%s\n", m.Callsign, g.emoji, *m.Nickname, g.label, m.MemberID)
		} else {
			fmt.Fprintf(&b, "%s %s %s #%s\n", m.Callsign, g.emoji, g.label, m.MemberID)
		}
	}

	return b.String()
}

// ContentChanged compares the committed content against freshly
// generated content, ignoring the generation timestamp line on both
// sides. A missing remote file (nil) counts as changed.
func ContentChanged(existing *string, generated string) bool {
	if existing == nil {
		return true
	}

	filter := func(content string) []string {
		var lines []string
		for _, line := range strings.Split(content, "\n") {
			if strings.HasPrefix(line, generatedPrefix) {
				continue
			}
			lines = append(lines, line)
		}
		return lines
	}

	a := filter(*existing)
	b := filter(generated)
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

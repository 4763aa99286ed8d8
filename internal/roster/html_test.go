package roster

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHTMLSource(callsignIdx, numberIdx int) *HTMLSource {
	return NewHTMLSource("http://example.com", callsignIdx, numberIdx, zerolog.Nop())
}

func TestParseHTMLTable(t *testing.T) {
	html := `
	<table class="skcc_table">
		<tr>
			<th>SKCC #</th>
			<th>Call</th>
			<th>Name</th>
		</tr>
		<tr>
			<td>1</td>
			<td>KC9ECI</td>
			<td>Tom</td>
		</tr>
		<tr>
			<td>2C</td>
			<td>KI4CIA</td>
			<td>Melinda</td>
		</tr>
		<tr>
			<td>3S</td>
			<td>N6WK/SK</td>
			<td>Gordon [SK]</td>
		</tr>
	</table>
	`

	members, err := testHTMLSource(1, 0).parse(html)
	require.NoError(t, err)

	// Silent Key row dropped entirely, remainder sorted by callsign
	require.Len(t, members, 2)
	assert.Equal(t, "KC9ECI", members[0].Callsign)
	assert.Equal(t, "1", members[0].MemberID)
	assert.Equal(t, "KI4CIA", members[1].Callsign)
	assert.Equal(t, "2C", members[1].MemberID)
}

func TestParseHTMLStripsPortableSuffix(t *testing.T) {
	html := `
	<table class="skcc_table">
		<tr><td>7</td><td>W6JSV/P</td><td>Jay</td></tr>
	</table>
	`

	members, err := testHTMLSource(1, 0).parse(html)
	require.NoError(t, err)

	require.Len(t, members, 1)
	assert.Equal(t, "W6JSV", members[0].Callsign)
}

func TestParseHTMLSkipsShortAndDuplicateRows(t *testing.T) {
	html := `
	<table class="skcc_table">
		<tr><td>only one cell</td></tr>
		<tr><td>1</td><td>K4MW</td></tr>
		<tr><td>2</td><td>K4MW</td></tr>
		<tr><td></td><td>W6JSV</td></tr>
		<tr><td>3</td><td>NOTACALL</td></tr>
	</table>
	`

	members, err := testHTMLSource(1, 0).parse(html)
	require.NoError(t, err)

	// duplicate K4MW dropped, W6JSV has an empty member ID, NOTACALL invalid
	require.Len(t, members, 1)
	assert.Equal(t, "K4MW", members[0].Callsign)
	assert.Equal(t, "1", members[0].MemberID)
}

func TestParseHTMLNoTable(t *testing.T) {
	members, err := testHTMLSource(1, 0).parse("<html><body><p>no roster here</p></body></html>")
	require.NoError(t, err)
	assert.Empty(t, members)
}

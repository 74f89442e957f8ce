package mdx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCompactStylesheetEmpty(t *testing.T) {
	table, err := parseCompactStylesheet("")
	require.NoError(t, err)
	require.Nil(t, table)
}

func TestParseCompactStylesheetBasic(t *testing.T) {
	table, err := parseCompactStylesheet("0\n<b>\n</b>\n1\n<i>\n</i>")
	require.NoError(t, err)
	require.Len(t, table, 256)
	require.Equal(t, "<b>", table[0].Prefix)
	require.Equal(t, "</b>", table[0].Suffix)
	require.Equal(t, "<i>", table[1].Prefix)
	require.Equal(t, "</i>", table[1].Suffix)
	require.Equal(t, styleEntry{}, table[2])
}

func TestParseCompactStylesheetDecodesEntities(t *testing.T) {
	table, err := parseCompactStylesheet("5\n&lt;b&gt;\n&lt;/b&gt;")
	require.NoError(t, err)
	require.Equal(t, "<b>", table[5].Prefix)
	require.Equal(t, "</b>", table[5].Suffix)
}

func TestParseCompactStylesheetTokenOutOfRange(t *testing.T) {
	_, err := parseCompactStylesheet("256\nx\ny")
	require.Error(t, err)
}

func TestParseCompactStylesheetInvalidToken(t *testing.T) {
	_, err := parseCompactStylesheet("notanumber\nx\ny")
	require.Error(t, err)
}

func TestParseCompactStylesheetMissingSuffix(t *testing.T) {
	_, err := parseCompactStylesheet("1\nonly-prefix")
	require.Error(t, err)
}

func TestReformatExpandsTokens(t *testing.T) {
	style := make([]styleEntry, 256)
	style[0] = styleEntry{Prefix: "<b>", Suffix: "</b>"}
	style[2] = styleEntry{} // empty prefix/suffix, used as a closing marker

	got := reformat("plain `0`bold`2`", style)
	require.Equal(t, "plain <b>bold</b>", got)
}

func TestReformatChainsAdjacentTokens(t *testing.T) {
	style := make([]styleEntry, 256)
	style[0] = styleEntry{Prefix: "<b>", Suffix: "</b>"}
	style[1] = styleEntry{Prefix: "<i>", Suffix: "</i>"}

	// The token-opening backtick also serves as the previous span's
	// terminator, so a trailing unmatched backtick is left as a literal
	// character rather than silently dropped.
	got := reformat("`0`bold`1`italic`", style)
	require.Equal(t, "<b>bold</b><i>italic</i>`", got)
}

func TestReformatPassesThroughPlainText(t *testing.T) {
	style := make([]styleEntry, 256)
	got := reformat("no tokens here", style)
	require.Equal(t, "no tokens here", got)
}

func TestReformatMalformedBacktickIsLiteral(t *testing.T) {
	style := make([]styleEntry, 256)
	got := reformat("a `x` b", style)
	require.Equal(t, "a `x` b", got)
}

func TestReformatOutOfRangeTokenIsLiteral(t *testing.T) {
	style := make([]styleEntry, 256)
	got := reformat("`300`unchanged``", style)
	require.Equal(t, "`300`unchanged``", got)
}

func TestDecompactStyleNoStylesheetReturnsUnchanged(t *testing.T) {
	out, err := DecompactStyle("", "`0`text``")
	require.NoError(t, err)
	require.Equal(t, "`0`text``", out)
}

func TestDecompactStyleExpands(t *testing.T) {
	out, err := DecompactStyle("0\n<b>\n</b>\n1\n\n", "`0`bold`1`")
	require.NoError(t, err)
	require.Equal(t, "<b>bold</b>", out)
}

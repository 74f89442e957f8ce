package mdx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocaleCompareStringsOrdering(t *testing.T) {
	c := newLocaleCollator("root")
	require.Less(t, localeCompareStrings(c, "apple", "banana", false), 0)
	require.Greater(t, localeCompareStrings(c, "banana", "apple", false), 0)
	require.Equal(t, 0, localeCompareStrings(c, "apple", "apple", false))
}

func TestLocaleCompareStringsPrefixMatch(t *testing.T) {
	c := newLocaleCollator("root")
	require.Equal(t, 0, localeCompareStrings(c, "application", "app", true))
	require.NotEqual(t, 0, localeCompareStrings(c, "banana", "app", true))
}

func TestNewLocaleCollatorFallsBackOnInvalidLocale(t *testing.T) {
	c := newLocaleCollator("not a valid bcp47 tag!!")
	require.NotNil(t, c.col)
}

func TestSortKeyCompare(t *testing.T) {
	require.Less(t, sortKeyCompare([]byte("abc"), []byte("abd"), false), 0)
	require.Equal(t, 0, sortKeyCompare([]byte("abcdef"), []byte("abc"), true))
}

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "app", truncateRunes("application", 3))
	require.Equal(t, "application", truncateRunes("application", 100))
	require.Equal(t, "", truncateRunes("application", 0))
}

package mdx

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// localeCollator wraps golang.org/x/text/collate for V3 locale-aware
// comparison, grounded on perkeep-perkeep's golang.org/x/text
// dependency and spec.md §9's explicit call for "an external Unicode
// collation library". The original engine wraps ICU (utils/icu_wrapper.rs);
// golang.org/x/text/collate is the idiomatic Go analog exercised here.
type localeCollator struct {
	col    *collate.Collator
	locale string
}

// newLocaleCollator parses a BCP-47-with-Unicode-extension locale id
// (e.g. "zh-Hans-u-co-pinyin-ks-level2") and builds a collator from it.
// Falls back to language.Und (root collation) on parse failure rather
// than failing the whole meta-unit load, since legacy-synthesized
// locale strings are best-effort.
func newLocaleCollator(localeID string) *localeCollator {
	tag, err := language.Parse(localeID)
	if err != nil {
		tag = language.Und
	}
	return &localeCollator{col: collate.New(tag), locale: localeID}
}

// collatorSortKey produces a byte-comparable sort key for s under the
// collator, used as V3's "sort_key" equivalent when a caller wants a
// precomputed key (e.g. for external indexing); the core comparator
// path below calls CompareString directly instead.
func collatorSortKey(c *localeCollator, s string) []byte {
	return c.col.Key(&collate.Buffer{}, []byte(s))
}

// localeCompareStrings orders lhs against rhs using the locale
// collator. When prefixMatch is set, rhs is treated as a prefix probe:
// lhs is truncated (by rune count) to len(rhs) before comparing, so a
// lhs that merely starts with rhs compares Equal.
func localeCompareStrings(c *localeCollator, lhs, rhs string, prefixMatch bool) int {
	if prefixMatch && len(rhs) < len(lhs) {
		truncated := truncateRunes(lhs, len([]rune(rhs)))
		return c.col.CompareString(truncated, rhs)
	}
	return c.col.CompareString(lhs, rhs)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[:n])
}

// sortKeyCompare compares two precomputed legacy sort keys byte-wise.
// When prefixMatch is set, lhs is truncated to len(rhs) first.
func sortKeyCompare(lhs, rhs []byte, prefixMatch bool) int {
	if prefixMatch && len(rhs) < len(lhs) {
		lhs = lhs[:len(rhs)]
	}
	return bytesCompare(lhs, rhs)
}

func bytesCompare(a, b []byte) int {
	return strings.Compare(string(a), string(b))
}

package mdx

import (
	"html"
	"strconv"
	"strings"
)

// styleEntry is one compact-stylesheet token's expansion: content tagged
// with the token is wrapped in Prefix/Suffix. Grounded on
// original_source's readers::mdx_reader's Vec<(String, String)> token
// table (token is the slice index, 0..255).
type styleEntry struct {
	Prefix string
	Suffix string
}

// DecompactStyle expands compact-stylesheet tokens in content using
// stylesheet (a dictionary's MetaUnit.DBInfo.StyleSheet value). It is a
// pure, caller-invoked transform, not wired into Reader's
// content-retrieval path by default — matching the original engine's
// reader-level opt-in (MdxReader only calls reformat when its caller
// passes decompact=true). An empty or triple-less stylesheet leaves
// content unchanged.
func DecompactStyle(stylesheet, content string) (string, error) {
	table, err := parseCompactStylesheet(stylesheet)
	if err != nil {
		return "", err
	}
	if len(table) == 0 {
		return content, nil
	}
	return reformat(content, table), nil
}

// parseCompactStylesheet parses a newline-separated list of
// token/prefix/suffix triples (token on its own line, then prefix, then
// suffix) into a 256-slot table indexed by token. An empty stylesheet,
// or one containing no triples at all, yields a nil table so callers
// can skip decompaction entirely. Grounded on
// MdxReader::load_compact_stylesheet.
func parseCompactStylesheet(styleSheet string) ([]styleEntry, error) {
	table := make([]styleEntry, 256)
	lines := strings.Split(styleSheet, "\n")
	hasStylesheet := false

	i := 0
	for i < len(lines) {
		tokenLine := lines[i]
		if tokenLine == "" && i == len(lines)-1 {
			break
		}
		i++

		token, err := strconv.ParseUint(strings.TrimSpace(tokenLine), 10, 32)
		if err != nil {
			return nil, newInvalidDataFormat("invalid token in compact stylesheet")
		}
		if token > 255 {
			return nil, newInvalidDataFormat("token out of range (0..255) in compact stylesheet")
		}

		if i >= len(lines) {
			return nil, newInvalidDataFormat("unexpected end of compact stylesheet (missing prefix)")
		}
		prefix := lines[i]
		i++
		if i >= len(lines) {
			return nil, newInvalidDataFormat("unexpected end of compact stylesheet (missing suffix)")
		}
		suffix := lines[i]
		i++

		table[token] = styleEntry{Prefix: html.UnescapeString(prefix), Suffix: html.UnescapeString(suffix)}
		hasStylesheet = true
	}

	if !hasStylesheet {
		return nil, nil
	}
	return table, nil
}

// reformat expands backtick-framed `` `N` `` token markers in source
// using style[N].Prefix/.Suffix, passing everything else through
// unchanged. A malformed or out-of-range token is emitted back exactly
// as scanned, backticks included. Grounded on MdxReader::reformat.
func reformat(source string, style []styleEntry) string {
	runes := []rune(source)
	n := len(runes)
	var expanded strings.Builder
	expanded.Grow(len(source) + 1024)

	i := 0
	for i < n {
		c := runes[i]
		i++
		if c != '`' {
			expanded.WriteRune(c)
			continue
		}

		var processed strings.Builder
		processed.WriteRune(c)
		var number strings.Builder
		hasNumber := false
		for i < n {
			nc := runes[i]
			i++
			processed.WriteRune(nc)
			if nc >= '0' && nc <= '9' {
				number.WriteRune(nc)
				continue
			}
			if nc == '`' {
				hasNumber = number.Len() > 0
			}
			break
		}

		if hasNumber {
			token, err := strconv.Atoi(number.String())
			if err != nil {
				token = 256
			}
			if token < 256 {
				processed.Reset()
				for i < n && runes[i] != '`' {
					processed.WriteRune(runes[i])
					i++
				}
				expanded.WriteString(style[token].Prefix)
				expanded.WriteString(processed.String())
				expanded.WriteString(style[token].Suffix)
				processed.Reset()
			}
		}
		expanded.WriteString(processed.String())
	}
	return expanded.String()
}

package core

import (
	"strings"
	"unicode"
)

const (
	fullwidthFirst = '\uff01'
	fullwidthLast  = '\uff5e'
	fullwidthShift = 0xfee0
	ideographSpace = '\u3000'
)

// Normalize canonicalizes a free-text answer for comparison. It trims the
// input, folds fullwidth ASCII forms and the ideographic space to their
// halfwidth equivalents, lowercases, and finally drops every whitespace rune.
// The steps run in that order so folding can never reintroduce something a
// later step would have removed.
func Normalize(input string) string {
	s := strings.TrimFunc(input, isSpace)
	s = strings.Map(foldWidth, s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isSpace treats the byte order mark as whitespace too.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}

func foldWidth(r rune) rune {
	switch {
	case r >= fullwidthFirst && r <= fullwidthLast:
		return r - fullwidthShift
	case r == ideographSpace:
		return ' '
	default:
		return r
	}
}

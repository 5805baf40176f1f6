package cache

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// glob is an anchored key pattern. Keys are compared byte by byte, so keys
// that are not valid UTF-8 only ever match their exact bytes.
type glob struct {
	// segs holds the literal runs between unescaped '*'; a pattern with
	// no '*' has exactly one segment.
	segs []string
}

// compilePattern turns a key pattern into an anchored matcher. '*' matches
// any run of bytes, possibly empty; a backslash makes the next byte
// literal; every other byte matches itself.
func compilePattern(pattern string) (*glob, error) {
	if pattern == "" {
		return nil, errors.Wrap(ErrInvalidPattern, "empty pattern")
	}

	var (
		segs []string
		cur  strings.Builder
	)
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			segs = append(segs, cur.String())
			cur.Reset()
			// collapse runs of '*'
			for i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
			}
		case '\\':
			if i+1 == len(pattern) {
				return nil, errors.Wrapf(ErrInvalidPattern, "%q: trailing escape character", pattern)
			}
			i++
			cur.WriteByte(pattern[i])
		default:
			cur.WriteByte(c)
		}
	}
	segs = append(segs, cur.String())
	return &glob{segs: segs}, nil
}

// MatchString reports whether the whole of s matches the pattern.
func (g *glob) MatchString(s string) bool {
	if len(g.segs) == 1 {
		return s == g.segs[0]
	}
	first, last := g.segs[0], g.segs[len(g.segs)-1]
	if len(s) < len(first)+len(last) || !strings.HasPrefix(s, first) || !strings.HasSuffix(s, last) {
		return false
	}
	// Leftmost placement of each middle literal leaves the most room for
	// the rest, so a greedy scan is exact.
	mid := s[len(first) : len(s)-len(last)]
	for _, seg := range g.segs[1 : len(g.segs)-1] {
		i := strings.Index(mid, seg)
		if i < 0 {
			return false
		}
		mid = mid[i+len(seg):]
	}
	return true
}

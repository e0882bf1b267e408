package toc

import (
	"strconv"
	"strings"
	"unicode"
)

// Slugger hands out unique anchor ids for one document.
// The zero value is ready to use. Not safe for concurrent use.
type Slugger struct {
	seen map[string]int
}

// Slug returns the id for heading text, suffixing -1, -2, ... on repeats.
func (s *Slugger) Slug(text string) string {
	if s.seen == nil {
		s.seen = make(map[string]int)
	}
	base := Slugify(text)
	id := base
	for {
		if _, dup := s.seen[id]; !dup {
			break
		}
		s.seen[base]++
		id = base + "-" + strconv.Itoa(s.seen[base])
	}
	s.seen[id] = 0
	return id
}

// Reserve marks an explicit id as taken so generated ids never collide with it.
func (s *Slugger) Reserve(id string) {
	if s.seen == nil {
		s.seen = make(map[string]int)
	}
	if _, ok := s.seen[id]; !ok {
		s.seen[id] = 0
	}
}

// Slugify lowercases text, drops punctuation and turns spaces into dashes.
// Letters, marks, digits, '-' and '_' survive, in any script.
func Slugify(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsMark(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

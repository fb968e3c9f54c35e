package engine

import (
	"strconv"
	"strings"
)

// lengthUnit converts a suffixed literal to metres as v * mul / div.
// Metric units divide so that 63mm reads back as exactly 0.063.
type lengthUnit struct{ mul, div float64 }

var lengthUnits = map[string]lengthUnit{
	"mm": {1, 1000},
	"cm": {1, 100},
	"m":  {1, 1},
	"in": {0.0254, 1},
}

// preprocessSource rewrites a pipeworks script into plain zygomys:
//
//   - :keyword becomes the string "__kw_keyword", so keywords never clash
//     with user bindings of the same name.
//   - sphere-chamber becomes sphere_chamber; zygomys reads a bare hyphen
//     as subtraction.
//   - 63mm, 6.3cm and 2in become lengths in metres.
//   - ; comments become // comments.
//
// String literals and comments pass through untouched.
func preprocessSource(source string) string {
	s := &scanner{src: source}
	s.out.Grow(len(source) + len(source)/4)
	for !s.done() {
		switch c := s.peek(); {
		case c == '"':
			s.quoted('"', true)
		case c == '`':
			s.quoted('`', false)
		case c == ';':
			s.comment()
		case c == ':' && s.at(1) == '=':
			s.copy(2)
		case c == ':' && isLetter(s.at(1)):
			s.keyword()
		case c == '-' && isIdentChar(s.prev()) && isLetter(s.at(1)):
			s.out.WriteByte('_')
			s.pos++
		case isDigit(c) && !isIdentChar(s.prev()) && s.prev() != '.':
			s.number()
		default:
			s.copy(1)
		}
	}
	return s.out.String()
}

type scanner struct {
	src string
	pos int
	out strings.Builder
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte { return s.at(0) }

// at returns the byte off bytes ahead, or 0 past the end.
func (s *scanner) at(off int) byte {
	if i := s.pos + off; i < len(s.src) {
		return s.src[i]
	}
	return 0
}

func (s *scanner) prev() byte {
	if s.pos == 0 {
		return 0
	}
	return s.src[s.pos-1]
}

func (s *scanner) copy(n int) {
	end := min(s.pos+n, len(s.src))
	s.out.WriteString(s.src[s.pos:end])
	s.pos = end
}

// span returns the length of the run starting at pos whose bytes satisfy ok.
func (s *scanner) span(from int, ok func(byte) bool) int {
	j := from
	for j < len(s.src) && ok(s.src[j]) {
		j++
	}
	return j - from
}

// quoted copies a literal up to and including its closing delimiter.
func (s *scanner) quoted(delim byte, escapes bool) {
	s.copy(1)
	for !s.done() {
		c := s.peek()
		if escapes && c == '\\' {
			s.copy(2)
			continue
		}
		s.copy(1)
		if c == delim {
			return
		}
	}
}

func (s *scanner) comment() {
	s.out.WriteString("//")
	s.pos += s.span(s.pos, func(c byte) bool { return c == ';' })
	s.copy(s.span(s.pos, func(c byte) bool { return c != '\n' }))
}

func (s *scanner) keyword() {
	n := s.span(s.pos+1, isKWChar)
	s.out.WriteString(strconv.Quote(kwPrefix + s.src[s.pos+1:s.pos+1+n]))
	s.pos += 1 + n
}

// number copies a numeric literal, converting it to metres when it carries
// a known length unit. Anything else, exponents and hex included, is left
// for zygomys to read.
func (s *scanner) number() {
	n := s.span(s.pos, func(c byte) bool { return isDigit(c) || c == '.' })
	u := s.span(s.pos+n, isLetter)
	unit, ok := lengthUnits[s.src[s.pos+n:s.pos+n+u]]
	if u == 0 || !ok || isIdentChar(s.at(n+u)) {
		s.copy(n)
		return
	}
	v, err := strconv.ParseFloat(s.src[s.pos:s.pos+n], 64)
	if err != nil {
		s.copy(n)
		return
	}
	s.out.WriteString(floatLiteral(v * unit.mul / unit.div))
	s.pos += n + u
}

func floatLiteral(m float64) string {
	out := strconv.FormatFloat(m, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isKWChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

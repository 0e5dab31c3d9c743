package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMalformedPHP indicates a Settings.php artifact the reader cannot scan.
var ErrMalformedPHP = errors.New("malformed settings file")

type phpKind int

const (
	phpNull phpKind = iota
	phpString
	phpInt
	phpBool
)

// phpValue is a literal assigned to a top-level variable.
type phpValue struct {
	kind phpKind
	str  string
	num  int64
	flag bool
	line int
}

func (v phpValue) asString() string {
	switch v.kind {
	case phpString:
		return v.str
	case phpInt:
		return strconv.FormatInt(v.num, 10)
	case phpBool:
		if v.flag {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

func (v phpValue) asInt() (int, error) {
	switch v.kind {
	case phpInt:
		return int(v.num), nil
	case phpBool:
		if v.flag {
			return 1, nil
		}
		return 0, nil
	case phpNull:
		return 0, nil
	default:
		n, err := strconv.Atoi(strings.TrimSpace(v.str))
		if err != nil {
			return 0, fmt.Errorf("line %d: expected integer, got %q", v.line, v.str)
		}
		return n, nil
	}
}

// asBool follows PHP truthiness for the literal kinds the reader produces.
func (v phpValue) asBool() bool {
	switch v.kind {
	case phpInt:
		return v.num != 0
	case phpBool:
		return v.flag
	case phpString:
		return v.str != "" && v.str != "0"
	default:
		return false
	}
}

// phpAssignments is the outcome of scanning a Settings.php file.
type phpAssignments struct {
	values map[string]phpValue
	// skipped names variables assigned something other than a plain literal.
	skipped []string
}

// scanPHP collects top-level `$name = literal;` assignments. Statements it
// does not understand (control flow, function calls, concatenations) are
// skipped whole.
func scanPHP(src []byte) (phpAssignments, error) {
	s := &phpScanner{src: string(src), line: 1}
	out := phpAssignments{values: make(map[string]phpValue)}

	for {
		if err := s.skipTrivia(); err != nil {
			return out, err
		}
		if s.eof() {
			return out, nil
		}

		switch {
		case s.hasPrefix("<?php"):
			s.advance(len("<?php"))
		case s.hasPrefix("<?"):
			s.advance(2)
		case s.hasPrefix("?>"):
			// Anything after the closing tag is inline output, not code.
			return out, nil
		case s.peek() == '$':
			name, value, ok, err := s.assignment()
			if err != nil {
				return out, err
			}
			if name == "" {
				continue
			}
			if ok {
				out.values[name] = value
			} else {
				out.skipped = append(out.skipped, name)
			}
		default:
			if err := s.skipStatement(); err != nil {
				return out, err
			}
		}
	}
}

type phpScanner struct {
	src  string
	pos  int
	line int
}

func (s *phpScanner) eof() bool { return s.pos >= len(s.src) }

func (s *phpScanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *phpScanner) hasPrefix(p string) bool {
	return strings.HasPrefix(s.src[s.pos:], p)
}

func (s *phpScanner) advance(n int) {
	for i := 0; i < n && !s.eof(); i++ {
		if s.src[s.pos] == '\n' {
			s.line++
		}
		s.pos++
	}
}

func (s *phpScanner) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedPHP, s.line, fmt.Sprintf(format, args...))
}

// skipTrivia skips whitespace and comments.
func (s *phpScanner) skipTrivia() error {
	for !s.eof() {
		switch c := s.peek(); {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.advance(1)
		case c == '#' || s.hasPrefix("//"):
			s.skipLineComment()
		case s.hasPrefix("/*"):
			end := strings.Index(s.src[s.pos+2:], "*/")
			if end < 0 {
				return s.errorf("unterminated block comment")
			}
			s.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

func (s *phpScanner) skipLineComment() {
	for !s.eof() && s.peek() != '\n' {
		if s.hasPrefix("?>") {
			return
		}
		s.advance(1)
	}
}

// assignment scans `$name = literal;`. ok is false when the right-hand side
// is not a lone literal; the statement is consumed either way.
func (s *phpScanner) assignment() (name string, value phpValue, ok bool, err error) {
	s.advance(1) // $
	start := s.pos
	for !s.eof() && isIdentByte(s.peek()) {
		s.advance(1)
	}
	name = s.src[start:s.pos]
	if name == "" {
		return "", value, false, s.skipStatement()
	}

	if err := s.skipTrivia(); err != nil {
		return name, value, false, err
	}
	if s.peek() != '=' || s.hasPrefix("==") {
		return "", value, false, s.skipStatement()
	}
	s.advance(1)
	if err := s.skipTrivia(); err != nil {
		return name, value, false, err
	}

	value, ok, err = s.literal()
	if err != nil {
		return name, value, false, err
	}
	if ok {
		if err := s.skipTrivia(); err != nil {
			return name, value, false, err
		}
		if s.peek() == ';' {
			s.advance(1)
			return name, value, true, nil
		}
	}
	return name, value, false, s.skipStatement()
}

func (s *phpScanner) literal() (phpValue, bool, error) {
	v := phpValue{line: s.line}
	switch c := s.peek(); {
	case c == '\'':
		str, err := s.singleQuoted()
		v.kind, v.str = phpString, str
		return v, err == nil, err
	case c == '"':
		str, literal, err := s.doubleQuoted()
		v.kind, v.str = phpString, str
		return v, literal && err == nil, err
	case c == '-' || c == '+' || isDigit(c):
		start := s.pos
		s.advance(1)
		for !s.eof() && isDigit(s.peek()) {
			s.advance(1)
		}
		n, err := strconv.ParseInt(s.src[start:s.pos], 10, 64)
		if err != nil {
			return v, false, nil
		}
		v.kind, v.num = phpInt, n
		return v, true, nil
	case isIdentByte(c):
		start := s.pos
		for !s.eof() && isIdentByte(s.peek()) {
			s.advance(1)
		}
		switch strings.ToLower(s.src[start:s.pos]) {
		case "true":
			v.kind, v.flag = phpBool, true
			return v, true, nil
		case "false":
			v.kind = phpBool
			return v, true, nil
		case "null":
			v.kind = phpNull
			return v, true, nil
		}
		return v, false, nil
	}
	return v, false, nil
}

func (s *phpScanner) singleQuoted() (string, error) {
	line := s.line
	s.advance(1)
	var b strings.Builder
	for !s.eof() {
		c := s.peek()
		switch {
		case c == '\'':
			s.advance(1)
			return b.String(), nil
		case c == '\\' && s.pos+1 < len(s.src) && (s.src[s.pos+1] == '\'' || s.src[s.pos+1] == '\\'):
			b.WriteByte(s.src[s.pos+1])
			s.advance(2)
		default:
			b.WriteByte(c)
			s.advance(1)
		}
	}
	return "", fmt.Errorf("%w: line %d: unterminated string", ErrMalformedPHP, line)
}

var doubleQuotedEscapes = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'v':  '\v',
	'f':  '\f',
	'e':  0x1b,
	'\\': '\\',
	'"':  '"',
	'$':  '$',
}

// doubleQuoted reads a double-quoted string. literal is false when the string
// interpolates a variable.
func (s *phpScanner) doubleQuoted() (str string, literal bool, err error) {
	line := s.line
	s.advance(1)
	literal = true
	var b strings.Builder
	for !s.eof() {
		c := s.peek()
		next := byte(0)
		if s.pos+1 < len(s.src) {
			next = s.src[s.pos+1]
		}
		switch {
		case c == '"':
			s.advance(1)
			return b.String(), literal, nil
		case c == '$' && (next == '{' || isIdentStart(next)):
			literal = false
			b.WriteByte(c)
			s.advance(1)
		case c == '{' && next == '$':
			literal = false
			b.WriteByte(c)
			s.advance(1)
		case c == '\\' && next != 0:
			s.escape(&b, next)
		default:
			b.WriteByte(c)
			s.advance(1)
		}
	}
	return "", false, fmt.Errorf("%w: line %d: unterminated string", ErrMalformedPHP, line)
}

// escape decodes the backslash sequence at the cursor. Unknown sequences are
// kept verbatim, backslash included.
func (s *phpScanner) escape(b *strings.Builder, next byte) {
	if esc, ok := doubleQuotedEscapes[next]; ok {
		b.WriteByte(esc)
		s.advance(2)
		return
	}

	switch {
	case next == 'x':
		digits := s.run(s.pos+2, 2, isHexDigit)
		if digits == "" {
			break
		}
		n, _ := strconv.ParseUint(digits, 16, 8)
		b.WriteByte(byte(n))
		s.advance(2 + len(digits))
		return
	case next >= '0' && next <= '7':
		digits := s.run(s.pos+1, 3, isOctalDigit)
		n, _ := strconv.ParseUint(digits, 8, 16)
		b.WriteByte(byte(n))
		s.advance(1 + len(digits))
		return
	case next == 'u' && s.pos+2 < len(s.src) && s.src[s.pos+2] == '{':
		end := strings.IndexByte(s.src[s.pos+3:], '}')
		if end <= 0 {
			break
		}
		digits := s.src[s.pos+3 : s.pos+3+end]
		n, err := strconv.ParseUint(digits, 16, 32)
		if err != nil || n > utf8.MaxRune {
			break
		}
		b.WriteRune(rune(n))
		s.advance(3 + end + 1)
		return
	}

	b.WriteByte('\\')
	s.advance(1)
}

// run returns up to limit bytes starting at from that satisfy ok.
func (s *phpScanner) run(from, limit int, ok func(byte) bool) string {
	end := from
	for end < len(s.src) && end-from < limit && ok(s.src[end]) {
		end++
	}
	return s.src[from:end]
}

// skipStatement consumes up to and including the `;` that ends the current
// statement, or the `}` that closes a block opened inside it.
func (s *phpScanner) skipStatement() error {
	parens, braces := 0, 0
	for !s.eof() {
		if err := s.skipTrivia(); err != nil {
			return err
		}
		if s.eof() || s.hasPrefix("?>") {
			return nil
		}
		switch c := s.peek(); c {
		case '\'':
			if _, err := s.singleQuoted(); err != nil {
				return err
			}
			continue
		case '"':
			if _, _, err := s.doubleQuoted(); err != nil {
				return err
			}
			continue
		case '(':
			parens++
		case ')':
			parens--
		case '{':
			braces++
		case '}':
			braces--
			if braces <= 0 && parens <= 0 {
				s.advance(1)
				return nil
			}
		case ';':
			if parens <= 0 && braces <= 0 {
				s.advance(1)
				return nil
			}
		}
		s.advance(1)
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isOctalDigit(c byte) bool { return c >= '0' && c <= '7' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

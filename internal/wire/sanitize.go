package wire

import (
	"strings"
	"unicode/utf8"
)

// Sanitize escapes s so it can travel as a single protocol token.
//
// Backslash, double quote and the C control escapes (\b \f \n \r \t \v) get
// their two-character forms. Any other byte below 0x20, DEL, and bytes that
// are not part of a valid UTF-8 sequence become three-digit octal escapes.
// Valid multi-byte UTF-8 passes through untouched.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				writeOctal(&b, c)
				i++
				continue
			}
			b.WriteString(s[i : i+size])
			i += size
			continue
		}
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\v':
			b.WriteString(`\v`)
		default:
			if c < 0x20 || c == 0x7f {
				writeOctal(&b, c)
			} else {
				b.WriteByte(c)
			}
		}
		i++
	}
	return b.String()
}

func writeOctal(b *strings.Builder, c byte) {
	b.WriteByte('\\')
	b.WriteByte('0' + (c>>6)&7)
	b.WriteByte('0' + (c>>3)&7)
	b.WriteByte('0' + c&7)
}

// Desanitize reverses Sanitize. It also decodes tokens produced by the
// daemon, which uses the same scheme: octal escapes of one to three digits
// that stop before the value would pass \377, the C control escapes, and a
// backslash before any other byte yielding that byte. A trailing lone
// backslash is kept as is.
func Desanitize(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			b.WriteByte('\\')
			break
		}
		switch e := s[i]; {
		case e >= '0' && e <= '7':
			v := 0
			j := i
			for ; j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7'; j++ {
				next := v*8 + int(s[j]-'0')
				if next > 0xff {
					break
				}
				v = next
			}
			b.WriteByte(byte(v))
			i = j - 1
		case e == 'b':
			b.WriteByte('\b')
		case e == 'f':
			b.WriteByte('\f')
		case e == 'n':
			b.WriteByte('\n')
		case e == 'r':
			b.WriteByte('\r')
		case e == 't':
			b.WriteByte('\t')
		case e == 'v':
			b.WriteByte('\v')
		default:
			b.WriteByte(e)
		}
	}
	return b.String()
}

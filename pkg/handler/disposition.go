// pkg/handler/disposition.go
package handler

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ContentDisposition renders the attachment header for name.
//
// The quoted filename carries name as ISO-8859-1 bytes, the form legacy
// download clients expect; runes outside Latin-1 become '?'. Names that are
// not plain ASCII also get an RFC 5987 filename* parameter with the exact
// UTF-8 name.
func ContentDisposition(name string) string {
	latin1 := encodeLatin1(name)
	v := fmt.Sprintf(`attachment; filename="%s"`, quote(latin1))
	if !isASCII(name) {
		v += "; filename*=UTF-8''" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	}
	return v
}

func encodeLatin1(s string) string {
	enc := charmap.ISO8859_1.NewEncoder()
	var b strings.Builder
	for _, r := range s {
		if r == utf8.RuneError {
			b.WriteByte('?')
			continue
		}
		out, err := enc.String(string(r))
		if err != nil {
			b.WriteByte('?')
			continue
		}
		b.WriteString(out)
	}
	return b.String()
}

// quote escapes the quoted-string specials and drops control bytes, which
// would otherwise break the header line.
func quote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c == 0x7f:
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

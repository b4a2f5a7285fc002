package fixup

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Ashfaaq98/stixkit/internal/stix"
)

var (
	controlChars    = regexp.MustCompile(`[\x{0000}-\x{001F}\x{007F}-\x{009F}\x{2028}\x{2029}]`)
	brokenEscapes   = regexp.MustCompile(`%[^0-9A-Fa-f]{1,2}`)
	badURLCharsRepl = strings.NewReplacer(
		"[", "", "]", "", "|", "", `\`, "", "^", "", `"`, "",
		"”", "", "“", "", "'", "", "‘", "", "’", "", "…", "",
		"\n", "", "\t", "",
	)
)

// CleanURL strips characters commonly seen in scraped URLs and percent-encodes
// the path, query and fragment. It reports false when the result still does
// not parse or is empty; callers keep the original value in that case.
func CleanURL(raw string) (string, bool) {
	s := controlChars.ReplaceAllString(raw, "")
	s = badURLCharsRepl.Replace(s)
	s = brokenEscapes.ReplaceAllString(s, "")

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Opaque != "" {
		return s, s != ""
	}

	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteByte(':')
	}
	if u.Host != "" || u.User != nil {
		b.WriteString("//")
		if u.User != nil {
			b.WriteString(u.User.String())
			b.WriteByte('@')
		}
		b.WriteString(u.Host)
	}
	b.WriteString(quote(u.Path, "/;", false))
	if u.RawQuery != "" || u.ForceQuery {
		b.WriteByte('?')
		b.WriteString(quote(u.RawQuery, "=&", true))
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(quote(u.Fragment, "", false))
	}

	out := b.String()
	return out, out != ""
}

// SanitizeURLs cleans url objects' values and every external reference url.
func SanitizeURLs(objects []stix.Object) (int, error) {
	changed := 0
	clean := func(m map[string]any, key string) {
		val, _ := m[key].(string)
		if val == "" {
			return
		}
		if cleaned, ok := CleanURL(val); ok && cleaned != val {
			m[key] = cleaned
			changed++
		}
	}

	for _, obj := range objects {
		switch obj.Kind() {
		case stix.KindURL:
			clean(obj, "value")
		}
		for _, ref := range obj.Maps("external_references") {
			clean(ref, "url")
		}
	}
	return changed, nil
}

const upperHex = "0123456789ABCDEF"

func quote(s, safe string, keepEscapes bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isUnreserved(c) || strings.IndexByte(safe, c) >= 0:
			b.WriteByte(c)
		case keepEscapes && c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&15])
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

package content

import "strings"

// wifiEscaper backslash-escapes the characters that are special inside a
// WIFI: payload value.
var wifiEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	`:`, `\:`,
	`"`, `\"`,
)

// vcardEscaper escapes text values per the vCard 3.0 TEXT rules.
var vcardEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	`;`, `\;`,
	`,`, `\,`,
)

func escapeWiFi(s string) string {
	return wifiEscaper.Replace(s)
}

func escapeVCard(s string) string {
	return vcardEscaper.Replace(s)
}

// unescapeWiFi drops the backslash in front of any escaped character.
// A trailing lone backslash is kept.
func unescapeWiFi(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// unescapeVCard reverses escapeVCard. \n and \N become newlines.
func unescapeVCard(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// splitUnescaped splits s on sep, ignoring separators preceded by a backslash
// escape. Escapes are left in place for the caller to remove.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

package content

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// space is the whitespace set used for trimming and inside the patterns:
// ASCII controls, every Unicode separator and the byte order mark.
const space = `\t\n\v\f\r\p{Z}\x{FEFF}`

var (
	urlRegex   = regexp.MustCompile(`(?i)^https?://[^` + space + `/$.?#].[^` + space + `]*$`)
	phoneRegex = regexp.MustCompile(`^\+?\d{6,15}$`)
	emailRegex = regexp.MustCompile(`^[^` + space + `@]+@[^` + space + `@]+\.[^` + space + `@]+$`)

	// btcAddressRegex matches legacy (P2PKH/P2SH) Base58 addresses.
	btcAddressRegex = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

const (
	prefixSMS      = "sms:"
	prefixSMSTo    = "smsto:"
	prefixWiFi     = "WIFI:"
	prefixBitcoin  = "bitcoin:"
	prefixEthereum = "ethereum:"
	markerVCard    = "BEGIN:VCARD"
)

// Classified is the typed form of a scanned payload.
type Classified struct {
	Kind Kind `json:"kind"`
	// Raw is the scanned text exactly as received (not trimmed).
	Raw    string `json:"raw"`
	Fields Fields `json:"fields"`
}

// Classify converts raw scanned text into a typed record. It never fails:
// anything that matches no specific pattern is classified as text.
//
// Rules are tested against the trimmed input in a fixed order and the first
// match wins: url, phone, email, sms, wifi, vcard, crypto (scheme), crypto
// (address shape), text.
func Classify(raw string) Classified {
	s := strings.TrimFunc(raw, isSpace)
	if s == "" {
		return newClassified(KindText, raw, nil)
	}

	if urlRegex.MatchString(s) {
		return newClassified(KindURL, raw, Fields{FieldURL: s})
	}
	if phoneRegex.MatchString(s) {
		return newClassified(KindPhone, raw, Fields{FieldPhone: s})
	}
	if emailRegex.MatchString(s) {
		return newClassified(KindEmail, raw, Fields{FieldEmail: s})
	}

	lower := strings.ToLower(s)

	if strings.HasPrefix(lower, prefixSMSTo) || strings.HasPrefix(lower, prefixSMS) {
		if f, ok := parseSMS(s, lower); ok {
			return newClassified(KindSMS, raw, f)
		}
		return newClassified(KindText, raw, Fields{FieldText: s})
	}
	if strings.HasPrefix(s, prefixWiFi) {
		return newClassified(KindWiFi, raw, parseWiFi(s[len(prefixWiFi):]))
	}
	if strings.Contains(s, markerVCard) {
		return newClassified(KindVCard, raw, parseVCard(s))
	}

	if strings.HasPrefix(lower, prefixBitcoin) {
		return newClassified(KindCrypto, raw, Fields{FieldSymbol: SymbolBTC, FieldAddress: s[len(prefixBitcoin):]})
	}
	if strings.HasPrefix(lower, prefixEthereum) {
		return newClassified(KindCrypto, raw, Fields{FieldSymbol: SymbolETH, FieldAddress: s[len(prefixEthereum):]})
	}
	if btcAddressRegex.MatchString(s) {
		return newClassified(KindCrypto, raw, Fields{FieldSymbol: SymbolBTC, FieldAddress: s})
	}
	if ethAddressRegex.MatchString(s) {
		return newClassified(KindCrypto, raw, Fields{FieldSymbol: SymbolETH, FieldAddress: s})
	}

	return newClassified(KindText, raw, Fields{FieldText: s})
}

// isSpace matches the same set as the space pattern class.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\uFEFF':
		return true
	}
	return unicode.Is(unicode.Z, r)
}

func newClassified(kind Kind, raw string, f Fields) Classified {
	return Classified{Kind: kind, Raw: raw, Fields: Normalize(kind, f)}
}

// parseSMS handles both "sms:<phone>?body=<pct-encoded>" and the generator's
// "smsto:<phone>:<message>". ok is false when the body is not valid
// percent-encoding or decodes to invalid UTF-8.
func parseSMS(s, lower string) (Fields, bool) {
	if strings.HasPrefix(lower, prefixSMSTo) {
		phone, body, _ := strings.Cut(s[len(prefixSMSTo):], ":")
		return Fields{FieldPhone: phone, FieldBody: body}, true
	}

	phone, query, _ := strings.Cut(s[len(prefixSMS):], "?")
	body := ""
	for _, param := range strings.Split(query, "&") {
		v, found := strings.CutPrefix(param, "body=")
		if !found {
			continue
		}
		decoded, err := url.PathUnescape(v)
		if err != nil || !utf8.ValidString(decoded) {
			return nil, false
		}
		body = decoded
		break
	}
	return Fields{FieldPhone: phone, FieldBody: body}, true
}

// parseWiFi reads the T/S/P segments of a WIFI: payload (prefix already
// stripped). Unknown and empty segments are ignored.
func parseWiFi(payload string) Fields {
	f := Fields{}
	for _, seg := range splitUnescaped(payload, ';') {
		switch {
		case strings.HasPrefix(seg, "T:"):
			f[FieldSecurity] = unescapeWiFi(seg[2:])
		case strings.HasPrefix(seg, "S:"):
			f[FieldSSID] = unescapeWiFi(seg[2:])
		case strings.HasPrefix(seg, "P:"):
			f[FieldPassword] = unescapeWiFi(seg[2:])
		}
	}
	return f
}

var vcardPrefixes = []struct {
	prefix string
	field  string
}{
	{"N:", FieldName},
	{"TEL:", FieldPhone},
	{"EMAIL:", FieldEmail},
	{"ORG:", FieldOrganization},
}

// parseVCard extracts name, phone, email and organization lines. Repeated
// properties overwrite earlier ones.
func parseVCard(s string) Fields {
	f := Fields{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		for _, p := range vcardPrefixes {
			if v, ok := strings.CutPrefix(line, p.prefix); ok {
				f[p.field] = unescapeVCard(strings.TrimSpace(v))
				break
			}
		}
	}
	return f
}

package content

import "strings"

// Encoded is the canonical payload generated from a form.
type Encoded struct {
	Mode    Kind   `json:"mode"`
	Content string `json:"content"`
	// FormData echoes the input restricted to the mode's schema, kept for
	// re-editing from history.
	FormData Fields `json:"form_data"`
}

// Encode builds the canonical QR payload for mode from form. It never fails:
// absent fields are treated as empty strings. Callers decide whether an
// empty result is acceptable (see IsBlank).
//
// Wi-Fi and vCard values are escaped so that separators inside values
// survive a round trip through Classify.
func Encode(mode Kind, form Fields) Encoded {
	if !mode.Valid() {
		mode = KindText
	}
	f := Normalize(mode, form)
	return Encoded{Mode: mode, Content: render(mode, f), FormData: f}
}

func render(mode Kind, f Fields) string {
	switch mode {
	case KindURL:
		u := f[FieldURL]
		if strings.TrimSpace(u) == "" {
			return ""
		}
		if strings.HasPrefix(u, "http") {
			return u
		}
		return "https://" + u
	case KindPhone:
		return "tel:" + f[FieldPhone]
	case KindEmail:
		return "mailto:" + f[FieldEmail]
	case KindSMS:
		return prefixSMSTo + f[FieldPhone] + ":" + f[FieldBody]
	case KindWiFi:
		return prefixWiFi +
			"T:" + escapeWiFi(f[FieldSecurity]) +
			";S:" + escapeWiFi(f[FieldSSID]) +
			";P:" + escapeWiFi(f[FieldPassword]) + ";;"
	case KindVCard:
		return strings.Join([]string{
			markerVCard,
			"VERSION:3.0",
			"N:" + escapeVCard(f[FieldName]),
			"TEL:" + escapeVCard(f[FieldPhone]),
			"EMAIL:" + escapeVCard(f[FieldEmail]),
			"ORG:" + escapeVCard(f[FieldOrganization]),
			"END:VCARD",
		}, "\n")
	case KindCrypto:
		switch strings.ToUpper(f[FieldSymbol]) {
		case SymbolBTC:
			return prefixBitcoin + f[FieldAddress]
		case SymbolETH:
			return prefixEthereum + f[FieldAddress]
		default:
			return f[FieldAddress]
		}
	default:
		return f[FieldText]
	}
}

// IsBlank reports whether an encoded payload has nothing worth rendering.
func IsBlank(content string) bool {
	return strings.TrimFunc(content, isSpace) == ""
}

// Package content classifies scanned QR payloads into typed records and encodes
// structured form data back into canonical QR payload strings.
//
// Classify and Encode are pure functions: they keep no state and are safe for
// concurrent use.
package content

import (
	"fmt"
	"strings"
)

// Kind identifies which content schema applies to a payload.
type Kind string

const (
	KindURL    Kind = "url"
	KindPhone  Kind = "phone"
	KindEmail  Kind = "email"
	KindSMS    Kind = "sms"
	KindWiFi   Kind = "wifi"
	KindVCard  Kind = "vcard"
	KindCrypto Kind = "crypto"
	KindText   Kind = "text"
)

// Field keys shared by Classify, Encode and callers rendering forms.
const (
	FieldURL          = "url"
	FieldPhone        = "phone"
	FieldEmail        = "email"
	FieldBody         = "body"
	FieldSSID         = "ssid"
	FieldPassword     = "password"
	FieldSecurity     = "security"
	FieldName         = "name"
	FieldOrganization = "organization"
	FieldSymbol       = "symbol"
	FieldAddress      = "address"
	FieldText         = "text"
)

// formAliases maps generator form keys that differ from the schema keys.
// A schema key that is present and non-empty wins over its alias.
var formAliases = map[Kind]map[string]string{
	KindSMS:    {"message": FieldBody},
	KindVCard:  {"org": FieldOrganization},
	KindCrypto: {"type": FieldSymbol},
}

// Crypto symbols.
const (
	SymbolBTC = "BTC"
	SymbolETH = "ETH"
)

var kinds = []Kind{KindURL, KindPhone, KindEmail, KindSMS, KindWiFi, KindVCard, KindCrypto, KindText}

var schemas = map[Kind][]string{
	KindURL:    {FieldURL},
	KindPhone:  {FieldPhone},
	KindEmail:  {FieldEmail},
	KindSMS:    {FieldPhone, FieldBody},
	KindWiFi:   {FieldSSID, FieldPassword, FieldSecurity},
	KindVCard:  {FieldName, FieldPhone, FieldEmail, FieldOrganization},
	KindCrypto: {FieldSymbol, FieldAddress},
	KindText:   {FieldText},
}

// Fields holds kind-specific values keyed by the schema's field names.
type Fields map[string]string

// Kinds returns every content kind in canonical order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := schemas[k]
	return ok
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a user-supplied name into a Kind (case-insensitive).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown content kind %q (want one of %s)", s, joinKinds())
	}
	return k, nil
}

// Schema returns the field keys defined for kind. Unknown kinds get the text schema.
func Schema(kind Kind) []string {
	keys, ok := schemas[kind]
	if !ok {
		keys = schemas[KindText]
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// EmptyFields returns a Fields value with every schema key for kind set to "".
func EmptyFields(kind Kind) Fields {
	f := make(Fields, len(schemas[kind]))
	for _, key := range Schema(kind) {
		f[key] = ""
	}
	return f
}

// Normalize restricts f to the schema keys for kind, filling absent keys with "".
// Form aliases (sms "message", vcard "org", crypto "type") fill their schema
// key when it is empty.
func Normalize(kind Kind, f Fields) Fields {
	out := EmptyFields(kind)
	for key := range out {
		out[key] = f[key]
	}
	for alias, key := range formAliases[kind] {
		if out[key] == "" {
			out[key] = f[alias]
		}
	}
	return out
}

func joinKinds() string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

package content

import (
	"net/url"
	"strings"
)

// ActionType names a platform action a client can perform for a payload.
type ActionType string

const (
	ActionOpenURL   ActionType = "open_url"
	ActionCall      ActionType = "call"
	ActionSendEmail ActionType = "send_email"
	ActionSendSMS   ActionType = "send_sms"
)

// Action is the platform action for a classified payload.
type Action struct {
	Type ActionType `json:"type"`
	// Target is the URI to hand to the platform (tel:, mailto:, sms: or the URL).
	Target string `json:"target"`
	// LabelKey is the localization key for the action button.
	LabelKey string `json:"label_key"`
}

// ActionFor maps a classified payload to its platform action. Wi-Fi, vCard,
// crypto and text have no action and return false.
func ActionFor(c Classified) (Action, bool) {
	switch c.Kind {
	case KindURL:
		return Action{Type: ActionOpenURL, Target: c.Fields[FieldURL], LabelKey: "detail_open_url"}, true
	case KindPhone:
		return Action{Type: ActionCall, Target: "tel:" + c.Fields[FieldPhone], LabelKey: "detail_call"}, true
	case KindEmail:
		return Action{Type: ActionSendEmail, Target: "mailto:" + c.Fields[FieldEmail], LabelKey: "detail_send_email"}, true
	case KindSMS:
		target := prefixSMS + c.Fields[FieldPhone] + "?body=" + encodeURIComponent(c.Fields[FieldBody])
		return Action{Type: ActionSendSMS, Target: target, LabelKey: "detail_send_sms"}, true
	default:
		return Action{}, false
	}
}

// encodeURIComponent percent-encodes s for use as a query value, using %20
// for spaces so the result decodes identically with path unescaping.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

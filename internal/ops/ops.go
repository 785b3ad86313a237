package ops

import (
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"

	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	MaxQueryLength   = 500
)

// Settings keys stored in the settings table.
const (
	SettingTheme             = "theme"
	SettingLanguage          = "language"
	SettingHasSeenOnboarding = "has_seen_onboarding"
	SettingScanCount         = "scan_count"
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

var validate = validator.New()

// One monotonic source for the whole process keeps ids ordered even when
// several entries are created within the same millisecond.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// generateULID returns a new ULID for t.
func generateULID(t time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// newIdentity assigns the id and creation time of a new history entry.
func newIdentity() (string, int64, error) {
	now := time.Now()
	id, err := generateULID(now)
	if err != nil {
		return "", 0, errors.NewInternal(err)
	}
	return id, now.UnixMilli(), nil
}

// clampPage applies limit defaults and bounds.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// parseList converts a list name to a history.List, reporting INVALID_REQUEST.
func parseList(s string) (history.List, error) {
	if strings.TrimSpace(s) == "" {
		return "", errors.NewInvalidRequest("list is required (scanned or generated)")
	}
	list, err := history.ParseList(s)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	return list, nil
}

// parseOptionalList is parseList for filters where empty means "both lists".
func parseOptionalList(s string) (*history.List, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	list, err := parseList(s)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// parseKind converts a kind or mode name, reporting INVALID_REQUEST.
func parseKind(s string) (content.Kind, error) {
	kind, err := content.ParseKind(s)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	return kind, nil
}

// requireID trims and checks an entry id.
func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}

// validateInput runs struct-tag validation and converts failures to INVALID_REQUEST.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewInternal(err)
	}

	msgs := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
		field := lo.SnakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", field)
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		default:
			return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
		}
	})
	return errors.NewInvalidRequest(strings.Join(msgs, "; "))
}

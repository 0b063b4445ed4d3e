// services/variables.go
package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"weddingflow-backend/models"
)

// MissingValue replaces any variable whose source data is absent.
const MissingValue = "TBD"

// Supported placeholder keys.
const (
	VarGuestName      = "guestName"
	VarEventDate      = "eventDate"
	VarEventStartTime = "eventStartTime"
	VarCoupleName     = "coupleName"
	VarRSVPLink       = "rsvpLink"
	VarPaymentLink    = "paymentLink"
	VarGiftLink       = "giftLink"
	VarGuestID        = "guestId"
	VarWeddingID      = "weddingId"
)

var supportedVariables = map[string]bool{
	VarGuestName:      true,
	VarEventDate:      true,
	VarEventStartTime: true,
	VarCoupleName:     true,
	VarRSVPLink:       true,
	VarPaymentLink:    true,
	VarGiftLink:       true,
	VarGuestID:        true,
	VarWeddingID:      true,
}

// SupportedVariables returns the placeholder keys templates may use.
func SupportedVariables() []string {
	keys := make([]string, 0, len(supportedVariables))
	for k := range supportedVariables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	// group 1 is the {{key}} form, group 2 the legacy {key} form
	placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}|\{(\w+)\}`)
	primaryPattern     = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
)

var dateLayouts = map[string]string{
	"en": "Monday, January 2, 2006",
	"he": "02/01/2006",
}

type VariableValidation struct {
	Valid       bool     `json:"valid"`
	Supported   []string `json:"supported"`
	Unsupported []string `json:"unsupported"`
}

// VariableEngine renders template bodies for one recipient.
type VariableEngine struct {
	baseURL string
}

// NewVariableEngine creates an engine that builds links under baseURL.
func NewVariableEngine(baseURL string) *VariableEngine {
	return &VariableEngine{baseURL: strings.TrimRight(baseURL, "/")}
}

// PopulateVariables resolves every supported key for guest at wedding. An
// empty locale uses the wedding's locale.
func (e *VariableEngine) PopulateVariables(guest models.Guest, wedding models.Wedding, locale string) map[string]string {
	if locale == "" {
		locale = wedding.Locale
	}
	layout, ok := dateLayouts[locale]
	if !ok {
		layout = dateLayouts["en"]
	}

	vars := map[string]string{
		VarGuestName:      orMissing(strings.TrimSpace(guest.Name)),
		VarEventDate:      MissingValue,
		VarEventStartTime: orMissing(wedding.StartTime),
		VarCoupleName:     coupleName(wedding),
		VarRSVPLink:       e.link("rsvp", wedding.ID.String(), guest.ID.String()),
		VarPaymentLink:    e.linkOr(wedding.PaymentLink, "pay", wedding.ID.String()),
		VarGiftLink:       e.linkOr(wedding.GiftLink, "gift", wedding.ID.String()),
		VarGuestID:        guest.ID.String(),
		VarWeddingID:      wedding.ID.String(),
	}
	if wedding.EventDate != nil && !wedding.EventDate.IsZero() {
		vars[VarEventDate] = wedding.EventDate.In(wedding.Location()).Format(layout)
	}
	return vars
}

func (e *VariableEngine) link(parts ...string) string {
	if e.baseURL == "" {
		return MissingValue
	}
	return e.baseURL + "/" + strings.Join(parts, "/")
}

func (e *VariableEngine) linkOr(configured string, parts ...string) string {
	if configured != "" {
		return configured
	}
	return e.link(parts...)
}

func coupleName(w models.Wedding) string {
	bride, groom := strings.TrimSpace(w.BrideName), strings.TrimSpace(w.GroomName)
	switch {
	case bride != "" && groom != "":
		return fmt.Sprintf("%s & %s", bride, groom)
	case bride != "":
		return bride
	case groom != "":
		return groom
	}
	return MissingValue
}

func orMissing(s string) string {
	if s == "" {
		return MissingValue
	}
	return s
}

// ReplaceVariables substitutes {{key}} and {key} placeholders for keys in
// resolved. Unknown placeholders are kept as written. The body is scanned
// once, so substituted values are never themselves expanded.
func ReplaceVariables(body string, resolved map[string]string) string {
	matches := placeholderPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))
	last := 0
	for _, m := range matches {
		key := placeholderKey(body, m)
		value, ok := resolved[key]
		if !ok {
			continue
		}
		b.WriteString(body[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(body[last:])
	return b.String()
}

func placeholderKey(body string, m []int) string {
	if m[2] >= 0 {
		return body[m[2]:m[3]]
	}
	return body[m[4]:m[5]]
}

// ExtractUsedVariables returns the sorted set of {{key}} names in body.
func ExtractUsedVariables(body string) []string {
	seen := make(map[string]bool)
	for _, m := range primaryPattern.FindAllStringSubmatch(body, -1) {
		seen[m[1]] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateTemplateVariables is advisory. It never blocks saving a template.
func ValidateTemplateVariables(body string) VariableValidation {
	result := VariableValidation{Supported: []string{}, Unsupported: []string{}}
	for _, key := range ExtractUsedVariables(body) {
		if supportedVariables[key] {
			result.Supported = append(result.Supported, key)
		} else {
			result.Unsupported = append(result.Unsupported, key)
		}
	}
	result.Valid = len(result.Unsupported) == 0
	return result
}

// UnresolvedVariables lists placeholder keys still present in a rendered body.
func UnresolvedVariables(rendered string) []string {
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(rendered, -1) {
		seen[placeholderKey(rendered, m)] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentVariables maps the template's positional keys to rendered values.
// A placeholder may be written as {{key}} or as a bare key name.
func ContentVariables(template models.Template, resolved map[string]string) map[string]string {
	out := make(map[string]string, len(template.Variables))
	for position, placeholder := range template.Variables {
		if value, ok := resolved[strings.TrimSpace(placeholder)]; ok {
			out[position] = value
			continue
		}
		out[position] = ReplaceVariables(placeholder, resolved)
	}
	return out
}

// RenderBody renders the template body. Positional keys from content take
// part in substitution so provider-style {{1}} bodies render too.
func RenderBody(template models.Template, resolved, content map[string]string) string {
	merged := make(map[string]string, len(resolved)+len(content))
	for k, v := range resolved {
		merged[k] = v
	}
	for k, v := range content {
		merged[k] = v
	}
	return ReplaceVariables(template.Body, merged)
}

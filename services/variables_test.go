// services/variables_test.go
package services

import (
	"testing"
	"time"
	_ "time/tzdata"

	"weddingflow-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testWedding() models.Wedding {
	event := time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)
	return models.Wedding{
		ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		BrideName: "Noa",
		GroomName: "Eitan",
		EventDate: &event,
		StartTime: "19:30",
		TimeZone:  "UTC",
		Locale:    "en",
	}
}

func testGuest() models.Guest {
	return models.Guest{
		ID:    uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Name:  "Dana",
		Phone: "+972501234567",
	}
}

func TestPopulateVariables(t *testing.T) {
	engine := NewVariableEngine("https://example.com/")
	vars := engine.PopulateVariables(testGuest(), testWedding(), "")

	assert.Equal(t, "Dana", vars[VarGuestName])
	assert.Equal(t, "Sunday, June 14, 2026", vars[VarEventDate])
	assert.Equal(t, "19:30", vars[VarEventStartTime])
	assert.Equal(t, "Noa & Eitan", vars[VarCoupleName])
	assert.Equal(t, "https://example.com/rsvp/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222", vars[VarRSVPLink])
	assert.Equal(t, "https://example.com/pay/11111111-1111-1111-1111-111111111111", vars[VarPaymentLink])
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", vars[VarGuestID])

	for _, key := range SupportedVariables() {
		assert.NotEmpty(t, vars[key], key)
	}
}

func TestPopulateVariablesFallbacks(t *testing.T) {
	engine := NewVariableEngine("")
	wedding := models.Wedding{ID: uuid.New(), GiftLink: "https://gifts.example.com/noa"}
	vars := engine.PopulateVariables(models.Guest{ID: uuid.New()}, wedding, "fr")

	assert.Equal(t, MissingValue, vars[VarGuestName])
	assert.Equal(t, MissingValue, vars[VarEventDate])
	assert.Equal(t, MissingValue, vars[VarEventStartTime])
	assert.Equal(t, MissingValue, vars[VarCoupleName])
	assert.Equal(t, MissingValue, vars[VarRSVPLink])
	assert.Equal(t, "https://gifts.example.com/noa", vars[VarGiftLink])
}

func TestPopulateVariablesHebrewDate(t *testing.T) {
	vars := NewVariableEngine("").PopulateVariables(testGuest(), testWedding(), "he")
	assert.Equal(t, "14/06/2026", vars[VarEventDate])
}

func TestPopulateVariablesUsesEventTimeZone(t *testing.T) {
	wedding := testWedding()
	late := time.Date(2026, 6, 14, 22, 30, 0, 0, time.UTC)
	wedding.EventDate = &late
	wedding.TimeZone = "Asia/Jerusalem"

	vars := NewVariableEngine("").PopulateVariables(testGuest(), wedding, "he")
	assert.Equal(t, "15/06/2026", vars[VarEventDate])
}

func TestReplaceVariables(t *testing.T) {
	vars := map[string]string{"guestName": "Dana", "eventDate": "June 14"}

	cases := []struct {
		name string
		body string
		want string
	}{
		{"primary", "Hi {{guestName}}, see you {{eventDate}}", "Hi Dana, see you June 14"},
		{"whitespace", "Hi {{ guestName }}", "Hi Dana"},
		{"legacy", "Hi {guestName}", "Hi Dana"},
		{"unknown kept", "Hi {{guestName}} {{tableNumber}} {seat}", "Hi Dana {{tableNumber}} {seat}"},
		{"no placeholders", "Plain text", "Plain text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReplaceVariables(tc.body, vars))
		})
	}
}

func TestReplaceVariablesIsIdempotent(t *testing.T) {
	vars := NewVariableEngine("https://example.com").PopulateVariables(testGuest(), testWedding(), "en")
	bodies := []string{
		"Hi {{guestName}}, {{coupleName}} invite you on {{eventDate}} at {{eventStartTime}}. RSVP: {{rsvpLink}}",
		"Legacy {guestName} and {{unknown}}",
		"",
	}
	for _, body := range bodies {
		once := ReplaceVariables(body, vars)
		assert.Equal(t, once, ReplaceVariables(once, vars))
	}
}

func TestExtractUsedVariables(t *testing.T) {
	assert.Equal(t, []string{"eventDate", "guestName"},
		ExtractUsedVariables("Hi {{guestName}}, see you {{eventDate}}"))
	assert.Equal(t, []string{"guestName"},
		ExtractUsedVariables("{{guestName}} {{ guestName }} {legacy}"))
	assert.Empty(t, ExtractUsedVariables("nothing here"))
}

func TestValidateTemplateVariables(t *testing.T) {
	ok := ValidateTemplateVariables("Hi {{guestName}} {{rsvpLink}}")
	assert.True(t, ok.Valid)
	assert.Equal(t, []string{"guestName", "rsvpLink"}, ok.Supported)
	assert.Empty(t, ok.Unsupported)

	bad := ValidateTemplateVariables("Hi {{guestName}} at table {{tableNumber}}")
	assert.False(t, bad.Valid)
	assert.Equal(t, []string{"tableNumber"}, bad.Unsupported)
}

func TestUnresolvedVariables(t *testing.T) {
	assert.Equal(t, []string{"seat", "tableNumber"}, UnresolvedVariables("Dana {{tableNumber}} {seat}"))
	assert.Empty(t, UnresolvedVariables("Dana"))
}

func TestContentVariablesAndRenderBody(t *testing.T) {
	resolved := map[string]string{"guestName": "Dana", "coupleName": "Noa & Eitan"}
	tpl := models.Template{
		Body:      "Hi {{1}}, {{2}} are getting married!",
		Variables: map[string]string{"1": "{{guestName}}", "2": "coupleName"},
	}

	content := ContentVariables(tpl, resolved)
	assert.Equal(t, map[string]string{"1": "Dana", "2": "Noa & Eitan"}, content)
	assert.Equal(t, "Hi Dana, Noa & Eitan are getting married!", RenderBody(tpl, resolved, content))
}

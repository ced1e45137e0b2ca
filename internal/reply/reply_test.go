package reply

import (
	"strings"
	"testing"

	"github.com/blociq/comms-engine/internal/enrich"
	"github.com/blociq/comms-engine/internal/tone"
	"github.com/blociq/comms-engine/pkg/models"
)

func enrichment() models.Enrichment {
	return models.Enrichment{
		ResidentName: "Sarah Khan",
		UnitLabel:    "Flat 12",
		BuildingName: "Ashworth House",
		Facts: map[string]string{
			models.FactFRALast:          "2024-03-15",
			models.FactFRANext:          "2025-03-15",
			models.FactFireDoorLast:     "2024-06-01",
			models.FactEICRLast:         "2021-09-30",
			models.FactEICRNext:         "2026-09-30",
			models.FactEmergencyContact: "0800 123 456",
		},
	}
}

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
	}{
		{"plain token", "Dear {{name}},", map[string]string{"name": "Sam"}, "Dear Sam,"},
		{"default used", `Dear {{name||"Resident"}},`, nil, "Dear Resident,"},
		{"value beats default", `Dear {{name||"Resident"}},`, map[string]string{"name": "Sam"}, "Dear Sam,"},
		{"blank value falls back", `Dear {{name||"Resident"}},`, map[string]string{"name": "  "}, "Dear Resident,"},
		{"unknown token never leaks", "Ref {{missing}} end", nil, "Ref  end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.template, tt.values); got != tt.want {
				t.Errorf("Interpolate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuild_NoUnresolvedTokens(t *testing.T) {
	tones := []models.ToneLabel{
		models.ToneNeutral, models.ToneConcerned, models.ToneAngry, models.ToneAbusive,
	}
	hints := []models.TopicHint{
		models.TopicFire, models.TopicLeak, models.TopicCosts,
		models.TopicEICR, models.TopicCompliance, models.TopicGeneral,
	}
	for _, label := range tones {
		for _, hint := range hints {
			body := Build(models.Enrichment{}, models.ToneResult{Label: label}, hint)
			if strings.Contains(body, "{{") || strings.Contains(body, "}}") {
				t.Errorf("unresolved token in %s/%s output:\n%s", label, hint, body)
			}
		}
	}
}

func TestBuild_ResidentNameDefault(t *testing.T) {
	body := Build(models.Enrichment{}, models.ToneResult{Label: models.ToneNeutral}, models.TopicGeneral)
	if !strings.HasPrefix(body, "Dear Resident,") {
		t.Errorf("missing resident default, got prefix %q", body[:30])
	}

	body = Build(enrichment(), models.ToneResult{Label: models.ToneNeutral}, models.TopicGeneral)
	if !strings.HasPrefix(body, "Dear Sarah Khan,") {
		t.Errorf("resident name not used, got prefix %q", body[:30])
	}
}

func TestBuild_BoundaryParagraphOnlyWhenAbusive(t *testing.T) {
	boundary := "respectful communication"

	neutral := Build(enrichment(), models.ToneResult{Label: models.ToneNeutral}, models.TopicFire)
	if strings.Contains(neutral, boundary) {
		t.Error("boundary paragraph present in neutral output")
	}

	abusive := Build(enrichment(), models.ToneResult{Label: models.ToneAbusive}, models.TopicFire)
	if !strings.Contains(abusive, boundary) {
		t.Error("boundary paragraph missing from abusive output")
	}
}

func TestBuild_EscalationSentence(t *testing.T) {
	escalation := "senior manager"

	withFlag := Build(enrichment(), models.ToneResult{Label: models.ToneAbusive, EscalationRequired: true}, models.TopicFire)
	if !strings.Contains(withFlag, escalation) {
		t.Error("escalation sentence missing when escalation required")
	}

	withoutFlag := Build(enrichment(), models.ToneResult{Label: models.ToneAbusive}, models.TopicFire)
	if strings.Contains(withoutFlag, escalation) {
		t.Error("escalation sentence present without the flag")
	}

	// The escalation flag changes nothing below the abusive band.
	angry := Build(enrichment(), models.ToneResult{Label: models.ToneAngry, EscalationRequired: true}, models.TopicFire)
	if strings.Contains(angry, escalation) {
		t.Error("escalation sentence must only appear with abusive tone")
	}
}

func TestBuild_TimeframeEscalatesWithTone(t *testing.T) {
	tests := []struct {
		label models.ToneLabel
		want  string
	}{
		{models.ToneNeutral, "2 working days"},
		{models.ToneConcerned, "2 working days"},
		{models.ToneAngry, "24 hours"},
		{models.ToneAbusive, "1 working day"},
	}
	for _, tt := range tests {
		body := Build(enrichment(), models.ToneResult{Label: tt.label}, models.TopicGeneral)
		if !strings.Contains(body, tt.want) {
			t.Errorf("%s output missing timeframe %q", tt.label, tt.want)
		}
	}
}

func TestBuild_AbusiveShortensFactBlock(t *testing.T) {
	full := Build(enrichment(), models.ToneResult{Label: models.ToneNeutral}, models.TopicFire)
	short := Build(enrichment(), models.ToneResult{Label: models.ToneAbusive}, models.TopicFire)

	if !strings.Contains(full, "fire door inspection") {
		t.Error("full fact set missing fire door line")
	}
	if strings.Contains(short, "fire door inspection") {
		t.Error("abusive output should drop trailing fact lines")
	}
	if !strings.Contains(short, "Last fire risk assessment") {
		t.Error("abusive output should keep the leading fact lines")
	}
}

func TestBuild_FactsUseUKDatesAndFallback(t *testing.T) {
	body := Build(enrichment(), models.ToneResult{Label: models.ToneNeutral}, models.TopicFire)
	if !strings.Contains(body, "15/03/2024") {
		t.Errorf("ISO date not rendered as UK date:\n%s", body)
	}
	// alarmServiceLast is absent from the fixture.
	if !strings.Contains(body, enrich.Fallback) {
		t.Errorf("missing fact did not render the fallback:\n%s", body)
	}
}

// Full pipeline scenarios from the inbound-message flow.
func TestScenario_AbusiveFireDoorComplaint(t *testing.T) {
	msg := "THIS IS OUTRAGEOUS!!! I will call my SOLICITOR about this FIRE DOOR issue!!!"
	toneResult := tone.Classify(msg, "", false)

	body := Build(enrichment(), toneResult, models.TopicFire)

	if !strings.Contains(body, "1 working day") {
		t.Error("abusive reply missing 1-working-day commitment")
	}
	if !strings.Contains(body, "respectful communication") {
		t.Error("abusive reply missing boundary paragraph")
	}
	if strings.Contains(body, "fire door inspection") {
		t.Error("abusive reply should carry the shortened fact block")
	}
}

func TestScenario_NeutralEICRQuery(t *testing.T) {
	msg := "Could someone let me know when the EICR is due?"
	toneResult := tone.Classify(msg, "", false)

	body := Build(enrichment(), toneResult, models.TopicEICR)

	if !strings.Contains(body, "2 working days") {
		t.Error("neutral reply missing 2-working-day commitment")
	}
	if strings.Contains(body, "respectful communication") {
		t.Error("neutral reply must not contain the boundary paragraph")
	}
	if !strings.Contains(body, "Next EICR due: 30/09/2026") {
		t.Errorf("neutral reply missing full fact block:\n%s", body)
	}
}

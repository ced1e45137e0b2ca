// Package reply assembles deterministic, tone-adapted reply bodies.
// Wording, fact volume, and response commitments are looked up from
// fixed per-tone tables — nothing here is generated text, so the output
// for a given input never changes.
//
// Placeholder substitution is a plain token-replace pass over
// {{token}} / {{token||"default"}} markers. It is deliberately not a
// general templating language: the simple pass is auditable and keeps
// the output deterministic.
package reply

import (
	"regexp"
	"strings"

	"github.com/blociq/comms-engine/internal/enrich"
	"github.com/blociq/comms-engine/internal/tone"
	"github.com/blociq/comms-engine/internal/topic"
	"github.com/blociq/comms-engine/pkg/models"
)

const signature = "Kind regards\n{{managerName||\"The Property Management Team\"}}"

// tokenRe matches {{token}} and {{token||"default"}}.
var tokenRe = regexp.MustCompile(`\{\{\s*(\w+)\s*(?:\|\|\s*"([^"]*)")?\s*\}\}`)

// Response commitments escalate with tone severity. This is policy, not
// inference.
var timeframes = map[models.ToneLabel]string{
	models.ToneNeutral:   "2 working days",
	models.ToneConcerned: "2 working days",
	models.ToneAngry:     "24 hours",
	models.ToneAbusive:   "1 working day",
}

var commitments = map[models.ToneLabel]string{
	models.ToneNeutral:   "We'll look into this and come back to you with next steps.",
	models.ToneConcerned: "We've logged this as a priority and will come back to you with next steps.",
	models.ToneAngry:     "This has been passed to the responsible manager for action.",
	models.ToneAbusive:   "Your message has been logged and will be dealt with through the appropriate channel.",
}

// Interpolate replaces every {{token}} marker using the values map,
// falling back to the token's inline default, then to the empty string.
// No marker survives in the output.
func Interpolate(template string, values map[string]string) string {
	return tokenRe.ReplaceAllStringFunc(template, func(m string) string {
		sub := tokenRe.FindStringSubmatch(m)
		name, def := sub[1], sub[2]
		if v, ok := values[name]; ok && strings.TrimSpace(v) != "" {
			return v
		}
		return def
	})
}

// Build assembles the full reply body for a classified message:
// greeting, tone-appropriate opening, facts block, next-steps paragraph,
// the boundary paragraph for abusive messages, and the signature.
func Build(e models.Enrichment, toneResult models.ToneResult, hint models.TopicHint) string {
	label := toneResult.Label

	sections := []string{
		"Dear {{residentName||\"Resident\"}},",
		tone.Opening(label, topic.Phrase(hint)),
	}

	if facts := factsBlock(e, hint, label); facts != "" {
		sections = append(sections, facts)
	}

	sections = append(sections,
		commitments[label]+" We'll update you within "+timeframes[label]+".")

	if label == models.ToneAbusive {
		sections = append(sections, tone.BoundaryText(toneResult.EscalationRequired))
	}

	sections = append(sections, signature)

	values := map[string]string{
		"residentName": e.ResidentName,
		"buildingName": e.BuildingName,
		"unitLabel":    e.UnitLabel,
	}
	return Interpolate(strings.Join(sections, "\n\n"), values)
}

type factLine struct {
	label string
	key   string
	date  bool
}

// Fact lines per topic, most relevant first. The abusive-tone reply
// deliberately shows fewer dated items to keep the message short.
var topicFacts = map[models.TopicHint][]factLine{
	models.TopicFire: {
		{"Last fire risk assessment", models.FactFRALast, true},
		{"Next fire risk assessment due", models.FactFRANext, true},
		{"Last fire door inspection", models.FactFireDoorLast, true},
		{"Last alarm service", models.FactAlarmServiceLast, true},
	},
	models.TopicLeak: {
		{"Open leak ticket", models.FactOpenLeakTicket, false},
		{"Emergency contact", models.FactEmergencyContact, false},
	},
	models.TopicEICR: {
		{"Last EICR", models.FactEICRLast, true},
		{"Next EICR due", models.FactEICRNext, true},
	},
	models.TopicCompliance: {
		{"Last gas safety check", models.FactGasLast, true},
		{"Next gas safety check due", models.FactGasNext, true},
		{"Last asbestos survey", models.FactAsbestosLast, true},
		{"Next asbestos review due", models.FactAsbestosNext, true},
	},
	models.TopicCosts: {
		{"Emergency contact", models.FactEmergencyContact, false},
	},
	models.TopicGeneral: {
		{"Emergency contact", models.FactEmergencyContact, false},
	},
}

// abusiveFactLimit caps the fact lines shown in an abusive-tone reply.
const abusiveFactLimit = 2

func factsBlock(e models.Enrichment, hint models.TopicHint, label models.ToneLabel) string {
	lines := topicFacts[hint]
	if label == models.ToneAbusive && len(lines) > abusiveFactLimit {
		lines = lines[:abusiveFactLimit]
	}
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("What we have on record:")
	for _, l := range lines {
		value := e.Fact(l.key)
		if l.date {
			value = enrich.FormatUKDate(value)
		} else {
			value = enrich.FormatOrFallback(value)
		}
		b.WriteString("\n- " + l.label + ": " + value)
	}
	return b.String()
}

// Package topic classifies an inbound message into a coarse
// subject-matter hint via ordered keyword groups. Fire-safety terms take
// priority over everything else; the first group with a match wins.
package topic

import (
	"strings"

	"github.com/blociq/comms-engine/pkg/models"
)

type keywordGroup struct {
	hint     models.TopicHint
	keywords []string
}

// Groups are evaluated in order; earlier groups outrank later ones.
var groups = []keywordGroup{
	{
		hint: models.TopicFire,
		keywords: []string{
			"fire", "fire door", "fire alarm", "smoke", "fra",
			"fire risk assessment", "fire safety", "emergency exit",
			"evacuation", "sprinkler",
		},
	},
	{
		hint: models.TopicLeak,
		keywords: []string{
			"leak", "water ingress", "ingress", "damp", "flooding",
			"flood", "pipe", "plumbing", "drip", "wet ceiling",
			"overflow",
		},
	},
	{
		hint: models.TopicEICR,
		keywords: []string{
			"eicr", "electrical", "electrics", "wiring", "fuse board",
			"consumer unit", "electrical installation",
		},
	},
	{
		hint: models.TopicCompliance,
		keywords: []string{
			"gas", "gas safety", "asbestos", "compliance", "certificate",
			"inspection", "legionella", "lift report", "ews1",
		},
	},
	{
		hint: models.TopicCosts,
		keywords: []string{
			"service charge", "ground rent", "section 20", "s20",
			"major works", "invoice", "arrears", "budget", "costs",
			"demand", "statutory notice",
		},
	},
}

// Detect returns the topic hint for a message. It is deterministic and
// total: empty or unmatched input yields TopicGeneral.
func Detect(text string) models.TopicHint {
	content := strings.ToLower(text)
	for _, g := range groups {
		for _, kw := range g.keywords {
			if strings.Contains(content, kw) {
				return g.hint
			}
		}
	}
	return models.TopicGeneral
}

// Phrase returns the human-readable phrase used when referencing the
// topic in a reply ("the fire safety matter you raised", etc.).
func Phrase(hint models.TopicHint) string {
	switch hint {
	case models.TopicFire:
		return "the fire safety matter you raised"
	case models.TopicLeak:
		return "the leak you reported"
	case models.TopicEICR:
		return "the electrical inspection (EICR)"
	case models.TopicCompliance:
		return "the compliance matter you raised"
	case models.TopicCosts:
		return "your service charge query"
	default:
		return "your enquiry"
	}
}

package tone

import "github.com/blociq/comms-engine/pkg/models"

// Profile describes how a reply should be styled for a tone band.
type Profile struct {
	EmpathyLevel  string
	UseExclaim    bool
	UseSofteners  bool
	SentenceStyle string
	ClosingStyle  string
}

var profiles = map[models.ToneLabel]Profile{
	models.ToneNeutral: {
		EmpathyLevel:  "warm",
		UseExclaim:    true,
		UseSofteners:  true,
		SentenceStyle: "conversational",
		ClosingStyle:  "warm",
	},
	models.ToneConcerned: {
		EmpathyLevel:  "clear",
		UseSofteners:  true,
		SentenceStyle: "reassuring",
		ClosingStyle:  "professional",
	},
	models.ToneAngry: {
		EmpathyLevel:  "concise",
		SentenceStyle: "factual",
		ClosingStyle:  "professional",
	},
	models.ToneAbusive: {
		EmpathyLevel:  "minimal",
		SentenceStyle: "boundary",
		ClosingStyle:  "firm",
	},
}

// ProfileFor returns the styling rules for a tone band. Unknown labels
// get the neutral profile.
func ProfileFor(label models.ToneLabel) Profile {
	if p, ok := profiles[label]; ok {
		return p
	}
	return profiles[models.ToneNeutral]
}

// Opening returns the tone-appropriate empathetic opening referencing
// the detected topic.
func Opening(label models.ToneLabel, topicPhrase string) string {
	switch label {
	case models.ToneConcerned:
		return "Thank you for raising this with us. I understand your concern about " + topicPhrase + " and we'll address this as a priority."
	case models.ToneAngry:
		return "I understand your frustration about " + topicPhrase + ". We'll address this promptly."
	case models.ToneAbusive:
		return "I recognise you're upset. I'll set out what we'll do next regarding " + topicPhrase + "."
	default:
		return "Thank you for getting in touch about " + topicPhrase + ". I understand your concern and we'll make sure this is handled promptly."
	}
}

// BoundaryText returns the boundary-setting paragraph used for abusive
// messages, with the escalation-to-management sentence appended only
// when the message requires escalation.
func BoundaryText(escalationRequired bool) string {
	boundary := "We're here to help and will continue to do so, but we can only engage through respectful communication."
	if escalationRequired {
		boundary += "\n\nFor everyone's safety, I'm escalating this to a senior manager. We'll update you within 1 working day."
	}
	return boundary
}

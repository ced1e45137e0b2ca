// Package tone implements the deterministic tone classifier for inbound
// resident messages. It is heuristic by design — keyword sets, lexical
// intensity, and structural patterns summed into one raw score — so every
// classification can be explained and audited. No model calls, no state.
//
// Five signal analyzers contribute to the score:
//
//	keywords    → abuse, legal threats, anger, frustration, concern
//	intensity   → exclamations, shouting ratio, repeated punctuation
//	structure   → curt messages, negative statements, rhetorical questions
//	escalation  → legal/regulatory threats, personal attacks
//	context     → prior unresolved complaints
package tone

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/blociq/comms-engine/pkg/models"
)

// escalationWeight is added whenever an escalation indicator matches;
// the indicator also forces EscalationRequired regardless of score.
const escalationWeight = 2.0

// Keyword sets, checked against the lower-cased subject+body.
var (
	abuseKeywords = []string{
		"idiot", "moron", "stupid", "pathetic excuse", "waste of space",
		"joke", "scam", "rip off", "thieves", "criminals", "fraudsters",
	}

	threatKeywords = []string{
		"sue", "legal action", "solicitor", "lawyer", "court", "ombudsman",
		"expose", "media", "social media", "review", "complain to", "report",
	}

	angerKeywords = []string{
		"furious", "outraged", "livid", "disgusted", "appalled", "sick of",
		"fed up", "had enough", "ridiculous", "pathetic", "useless",
		"incompetent", "terrible", "awful", "shocking", "disgraceful",
	}

	frustrationKeywords = []string{
		"frustrated", "annoyed", "irritated", "disappointed", "unhappy",
		"upset", "angry", "mad", "cross", "livid", "irate",
	}

	// Concern language is evidence against anger: constructive wording
	// discounts the running score rather than adding to it.
	concernKeywords = []string{
		"worried", "concerned", "anxious", "nervous", "bothered", "troubled",
		"uneasy", "alarmed", "distressed", "uncomfortable", "issue", "problem",
	}

	escalationKeywords = []string{
		"sue", "legal action", "solicitor", "lawyer", "court", "ombudsman",
		"trading standards", "environmental health", "council", "mp",
		"expose", "social media", "review site", "local news",
	}

	personalAttacks = []string{
		"you are", "you're useless", "incompetent", "pathetic excuse",
		"waste of space", "should be fired", "shouldn't have a job",
	}

	negationWords = []string{"not", "no", "never", "nothing", "none", "fail", "wrong", "bad"}

	repeatedPunctRe = regexp.MustCompile(`[!?]{2,}|\.{3,}`)
	repeatedCharRe  = regexp.MustCompile(`(.)\1{3,}`)
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
)

type signal struct {
	score   float64
	reasons []string
}

// Classify scores the message and maps the score to a tone band.
// It is pure and total: empty or unparsable input yields neutral with
// no reasons, never an error.
func Classify(body, subject string, priorUnresolvedComplaints bool) models.ToneResult {
	fullText := strings.ToLower(strings.TrimSpace(subject + " " + body))

	score := 0.0
	escalated := false

	// Escalation and abuse reasons surface first; everything else keeps
	// analyzer order.
	var priority, rest []string

	kw := analyzeKeywords(fullText)
	score += kw.score
	for _, r := range kw.reasons {
		if strings.HasPrefix(r, "abusive") {
			priority = append(priority, r)
		} else {
			rest = append(rest, r)
		}
	}

	in := analyzeIntensity(body)
	score += in.score
	rest = append(rest, in.reasons...)

	st := analyzeStructure(body)
	score += st.score
	rest = append(rest, st.reasons...)

	esc := analyzeEscalation(fullText)
	if esc.score > 0 || len(esc.reasons) > 0 {
		escalated = true
		score += escalationWeight
		priority = append(priority, esc.reasons...)
	}

	if priorUnresolvedComplaints {
		score += 1
		rest = append(rest, "prior unresolved complaints")
	}

	reasons := append(priority, rest...)
	if len(reasons) > 5 {
		reasons = reasons[:5]
	}

	return models.ToneResult{
		Label:              labelForScore(score, escalated),
		Reasons:            reasons,
		Confidence:         math.Min(score/5, 1),
		EscalationRequired: escalated,
	}
}

// analyzeKeywords applies the weighted keyword sets. Abuse carries the
// largest fixed weight; anger and frustration scale with match count but
// are capped; concern matches subtract, floored at zero.
func analyzeKeywords(text string) signal {
	var s signal

	if countMatches(text, abuseKeywords) > 0 {
		s.score += 4
		s.reasons = append(s.reasons, "abusive language detected")
	}

	if countMatches(text, threatKeywords) > 0 {
		s.score += 2
		s.reasons = append(s.reasons, "legal/escalation threats")
	}

	if n := countMatches(text, angerKeywords); n > 0 {
		s.score += math.Min(float64(n), 2)
		s.reasons = append(s.reasons, fmt.Sprintf("anger indicators (%d)", n))
	}

	if n := countMatches(text, frustrationKeywords); n > 0 {
		s.score += math.Min(float64(n)*0.5, 1.5)
		s.reasons = append(s.reasons, fmt.Sprintf("frustration indicators (%d)", n))
	}

	if countMatches(text, concernKeywords) > 0 && s.score > 0 {
		s.score = math.Max(s.score-0.5, 0)
		s.reasons = append(s.reasons, "constructive concern language")
	}

	return s
}

// analyzeIntensity scores lexical aggression markers in the raw body:
// exclamation volume, the ALL-CAPS "shouting ratio", repeated
// punctuation, and elongated words.
func analyzeIntensity(text string) signal {
	var s signal

	exclamations := strings.Count(text, "!")
	if exclamations > 2 {
		s.score += math.Min(float64(exclamations)*0.3, 2)
		s.reasons = append(s.reasons, fmt.Sprintf("excessive exclamation marks (%d)", exclamations))
	}

	words := strings.Fields(text)
	caps := 0
	for _, w := range words {
		if len(w) > 2 && isShouted(w) {
			caps++
		}
	}
	ratio := float64(caps) / math.Max(float64(len(words)), 1)
	if ratio > 0.1 {
		s.score += math.Min(ratio*8, 3)
		s.reasons = append(s.reasons, fmt.Sprintf("shouting detected (%d%% caps)", int(math.Round(ratio*100))))
	}

	if n := len(repeatedPunctRe.FindAllString(text, -1)); n > 0 {
		s.score += math.Min(float64(n)*0.5, 1.5)
		s.reasons = append(s.reasons, "repeated punctuation")
	}

	if repeatedCharRe.MatchString(text) {
		s.score += 0.5
		s.reasons = append(s.reasons, "character repetition")
	}

	return s
}

// analyzeStructure looks at message shape: very short emphatic messages,
// runs of negative statements, and aggressive rhetorical questioning.
func analyzeStructure(text string) signal {
	var s signal

	if len(strings.TrimSpace(text)) < 50 && strings.Contains(text, "!") {
		s.score += 1
		s.reasons = append(s.reasons, "short, emphatic message")
	}

	negative := 0
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		if len(strings.TrimSpace(sentence)) <= 5 {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, w := range negationWords {
			if strings.Contains(lower, w) {
				negative++
				break
			}
		}
	}
	if negative > 2 {
		s.score += 1
		s.reasons = append(s.reasons, "multiple negative statements")
	}

	if strings.Count(text, "?") > 2 && strings.Contains(text, "!") {
		s.score += 0.5
		s.reasons = append(s.reasons, "aggressive questioning")
	}

	return s
}

// analyzeEscalation scans for legal/regulatory-threat phrases and
// personal attacks. Any hit requires human handling regardless of the
// rest of the score.
func analyzeEscalation(text string) signal {
	var s signal

	var found []string
	for _, kw := range escalationKeywords {
		if strings.Contains(text, kw) {
			found = append(found, kw)
		}
	}
	if len(found) > 0 {
		s.score = 1
		if len(found) > 3 {
			found = found[:3]
		}
		s.reasons = append(s.reasons, "escalation threats: "+strings.Join(found, ", "))
	}

	if countMatches(text, personalAttacks) > 0 {
		s.score = 1
		s.reasons = append(s.reasons, "personal attacks detected")
	}

	return s
}

// labelForScore maps the raw score to a band. Escalation forces the
// ceiling: an escalated message is always abusive.
func labelForScore(score float64, escalated bool) models.ToneLabel {
	switch {
	case escalated || score >= 4:
		return models.ToneAbusive
	case score >= 2.5:
		return models.ToneAngry
	case score >= 1:
		return models.ToneConcerned
	default:
		return models.ToneNeutral
	}
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// isShouted reports whether a word is written entirely in capitals and
// contains at least one letter.
func isShouted(word string) bool {
	hasLetter := false
	for _, r := range word {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

package engine

import (
	"fmt"
	"strings"

	"github.com/blociq/comms-engine/internal/enrich"
	"github.com/blociq/comms-engine/pkg/models"
)

// buildSystemPrompt composes the house rules, the tone instructions and
// the serialized context bundle, plus the transform block when a prior
// draft is being restyled.
func buildSystemPrompt(req *models.EngineRequest, data *models.ContextData, previous *models.Draft) string {
	var b strings.Builder

	b.WriteString(`You are an expert assistant for UK leasehold property managers. You must follow these rules strictly:

CORE RULES:
- Use British English spelling throughout (analyse, summarise, organise, recognise, apologise, customise, centre, defence)
- Always use "Kind regards" as sign-off (no comma) unless user specifically requests otherwise
- Format dates as DD/MM/YYYY (British format)
- Never fabricate facts - say "Information not available" if context missing
- Preserve all dates, numbers, and legal references from context
- Use leasehold terminology (leaseholder, freeholder, managing agent, not tenant/landlord)
- Reference UK legislation where applicable (Landlord and Tenant Act 1985/1987, Building Safety Act 2022)

`)

	fmt.Fprintf(&b, "MODE: %s\n", strings.ToUpper(string(req.Mode)))
	if req.Tone != "" {
		fmt.Fprintf(&b, "TONE: %s\n", req.Tone)
	}
	b.WriteString("\n")
	b.WriteString(toneInstructions(req.Tone))
	b.WriteString("\n\n")
	b.WriteString(serializeContext(data))

	if req.Mode == models.ModeTransformReply && previous != nil {
		fmt.Fprintf(&b, `

TRANSFORM MODE INSTRUCTIONS:
- Maintain the exact subject line: "%s"
- Preserve all factual information, dates, and legal references
- Apply only the requested style/content changes
- Keep the same structure and length
- Do not add new information not present in the original`, previous.Subject)
	}

	return b.String()
}

func serializeContext(data *models.ContextData) string {
	var b strings.Builder

	b.WriteString("BUILDING CONTEXT:\n")
	if data.Building != nil {
		fmt.Fprintf(&b, "Building: %s\n", data.Building.Name)
		fmt.Fprintf(&b, "Address: %s\n", orNot(data.Building.Address, "Not specified"))
		if data.Building.UnitCount > 0 {
			fmt.Fprintf(&b, "Units: %d\n", data.Building.UnitCount)
		} else {
			b.WriteString("Units: Unknown\n")
		}
	} else {
		b.WriteString("No building context available\n")
	}

	if data.Leaseholder != nil {
		fmt.Fprintf(&b, "\nLEASEHOLDER: %s\n", data.Leaseholder.Name)
		fmt.Fprintf(&b, "Email: %s\n", orNot(data.Leaseholder.Email, "Not provided"))
		fmt.Fprintf(&b, "Phone: %s\n", orNot(data.Leaseholder.Phone, "Not provided"))
	}

	if len(data.Compliance) > 0 {
		b.WriteString("\nCOMPLIANCE ISSUES:\n")
		for _, item := range data.Compliance {
			due := enrich.Fallback
			if item.NextDue != nil {
				due = item.NextDue.Format("02/01/2006")
			}
			fmt.Fprintf(&b, "- %s (%s, due: %s)\n", item.AssetType, orNot(item.Status, "unknown"), due)
		}
	}

	if len(data.Documents) > 0 {
		b.WriteString("\nRELEVANT DOCUMENTS:\n")
		for _, doc := range data.Documents {
			fmt.Fprintf(&b, "- %s (%s)\n", doc.Name, doc.Type)
		}
	}

	if len(data.Emails) > 0 {
		b.WriteString("\nRELATED EMAILS:\n")
		for _, email := range data.Emails {
			fmt.Fprintf(&b, "- %s (%s)\n", email.Subject, email.FromEmail)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func orNot(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func toneInstructions(tone models.DraftTone) string {
	switch tone {
	case models.DraftToneHolding:
		return `HOLDING TONE:
- Polite and concise
- Ask for status/update with specific date request
- Maximum 150 words
- Professional but not overly formal`

	case models.DraftToneSolicitorFormal:
		return `SOLICITOR FORMAL TONE:
- Legal and precise language
- Cite relevant legislation if applicable
- Formal greeting and structure
- Professional legal terminology`

	case models.DraftToneResidentNotice:
		return `RESIDENT NOTICE TONE:
- Clear and informative
- Reference lease obligations where relevant
- Explain communal impact
- Professional but accessible`

	case models.DraftToneSupplierRequest:
		return `SUPPLIER REQUEST TONE:
- Direct and specific scope description
- Include urgency if needed
- Thank supplier for their service
- Professional and respectful`

	case models.DraftToneCasualChaser:
		return `CASUAL CHASER TONE:
- Light and friendly
- Maintain relationship
- Soft ask/reminder
- Professional but warm`

	default:
		return `DEFAULT TONE:
- Professional and helpful
- Appropriate for general communication
- Clear and actionable`
	}
}

// buildUserPrompt renders the mode-specific instruction.
func buildUserPrompt(req *models.EngineRequest, previous *models.Draft) string {
	switch req.Mode {
	case models.ModeTransformReply:
		return fmt.Sprintf(`Transform this email draft according to the request: "%s"

ORIGINAL DRAFT:
Subject: %s
Body: %s

Please apply the requested changes while preserving all factual information and structure.`,
			req.Input, previous.Subject, previous.BodyText)

	case models.ModeGenerateReply:
		var b strings.Builder
		if req.Tone != "" {
			fmt.Fprintf(&b, "Generate a new email in %s tone based on this request: %q\n", req.Tone, req.Input)
		} else {
			fmt.Fprintf(&b, "Generate a new email based on this request: %q\n", req.Input)
		}
		if req.EmailData != nil {
			if req.EmailData.Subject != "" {
				fmt.Fprintf(&b, "\nOriginal Subject: %s", req.EmailData.Subject)
			}
			if req.EmailData.Body != "" {
				fmt.Fprintf(&b, "\nOriginal Content: %s", req.EmailData.Body)
			}
			if req.EmailData.FromEmail != "" {
				fmt.Fprintf(&b, "\nFrom: %s", req.EmailData.FromEmail)
			}
		}
		b.WriteString("\n\nPlease create a professional, contextually appropriate response.")
		return b.String()

	case models.ModeAsk:
		return fmt.Sprintf(`Question: %s

Please provide a comprehensive answer using the available building and leaseholder context. If information is missing, clearly state what is not available.`, req.Input)

	default:
		return req.Input
	}
}

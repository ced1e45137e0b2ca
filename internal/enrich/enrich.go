// Package enrich builds the per-message Enrichment bundle: the resident,
// unit and building resolved from the sender address, plus the
// topic-scoped facts pulled from the property directory. Each inbound
// message gets a fresh lookup; bundles are never merged across messages.
package enrich

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/blociq/comms-engine/internal/topic"
	"github.com/blociq/comms-engine/pkg/contracts"
	"github.com/blociq/comms-engine/pkg/models"
)

// Build resolves the sender and collects the facts relevant to the
// detected topic. Lookup failures degrade to an empty bundle rather than
// failing the pipeline — a reply with fallbacks beats no reply.
func Build(ctx context.Context, provider contracts.ContextProvider, senderEmail, subject, body string) (models.Enrichment, models.TopicHint) {
	hint := topic.Detect(subject + " " + body)
	e := models.Enrichment{Facts: map[string]string{}}

	if provider == nil || senderEmail == "" {
		return e, hint
	}

	lh, err := provider.ResolveSender(ctx, senderEmail)
	if err != nil {
		log.Warn().Err(err).Str("sender", senderEmail).Msg("Sender lookup failed")
		return e, hint
	}
	if lh == nil {
		return e, hint
	}

	e.ResidentName = lh.Name
	e.UnitLabel = lh.UnitNumber

	if lh.BuildingID == "" {
		return e, hint
	}

	hints := models.ContextHints{BuildingID: lh.BuildingID}
	if data, err := provider.FetchContext(ctx, hints); err == nil && data.Building != nil {
		e.BuildingName = data.Building.Name
	}

	facts, err := provider.BuildingFacts(ctx, lh.BuildingID, hint)
	if err != nil {
		log.Warn().Err(err).Str("building", lh.BuildingID).Msg("Fact lookup failed")
		return e, hint
	}
	for k, v := range facts {
		e.Facts[k] = v
	}

	return e, hint
}

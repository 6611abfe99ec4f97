// internal/workers/coaching/analyze-transcript/classifier.go
package analyzetranscript

import (
	"strings"

	"funnel-coach/internal/common/llm"
	"funnel-coach/internal/models"
)

// Fixed replies the rubric instructs the model to give instead of an evaluation.
const (
	SentinelNeedSpeakerRoles = "NEED_SPEAKER_ROLES: Please specify which speaker(s) is/are the sales rep(s) and which is/are the merchant(s) so I can evaluate the call."
	SentinelDataNotRedacted  = "DATA_NOT_REDACTED"
	SentinelUnsupportedInput = "UNSUPPORTED_INPUT"
)

var sentinels = map[string]models.OutcomeKind{
	SentinelNeedSpeakerRoles: models.OutcomeNeedsRoleClarification,
	SentinelDataNotRedacted:  models.OutcomeDataNotRedacted,
	SentinelUnsupportedInput: models.OutcomeUnsupportedInput,
}

// Classify maps a generation onto an outcome. Sentinels match only on exact
// equality with the full reply.
func Classify(gen *llm.Generation) models.AnalysisOutcome {
	if gen == nil {
		return models.AnalysisOutcome{Kind: models.OutcomeEmptyResponse}
	}

	if kind, ok := sentinels[gen.Text]; ok {
		return models.AnalysisOutcome{Kind: kind, Text: gen.Text}
	}

	if strings.TrimSpace(gen.Text) == "" {
		out := models.AnalysisOutcome{Kind: models.OutcomeEmptyResponse, Text: gen.Text}
		if gen.Blocked() {
			out.BlockReason = gen.BlockMessage
		}
		return out
	}

	return models.AnalysisOutcome{Kind: models.OutcomeSuccess, Text: gen.Text}
}

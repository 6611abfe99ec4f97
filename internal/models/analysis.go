// internal/models/analysis.go
package models

// AnalysisRequest is the validated body of POST /analyze.
type AnalysisRequest struct {
	Transcript    string `json:"transcript"`
	SalesRepNames string `json:"sales_rep_names"`
	MerchantNames string `json:"merchant_names,omitempty"`
}

// AnalysisResponse is returned for every outcome the model produced, including
// the sentinel replies, which set IsError.
type AnalysisResponse struct {
	AnalysisText string `json:"analysis_text"`
	IsError      bool   `json:"is_error,omitempty"`
}

// OutcomeKind classifies a model reply.
type OutcomeKind string

const (
	OutcomeSuccess                OutcomeKind = "success"
	OutcomeNeedsRoleClarification OutcomeKind = "needs_role_clarification"
	OutcomeDataNotRedacted        OutcomeKind = "data_not_redacted"
	OutcomeUnsupportedInput       OutcomeKind = "unsupported_input"
	OutcomeEmptyResponse          OutcomeKind = "empty_response"
)

// AnalysisOutcome is the classified reply of one analysis.
type AnalysisOutcome struct {
	Kind OutcomeKind
	// Text is the verbatim model reply.
	Text string
	// BlockReason is only set for OutcomeEmptyResponse.
	BlockReason string
}

// IsSentinel reports whether the model answered with one of its fixed replies.
func (o AnalysisOutcome) IsSentinel() bool {
	switch o.Kind {
	case OutcomeNeedsRoleClarification, OutcomeDataNotRedacted, OutcomeUnsupportedInput:
		return true
	}
	return false
}

// Response renders a successful or sentinel outcome for the caller.
func (o AnalysisOutcome) Response() AnalysisResponse {
	return AnalysisResponse{AnalysisText: o.Text, IsError: o.IsSentinel()}
}

package ai

// Verdict statuses. Error is not a terminal classification: the affected
// candidate is skipped and the failure is counted, never persisted as an
// outcome.
const (
	VerdictMatched      = "Matched"
	VerdictPartialMatch = "Partial Match"
	VerdictException    = "Exception"
	VerdictError        = "Error"
)

// Exception types produced by the adjudication layer itself.
const (
	ExceptionAIInvalidStatus      = "AI Invalid Status"
	ExceptionAIServiceUnavailable = "AI Service Unavailable"
	ExceptionAIProcessingError    = "AI Processing Error"
)

// Verdict is the structured classification of one (source, candidate) pair.
type Verdict struct {
	Status        string `json:"status"`
	ExceptionType string `json:"exception_type"`
	Reason        string `json:"reason"`
}

// IsError reports whether the verdict denotes an adjudication failure rather
// than a classification.
func (v Verdict) IsError() bool { return v.Status == VerdictError }

package domain

// Compute unit limit bounds accepted by the network.
const (
	MinUnitLimit = 200
	MaxUnitLimit = 1_400_000
)

// ResourceBudgetConfig is the compute budget attached to a probe transaction.
type ResourceBudgetConfig struct {
	UnitLimit int64   `json:"unitLimit"`
	UnitPrice *uint64 `json:"unitPrice,omitempty"` // micro-lamports per compute unit
}

// ProbePath identifies which probe produced an outcome.
type ProbePath string

// Probe paths.
const (
	ProbePathPrimary ProbePath = "primary"
	ProbePathMinimal ProbePath = "minimal"
)

// FailureKind classifies a failed simulation.
type FailureKind string

// Failure kinds.
const (
	FailureRejected           FailureKind = "rejected"            // dry-run reported an on-chain error
	FailureNetworkUnavailable FailureKind = "network_unavailable" // collaborator unreachable on the fallback path
	FailureInvalidInput       FailureKind = "invalid_input"       // limit or payer rejected before any network call
	FailureUnexpected         FailureKind = "unexpected"          // anything else (panics, malformed responses)
)

// SimulationOutcome is the result of one simulate call. Never mutated, only replaced.
type SimulationOutcome struct {
	Succeeded       bool        `json:"succeeded"`
	UnitsConsumed   *int64      `json:"unitsConsumed,omitempty"`
	BaseFee         int64       `json:"baseFee"`
	ComputedFee     *int64      `json:"computedFee,omitempty"`
	DiagnosticLines []string    `json:"diagnosticLines"`
	Warnings        []string    `json:"warnings"`
	FailureReason   string      `json:"failureReason,omitempty"`
	FailureKind     FailureKind `json:"failureKind,omitempty"`
	Path            ProbePath   `json:"path,omitempty"`
}

// SimulationRecord is a persisted simulation outcome.
type SimulationRecord struct {
	RecordID    string // deterministic hash
	Payer       string
	UnitLimit   int64
	UnitPrice   *uint64
	Outcome     SimulationOutcome
	SimulatedAt int64 // Unix ms
}

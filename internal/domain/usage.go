package domain

// InstructionUsage is a best-effort per-instruction compute attribution.
type InstructionUsage struct {
	Index         int    `json:"index"`
	ProgramID     string `json:"programId"`
	UnitsConsumed int64  `json:"unitsConsumed"`
}

// TransactionUsage is the observed compute consumption of a landed transaction.
// TotalUnits is authoritative; Instructions is best-effort.
type TransactionUsage struct {
	Signature    string             `json:"signature"`
	Payer        string             `json:"payer"`
	Slot         int64              `json:"slot"`
	BlockTime    int64              `json:"blockTime"` // Unix seconds, 0 if unknown
	Fee          uint64             `json:"fee"`       // lamports
	TotalUnits   int64              `json:"totalUnits"`
	Instructions []InstructionUsage `json:"instructions"`
	Failed       bool               `json:"failed"`
	ObservedAt   int64              `json:"observedAt"` // Unix ms
}

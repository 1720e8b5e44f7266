// Package batch packs pending instructions into transactions under the
// per-transaction compute ceiling and ranks the resulting plans by fee savings.
package batch

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"solana-fee-lab/internal/domain"
)

// Packing constants.
const (
	MaxUnits        int64 = domain.MaxUnitLimit
	SafetyBufferPct int64 = 10
	MaxGroupSize          = 20
	BaseFee         int64 = 5000 // lamports per transaction
)

// Config tunes an Optimizer. The zero value is not usable; start from DefaultConfig.
type Config struct {
	MaxUnits        int64
	SafetyBufferPct int64
	MaxGroupSize    int
	BaseFee         int64
}

// DefaultConfig returns the network defaults.
func DefaultConfig() Config {
	return Config{
		MaxUnits:        MaxUnits,
		SafetyBufferPct: SafetyBufferPct,
		MaxGroupSize:    MaxGroupSize,
		BaseFee:         BaseFee,
	}
}

// Result is the detailed output of an optimization.
type Result struct {
	Plans      []domain.BatchPlan `json:"plans"`
	Infeasible []string           `json:"infeasible"` // ids of instructions exceeding MaxUnits on their own
	Warnings   []string           `json:"warnings"`
}

// Feasible reports whether every instruction fits a transaction on its own.
func (r Result) Feasible() bool {
	return len(r.Infeasible) == 0
}

// Optimizer generates batch plans. It holds no mutable state and is safe for concurrent use.
type Optimizer struct {
	cfg Config
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(cfg Config) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// Optimize returns the applicable plans sorted by estimated savings, descending.
// Empty input yields no plans.
func Optimize(instrs []domain.InstructionDescriptor) []domain.BatchPlan {
	return NewOptimizer(DefaultConfig()).Optimize(instrs)
}

// Optimize returns only the plans of OptimizeDetailed.
func (o *Optimizer) Optimize(instrs []domain.InstructionDescriptor) []domain.BatchPlan {
	return o.OptimizeDetailed(instrs).Plans
}

// Buffered returns units with the safety buffer applied, rounded up.
func (o *Optimizer) Buffered(units int64) int64 {
	scale := 100 + o.cfg.SafetyBufferPct
	return (units*scale + 99) / 100
}

// Fits reports whether units fit a transaction after buffering.
func (o *Optimizer) Fits(units int64) bool {
	return o.Buffered(units) <= o.cfg.MaxUnits
}

// OptimizeDetailed runs every strategy over a snapshot of instrs.
// When a single instruction exceeds the ceiling, Single and SplitByCapacity are
// omitted and the offending ids are reported in Infeasible.
func (o *Optimizer) OptimizeDetailed(instrs []domain.InstructionDescriptor) Result {
	res := Result{Plans: []domain.BatchPlan{}, Warnings: []string{}}
	if len(instrs) == 0 {
		return res
	}

	snapshot := make([]domain.InstructionDescriptor, len(instrs))
	copy(snapshot, instrs)

	var total int64
	for _, in := range snapshot {
		total += in.EstimatedUnits
		if !o.Fits(in.EstimatedUnits) {
			res.Infeasible = append(res.Infeasible, in.ID)
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"Instruction %q needs %s units, above the per-transaction maximum (%s)",
				in.Label, humanize.Comma(o.Buffered(in.EstimatedUnits)), humanize.Comma(o.cfg.MaxUnits)))
		}
	}

	if res.Feasible() {
		if plan, ok := o.single(snapshot, total); ok {
			res.Plans = append(res.Plans, plan)
		}
		if len(snapshot) > 1 {
			res.Plans = append(res.Plans, o.splitByCapacity(snapshot, total))
		}
	}
	if plan, warnings, ok := o.groupByCategory(snapshot, total); ok {
		res.Plans = append(res.Plans, plan)
		res.Warnings = append(res.Warnings, warnings...)
	}

	sort.SliceStable(res.Plans, func(i, j int) bool {
		return res.Plans[i].EstimatedSavings > res.Plans[j].EstimatedSavings
	})
	return res
}

func (o *Optimizer) single(instrs []domain.InstructionDescriptor, total int64) (domain.BatchPlan, bool) {
	if !o.Fits(total) {
		return domain.BatchPlan{}, false
	}
	return domain.BatchPlan{
		StrategyKind:        domain.StrategySingle,
		Groups:              [][]domain.InstructionDescriptor{cloneGroup(instrs)},
		TotalEstimatedUnits: total,
		EstimatedSavings:    0,
		Description:         "Execute all instructions in a single transaction",
	}, true
}

// splitByCapacity is a greedy first-fit pass in input order.
func (o *Optimizer) splitByCapacity(instrs []domain.InstructionDescriptor, total int64) domain.BatchPlan {
	var groups [][]domain.InstructionDescriptor
	var current []domain.InstructionDescriptor
	var running int64

	for _, in := range instrs {
		if len(current) > 0 && (!o.Fits(running+in.EstimatedUnits) || len(current) >= o.cfg.MaxGroupSize) {
			groups = append(groups, current)
			current = nil
			running = 0
		}
		current = append(current, in)
		running += in.EstimatedUnits
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	saved := max(0, len(instrs)-len(groups))
	return domain.BatchPlan{
		StrategyKind:        domain.StrategySplitByCapacity,
		Groups:              groups,
		TotalEstimatedUnits: total,
		EstimatedSavings:    int64(saved) * o.cfg.BaseFee,
		Description:         fmt.Sprintf("Split into %d optimized batches, saving %d transaction fees", len(groups), saved),
	}
}

// groupByCategory buckets instructions by category in first-seen order.
// Buckets are not re-split; oversized buckets are reported as warnings.
func (o *Optimizer) groupByCategory(instrs []domain.InstructionDescriptor, total int64) (domain.BatchPlan, []string, bool) {
	var order []domain.Category
	buckets := make(map[domain.Category][]domain.InstructionDescriptor)
	for _, in := range instrs {
		if _, ok := buckets[in.Category]; !ok {
			order = append(order, in.Category)
		}
		buckets[in.Category] = append(buckets[in.Category], in)
	}
	if len(order) < 2 {
		return domain.BatchPlan{}, nil, false
	}

	groups := make([][]domain.InstructionDescriptor, 0, len(order))
	var warnings []string
	for _, c := range order {
		g := buckets[c]
		groups = append(groups, g)

		units := sumUnits(g)
		if !o.Fits(units) {
			warnings = append(warnings, fmt.Sprintf(
				"Category %s group needs %s units, above the per-transaction maximum (%s)",
				c, humanize.Comma(o.Buffered(units)), humanize.Comma(o.cfg.MaxUnits)))
		}
		if len(g) > o.cfg.MaxGroupSize {
			warnings = append(warnings, fmt.Sprintf(
				"Category %s group has %d instructions, above the group size cap (%d)",
				c, len(g), o.cfg.MaxGroupSize))
		}
	}

	saved := max(0, len(instrs)-len(groups))
	return domain.BatchPlan{
		StrategyKind:        domain.StrategyGroupByCategory,
		Groups:              groups,
		TotalEstimatedUnits: total,
		EstimatedSavings:    int64(saved) * o.cfg.BaseFee,
		Description:         fmt.Sprintf("Group by instruction type into %d batches for better optimization", len(groups)),
	}, warnings, true
}

func cloneGroup(g []domain.InstructionDescriptor) []domain.InstructionDescriptor {
	out := make([]domain.InstructionDescriptor, len(g))
	copy(out, g)
	return out
}

func sumUnits(g []domain.InstructionDescriptor) int64 {
	var s int64
	for _, in := range g {
		s += in.EstimatedUnits
	}
	return s
}

// DistinctCategories returns the categories of g in first-seen order.
func DistinctCategories(g []domain.InstructionDescriptor) []domain.Category {
	seen := make(map[domain.Category]bool)
	var out []domain.Category
	for _, in := range g {
		if !seen[in.Category] {
			seen[in.Category] = true
			out = append(out, in.Category)
		}
	}
	return out
}

// GroupUnits returns the estimated units of a group.
func GroupUnits(g []domain.InstructionDescriptor) int64 {
	return sumUnits(g)
}

// Package orchestrator composes fee estimation, batch analysis, simulation,
// persistence and export into planning runs, and keeps fee estimates warm.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/idhash"
	"solana-fee-lab/internal/observability"
	"solana-fee-lab/internal/solana"
	"solana-fee-lab/internal/storage"
)

// ErrNoInstructions is returned when a plan is requested for an empty batch.
var ErrNoInstructions = errors.New("no instructions to plan")

// Estimator is the fee estimation dependency.
type Estimator interface {
	Estimate(ctx context.Context, accounts []string) domain.FeeEstimate
}

// Simulator is the dry-run dependency.
type Simulator interface {
	SimulateInstructions(ctx context.Context, payer string, cfg domain.ResourceBudgetConfig, instrs []domain.InstructionDescriptor) domain.SimulationOutcome
}

// PlannerOptions configures a Planner.
type PlannerOptions struct {
	Estimator   Estimator
	Simulator   Simulator // optional; plans are not measured without it
	Optimizer   *batch.Optimizer
	Simulations storage.SimulationStore // optional
	Exports     storage.PlanExportStore // optional
	Now         func() time.Time
	Logger      *log.Logger
}

// Planner runs planning requests.
type Planner struct {
	estimator   Estimator
	simulator   Simulator
	optimizer   *batch.Optimizer
	simulations storage.SimulationStore
	exports     storage.PlanExportStore
	exporter    *batch.Exporter
	now         func() time.Time
	logger      *log.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(opts PlannerOptions) *Planner {
	if opts.Optimizer == nil {
		opts.Optimizer = batch.NewOptimizer(batch.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Planner{
		estimator:   opts.Estimator,
		simulator:   opts.Simulator,
		optimizer:   opts.Optimizer,
		simulations: opts.Simulations,
		exports:     opts.Exports,
		exporter:    &batch.Exporter{Now: opts.Now},
		now:         opts.Now,
		logger:      opts.Logger,
	}
}

// PlanRequest describes one planning run.
type PlanRequest struct {
	Instructions []domain.InstructionDescriptor
	Payer        string           // optional; enables simulation
	UnitPrice    *uint64          // explicit price; otherwise derived from Speed
	Speed        domain.SpeedTier // defaults to standard
	Accounts     []string         // fee estimate filter

	// SimulateBatches measures every group of the best plan, not just the whole batch.
	SimulateBatches bool
	// OnBatch is called before each per-group simulation.
	OnBatch func(index, total int)
}

// PlanResult is the outcome of a planning run.
type PlanResult struct {
	Fees             domain.FeeEstimate             `json:"fees"`
	UnitPrice        uint64                         `json:"unitPrice"`
	Analysis         domain.BatchAnalysis           `json:"analysis"`
	Plans            []domain.BatchPlan             `json:"plans"`
	Infeasible       []string                       `json:"infeasible"`
	Warnings         []string                       `json:"warnings"`
	Simulation       *domain.SimulationOutcome      `json:"simulation,omitempty"`
	BatchSimulations []domain.SimulationOutcome     `json:"batchSimulations,omitempty"`
	Export           []byte                         `json:"-"`
	ExportID         string                         `json:"exportId,omitempty"`
	Errors           []string                       `json:"errors,omitempty"` // non-fatal persistence failures
	Instructions     []domain.InstructionDescriptor `json:"-"`
}

// BestPlan returns the plan with the highest savings, if any.
func (r *PlanResult) BestPlan() (domain.BatchPlan, bool) {
	if len(r.Plans) == 0 {
		return domain.BatchPlan{}, false
	}
	return r.Plans[0], true
}

// Plan estimates fees, analyzes and optimizes the batch, optionally
// simulates it, then persists and exports the result.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if len(req.Instructions) == 0 {
		return nil, ErrNoInstructions
	}
	for _, in := range req.Instructions {
		if !in.Category.Valid() {
			return nil, fmt.Errorf("instruction %q: unknown category %q", in.ID, in.Category)
		}
	}
	if req.Payer != "" {
		if err := solana.ValidatePayer(req.Payer); err != nil {
			return nil, err
		}
	}
	if req.Speed == "" {
		req.Speed = domain.SpeedStandard
	}

	ctx, span := observability.Tracer().Start(ctx, "planner.Plan")
	defer span.End()
	span.SetAttributes(
		attribute.Int("instructions", len(req.Instructions)),
		attribute.Bool("simulate", req.Payer != "" && p.simulator != nil),
	)

	res := &PlanResult{Instructions: req.Instructions}

	res.Fees = p.estimator.Estimate(ctx, req.Accounts)
	if req.UnitPrice != nil {
		res.UnitPrice = *req.UnitPrice
	} else {
		res.UnitPrice = feestats.RecommendForSpeed(res.Fees.Stats, req.Speed)
	}
	if res.Fees.Degraded {
		res.Warnings = append(res.Warnings, "Fee data unavailable; using fallback estimates")
	}

	res.Analysis = p.optimizer.Analyze(req.Instructions)
	detailed := p.optimizer.OptimizeDetailed(req.Instructions)
	res.Plans = detailed.Plans
	res.Infeasible = detailed.Infeasible
	res.Warnings = append(res.Warnings, detailed.Warnings...)
	p.recordPlans(detailed)

	if req.Payer != "" && p.simulator != nil {
		p.simulate(ctx, req, res)
	}

	p.export(ctx, req.Payer, res)
	p.logger.Printf("planned %d instructions: %d plans, price %d", len(req.Instructions), len(res.Plans), res.UnitPrice)
	return res, nil
}

func (p *Planner) simulate(ctx context.Context, req PlanRequest, res *PlanResult) {
	price := res.UnitPrice
	whole := p.measure(ctx, req.Payer, ClampLimit(res.Analysis.RecommendedLimit), &price, req.Instructions, res)
	res.Simulation = &whole
	res.Analysis = batch.RefineWithSimulation(res.Analysis, whole)

	best, ok := res.BestPlan()
	if !req.SimulateBatches || !ok {
		return
	}
	for i, group := range best.Groups {
		if req.OnBatch != nil {
			req.OnBatch(i, len(best.Groups))
		}
		limit := ClampLimit(p.optimizer.Buffered(batch.GroupUnits(group) + batch.BaseOverhead))
		res.BatchSimulations = append(res.BatchSimulations, p.measure(ctx, req.Payer, limit, &price, group, res))
	}
}

// measure simulates one instruction set and persists the outcome.
func (p *Planner) measure(ctx context.Context, payer string, limit int64, price *uint64, instrs []domain.InstructionDescriptor, res *PlanResult) domain.SimulationOutcome {
	cfg := domain.ResourceBudgetConfig{UnitLimit: limit, UnitPrice: price}
	out := p.simulator.SimulateInstructions(ctx, payer, cfg, instrs)

	if p.simulations != nil {
		at := p.now().UnixMilli()
		rec := &domain.SimulationRecord{
			RecordID:    idhash.ComputeSimulationID(payer, limit, price, at),
			Payer:       payer,
			UnitLimit:   limit,
			UnitPrice:   price,
			Outcome:     out,
			SimulatedAt: at,
		}
		if err := p.simulations.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			res.Errors = append(res.Errors, fmt.Sprintf("persist simulation: %v", err))
		}
	}
	return out
}

func (p *Planner) export(ctx context.Context, payer string, res *PlanResult) {
	payload, err := p.exporter.Export(batch.ExportInput{
		Instructions: res.Instructions,
		Simulation:   res.Simulation,
		Analysis:     &res.Analysis,
		Result:       batch.Result{Plans: res.Plans, Infeasible: res.Infeasible, Warnings: res.Warnings},
	})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("export plan: %v", err))
		return
	}
	res.Export = payload
	res.ExportID = idhash.ComputeExportID(payer, payload)

	if p.exports == nil {
		return
	}
	e := &domain.PlanExport{
		ExportID:   res.ExportID,
		Payer:      payer,
		PlanCount:  len(res.Plans),
		Payload:    payload,
		ExportedAt: p.now().UnixMilli(),
	}
	if err := p.exports.Insert(ctx, e); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		res.Errors = append(res.Errors, fmt.Sprintf("persist export: %v", err))
	}
}

func (p *Planner) recordPlans(r batch.Result) {
	strategies := make([]string, 0, len(r.Plans))
	for _, plan := range r.Plans {
		strategies = append(strategies, string(plan.StrategyKind))
	}
	var best int64
	if len(r.Plans) > 0 {
		best = r.Plans[0].EstimatedSavings
	}
	observability.RecordPlans(strategies, best, !r.Feasible())
}

// ClampLimit bounds a compute unit limit to what the network accepts.
func ClampLimit(units int64) int64 {
	if units < domain.MinUnitLimit {
		return domain.MinUnitLimit
	}
	if units > domain.MaxUnitLimit {
		return domain.MaxUnitLimit
	}
	return units
}

// Package simulator dry-runs a probe transaction against the network to measure
// compute consumption and cost, falling back to a minimal probe when the payer
// cannot fund a real one.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/observability"
	"solana-fee-lab/internal/solana"
)

// DefaultCallTimeout bounds each network call.
const DefaultCallTimeout = 30 * time.Second

// errMalformed marks a network response the probe could not be built from.
var errMalformed = errors.New("malformed network response")

// Network is the subset of the RPC client the simulator needs.
type Network interface {
	GetAccountInfo(ctx context.Context, address string) (*solana.AccountInfo, error)
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
	SimulateTransaction(ctx context.Context, payload []byte) (*solana.SimulationResult, error)
}

// Options configures a Simulator.
type Options struct {
	Network     Network
	CallTimeout time.Duration
	BaseFee     int64
	Logger      *log.Logger
}

// Simulator runs probe simulations. Safe for concurrent use.
type Simulator struct {
	network     Network
	callTimeout time.Duration
	baseFee     int64
	logger      *log.Logger
	tracer      trace.Tracer
}

// New creates a Simulator.
func New(opts Options) *Simulator {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.BaseFee <= 0 {
		opts.BaseFee = feestats.DefaultBaseFee
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Simulator{
		network:     opts.Network,
		callTimeout: opts.CallTimeout,
		baseFee:     opts.BaseFee,
		logger:      opts.Logger,
		tracer:      observability.Tracer(),
	}
}

// state is a step of a simulation run.
type state int

const (
	stateProbeAccount state = iota
	statePrimaryProbe
	stateMinimalProbe
	stateDone
)

func (s state) String() string {
	switch s {
	case stateProbeAccount:
		return "probe_account"
	case statePrimaryProbe:
		return "primary_probe"
	case stateMinimalProbe:
		return "minimal_probe"
	}
	return "done"
}

// run is the mutable context of one simulation.
type run struct {
	ctx          context.Context
	span         trace.Span
	payer        string
	cfg          domain.ResourceBudgetConfig
	placeholders []solana.Placeholder
	fallback     string // why the minimal probe was chosen
	outcome      domain.SimulationOutcome
}

// Simulate measures a probe carrying a signed memo for payer under cfg.
// Expected failures are reported in the outcome, never as errors.
func (s *Simulator) Simulate(ctx context.Context, payer string, cfg domain.ResourceBudgetConfig) domain.SimulationOutcome {
	return s.simulate(ctx, payer, cfg, nil)
}

// SimulateInstructions is Simulate with one placeholder per distinct
// instruction category, in first-seen order.
func (s *Simulator) SimulateInstructions(ctx context.Context, payer string, cfg domain.ResourceBudgetConfig, instrs []domain.InstructionDescriptor) domain.SimulationOutcome {
	return s.simulate(ctx, payer, cfg, placeholdersFor(instrs))
}

func placeholdersFor(instrs []domain.InstructionDescriptor) []solana.Placeholder {
	seen := make(map[domain.Category]bool)
	var out []solana.Placeholder
	for _, in := range instrs {
		if seen[in.Category] {
			continue
		}
		seen[in.Category] = true
		if in.Category == domain.CategoryTransfer {
			out = append(out, solana.PlaceholderSelfTransfer)
		} else {
			out = append(out, solana.PlaceholderSignedMemo)
		}
	}
	return out
}

func (s *Simulator) simulate(ctx context.Context, payer string, cfg domain.ResourceBudgetConfig, placeholders []solana.Placeholder) (out domain.SimulationOutcome) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "simulator.Simulate", trace.WithAttributes(
		attribute.String("payer", payer),
		attribute.Int64("unit_limit", cfg.UnitLimit),
	))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Printf("simulation panic: %v", p)
			out = s.failure(domain.FailureUnexpected, fmt.Sprintf("internal error: %v", p), nil)
			span.SetStatus(codes.Error, "panic")
		}
		span.SetAttributes(
			attribute.String("path", string(out.Path)),
			attribute.Bool("succeeded", out.Succeeded),
		)
		observability.RecordSimulation(string(out.Path), out.Succeeded, time.Since(start).Seconds(), out.UnitsConsumed)
	}()

	if err := ValidateLimit(cfg.UnitLimit).Err(); err != nil {
		return s.failure(domain.FailureInvalidInput, err.Error(), nil)
	}
	if err := solana.ValidatePayer(payer); err != nil {
		return s.failure(domain.FailureInvalidInput, err.Error(), nil)
	}

	r := &run{ctx: ctx, span: span, payer: payer, cfg: cfg, placeholders: placeholders}
	for st := stateProbeAccount; st != stateDone; {
		span.AddEvent(st.String())
		st = s.step(r, st)
	}
	return r.outcome
}

// step executes one state and returns the next.
func (s *Simulator) step(r *run, st state) state {
	switch st {
	case stateProbeAccount:
		return s.probeAccount(r)
	case statePrimaryProbe:
		return s.primaryProbe(r)
	case stateMinimalProbe:
		return s.minimalProbe(r)
	}
	return stateDone
}

func (s *Simulator) probeAccount(r *run) state {
	ctx, cancel := context.WithTimeout(r.ctx, s.callTimeout)
	defer cancel()

	info, err := s.network.GetAccountInfo(ctx, r.payer)
	if err != nil {
		r.fallback = fmt.Sprintf("account lookup failed: %v", err)
		return stateMinimalProbe
	}
	if info == nil {
		r.fallback = "payer account not found"
		return stateMinimalProbe
	}

	balance, err := s.network.GetBalance(ctx, r.payer)
	if err != nil {
		r.fallback = fmt.Sprintf("balance lookup failed: %v", err)
		return stateMinimalProbe
	}
	if balance == 0 {
		r.fallback = "payer has no balance"
		return stateMinimalProbe
	}
	return statePrimaryProbe
}

func (s *Simulator) primaryProbe(r *run) state {
	res, err := s.dryRun(r, r.placeholders)
	if errors.Is(err, errMalformed) {
		r.outcome = s.failure(domain.FailureUnexpected, err.Error(), nil)
		r.outcome.Path = domain.ProbePathPrimary
		return stateDone
	}
	if err != nil {
		var rpcErr *solana.RPCError
		if errors.As(err, &rpcErr) && !isFallbackTrigger(rpcErr.Message) {
			r.outcome = s.failure(domain.FailureRejected, "Simulation failed: "+rpcErr.Message, nil)
			r.outcome.Path = domain.ProbePathPrimary
			return stateDone
		}
		r.fallback = fmt.Sprintf("primary probe unavailable: %v", err)
		return stateMinimalProbe
	}

	if res.Err != nil {
		reason := encodeErr(res.Err)
		if isFallbackTrigger(reason) {
			r.fallback = "primary probe rejected: " + reason
			return stateMinimalProbe
		}
		r.outcome = s.failure(domain.FailureRejected, "Simulation failed: "+reason, res.Logs)
		r.outcome.Path = domain.ProbePathPrimary
		return stateDone
	}

	r.outcome = s.success(res, r.cfg, true)
	r.outcome.Path = domain.ProbePathPrimary
	return stateDone
}

func (s *Simulator) minimalProbe(r *run) state {
	s.logger.Printf("payer %s: using minimal simulation (%s)", r.payer, r.fallback)

	res, err := s.dryRun(r, []solana.Placeholder{solana.PlaceholderUnsignedMemo})
	switch {
	case err != nil:
		kind := domain.FailureNetworkUnavailable
		if solana.IsRPCError(err) {
			kind = domain.FailureRejected
		} else if errors.Is(err, errMalformed) {
			kind = domain.FailureUnexpected
		}
		r.outcome = s.failure(kind, "Minimal simulation failed: "+err.Error(), nil)
	case res.Err != nil:
		r.outcome = s.failure(domain.FailureRejected, "Simulation failed: "+encodeErr(res.Err), res.Logs)
	default:
		r.outcome = s.success(res, r.cfg, false)
		r.outcome.Warnings = append(r.outcome.Warnings,
			fmt.Sprintf("Minimal simulation used (%s); fee and units reflect a memo-only transaction", r.fallback))
	}
	r.outcome.Path = domain.ProbePathMinimal
	return stateDone
}

// dryRun fetches a blockhash, builds the probe and simulates it, each network
// call under its own timeout.
func (s *Simulator) dryRun(r *run, placeholders []solana.Placeholder) (*solana.SimulationResult, error) {
	hashCtx, cancel := context.WithTimeout(r.ctx, s.callTimeout)
	blockhash, err := s.network.GetLatestBlockhash(hashCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}

	payload, err := solana.BuildProbe(solana.ProbeSpec{
		Payer:        r.payer,
		Blockhash:    blockhash,
		UnitLimit:    r.cfg.UnitLimit,
		UnitPrice:    r.cfg.UnitPrice,
		Placeholders: placeholders,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	simCtx, cancel := context.WithTimeout(r.ctx, s.callTimeout)
	defer cancel()
	res, err := s.network.SimulateTransaction(simCtx, payload)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("simulate: empty response")
	}
	return res, nil
}

// success builds a Success outcome. Usage warnings and the priority fee
// apply only to the primary probe.
func (s *Simulator) success(res *solana.SimulationResult, cfg domain.ResourceBudgetConfig, primary bool) domain.SimulationOutcome {
	out := domain.SimulationOutcome{
		Succeeded:       true,
		BaseFee:         s.baseFee,
		DiagnosticLines: nonNil(res.Logs),
		Warnings:        []string{},
	}

	units, _, matched := solana.ParseConsumedUnits(res.Logs)
	switch {
	case matched:
	case res.UnitsConsumed != nil:
		units = *res.UnitsConsumed
	}
	out.UnitsConsumed = &units

	fee := s.baseFee
	if primary {
		if matched {
			out.Warnings = append(out.Warnings, usageWarnings(units, cfg.UnitLimit)...)
		}
		if cfg.UnitPrice != nil && *cfg.UnitPrice > 0 {
			fee = feestats.TotalCost(units, *cfg.UnitPrice, s.baseFee)
		}
	}
	out.ComputedFee = &fee
	return out
}

func usageWarnings(consumed, limit int64) []string {
	var w []string
	if consumed*10 > limit*9 {
		pct := int64(math.Round(float64(consumed) / float64(limit) * 100))
		w = append(w, fmt.Sprintf("High compute unit usage: %d/%d (%d%%)", consumed, limit, pct))
	}
	if consumed*10 < limit {
		w = append(w, fmt.Sprintf("Low compute unit usage: Consider reducing limit to ~%d units", (consumed*6+4)/5))
	}
	return w
}

func (s *Simulator) failure(kind domain.FailureKind, reason string, logs []string) domain.SimulationOutcome {
	return domain.SimulationOutcome{
		Succeeded:       false,
		BaseFee:         s.baseFee,
		DiagnosticLines: nonNil(logs),
		Warnings:        []string{},
		FailureReason:   reason,
		FailureKind:     kind,
	}
}

// isFallbackTrigger matches account-not-found and insufficient-funds errors in
// any casing or separator style.
func isFallbackTrigger(reason string) bool {
	norm := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(reason))
	return strings.Contains(norm, "accountnotfound") ||
		strings.Contains(norm, "couldnotfindaccount") ||
		strings.Contains(norm, "insufficientfunds")
}

func encodeErr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/idhash"
	"solana-fee-lab/internal/observability"
	"solana-fee-lab/internal/orchestrator"
	"solana-fee-lab/internal/reporting"
	"solana-fee-lab/internal/simulator"
	"solana-fee-lab/internal/solana"
	"solana-fee-lab/internal/storage"
	"solana-fee-lab/internal/verification"
)

const maxBodyBytes = 1 << 20

// API serves fee estimates, simulations and plans over HTTP.
type API struct {
	network     string
	watchPayer  string
	estimator   *feestats.Estimator
	simulator   *simulator.Simulator
	optimizer   *batch.Optimizer
	catalog     *batch.Catalog
	planner     *orchestrator.Planner
	monitor     *orchestrator.FeeMonitor
	reports     *reporting.Generator
	simulations storage.SimulationStore
	verifier    *verification.Verifier
	now         func() time.Time
	started     time.Time
	logger      *log.Logger
}

// Handler returns the HTTP routes.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /status", a.handleStatus)
	mux.HandleFunc("GET /v1/fees", a.handleFees)
	mux.HandleFunc("POST /v1/optimize", a.handleOptimize)
	mux.HandleFunc("POST /v1/simulate", a.handleSimulate)
	mux.HandleFunc("POST /v1/plan", a.handlePlan)
	mux.HandleFunc("POST /v1/report", a.handleReport)
	mux.HandleFunc("GET /v1/exports/verify", a.handleVerifyExports)
	mux.HandleFunc("GET /v1/exports/{id}/verify", a.handleVerifyExport)
	mux.HandleFunc("GET /v1/simulations/{id}/verify", a.handleVerifySimulation)
	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string                     `json:"status"`
	Network    string                     `json:"network"`
	Uptime     string                     `json:"uptime"`
	WatchPayer string                     `json:"watch_payer,omitempty"`
	Monitor    orchestrator.MonitorStatus `json:"monitor"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:     "running",
		Network:    a.network,
		Uptime:     time.Since(a.started).Round(time.Second).String(),
		WatchPayer: a.watchPayer,
		Monitor:    a.monitor.Status(),
	})
}

// FeesResponse is the JSON response for /v1/fees.
type FeesResponse struct {
	Estimate     domain.FeeEstimate          `json:"estimate"`
	Speed        domain.SpeedTier            `json:"speed"`
	UnitPrice    uint64                      `json:"unitPrice"`
	Confirmation string                      `json:"confirmation"`
	Tiers        map[domain.SpeedTier]uint64 `json:"tiers"`
	Stale        bool                        `json:"stale"`
}

func (a *API) handleFees(w http.ResponseWriter, r *http.Request) {
	speed, err := domain.ParseSpeedTier(r.URL.Query().Get("speed"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	accounts := splitList(r.URL.Query().Get("accounts"))
	for _, acct := range accounts {
		if err := solana.ValidateAddress(acct); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	est := a.estimator.Estimate(r.Context(), accounts)
	resp := FeesResponse{
		Estimate:  est,
		Speed:     speed,
		UnitPrice: feestats.RecommendForSpeed(est.Stats, speed),
		Tiers:     make(map[domain.SpeedTier]uint64, len(domain.SpeedTiers)),
		Stale:     feestats.IsStale(est.FetchedAt, a.now()),
	}
	resp.Confirmation = feestats.EstimateConfirmationBand(float64(resp.UnitPrice), est.Stats)
	for _, tier := range domain.SpeedTiers {
		resp.Tiers[tier] = feestats.RecommendForSpeed(est.Stats, tier)
	}
	writeJSON(w, http.StatusOK, resp)
}

// PlanBody is the request body of the batch endpoints.
type PlanBody struct {
	Instructions    []batch.InstructionSpec `json:"instructions"`
	Payer           string                  `json:"payer,omitempty"`
	UnitPrice       *uint64                 `json:"unitPrice,omitempty"`
	Speed           string                  `json:"speed,omitempty"`
	Accounts        []string                `json:"accounts,omitempty"`
	SimulateBatches bool                    `json:"simulateBatches,omitempty"`
}

func (a *API) planRequest(b PlanBody) (orchestrator.PlanRequest, error) {
	instrs, err := a.catalog.Build(b.Instructions)
	if err != nil {
		return orchestrator.PlanRequest{}, err
	}
	speed, err := domain.ParseSpeedTier(b.Speed)
	if err != nil {
		return orchestrator.PlanRequest{}, err
	}
	return orchestrator.PlanRequest{
		Instructions:    instrs,
		Payer:           b.Payer,
		UnitPrice:       b.UnitPrice,
		Speed:           speed,
		Accounts:        b.Accounts,
		SimulateBatches: b.SimulateBatches,
	}, nil
}

// OptimizeResponse is the JSON response for /v1/optimize.
type OptimizeResponse struct {
	Instructions []domain.InstructionDescriptor `json:"instructions"`
	Analysis     domain.BatchAnalysis           `json:"analysis"`
	Plans        []domain.BatchPlan             `json:"plans"`
	Infeasible   []string                       `json:"infeasible"`
	Warnings     []string                       `json:"warnings"`
}

func (a *API) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var body PlanBody
	if !decode(w, r, &body) {
		return
	}
	instrs, err := a.catalog.Build(body.Instructions)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(instrs) == 0 {
		writeError(w, http.StatusBadRequest, orchestrator.ErrNoInstructions)
		return
	}

	res := a.optimizer.OptimizeDetailed(instrs)
	writeJSON(w, http.StatusOK, OptimizeResponse{
		Instructions: instrs,
		Analysis:     a.optimizer.Analyze(instrs),
		Plans:        res.Plans,
		Infeasible:   res.Infeasible,
		Warnings:     res.Warnings,
	})
}

// SimulateBody is the request body of /v1/simulate.
type SimulateBody struct {
	Payer        string                  `json:"payer"`
	UnitLimit    int64                   `json:"unitLimit"`
	UnitPrice    *uint64                 `json:"unitPrice,omitempty"`
	Instructions []batch.InstructionSpec `json:"instructions,omitempty"`
}

func (a *API) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var body SimulateBody
	if !decode(w, r, &body) {
		return
	}
	instrs, err := a.catalog.Build(body.Instructions)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := domain.ResourceBudgetConfig{UnitLimit: body.UnitLimit, UnitPrice: body.UnitPrice}
	var out domain.SimulationOutcome
	if len(instrs) > 0 {
		out = a.simulator.SimulateInstructions(r.Context(), body.Payer, cfg, instrs)
	} else {
		out = a.simulator.Simulate(r.Context(), body.Payer, cfg)
	}

	// Rejected inputs never reached the network and are not history.
	if out.FailureKind != domain.FailureInvalidInput && a.simulations != nil {
		at := a.now().UnixMilli()
		rec := &domain.SimulationRecord{
			RecordID:    idhash.ComputeSimulationID(body.Payer, body.UnitLimit, body.UnitPrice, at),
			Payer:       body.Payer,
			UnitLimit:   body.UnitLimit,
			UnitPrice:   body.UnitPrice,
			Outcome:     out,
			SimulatedAt: at,
		}
		if err := a.simulations.Insert(r.Context(), rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			a.logger.Printf("persist simulation: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// PlanResponse is the JSON response for /v1/plan.
type PlanResponse struct {
	*orchestrator.PlanResult
	Export json.RawMessage `json:"export,omitempty"`
}

func (a *API) runPlan(w http.ResponseWriter, r *http.Request) (*orchestrator.PlanResult, PlanBody, bool) {
	var body PlanBody
	if !decode(w, r, &body) {
		return nil, body, false
	}
	req, err := a.planRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, body, false
	}
	res, err := a.planner.Plan(r.Context(), req)
	if err != nil {
		// Planner errors are input validation failures.
		writeError(w, http.StatusBadRequest, err)
		return nil, body, false
	}
	return res, body, true
}

func (a *API) handlePlan(w http.ResponseWriter, r *http.Request) {
	res, _, ok := a.runPlan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{PlanResult: res, Export: res.Export})
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "csv" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown format %q", format))
		return
	}

	res, body, ok := a.runPlan(w, r)
	if !ok {
		return
	}
	report, err := a.reports.Generate(r.Context(), res, body.Payer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(reporting.RenderCSV(report.Plans)))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(reporting.RenderMarkdown(report)))
}

func (a *API) handleVerifyExport(w http.ResponseWriter, r *http.Request) {
	res, err := a.verifier.VerifyExport(r.Context(), r.PathValue("id"))
	a.writeVerification(w, res, err)
}

func (a *API) handleVerifySimulation(w http.ResponseWriter, r *http.Request) {
	res, err := a.verifier.VerifySimulation(r.Context(), r.PathValue("id"))
	a.writeVerification(w, res, err)
}

func (a *API) writeVerification(w http.ResponseWriter, res *verification.VerificationResult, err error) {
	switch {
	case errors.Is(err, verification.ErrExportNotFound), errors.Is(err, verification.ErrSimulationNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		if !res.Match {
			a.logger.Printf("verification mismatch for %s: %d divergences", res.ID, len(res.Divergences))
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (a *API) handleVerifyExports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	report, err := a.verifier.VerifyRecentExports(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

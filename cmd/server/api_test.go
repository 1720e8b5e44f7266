package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/orchestrator"
	"solana-fee-lab/internal/reporting"
	"solana-fee-lab/internal/simulator"
	"solana-fee-lab/internal/solana/stub"
	"solana-fee-lab/internal/storage/memory"
	"solana-fee-lab/internal/verification"
)

type testServer struct {
	*httptest.Server
	rpc         *stub.RPCClient
	simulations *memory.SimulationStore
	exports     *memory.PlanExportStore
	payer       string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	rpc := stub.NewRPCClient()
	rpc.Fees = []domain.FeeSample{{ObservedAtSlot: 1, Fee: 1000}, {ObservedAtSlot: 2, Fee: 2000}}
	sims := memory.NewSimulationStore()
	exports := memory.NewPlanExportStore()

	estimator := feestats.NewEstimator(feestats.EstimatorOptions{Source: rpc})
	sim := simulator.New(simulator.Options{Network: rpc, CallTimeout: time.Second})
	optimizer := batch.NewOptimizer(batch.DefaultConfig())

	api := &API{
		network:   "localnet",
		estimator: estimator,
		simulator: sim,
		optimizer: optimizer,
		catalog:   batch.NewCatalog(nil),
		planner: orchestrator.NewPlanner(orchestrator.PlannerOptions{
			Estimator:   estimator,
			Simulator:   sim,
			Optimizer:   optimizer,
			Simulations: sims,
			Exports:     exports,
		}),
		monitor:     orchestrator.NewFeeMonitor(orchestrator.MonitorOptions{Estimator: estimator}),
		reports:     reporting.NewGenerator(sims, memory.NewUsageStore()),
		simulations: sims,
		verifier:    verification.NewVerifier(verification.Options{Exports: exports, Simulations: sims}),
		now:         time.Now,
		started:     time.Now(),
		logger:      log.New(io.Discard, "", 0),
	}

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, rpc: rpc, simulations: sims, exports: exports, payer: base58.Encode(pub)}
}

func (s *testServer) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(s.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.get(t, "/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "running", st.Status)
	assert.Equal(t, "localnet", st.Network)
}

func TestFees(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/v1/fees?speed=turbo")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fees FeesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fees))
	assert.Equal(t, domain.SpeedTurbo, fees.Speed)
	assert.Equal(t, uint64(1950), fees.UnitPrice)
	assert.Equal(t, uint64(1500), fees.Tiers[domain.SpeedEconomy])
	assert.Equal(t, 2, fees.Estimate.Stats.SampleCount)
	assert.False(t, fees.Stale)

	assert.Equal(t, http.StatusBadRequest, s.get(t, "/v1/fees?speed=warp").StatusCode)
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/v1/fees?accounts=bad!").StatusCode)
}

func TestOptimize(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/v1/optimize", PlanBody{Instructions: []batch.InstructionSpec{
		{Category: domain.CategoryTransfer, Count: 2},
		{Category: domain.CategoryToken},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out OptimizeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Instructions, 3)
	assert.Equal(t, int64(3200), out.Analysis.EstimatedUnits)
	assert.NotEmpty(t, out.Plans)
	assert.Empty(t, s.rpc.Calls(), "optimize must not touch the network")

	assert.Equal(t, http.StatusBadRequest, s.post(t, "/v1/optimize", PlanBody{}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, s.post(t, "/v1/optimize", map[string]int{"bogus": 1}).StatusCode)

	huge := PlanBody{Instructions: []batch.InstructionSpec{{Category: domain.CategoryMemo, Count: 1 << 40}}}
	for _, path := range []string{"/v1/optimize", "/v1/plan"} {
		assert.Equal(t, http.StatusBadRequest, s.post(t, path, huge).StatusCode, path)
	}
	assert.Equal(t, http.StatusBadRequest, s.post(t, "/v1/simulate", SimulateBody{
		Payer:        s.payer,
		UnitLimit:    200_000,
		Instructions: huge.Instructions,
	}).StatusCode)
}

func TestSimulate(t *testing.T) {
	s := newTestServer(t)
	s.rpc.Fund(s.payer, 1_000_000)
	price := uint64(1000)

	resp := s.post(t, "/v1/simulate", SimulateBody{Payer: s.payer, UnitLimit: 200_000, UnitPrice: &price})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out domain.SimulationOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Succeeded)
	assert.Equal(t, domain.ProbePathPrimary, out.Path)

	records, err := s.simulations.ListByPayer(context.Background(), s.payer, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSimulate_InvalidLimitNotPersisted(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/v1/simulate", SimulateBody{Payer: s.payer, UnitLimit: 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out domain.SimulationOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Succeeded)
	assert.Equal(t, domain.FailureInvalidInput, out.FailureKind)

	records, _ := s.simulations.ListByPayer(context.Background(), s.payer, 0)
	assert.Empty(t, records)
}

func TestPlan(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/v1/plan", PlanBody{
		Instructions: []batch.InstructionSpec{{Category: domain.CategoryMemo, Count: 3}},
		Speed:        "fast",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		UnitPrice uint64          `json:"unitPrice"`
		ExportID  string          `json:"exportId"`
		Export    json.RawMessage `json:"export"`
		Plans     []domain.BatchPlan
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, uint64(1900), out.UnitPrice)
	assert.NotEmpty(t, out.Plans)
	assert.Contains(t, string(out.Export), `"optimizations"`)

	stored, err := s.exports.GetByID(context.Background(), out.ExportID)
	require.NoError(t, err)
	assert.JSONEq(t, string(out.Export), string(stored.Payload))

	bad := s.post(t, "/v1/plan", PlanBody{
		Instructions: []batch.InstructionSpec{{Category: domain.CategoryMemo}},
		Payer:        "nope",
	})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestVerify(t *testing.T) {
	s := newTestServer(t)
	s.rpc.Fund(s.payer, 1_000_000)
	price := uint64(1000)

	plan := s.post(t, "/v1/plan", PlanBody{
		Instructions: []batch.InstructionSpec{{Category: domain.CategoryTransfer, Count: 2}},
	})
	require.Equal(t, http.StatusOK, plan.StatusCode)
	var planned struct {
		ExportID string `json:"exportId"`
	}
	require.NoError(t, json.NewDecoder(plan.Body).Decode(&planned))

	resp := s.get(t, "/v1/exports/"+planned.ExportID+"/verify")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res verification.VerificationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Match, "divergences: %+v", res.Divergences)

	sim := s.post(t, "/v1/simulate", SimulateBody{Payer: s.payer, UnitLimit: 200_000, UnitPrice: &price})
	require.Equal(t, http.StatusOK, sim.StatusCode)
	records, err := s.simulations.ListByPayer(context.Background(), s.payer, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	resp = s.get(t, "/v1/simulations/"+records[0].RecordID+"/verify")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = verification.VerificationResult{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Match, "divergences: %+v", res.Divergences)

	assert.Equal(t, http.StatusNotFound, s.get(t, "/v1/exports/missing/verify").StatusCode)
	assert.Equal(t, http.StatusNotFound, s.get(t, "/v1/simulations/missing/verify").StatusCode)

	require.NoError(t, s.exports.Insert(context.Background(), &domain.PlanExport{
		ExportID:   "forged",
		PlanCount:  1,
		Payload:    []byte(`{"timestamp":"x","optimizations":[]}`),
		ExportedAt: time.Now().Add(time.Hour).UnixMilli(),
	}))
	resp = s.get(t, "/v1/exports/verify?limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report verification.VerificationReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Divergent)

	assert.Equal(t, http.StatusBadRequest, s.get(t, "/v1/exports/verify?limit=0").StatusCode)
}

func TestReport(t *testing.T) {
	s := newTestServer(t)
	body := PlanBody{Instructions: []batch.InstructionSpec{{Category: domain.CategoryTransfer, Count: 2}}}

	resp := s.post(t, "/v1/report", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	md, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(md), "# Fee Plan Report"))

	resp = s.post(t, "/v1/report?format=csv", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	csv, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(csv), "strategy,batch_count"))

	assert.Equal(t, http.StatusBadRequest, s.post(t, "/v1/report?format=pdf", body).StatusCode)
}

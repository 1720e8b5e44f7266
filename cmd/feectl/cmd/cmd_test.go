package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/idhash"
	"solana-fee-lab/internal/simulator"
	"solana-fee-lab/internal/storage/sqlite"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	homedir.DisableCache = true
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateLimit(t *testing.T) {
	out, err := execute(t, "validate-limit", "200000")
	require.NoError(t, err)
	assert.Contains(t, out, "200000 is a valid compute unit limit")

	out, err = execute(t, "validate-limit", "100")
	assert.ErrorIs(t, err, simulator.ErrInvalidLimit)
	assert.Contains(t, out, "at least 200")

	_, err = execute(t, "validate-limit", "12.5")
	assert.ErrorIs(t, err, simulator.ErrInvalidLimit)

	_, err = execute(t, "validate-limit", "lots")
	assert.ErrorIs(t, err, simulator.ErrInvalidLimit)
}

func TestValidateLimit_Workload(t *testing.T) {
	out, err := execute(t, "validate-limit", "--workload", "defi")
	require.NoError(t, err)
	assert.Contains(t, out, "Recommended limit for defi: 50,000")
	validateWorkload = ""
}

func TestOptimize_JSON(t *testing.T) {
	export := filepath.Join(t.TempDir(), "plan.json")
	out, err := execute(t, "optimize", "--transfer", "3", "--memo", "1", "--format", "json", "--out", export)
	require.NoError(t, err)

	var doc struct {
		Analysis domain.BatchAnalysis `json:"analysis"`
		Result   batch.Result         `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, int64(3*450+200), doc.Analysis.EstimatedUnits)
	require.NotEmpty(t, doc.Result.Plans)
	assert.Equal(t, domain.StrategySplitByCapacity, doc.Result.Plans[0].StrategyKind)

	payload, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"optimizations"`)
}

func TestInstructionFlags_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instrs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"category":"token","count":2},{"category":"custom","label":"swap"}]`), 0o644))

	one, zero := 1, 0
	f := &instructionFlags{
		counts: map[domain.Category]*int{
			domain.CategoryTransfer: &one,
			domain.CategoryMemo:     &zero,
			domain.CategoryToken:    &zero,
			domain.CategoryCustom:   &zero,
		},
		file: path,
	}

	specs, err := f.specs()
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, domain.CategoryToken, specs[0].Category)
	assert.Equal(t, "swap", specs[1].Label)
	assert.Equal(t, batch.InstructionSpec{Category: domain.CategoryTransfer, Count: 1}, specs[2])

	f.file = filepath.Join(t.TempDir(), "missing.json")
	_, err = f.specs()
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)

	payload := []byte(`{"timestamp":"2024-01-01T00:00:00Z","optimizations":[{}]}`)
	good := &domain.PlanExport{
		ExportID:   idhash.ComputeExportID("", payload),
		PlanCount:  1,
		Payload:    payload,
		ExportedAt: 1,
	}
	exports := sqlite.NewPlanExportStore(db)
	require.NoError(t, exports.Insert(context.Background(), good))
	require.NoError(t, db.Close())
	t.Setenv("SFL_SQLITE_PATH", path)

	out, err := execute(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "1 checked, 1 matched, 0 divergent")

	out, err = execute(t, "verify", "--export", good.ExportID, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"matched": 1`)
	verifyExport, verifyFormat = "", "table"

	db, err = sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, sqlite.NewPlanExportStore(db).Insert(context.Background(), &domain.PlanExport{
		ExportID:   "forged",
		PlanCount:  1,
		Payload:    payload,
		ExportedAt: 2,
	}))
	require.NoError(t, db.Close())

	out, err = execute(t, "verify")
	assert.Error(t, err)
	assert.Contains(t, out, "MISMATCH  forged")
}

package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	tests := []struct {
		dir   string
		fsys  fs.FS
		table string
	}{
		{"postgres", PostgresFS, "simulation_records"},
		{"clickhouse", ClickhouseFS, "fee_samples"},
		{"sqlite", SQLiteFS, "plan_exports"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			files, bodies, err := sqlFiles(tt.fsys, tt.dir)
			require.NoError(t, err)
			require.NotEmpty(t, files)
			assert.Contains(t, strings.Join(bodies, "\n"), tt.table)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header
CREATE TABLE a (x Int8);

-- second
CREATE TABLE b (y Int8)
ENGINE = Memory;
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int8)", stmts[0])
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE b"))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s'; SELECT 1;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b'"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://user:pw@localhost:9000/fees")
	require.NoError(t, err)
	assert.Equal(t, "fees", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

package postgres

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_PairedUpAndDown(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %q", n)
		}
	}
	assert.Equal(t, ups, downs)
	assert.True(t, sort.StringsAreSorted(names))
}

func TestMigrations_CreateTakeoffsTable(t *testing.T) {
	data, err := migrationFiles.ReadFile("migrations/000001_create_takeoffs.up.sql")
	require.NoError(t, err)
	sql := string(data)
	for _, col := range []string{"id", "components", "deduction", "summary", "warnings", "created_at"} {
		assert.Contains(t, sql, col)
	}
}

func TestMigrator_DownRejectsNonPositiveSteps(t *testing.T) {
	m := NewMigrator(nil, nil)
	assert.Error(t, m.Down(0))
}

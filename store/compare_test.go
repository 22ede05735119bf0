package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	d.Now = ticking()
	ctx := context.Background()
	_, err = d.Save(ctx, "run_a", payload(0.1234, 1.5))
	require.NoError(t, err)
	_, err = d.Save(ctx, "run_b", payload(-0.05, -0.25))
	require.NoError(t, err)

	got, err := Compare(ctx, d, "run_a", "run_b", "run_missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "run_a", "run_b", "run_missing"}, got.Columns)
	require.Len(t, got.Rows, len(compareKeys))

	rows := make(map[string][]string)
	for _, r := range got.Rows {
		rows[r[0]] = r[1:]
	}
	assert.Equal(t, []string{"+12.34%", "-5.00%", Missing}, rows["Cumulative Return"])
	assert.Equal(t, []string{"1.500", "-0.250", Missing}, rows["Sharpe"])
	assert.Equal(t, []string{"-5.00%", "-5.00%", Missing}, rows["Max Drawdown"])
	assert.Equal(t, []string{"50.0%", "50.0%", Missing}, rows["Win Rate"])
	// no benchmark metrics in these runs.
	assert.Equal(t, []string{Missing, Missing, Missing}, rows["Beta"])
}

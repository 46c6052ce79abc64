package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryLogs(t *testing.T) {
	db, err := Initialize(":memory:")
	require.NoError(t, err)
	logs := NewQueryLogs(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		portal := "dc"
		if i%2 == 1 {
			portal = "hc"
		}
		require.NoError(t, logs.Record(ctx, &QueryLog{
			Portal:     portal,
			NaturalKey: fmt.Sprintf("case_reg_no=%d", i),
			Outcome:    "scraped",
			QueryTime:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, total, err := logs.List(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "case_reg_no=4", entries[0].NaturalKey)
	assert.Equal(t, "case_reg_no=3", entries[1].NaturalKey)

	entries, total, err = logs.List(ctx, "hc", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, entries, 2)

	entries, _, err = logs.List(ctx, "", 3, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.NoError(t, logs.Ping(ctx))
}

package cache

import (
	"context"
	"testing"

	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/storage/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func sampleQuery() record.CaseQuery {
	return record.CaseQuery{
		CaseType:         "1",
		CaseRegNo:        "123",
		RegYear:          "2023",
		StateCode:        "1",
		DistCode:         "1",
		CourtComplexCode: "1",
	}
}

func TestFilter(t *testing.T) {
	key := sampleQuery().Key([]string{record.FieldCaseRegNo, record.FieldRegYear, record.FieldEstCode})
	assert.Equal(t, bson.M{"case_reg_no": "123", "rgyear": "2023", "est_code": ""}, Filter(key))
}

func TestCollection(t *testing.T) {
	c := New(docstore.NewMemory(), "casedetails")
	assert.Equal(t, "casedetails_hc", c.Collection("hc"))
	assert.Equal(t, "sci", New(docstore.NewMemory(), "").Collection("sci"))
}

func TestFindAndUpsert(t *testing.T) {
	ctx := context.Background()
	c := New(docstore.NewMemory(), "casedetails")
	q := sampleQuery()
	key := q.Key(record.CourtKeyFields)

	got, found, err := c.Find(ctx, "dc", key)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)

	rec := record.New("dc")
	rec.CaseQuery = q
	rec.CaseStatus = record.Str("Pending")
	rec.Normalize()

	stored, err := c.Upsert(ctx, "dc", key, rec)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)

	got, found, err = c.Find(ctx, "dc", key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, stored, got)

	_, found, err = c.Find(ctx, "hc", key)
	require.NoError(t, err)
	assert.False(t, found, "portals do not share documents")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(1), stats.Writes)
	assert.Equal(t, int64(1), stats.Portals["dc"].Hits)
	assert.Equal(t, int64(1), stats.Portals["hc"].Misses)
}

func TestUpsertReplacesWholeDocument(t *testing.T) {
	ctx := context.Background()
	c := New(docstore.NewMemory(), "casedetails")
	q := sampleQuery()
	key := q.Key(record.CourtKeyFields)

	first := record.New("dc")
	first.CaseQuery = q
	first.NextHearingDate = record.Str("01-02-2024")
	first.Normalize()
	stored, err := c.Upsert(ctx, "dc", key, first)
	require.NoError(t, err)

	second := record.New("dc")
	second.CaseQuery = q
	second.CaseStatus = record.Str("Disposed")
	second.Normalize()
	replaced, err := c.Upsert(ctx, "dc", key, second)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, replaced.ID)

	got, _, err := c.Find(ctx, "dc", key)
	require.NoError(t, err)
	assert.Nil(t, got.NextHearingDate)
	assert.Equal(t, "Disposed", record.Deref(got.CaseStatus))
}

package sim

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maxis/internal/schema"
	"maxis/internal/types"
)

var acctCtx = types.Context{CaseID: "123456", Month: "01", Year: "24", Member: "01"}

func read(t *testing.T, h *Host, length, row, col int) string {
	t.Helper()
	v, err := h.ReadRegion(length, row, col)
	require.NoError(t, err)
	return v
}

func selectACCT(t *testing.T, h *Host, instance string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.GotoPanel(ctx, "123456", "01", "24", "STAT", "ACCT"))
	require.NoError(t, h.WriteRegion("01", 20, 76))
	require.NoError(t, h.WriteRegion(instance, 20, 79))
	require.NoError(t, h.Submit(ctx))
}

func TestSeedAndSelect(t *testing.T) {
	h := New(schema.Default())
	id, err := h.SeedRecord("ACCT", acctCtx, types.Values{"type": "SV", "balance": "1200"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "01", id)

	selectACCT(t, h, "01")
	assert.Equal(t, "SV", read(t, h, 2, 6, 44))
	assert.Equal(t, "1200____", read(t, h, 8, 10, 46))
	assert.Equal(t, " 1", read(t, h, 2, 2, 72))
	assert.Equal(t, "01", read(t, h, 2, 20, 79))
	assert.Equal(t, strings.Repeat(" ", 78), read(t, h, 78, 24, 2))
}

func TestSelectMissingInstance(t *testing.T) {
	h := New(schema.Default())
	selectACCT(t, h, "04")
	assert.Contains(t, read(t, h, 78, 24, 2), "DOES NOT EXIST")
}

func TestNewInstanceAllocation(t *testing.T) {
	h := New(schema.Default())
	for i := 0; i < 6; i++ {
		_, err := h.SeedRecord("ACCT", acctCtx, types.Values{"type": "SV"}, nil)
		require.NoError(t, err)
	}

	selectACCT(t, h, "NN")
	assert.Equal(t, " 7", read(t, h, 2, 2, 72))

	require.NoError(t, h.WriteRegion("CK", 6, 44))
	require.NoError(t, h.Submit(context.Background()))
	assert.Equal(t, []string{"01", "02", "03", "04", "05", "06", "07"}, h.Instances("ACCT", acctCtx))
}

func TestUnsavedNewInstanceIsDiscarded(t *testing.T) {
	h := New(schema.Default())
	selectACCT(t, h, "NN")
	require.NoError(t, h.GotoPanel(context.Background(), "123456", "01", "24", "STAT", "ACCT"))
	assert.Empty(t, h.Instances("ACCT", acctCtx))
}

func TestWritesNeedEditMode(t *testing.T) {
	h := New(schema.Default())
	_, err := h.SeedRecord("ACCT", acctCtx, types.Values{"type": "SV"}, nil)
	require.NoError(t, err)
	selectACCT(t, h, "01")

	err = h.WriteRegion("CK", 6, 44)
	assert.ErrorIs(t, err, ErrNotEditable)

	require.NoError(t, h.BeginEdit(context.Background()))
	require.NoError(t, h.WriteRegion("CK", 6, 44))

	// protected position between fields
	assert.ErrorIs(t, h.WriteRegion("X", 6, 43), ErrNotEditable)
	assert.ErrorIs(t, h.WriteRegion("X", 25, 1), ErrOffScreen)
}

func TestEditDiscardedOnNavigation(t *testing.T) {
	h := New(schema.Default())
	_, err := h.SeedRecord("ACCT", acctCtx, types.Values{"type": "SV"}, nil)
	require.NoError(t, err)

	selectACCT(t, h, "01")
	require.NoError(t, h.BeginEdit(context.Background()))
	require.NoError(t, h.WriteRegion("CK", 6, 44))

	selectACCT(t, h, "01")
	assert.Equal(t, "SV", read(t, h, 2, 6, 44))
}

func TestWarningsAndRejection(t *testing.T) {
	ctx := context.Background()

	t.Run("warning then save", func(t *testing.T) {
		h := New(schema.Default(), WithWarnings(1))
		selectACCT(t, h, "NN")
		require.NoError(t, h.Submit(ctx))
		assert.True(t, strings.HasPrefix(read(t, h, 78, 24, 2), "WARNING"))
		require.NoError(t, h.Submit(ctx))
		assert.Equal(t, strings.Repeat(" ", 78), read(t, h, 78, 24, 2))
		assert.Len(t, h.Instances("ACCT", acctCtx), 1)
	})

	t.Run("rejection keeps edit mode", func(t *testing.T) {
		h := New(schema.Default(), WithRejection("INVALID ACCOUNT TYPE"))
		selectACCT(t, h, "NN")
		require.NoError(t, h.Submit(ctx))
		assert.True(t, strings.HasPrefix(read(t, h, 78, 24, 2), "INVALID ACCOUNT TYPE"))
		require.NoError(t, h.GotoPanel(ctx, "123456", "01", "24", "STAT", "ACCT"))
		assert.Empty(t, h.Instances("ACCT", acctCtx))
	})
}

func TestPagingLastPage(t *testing.T) {
	ctx := context.Background()
	h := New(schema.Default())
	c := types.Context{CaseID: "9", Month: "02", Year: "24"}
	children := []types.Values{
		{"ref": "03", "parental_status": "1", "custody": "1"},
		{"ref": "04", "parental_status": "1", "custody": "1"},
		{"ref": "05", "parental_status": "2", "custody": "1"},
		{"ref": "06", "parental_status": "1", "custody": "2"},
	}
	_, err := h.SeedRecord("ABPS", c, types.Values{"last_name": "SMITH"}, map[string][]types.Values{"children": children})
	require.NoError(t, err)

	require.NoError(t, h.GotoPanel(ctx, "9", "02", "24", "STAT", "ABPS"))
	assert.Equal(t, "03", read(t, h, 2, 15, 35))
	assert.Equal(t, "05", read(t, h, 2, 17, 35))

	require.NoError(t, h.NextPage(ctx))
	assert.Equal(t, "06", read(t, h, 2, 15, 35))
	assert.Equal(t, "__", read(t, h, 2, 16, 35))
	// header fields stay on every page
	assert.Equal(t, "SMITH", read(t, h, 5, 10, 30))

	require.NoError(t, h.NextPage(ctx))
	assert.Equal(t, "LAST PAGE", read(t, h, 9, 24, 14))
	assert.Equal(t, "THIS IS THE LAST PAGE", read(t, h, 21, 24, 2))
	assert.Equal(t, 2, h.PageTurns())
}

func TestPagingMoreIndicator(t *testing.T) {
	ctx := context.Background()
	h := New(schema.Default())
	others := []types.Values{
		{"indicator": "1", "name": "ACME INSURANCE"},
		{"indicator": "2", "name": "JOHN DOE"},
	}
	_, err := h.SeedRecord("ACCI", acctCtx, types.Values{"type": "01"}, map[string][]types.Values{"others_involved": others})
	require.NoError(t, err)

	require.NoError(t, h.GotoPanel(ctx, "123456", "01", "24", "STAT", "ACCI"))
	require.NoError(t, h.WriteRegion("01", 20, 76))
	require.NoError(t, h.Submit(ctx))
	assert.Equal(t, "More: +", read(t, h, 7, 18, 66))

	require.NoError(t, h.NextPage(ctx))
	assert.True(t, strings.HasPrefix(read(t, h, 38, 13, 36), "JOHN DOE"))
	assert.Equal(t, "       ", read(t, h, 7, 18, 66))
}

func TestEditModeGrowsPages(t *testing.T) {
	ctx := context.Background()
	h := New(schema.Default(), WithPageLimit(2))
	_, err := h.SeedRecord("ACCI", acctCtx, nil, map[string][]types.Values{
		"others_involved": {{"indicator": "1", "name": "ACME"}},
	})
	require.NoError(t, err)

	require.NoError(t, h.GotoPanel(ctx, "123456", "01", "24", "STAT", "ACCI"))
	require.NoError(t, h.WriteRegion("01", 20, 76))
	require.NoError(t, h.Submit(ctx))
	require.NoError(t, h.BeginEdit(ctx))

	require.NoError(t, h.NextPage(ctx))
	assert.Equal(t, strings.Repeat("_", 38), read(t, h, 38, 13, 36))
	require.NoError(t, h.WriteRegion("BOB", 13, 36))

	require.NoError(t, h.NextPage(ctx))
	assert.Equal(t, "LAST PAGE", read(t, h, 9, 24, 14))
}

func TestFailureInjection(t *testing.T) {
	boom := errors.New("connection lost")
	h := New(schema.Default(), WithFailure(OpSubmit, 1, boom))
	ctx := context.Background()
	require.NoError(t, h.GotoPanel(ctx, "1", "01", "24", "STAT", "ADDR"))
	require.NoError(t, h.Submit(ctx))
	assert.ErrorIs(t, h.Submit(ctx), boom)
	assert.Equal(t, 2, h.Submits())
}

func TestReadLog(t *testing.T) {
	h := New(schema.Default())
	require.NoError(t, h.GotoPanel(context.Background(), "1", "01", "24", "STAT", "ADDR"))
	read(t, h, 22, 6, 43)

	reads := h.Reads()
	require.Len(t, reads, 1)
	assert.True(t, reads[0].Covers(schema.Segment{Row: 6, Col: 60, Width: 2}))
	assert.False(t, reads[0].Covers(schema.Segment{Row: 7, Col: 43, Width: 2}))

	h.ResetLog()
	assert.Empty(t, h.Reads())
}

func TestFixture(t *testing.T) {
	doc := `
options:
  warnings: 1
panels:
  - panel: ACCT
    case: "123456"
    month: "01"
    year: "24"
    member: "01"
    instance: "03"
    fields:
      type: SV
      balance: "1200"
    cells:
      - {row: 10, col: 64, text: "Q"}
`
	f, err := ParseFixture([]byte(doc))
	require.NoError(t, err)
	h, err := NewFromFixture(schema.Default(), f)
	require.NoError(t, err)

	assert.Equal(t, []string{"03"}, h.Instances("ACCT", acctCtx))
	selectACCT(t, h, "03")
	assert.Equal(t, "Q", read(t, h, 1, 10, 64))
	assert.Equal(t, 1, h.warnings)
}

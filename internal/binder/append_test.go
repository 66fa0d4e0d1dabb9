package binder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"maxis/internal/codec"
	"maxis/internal/host/sim"
	"maxis/internal/schema"
	"maxis/internal/types"
)

var newChild = types.Values{"ref": "09", "parental_status": "2", "custody": "3"}

func TestAppendIntoWindow(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ABPS")
	c := caseCtx.WithInstance(seed(t, h, "ABPS", caseCtx, abpsHeader, map[string][]types.Values{"children": children("03", "04")}))

	rec, err := b.Append(ctx, c, s, "children", newChild)
	require.NoError(t, err)
	assert.Equal(t, "Absent Parent Unknown", rec.Group("children")[0]["parental_status"].Text)
	assert.Zero(t, h.PageTurns())

	loaded, err := b.Load(ctx, c, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"03", "04", "09"}, entryCodes(loaded.Group("children"), "ref"))
	assert.Equal(t, "SMITH", loaded.Code("last_name"))
}

func TestAppendOntoNewPage(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ABPS")
	c := caseCtx.WithInstance(seed(t, h, "ABPS", caseCtx, abpsHeader, map[string][]types.Values{"children": children("03", "04", "05")}))

	_, err := b.Append(ctx, c, s, "children", newChild)
	require.NoError(t, err)

	loaded, err := b.Load(ctx, c, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"03", "04", "05", "09"}, entryCodes(loaded.Group("children"), "ref"))
}

func TestAppendFillsGapWithoutOverwriting(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ADDR")
	seed(t, h, "ADDR", caseCtx, types.Values{"verif": "SF", "reservation": "N"},
		map[string][]types.Values{"phones": {{"number": "612-555-0101"}, {}, {"number": "651-555-0199"}}})

	_, err := b.Append(ctx, caseCtx, s, "phones", types.Values{"number": "763-555-0123"})
	require.NoError(t, err)

	loaded, err := b.Load(ctx, caseCtx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"612-555-0101", "763-555-0123", "651-555-0199"}, entryCodes(loaded.Group("phones"), "number"))
}

func TestAppendSlotOccupied(t *testing.T) {
	t.Run("fixed window", func(t *testing.T) {
		b, h := newBinder(t)
		seed(t, h, "ADDR", caseCtx, types.Values{"verif": "SF"}, map[string][]types.Values{
			"phones": {{"number": "612-555-0101"}, {"number": "612-555-0102"}, {"number": "612-555-0103"}},
		})

		_, err := b.Append(context.Background(), caseCtx, panelSchema(t, "ADDR"), "phones", types.Values{"number": "763-555-0123"})
		var occ *SlotOccupiedError
		require.ErrorAs(t, err, &occ)
		assert.Equal(t, "phones", occ.Group)
		assert.ErrorIs(t, err, ErrSlotOccupied)
		assert.Zero(t, h.PageTurns())
		assert.Equal(t, 1, h.Submits())
	})

	t.Run("host page limit", func(t *testing.T) {
		b, h := newBinder(t, sim.WithPageLimit(1))
		c := caseCtx.WithInstance(seed(t, h, "ABPS", caseCtx, abpsHeader, map[string][]types.Values{
			"children": children("03", "04", "05"),
		}))

		_, err := b.Append(context.Background(), c, panelSchema(t, "ABPS"), "children", newChild)
		assert.ErrorIs(t, err, ErrSlotOccupied)
		assert.Equal(t, 1, h.PageTurns())
		assert.Equal(t, 1, h.Submits())
	})
}

func TestAppendDetectsStuckPaging(t *testing.T) {
	h := sim.New(schema.Default())
	b := New(h, stuckPager{h}, codec.Default(), DefaultConfig(), zaptest.NewLogger(t))
	c := caseCtx.WithInstance(seed(t, h, "ABPS", caseCtx, abpsHeader, map[string][]types.Values{
		"children": children("03", "04", "05"),
	}))

	_, err := b.Append(context.Background(), c, panelSchema(t, "ABPS"), "children", newChild)
	var pa *PaginationAlignmentError
	require.ErrorAs(t, err, &pa)
	assert.Contains(t, pa.Msg, "did not advance")
	assert.NotErrorIs(t, err, ErrSlotOccupied)
	assert.Equal(t, 1, h.Submits())
}

func TestAppendValidatesBeforeIO(t *testing.T) {
	c := caseCtx.WithInstance("01")
	tests := []struct {
		name  string
		c     types.Context
		group string
		entry types.Values
		want  error
	}{
		{"unknown group", c, "pets", types.Values{"ref": "01"}, schema.ErrInvalidValue},
		{"unknown field", c, "children", types.Values{"ref": "01", "age": "4"}, schema.ErrInvalidValue},
		{"missing key", c, "children", types.Values{"custody": "1"}, schema.ErrInvalidValue},
		{"blank key", c, "children", types.Values{"ref": ""}, schema.ErrInvalidValue},
		{"no instance", caseCtx, "children", newChild, types.ErrInvalidContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, h := newBinder(t)
			_, err := b.Append(context.Background(), tt.c, panelSchema(t, "ABPS"), tt.group, tt.entry)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, h.Calls(sim.OpGoto))
		})
	}
}

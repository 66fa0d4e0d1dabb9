package binder

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maxis/internal/codec"
	"maxis/internal/host/sim"
	"maxis/internal/schema"
	"maxis/internal/types"
)

var newAccount = types.Values{
	"type":               "CK",
	"number":             "555",
	"location":           "FIRST BANK",
	"balance":            "50",
	"balance_verif":      "1",
	"balance_as_of":      "2/3/2024",
	"programs":           "hc,cash",
	"withdrawal_penalty": "25",
}

// subset keeps only the fields named in keys.
func subset(all types.Values, keys types.Values) types.Values {
	out := make(types.Values, len(keys))
	for k := range keys {
		out[k] = all[k]
	}
	return out
}

func TestCommitCreateRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ACCT")

	rec, err := b.Commit(ctx, memberCtx, s, newAccount, true)
	require.NoError(t, err)
	assert.Equal(t, "01", rec.Context.Instance)

	want := types.Values{
		"type":               "CK",
		"number":             "555",
		"location":           "FIRST BANK",
		"balance":            "50",
		"balance_verif":      "1",
		"balance_as_of":      "02/03/24",
		"programs":           "Cash,HC",
		"withdrawal_penalty": "25",
		"withdrawal_yn":      "Y",
		"joint_owner":        "N",
	}
	if diff := cmp.Diff(want, rec.Codes()); diff != "" {
		t.Errorf("committed codes (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Checking", rec.Text("type"))

	loaded, err := b.Load(ctx, rec.Context, s)
	require.NoError(t, err)
	if diff := cmp.Diff(rec.Codes(), subset(loaded.Codes(), rec.Codes())); diff != "" {
		t.Errorf("load after commit (-committed +loaded):\n%s", diff)
	}
	assert.Equal(t, []string{"01"}, h.Instances("ACCT", memberCtx))
}

func TestCommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b, _ := newBinder(t)
	s := panelSchema(t, "ACCT")

	rec, err := b.Commit(ctx, memberCtx, s, newAccount, true)
	require.NoError(t, err)
	first, err := b.Load(ctx, rec.Context, s)
	require.NoError(t, err)

	_, err = b.Commit(ctx, rec.Context, s, newAccount, false)
	require.NoError(t, err)
	second, err := b.Load(ctx, rec.Context, s)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second commit changed the panel (-first +second):\n%s", diff)
	}
}

func TestCommitAllocatesNextInstance(t *testing.T) {
	b, h := newBinder(t)
	for i := 0; i < 6; i++ {
		seed(t, h, "ACCT", memberCtx, types.Values{"type": "SV"}, nil)
	}

	// the host echoes " 7"; the record carries the two-digit id
	rec, err := b.Commit(context.Background(), memberCtx, panelSchema(t, "ACCT"), types.Values{"type": "CK"}, true)
	require.NoError(t, err)
	assert.Equal(t, "07", rec.Context.Instance)
	assert.Len(t, h.Instances("ACCT", memberCtx), 7)
}

func TestCommitUpdateKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ACCT")
	c := memberCtx.WithInstance(seed(t, h, "ACCT", memberCtx, types.Values{
		"type": "SV", "balance": "1200", "location": "CREDIT UNION", "joint_owner": "Y", "share_ratio": "1/2",
	}, nil))

	_, err := b.Commit(ctx, c, s, types.Values{"balance": "900"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Calls(sim.OpEdit))

	rec, err := b.Load(ctx, c, s)
	require.NoError(t, err)
	assert.Equal(t, "900", rec.Code("balance"))
	assert.Equal(t, "CREDIT UNION", rec.Code("location"))
	assert.Equal(t, "1/2", rec.Code("share_ratio"))
}

func TestCommitClearsField(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ACCT")
	c := memberCtx.WithInstance(seed(t, h, "ACCT", memberCtx, types.Values{"type": "SV", "location": "CREDIT UNION"}, nil))

	_, err := b.Commit(ctx, c, s, types.Values{"location": ""}, false)
	require.NoError(t, err)
	rec, err := b.Load(ctx, c, s)
	require.NoError(t, err)
	assert.Equal(t, "", rec.Code("location"))
}

func TestCommitWithoutSelectors(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ADDR")

	rec, err := b.Commit(ctx, caseCtx, s, types.Values{
		"effective_date": "01/01/24",
		"resi_line1":     "1 MAIN ST",
		"resi_city":      "DULUTH",
		"resi_state":     "MN",
		"verif":          "LE",
		"reservation":    "N",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "", rec.Context.Instance)
	assert.Equal(t, []string{"01"}, h.Instances("ADDR", caseCtx))

	loaded, err := b.Load(ctx, caseCtx, s)
	require.NoError(t, err)
	assert.Equal(t, "DULUTH", loaded.Code("resi_city"))
	assert.Equal(t, "Lease/Rental Document", loaded.Text("verif"))
}

func TestCommitWarningAcknowledgedOnce(t *testing.T) {
	ctx := context.Background()
	values := types.Values{"type": "CK"}

	plain, h0 := newBinder(t)
	_, err := plain.Commit(ctx, memberCtx, panelSchema(t, "ACCT"), values, true)
	require.NoError(t, err)

	warned, h1 := newBinder(t, sim.WithWarnings(1))
	_, err = warned.Commit(ctx, memberCtx, panelSchema(t, "ACCT"), values, true)
	require.NoError(t, err)

	assert.Equal(t, h0.Submits()+1, h1.Submits())
	assert.Len(t, h1.Instances("ACCT", memberCtx), 1)
}

func TestCommitRepeatedWarningRejected(t *testing.T) {
	b, h := newBinder(t, sim.WithWarnings(2))
	_, err := b.Commit(context.Background(), memberCtx, panelSchema(t, "ACCT"), types.Values{"type": "CK"}, true)

	var rej *HostRejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "acknowledge warning", rej.Step)
	assert.Contains(t, rej.Message, "WARNING")
	// selection, save, one acknowledgement
	assert.Equal(t, 3, h.Submits())
}

func TestCommitRejected(t *testing.T) {
	b, h := newBinder(t, sim.WithRejection("INVALID ACCOUNT TYPE"))
	_, err := b.Commit(context.Background(), memberCtx, panelSchema(t, "ACCT"), types.Values{"type": "CK"}, true)

	var rej *HostRejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "save", rej.Step)
	assert.Equal(t, "INVALID ACCOUNT TYPE", rej.Message)
	assert.Equal(t, 2, h.Submits())
	// nothing was saved and the next navigation drops the new instance
	require.NoError(t, h.GotoPanel(context.Background(), "123456", "01", "24", "STAT", "ACCT"))
	assert.Empty(t, h.Instances("ACCT", memberCtx))
}

func TestCommitValidatesBeforeIO(t *testing.T) {
	withInst := memberCtx.WithInstance("01")
	abps := caseCtx.WithInstance("01")
	tests := []struct {
		name   string
		panel  string
		c      types.Context
		values types.Values
		create bool
		want   error
	}{
		{"unknown field", "ACCT", withInst, types.Values{"colour": "red"}, false, schema.ErrInvalidValue},
		{"group name", "ABPS", abps, types.Values{"children": "03"}, false, schema.ErrInvalidValue},
		{"too wide", "ACCT", withInst, types.Values{"balance": "123456789"}, false, schema.ErrInvalidValue},
		{"fill character", "ACCT", withInst, types.Values{"location": "A_B"}, false, schema.ErrInvalidValue},
		{"unknown code", "ACCT", withInst, types.Values{"type": "ZZ"}, false, codec.ErrUnknownCode},
		{"bad date", "ACCT", withInst, types.Values{"balance_as_of": "Jan 1"}, false, schema.ErrInvalidValue},
		{"unknown flag", "ACCT", withInst, types.Values{"programs": "MA"}, false, schema.ErrInvalidValue},
		{"companion conflict", "ACCT", withInst, types.Values{"withdrawal_penalty": "50", "withdrawal_yn": "N"}, false, schema.ErrInvalidValue},
		{"share ratio without joint owner", "ACCT", withInst, types.Values{"share_ratio": "1/2", "joint_owner": "N"}, false, schema.ErrInvalidValue},
		{"inapplicable field", "ABPS", abps, types.Values{"good_cause": "N", "gc_reason": "1"}, false, schema.ErrInvalidValue},
		{"update without instance", "ACCT", memberCtx, types.Values{"type": "CK"}, false, types.ErrInvalidContext},
		{"missing member", "ACCT", caseCtx, types.Values{"type": "CK"}, true, types.ErrInvalidContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, h := newBinder(t)
			_, err := b.Commit(context.Background(), tt.c, panelSchema(t, tt.panel), tt.values, tt.create)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, h.Calls(sim.OpGoto))
			assert.Zero(t, h.Calls(sim.OpWrite))
		})
	}
}

func TestCommitAllowsConditionalFieldWhenItApplies(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ABPS")
	c := caseCtx.WithInstance(seed(t, h, "ABPS", caseCtx, abpsHeader, nil))

	_, err := b.Commit(ctx, c, s, types.Values{"good_cause": "P", "gc_reason": "2", "gc_claim_date": "05/01/24"}, false)
	require.NoError(t, err)

	rec, err := b.Load(ctx, c, s)
	require.NoError(t, err)
	assert.Equal(t, "Potential Emotional Harm/Child", rec.Text("gc_reason"))
	assert.Equal(t, "05/01/24", rec.Code("gc_claim_date"))
}

func TestPlanOrdersCompanionsAfterOwner(t *testing.T) {
	b, _ := newBinder(t)
	s := panelSchema(t, "ACCT")

	plan, err := b.plan(s, types.Values{"share_ratio": "1/3", "withdrawal_penalty": "10", "type": "SV"}, true)
	require.NoError(t, err)

	var names []string
	for _, w := range plan {
		names = append(names, w.field.Name)
	}
	assert.Equal(t, []string{"type", "withdrawal_penalty", "withdrawal_yn", "share_ratio", "joint_owner"}, names)
}

func TestPlanCreateDefaultsCompanion(t *testing.T) {
	b, _ := newBinder(t)
	s := panelSchema(t, "ACCT")

	plan, err := b.plan(s, types.Values{"type": "SV"}, true)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "joint_owner", plan[1].field.Name)
	assert.Equal(t, "N", plan[1].code)

	// updates leave an omitted owner's companion alone
	plan, err = b.plan(s, types.Values{"type": "SV"}, false)
	require.NoError(t, err)
	assert.Len(t, plan, 1)

	// an explicit companion value wins over the create default
	plan, err = b.plan(s, types.Values{"type": "SV", "joint_owner": "Y"}, true)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "Y", plan[1].code)
}

func TestPlanCompanionAgreesOnScreenCode(t *testing.T) {
	b, _ := newBinder(t)
	s := &schema.Schema{Panel: "T", Fields: []schema.Field{
		{Name: "closed", Kind: schema.KindBlankTrimmed, Segments: []schema.Segment{{Row: 5, Col: 10, Width: 1}},
			Companion: &schema.Companion{Field: "closed_on", Value: "01/02/24"}},
		{Name: "closed_on", Kind: schema.KindDate, Joiner: "/", Segments: []schema.Segment{
			{Row: 6, Col: 10, Width: 2}, {Row: 6, Col: 13, Width: 2}, {Row: 6, Col: 16, Width: 2}}},
	}}

	plan, err := b.plan(s, types.Values{"closed": "Y", "closed_on": "1/2/24"}, false)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "01/02/24", plan[1].code)

	_, err = b.plan(s, types.Values{"closed": "Y", "closed_on": "1/3/24"}, false)
	assert.ErrorIs(t, err, schema.ErrInvalidValue)
}

func TestCreateWritesInitialGroupEntries(t *testing.T) {
	ctx := context.Background()
	b, h := newBinder(t)
	s := panelSchema(t, "ACCI")

	rec, err := b.Create(ctx, memberCtx, s, types.Values{"type": "01", "injury_date": "06/01/23"},
		map[string][]types.Values{
			"hh_members": {{"ref": "01"}, {"ref": "03"}},
			"others_involved": {
				{"indicator": "2", "name": "NORTH STAR INSURANCE"},
				{"indicator": "3", "name": "NORTH STAR INSURANCE"},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, "01", rec.Context.Instance)
	assert.Equal(t, []string{"01", "03"}, entryCodes(rec.Group("hh_members"), "ref"))
	// one selection to allocate, one save
	assert.Equal(t, 2, h.Submits())

	loaded, err := b.Load(ctx, rec.Context, s)
	require.NoError(t, err)
	assert.Equal(t, "Auto", loaded.Text("type"))
	assert.Equal(t, []string{"01", "03"}, entryCodes(loaded.Group("hh_members"), "ref"))
	assert.Equal(t, []string{"2", "3"}, entryCodes(loaded.Group("others_involved"), "indicator"))
	assert.Equal(t, []string{"NORTH STAR INSURANCE", "NORTH STAR INSURANCE"}, entryCodes(loaded.Group("others_involved"), "name"))
}

func TestCreateValidatesGroupsBeforeIO(t *testing.T) {
	members := make([]types.Values, 10)
	for i := range members {
		members[i] = types.Values{"ref": fmt.Sprintf("%02d", i+1)}
	}
	tests := []struct {
		name   string
		groups map[string][]types.Values
	}{
		{"unknown group", map[string][]types.Values{"pets": {{"ref": "01"}}}},
		{"window overflow", map[string][]types.Values{"hh_members": members}},
		{"entry without key", map[string][]types.Values{"others_involved": {{"indicator": "1"}}}},
		{"unknown entry field", map[string][]types.Values{"hh_members": {{"ref": "01", "age": "4"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, h := newBinder(t)
			_, err := b.Create(context.Background(), memberCtx, panelSchema(t, "ACCI"), types.Values{"type": "01"}, tt.groups)
			require.ErrorIs(t, err, schema.ErrInvalidValue)
			assert.Zero(t, h.Calls(sim.OpGoto))
		})
	}
}

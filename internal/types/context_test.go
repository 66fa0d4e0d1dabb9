package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValidate(t *testing.T) {
	base := Context{CaseID: "123456", Month: "01", Year: "24"}

	tests := []struct {
		name          string
		mutate        func(c *Context)
		requireMember bool
		wantErr       bool
	}{
		{"case level", func(c *Context) {}, false, false},
		{"member level", func(c *Context) { c.Member = "01"; c.Instance = "02" }, true, false},
		{"missing case", func(c *Context) { c.CaseID = " " }, false, true},
		{"one digit month", func(c *Context) { c.Month = "1" }, false, true},
		{"missing year", func(c *Context) { c.Year = "" }, false, true},
		{"member required", func(c *Context) {}, true, true},
		{"bad member", func(c *Context) { c.Member = "1a" }, false, true},
		{"bad instance", func(c *Context) { c.Instance = "NN" }, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate(tt.requireMember)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidContext)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWithInstanceCopies(t *testing.T) {
	c := Context{CaseID: "1", Month: "01", Year: "24", Member: "01"}
	d := c.WithInstance("07")
	assert.Equal(t, "", c.Instance)
	assert.Equal(t, "07", d.Instance)
	assert.Equal(t, "case 1 01/24 memb 01 inst 07", d.String())
}

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"7", "07", true},
		{" 7", "07", true},
		{"07", "07", true},
		{"12", "12", true},
		{"", "", false},
		{"__", "", false},
		{"123", "", false},
		{"x", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeRef(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestRecordAccessors(t *testing.T) {
	r := NewRecord("ACCT", Context{CaseID: "1"})
	r.Fields["type"] = Value{Code: "SV", Text: "Savings"}
	r.Fields["balance"] = Plain("100")
	r.Groups["programs"] = []Entry{{"ref": Plain("01")}}

	v, ok := r.Field("type")
	require.True(t, ok)
	assert.Equal(t, "Savings", v.Text)
	assert.Equal(t, "SV", r.Code("type"))
	assert.Equal(t, "100", r.Text("balance"))
	assert.False(t, r.Has("share_ratio"))
	assert.Equal(t, "", r.Code("share_ratio"))
	assert.Equal(t, Values{"type": "SV", "balance": "100"}, r.Codes())
	require.Len(t, r.Group("programs"), 1)
	assert.Equal(t, "01", r.Group("programs")[0].Code("ref"))
	assert.Equal(t, Values{"ref": "01"}, r.Group("programs")[0].Codes())
	assert.Nil(t, r.Group("missing"))
}

package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustField(t *testing.T, panel, name string) *Field {
	t.Helper()
	s, err := Default().Get(panel)
	require.NoError(t, err)
	if f, ok := s.Field(name); ok {
		return f
	}
	for i := range s.Groups {
		if f, ok := s.Groups[i].Field(name); ok {
			return f
		}
	}
	t.Fatalf("no field %s.%s", panel, name)
	return nil
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name  string
		panel string
		field string
		raw   []string
		want  string
	}{
		{"blank fill is empty", "ACCT", "location", []string{"____"}, ""},
		{"blank trimmed text", "ACCT", "number", []string{"1234 5678___________"}, "1234 5678"},
		{"date triplet", "ABPS", "dob", []string{"12", "30", "2017"}, "12/30/2017"},
		{"ssn", "ABPS", "ssn", []string{"123", "45", "6789"}, "123-45-6789"},
		{"blank date", "ACCI", "claim_date", []string{"__", "__", "__"}, ""},
		{"month year date", "ACCT", "next_interest", []string{"06", "24"}, "06/24"},
		{"phone", "ACCI", "phone", []string{"651", "555", "0100"}, "651-555-0100"},
		{"flags", "ACCT", "programs", []string{"Y", "N", "Y", "_", "Y"}, "Cash,HC,IV-E"},
		{"no flags", "ACCT", "programs", []string{"N", "N", "N", "N", "N"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustField(t, tt.panel, tt.field)
			assert.Equal(t, tt.want, f.Join(tt.raw, "_"))
		})
	}
}

func TestJoinRawText(t *testing.T) {
	f := &Field{Name: "t", Kind: KindText, Segments: []Segment{{Row: 1, Col: 1, Width: 8}}}
	assert.Equal(t, "  AB CD", f.Join([]string{"  AB CD_"}, "_"))
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		panel string
		field string
		value string
		want  []string
	}{
		{"pads with fill", "ACCT", "balance", "250", []string{"250_____"}},
		{"empty clears", "ACCT", "balance", "", []string{"________"}},
		{"date zero pad", "ACCI", "injury_date", "3/7/24", []string{"03", "07", "24"}},
		{"date drops century", "ACCI", "injury_date", "12/30/2017", []string{"12", "30", "17"}},
		{"four digit year kept", "ABPS", "dob", "12/30/2017", []string{"12", "30", "2017"}},
		{"ssn", "ABPS", "ssn", "123-45-6789", []string{"123", "45_", "6789"}},
		{"share ratio", "ACCT", "share_ratio", "1/2", []string{"1", "2"}},
		{"flags", "ACCT", "programs", "snap, IV-E", []string{"N", "Y", "N", "N", "Y"}},
		{"empty flags", "ACCT", "programs", "", []string{"N", "N", "N", "N", "N"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustField(t, tt.panel, tt.field)
			got, err := f.Encode(tt.value, "_")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		panel string
		field string
		value string
	}{
		{"too wide", "ACCT", "joint_owner", "YN"},
		{"fill character", "ACCT", "location", "A_B"},
		{"date not numeric", "ACCI", "injury_date", "ja/01/24"},
		{"date missing part", "ACCI", "injury_date", "01/24"},
		{"date part too wide", "ACCI", "injury_date", "123/01/24"},
		{"composite part count", "ABPS", "ssn", "123456789"},
		{"unknown flag", "ACCT", "programs", "Cash,MA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustField(t, tt.panel, tt.field)
			_, err := f.Encode(tt.value, "_")
			require.Error(t, err)
			var ve *ValueError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestCanonical(t *testing.T) {
	f := mustField(t, "ACCI", "injury_date")
	got, err := f.Canonical("3/7/2024", "_")
	require.NoError(t, err)
	assert.Equal(t, "03/07/24", got)

	flags := mustField(t, "ACCT", "programs")
	got, err = flags.Canonical("iv-e,cash", "_")
	require.NoError(t, err)
	assert.Equal(t, "Cash,IV-E", got)
}

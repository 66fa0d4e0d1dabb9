package schema

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// strip removes every blank-fill character from s.
func strip(s, fill string) string {
	if fill == "" {
		return s
	}
	return strings.ReplaceAll(s, fill, "")
}

// Join turns the raw text read from each region into the field's code.
// raw holds one entry per segment (or per flag for flags fields).
func (f *Field) Join(raw []string, fill string) string {
	switch f.Kind {
	case KindFlags:
		var labels []string
		for i, fl := range f.Flags {
			if i < len(raw) && raw[i] == "Y" {
				labels = append(labels, fl.Label)
			}
		}
		return strings.Join(labels, ",")
	case KindDate, KindComposite:
		parts := make([]string, len(raw))
		empty := true
		for i, r := range raw {
			parts[i] = strings.TrimSpace(strip(r, fill))
			if parts[i] != "" {
				empty = false
			}
		}
		if empty {
			return ""
		}
		return strings.Join(parts, f.Joiner)
	case KindText:
		if len(raw) == 0 {
			return ""
		}
		return strings.TrimRight(strip(raw[0], fill), " ")
	default:
		if len(raw) == 0 {
			return ""
		}
		return strings.TrimSpace(strip(raw[0], fill))
	}
}

// Encode splits value into the text written to each region. Every piece is
// exactly as wide as its region: short values are padded with fill, long
// ones are rejected. For flags fields value is a comma separated label list
// and the result holds "Y" or "N" per flag.
func (f *Field) Encode(value, fill string) ([]string, error) {
	if fill != "" && strings.Contains(value, fill) {
		return nil, &ValueError{Field: f.Name, Value: value, Msg: "contains the blank-fill character"}
	}
	switch f.Kind {
	case KindFlags:
		return f.encodeFlags(value)
	case KindDate:
		return f.encodeDate(value, fill)
	case KindComposite:
		return f.encodeParts(value, fill)
	default:
		p, err := f.fit(value, f.Segments[0].Width, fill)
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	}
}

// Canonical returns the code the host will show once value is written.
func (f *Field) Canonical(value, fill string) (string, error) {
	parts, err := f.Encode(value, fill)
	if err != nil {
		return "", err
	}
	return f.Join(parts, fill), nil
}

func (f *Field) fit(v string, width int, fill string) (string, error) {
	w := runewidth.StringWidth(v)
	if w > width {
		return "", &ValueError{Field: f.Name, Value: v, Msg: "wider than the field"}
	}
	return v + strings.Repeat(fill, width-w), nil
}

func (f *Field) blanks(fill string) []string {
	out := make([]string, len(f.Segments))
	for i, seg := range f.Segments {
		out[i] = strings.Repeat(fill, seg.Width)
	}
	return out
}

func (f *Field) encodeParts(value, fill string) ([]string, error) {
	if value == "" {
		return f.blanks(fill), nil
	}
	parts := strings.Split(value, f.Joiner)
	if len(parts) != len(f.Segments) {
		return nil, &ValueError{Field: f.Name, Value: value, Msg: "wrong number of parts"}
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		s, err := f.fit(p, f.Segments[i].Width, fill)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// encodeDate writes numeric parts zero padded; a four digit year going into
// a two wide segment keeps its last two digits.
func (f *Field) encodeDate(value, fill string) ([]string, error) {
	if value == "" {
		return f.blanks(fill), nil
	}
	parts := strings.Split(value, f.Joiner)
	if len(parts) != len(f.Segments) {
		return nil, &ValueError{Field: f.Name, Value: value, Msg: "wrong number of date parts"}
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return nil, &ValueError{Field: f.Name, Value: value, Msg: "date parts must be numeric"}
		}
		w := f.Segments[i].Width
		switch {
		case len(p) == w:
		case len(p) < w:
			p = strings.Repeat("0", w-len(p)) + p
		case len(p) == 4 && w == 2:
			p = p[2:]
		default:
			return nil, &ValueError{Field: f.Name, Value: value, Msg: "date part wider than the field"}
		}
		out[i] = p
	}
	return out, nil
}

func (f *Field) encodeFlags(value string) ([]string, error) {
	set := make(map[string]bool)
	for _, l := range strings.Split(value, ",") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		matched := false
		for _, fl := range f.Flags {
			if strings.EqualFold(fl.Label, l) {
				set[fl.Label] = true
				matched = true
				break
			}
		}
		if !matched {
			return nil, &ValueError{Field: f.Name, Value: value, Msg: "unknown label " + l}
		}
	}
	out := make([]string, len(f.Flags))
	for i, fl := range f.Flags {
		out[i] = "N"
		if set[fl.Label] {
			out[i] = "Y"
		}
	}
	return out, nil
}

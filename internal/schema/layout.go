package schema

// Layout holds the host-wide screen conventions shared by every panel.
type Layout struct {
	// BlankFill is the character the host paints into empty input positions.
	BlankFill string `yaml:"blank_fill" json:"blank_fill"`

	// NewInstance is typed into the instance selector to open a new panel.
	NewInstance string `yaml:"new_instance" json:"new_instance"`
	// InstanceEcho is where the host shows the instance number it assigned.
	InstanceEcho Segment `yaml:"instance_echo" json:"instance_echo"`

	// Diagnostic is the message line read after a transmit.
	Diagnostic   Segment `yaml:"diagnostic" json:"diagnostic"`
	WarningToken string  `yaml:"warning_token" json:"warning_token"`

	LastPage      Segment `yaml:"last_page" json:"last_page"`
	LastPageToken string  `yaml:"last_page_token" json:"last_page_token"`

	More      Segment `yaml:"more" json:"more"`
	MoreToken string  `yaml:"more_token" json:"more_token"`
}

// DefaultLayout returns the MAXIS conventions.
func DefaultLayout() Layout {
	return Layout{
		BlankFill:     "_",
		NewInstance:   "NN",
		InstanceEcho:  Segment{Row: 2, Col: 72, Width: 2},
		Diagnostic:    Segment{Row: 24, Col: 2, Width: 78},
		WarningToken:  "WARNING",
		LastPage:      Segment{Row: 24, Col: 14, Width: 9},
		LastPageToken: "LAST PAGE",
		More:          Segment{Row: 18, Col: 66, Width: 7},
		MoreToken:     "More: +",
	}
}

// MoreRegion returns the more-indicator region for g.
func (l Layout) MoreRegion(g *Group) Segment {
	if g.More != nil {
		return *g.More
	}
	return l.More
}

// Package sim is an in-memory stand-in for a MAXIS terminal session. It
// renders panels from their schemas onto a 24x80 grid and implements the
// host capabilities the binder consumes, including instance selection,
// new-instance allocation, edit mode, paging and save diagnostics.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"maxis/internal/schema"
	"maxis/internal/types"
)

// Op names a host call for counting and failure injection.
type Op string

const (
	OpGoto     Op = "goto"
	OpSubmit   Op = "submit"
	OpNextPage Op = "next_page"
	OpEdit     Op = "edit"
	OpRead     Op = "read"
	OpWrite    Op = "write"
)

var (
	// ErrNotEditable: a write touched a protected position, or an input
	// position while the panel was not in edit mode.
	ErrNotEditable = errors.New("sim: position is not editable")
	// ErrOffScreen: a region falls outside the 24x80 grid.
	ErrOffScreen = errors.New("sim: region is off screen")
	// ErrNoPanel: the call needs a panel on screen.
	ErrNoPanel = errors.New("sim: no panel on screen")
)

const (
	defaultPageLimit = 9
	warningText      = ": REVIEW PANEL DATA, TRANSMIT TO CONTINUE"
	lastPagePrefix   = "THIS IS THE "
)

type grid [schema.ScreenRows][schema.ScreenCols]rune

func (g *grid) clone() *grid {
	c := *g
	return &c
}

type cell struct{ row, col int }

type key struct {
	caseID, month, year, panel, member string
}

type instance struct {
	number int
	pages  []*grid
}

func (in *instance) id() string { return fmt.Sprintf("%02d", in.number) }

type mode int

const (
	modeView mode = iota
	modeEdit
)

// Read is one logged ReadRegion call.
type Read struct {
	Row, Col, Length int
}

// Covers reports whether the read touched any cell of seg.
func (r Read) Covers(seg schema.Segment) bool {
	return r.Row == seg.Row && r.Col < seg.Col+seg.Width && seg.Col < r.Col+r.Length
}

// Cell is raw text placed on a stored page, used to seed values no schema
// would write (unknown codes, stray characters).
type Cell struct {
	Row  int    `yaml:"row"`
	Col  int    `yaml:"col"`
	Text string `yaml:"text"`
}

type failure struct {
	after int
	err   error
}

// panelInfo is derived once per panel schema.
type panelInfo struct {
	schema   *schema.Schema
	template *grid
	input    map[cell]bool
	selector map[cell]bool
	window   map[cell]bool
	paged    *schema.Group
}

// Option configures a Host.
type Option func(*Host)

// WithLayout replaces the default screen conventions.
func WithLayout(l schema.Layout) Option { return func(h *Host) { h.layout = l } }

// WithPageLimit caps how many pages edit mode may grow an instance to.
func WithPageLimit(n int) Option { return func(h *Host) { h.pageLimit = n } }

// WithWarnings makes every save show the warning interstitial n times
// before it is accepted.
func WithWarnings(n int) Option { return func(h *Host) { h.warnings = n } }

// WithRejection makes every save fail with msg on the diagnostic line.
func WithRejection(msg string) Option { return func(h *Host) { h.reject = msg } }

// WithFailure makes the (after+1)-th call of op return err.
func WithFailure(op Op, after int, err error) Option {
	return func(h *Host) { h.failures[op] = failure{after: after, err: err} }
}

// WithLogger sets the debug logger.
func WithLogger(l *zap.Logger) Option { return func(h *Host) { h.logger = l } }

// Host is a simulated MAXIS session. It is safe for concurrent use, but like
// the real host it has exactly one screen.
type Host struct {
	mu sync.Mutex

	reg       *schema.Registry
	layout    schema.Layout
	logger    *zap.Logger
	pageLimit int
	warnings  int
	reject    string
	failures  map[Op]failure
	calls     map[Op]int

	panels map[string]*panelInfo
	store  map[key][]*instance

	// screen state
	info     *panelInfo
	at       key
	cur      *instance
	page     int
	mode     mode
	created  bool
	snapshot []*grid
	pending  int
	diag     string
	lastPage bool
	screen   grid

	reads []Read
}

// New returns an empty host rendering panels from reg.
func New(reg *schema.Registry, opts ...Option) *Host {
	h := &Host{
		reg:       reg,
		layout:    schema.DefaultLayout(),
		logger:    zap.NewNop(),
		pageLimit: defaultPageLimit,
		failures:  make(map[Op]failure),
		calls:     make(map[Op]int),
		panels:    make(map[string]*panelInfo),
		store:     make(map[key][]*instance),
	}
	for _, o := range opts {
		o(h)
	}
	h.blankScreen()
	return h
}

// =============================================================================
// SEEDING
// =============================================================================

// SeedRecord stores a panel instance built from field codes. Group entries
// fill slots in order and continue onto further pages when the group pages.
// The instance number comes from c.Instance, or the next free number. It
// returns the two-digit instance id.
func (h *Host) SeedRecord(panel string, c types.Context, fields types.Values, groups map[string][]types.Values) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.panel(panel)
	if err != nil {
		return "", err
	}
	s := info.schema
	fill := h.layout.BlankFill
	in := &instance{pages: []*grid{info.template.clone()}}

	for name, v := range fields {
		f, ok := s.Field(name)
		if !ok {
			return "", fmt.Errorf("sim: %s has no field %q", s.Panel, name)
		}
		if err := placeField(in.pages[0], f, v, fill, 0, 0); err != nil {
			return "", err
		}
	}

	for name, entries := range groups {
		g, ok := s.RepeatingGroup(name)
		if !ok {
			return "", fmt.Errorf("sim: %s has no group %q", s.Panel, name)
		}
		for i, entry := range entries {
			pg, slot := i/g.Slots, i%g.Slots
			if pg > 0 && g.Paging == schema.PagingNone {
				return "", fmt.Errorf("sim: group %s holds at most %d entries", g.Name, g.Slots)
			}
			for len(in.pages) <= pg {
				in.pages = append(in.pages, info.template.clone())
			}
			dr, dc := g.SlotOffset(slot)
			for fname, v := range entry {
				f, ok := g.Field(fname)
				if !ok {
					return "", fmt.Errorf("sim: group %s has no field %q", g.Name, fname)
				}
				if err := placeField(in.pages[pg], f, v, fill, dr, dc); err != nil {
					return "", err
				}
			}
		}
	}

	if err := c.Validate(s.Scope == schema.ScopeMember); err != nil {
		return "", err
	}
	k := h.keyFor(s, c)
	in.number, err = h.numberFor(s, k, c.Instance)
	if err != nil {
		return "", err
	}
	h.put(k, in)
	return in.id(), nil
}

// SeedCells writes raw text onto page pg of an existing instance.
func (h *Host) SeedCells(panel string, c types.Context, pg int, cells ...Cell) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.panel(panel)
	if err != nil {
		return err
	}
	in := h.find(h.keyFor(info.schema, c), c.Instance)
	if in == nil {
		return fmt.Errorf("sim: no %s instance at %s", info.schema.Panel, c)
	}
	for len(in.pages) <= pg {
		in.pages = append(in.pages, info.template.clone())
	}
	for _, cl := range cells {
		if err := put(in.pages[pg], cl.Text, cl.Row, cl.Col); err != nil {
			return err
		}
	}
	return nil
}

// Instances lists the instance ids stored for the panel at c.
func (h *Host) Instances(panel string, c types.Context) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.panel(panel)
	if err != nil {
		return nil
	}
	var out []string
	for _, in := range h.store[h.keyFor(info.schema, c)] {
		out = append(out, in.id())
	}
	return out
}

func (h *Host) keyFor(s *schema.Schema, c types.Context) key {
	k := key{caseID: c.CaseID, month: c.Month, year: c.Year, panel: s.Panel}
	if s.Scope == schema.ScopeMember {
		k.member = c.Member
	}
	return k
}

func (h *Host) numberFor(s *schema.Schema, k key, want string) (int, error) {
	if s.Selector.Instance == nil {
		return 1, nil
	}
	if want != "" {
		n, err := strconv.Atoi(want)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("sim: bad instance %q", want)
		}
		return n, nil
	}
	return h.nextNumber(k), nil
}

func (h *Host) nextNumber(k key) int {
	n := 0
	for _, in := range h.store[k] {
		if in.number > n {
			n = in.number
		}
	}
	return n + 1
}

func (h *Host) put(k key, in *instance) {
	list := h.store[k]
	for i, old := range list {
		if old.number == in.number {
			list[i] = in
			return
		}
	}
	list = append(list, in)
	sort.Slice(list, func(i, j int) bool { return list[i].number < list[j].number })
	h.store[k] = list
}

func (h *Host) remove(k key, in *instance) {
	list := h.store[k]
	for i, old := range list {
		if old == in {
			h.store[k] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// find returns the instance with id, or the first one when id is blank.
func (h *Host) find(k key, id string) *instance {
	list := h.store[k]
	if id == "" {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil
	}
	for _, in := range list {
		if in.number == n {
			return in
		}
	}
	return nil
}

func placeField(g *grid, f *schema.Field, value, fill string, dr, dc int) error {
	parts, err := f.Encode(value, fill)
	if err != nil {
		return err
	}
	for i, seg := range f.Regions() {
		seg = seg.Offset(dr, dc)
		if err := put(g, parts[i], seg.Row, seg.Col); err != nil {
			return err
		}
	}
	return nil
}

func put(g *grid, text string, row, col int) error {
	rs := []rune(text)
	if err := inBounds(len(rs), row, col); err != nil {
		return err
	}
	for i, r := range rs {
		g[row-1][col-1+i] = r
	}
	return nil
}

func (h *Host) fillRune() rune {
	if r := []rune(h.layout.BlankFill); len(r) > 0 {
		return r[0]
	}
	return ' '
}

func inBounds(length, row, col int) error {
	if length < 0 || row < 1 || row > schema.ScreenRows || col < 1 || col+length-1 > schema.ScreenCols {
		return fmt.Errorf("%w: row %d col %d length %d", ErrOffScreen, row, col, length)
	}
	return nil
}

// panel returns the cached layout information for a panel name.
func (h *Host) panel(name string) (*panelInfo, error) {
	s, err := h.reg.Get(name)
	if err != nil {
		return nil, err
	}
	if info, ok := h.panels[s.Panel]; ok {
		return info, nil
	}

	info := &panelInfo{
		schema:   s,
		template: &grid{},
		input:    make(map[cell]bool),
		selector: make(map[cell]bool),
		window:   make(map[cell]bool),
	}
	for r := range info.template {
		for c := range info.template[r] {
			info.template[r][c] = ' '
		}
	}
	claim := func(set map[cell]bool, seg schema.Segment) {
		for c := seg.Col; c < seg.Col+seg.Width; c++ {
			set[cell{seg.Row, c}] = true
			info.template[seg.Row-1][c-1] = h.fillRune()
		}
	}
	for i := range s.Fields {
		for _, seg := range s.Fields[i].Regions() {
			claim(info.input, seg)
		}
	}
	for gi := range s.Groups {
		g := &s.Groups[gi]
		if g.Paging != schema.PagingNone {
			info.paged = g
		}
		for slot := 0; slot < g.Slots; slot++ {
			dr, dc := g.SlotOffset(slot)
			for i := range g.Fields {
				for _, seg := range g.Fields[i].Regions() {
					seg = seg.Offset(dr, dc)
					claim(info.input, seg)
					if g.Paging != schema.PagingNone {
						claim(info.window, seg)
					}
				}
			}
		}
	}
	for _, seg := range []*schema.Segment{s.Selector.Member, s.Selector.Instance} {
		if seg != nil {
			for c := seg.Col; c < seg.Col+seg.Width; c++ {
				info.selector[cell{seg.Row, c}] = true
			}
		}
	}
	h.panels[s.Panel] = info
	return info, nil
}

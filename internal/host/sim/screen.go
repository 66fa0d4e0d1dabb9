package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"maxis/internal/schema"
	"maxis/internal/types"
)

// call counts op and returns the injected failure for this call, if any.
// Callers hold h.mu.
func (h *Host) call(op Op) error {
	n := h.calls[op]
	h.calls[op]++
	if f, ok := h.failures[op]; ok && f.after == n {
		return f.err
	}
	return nil
}

// Calls returns how many times op was invoked.
func (h *Host) Calls(op Op) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[op]
}

// Submits returns the number of Submit calls.
func (h *Host) Submits() int { return h.Calls(OpSubmit) }

// PageTurns returns the number of NextPage calls.
func (h *Host) PageTurns() int { return h.Calls(OpNextPage) }

// Reads returns a copy of the read log.
func (h *Host) Reads() []Read {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Read(nil), h.reads...)
}

// ResetLog clears the read log and call counters.
func (h *Host) ResetLog() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads = nil
	h.calls = make(map[Op]int)
}

// Dump returns the current screen as 24 lines.
func (h *Host) Dump() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	lines := make([]string, len(h.screen))
	for i := range h.screen {
		lines[i] = string(h.screen[i][:])
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// SCREEN IO
// =============================================================================

// ReadRegion implements host.ScreenIO.
func (h *Host) ReadRegion(length, row, col int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.call(OpRead); err != nil {
		return "", err
	}
	if err := inBounds(length, row, col); err != nil {
		return "", err
	}
	h.reads = append(h.reads, Read{Row: row, Col: col, Length: length})
	return string(h.screen[row-1][col-1 : col-1+length]), nil
}

// WriteRegion implements host.ScreenIO. Selector positions are always
// writable; panel input positions only in edit mode. Nothing is written
// unless every position is writable.
func (h *Host) WriteRegion(value string, row, col int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.call(OpWrite); err != nil {
		return err
	}
	rs := []rune(value)
	if err := inBounds(len(rs), row, col); err != nil {
		return err
	}
	if h.info == nil {
		return ErrNoPanel
	}
	for i := range rs {
		c := cell{row, col + i}
		if h.info.selector[c] {
			continue
		}
		if !h.info.input[c] || h.mode != modeEdit || h.cur == nil {
			return fmt.Errorf("%w: row %d col %d", ErrNotEditable, c.row, c.col)
		}
	}
	for i, r := range rs {
		c := cell{row, col + i}
		h.screen[c.row-1][c.col-1] = r
		if h.info.selector[c] {
			continue
		}
		h.storeCell(c, r)
	}
	return nil
}

// storeCell persists an edit-mode write. Window cells of the paged group
// belong to the current page; everything else lives on the first page.
func (h *Host) storeCell(c cell, r rune) {
	pg := h.cur.pages[0]
	if h.info.window[c] {
		pg = h.cur.pages[h.page]
	}
	pg[c.row-1][c.col-1] = r
}

// =============================================================================
// NAVIGATION
// =============================================================================

// GotoPanel implements host.Navigator. Unsaved edits are discarded. Case
// level panels open on their first instance; member panels wait for a
// selection.
func (h *Host) GotoPanel(ctx context.Context, caseID, month, year, group, panel string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.call(OpGoto); err != nil {
		return err
	}
	h.discard()

	info, err := h.panel(panel)
	if err != nil {
		return fmt.Errorf("sim: goto %s/%s: %w", group, panel, err)
	}
	if !strings.EqualFold(info.schema.Group, group) {
		return fmt.Errorf("sim: panel %s is not in group %s", info.schema.Panel, group)
	}

	h.info = info
	h.at = key{caseID: caseID, month: month, year: year, panel: info.schema.Panel}
	h.cur = nil
	if info.schema.Selector.Member == nil {
		h.cur = h.find(h.at, "")
	}
	h.page = 0
	h.diag = ""
	h.lastPage = false
	h.render()
	h.logger.Debug("goto panel", zap.String("panel", info.schema.Panel), zap.String("case", caseID))
	return nil
}

// Submit implements host.Navigator. In view mode it acts on the selector
// fields; in edit mode it saves the panel.
func (h *Host) Submit(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.call(OpSubmit); err != nil {
		return err
	}
	if h.info == nil {
		return ErrNoPanel
	}
	h.lastPage = false
	if h.mode == modeEdit {
		h.save()
	} else {
		h.selectInstance()
	}
	h.render()
	return nil
}

// NextPage implements host.Navigator. Past the last page the host shows the
// last-page message, except in edit mode where a blank page is added until
// the page limit.
func (h *Host) NextPage(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.call(OpNextPage); err != nil {
		return err
	}
	if h.info == nil {
		return ErrNoPanel
	}
	h.diag = ""
	h.lastPage = false
	switch {
	case h.cur == nil:
		h.lastPage = true
	case h.page+1 < len(h.cur.pages):
		h.page++
	case h.mode == modeEdit && len(h.cur.pages) < h.pageLimit:
		h.cur.pages = append(h.cur.pages, h.info.template.clone())
		h.page++
	default:
		h.lastPage = true
	}
	h.render()
	h.logger.Debug("next page", zap.Int("page", h.page), zap.Bool("last", h.lastPage))
	return nil
}

// BeginEdit implements host.Editor (PF9). A panel without an instance
// selector gets its single instance created on first edit.
func (h *Host) BeginEdit(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.call(OpEdit); err != nil {
		return err
	}
	if h.info == nil {
		return ErrNoPanel
	}
	if h.mode == modeEdit {
		return nil
	}
	if h.cur == nil {
		if h.info.schema.Selector.Instance != nil {
			return fmt.Errorf("%w: no %s instance selected", ErrNoPanel, h.info.schema.Panel)
		}
		h.create()
	} else {
		h.snapshot = make([]*grid, len(h.cur.pages))
		for i, p := range h.cur.pages {
			h.snapshot[i] = p.clone()
		}
		h.created = false
	}
	h.mode = modeEdit
	h.pending = h.warnings
	h.diag = ""
	h.render()
	return nil
}

func (h *Host) selectInstance() {
	s := h.info.schema
	fill := h.layout.BlankFill
	readSel := func(row, col, width int) string {
		v := string(h.screen[row-1][col-1 : col-1+width])
		return strings.TrimSpace(strings.ReplaceAll(v, fill, ""))
	}

	member, inst := "", ""
	if sel := s.Selector.Member; sel != nil {
		member = readSel(sel.Row, sel.Col, sel.Width)
		if member == "" {
			h.diag = "ENTER A MEMBER NUMBER"
			return
		}
		if m, ok := types.NormalizeRef(member); ok {
			member = m
		}
	}
	if sel := s.Selector.Instance; sel != nil {
		inst = readSel(sel.Row, sel.Col, sel.Width)
	}
	h.at.member = member
	h.page = 0
	h.diag = ""

	if inst == h.layout.NewInstance {
		h.create()
		h.mode = modeEdit
		h.pending = h.warnings
		h.logger.Debug("new instance", zap.String("panel", s.Panel), zap.String("instance", h.cur.id()))
		return
	}
	if n, ok := types.NormalizeRef(inst); ok {
		inst = n
	}
	h.cur = h.find(h.at, inst)
	if h.cur == nil && inst != "" {
		h.diag = fmt.Sprintf("%s INSTANCE %s DOES NOT EXIST", s.Panel, inst)
	}
}

func (h *Host) create() {
	h.cur = &instance{number: h.nextNumber(h.at), pages: []*grid{h.info.template.clone()}}
	h.put(h.at, h.cur)
	h.created = true
	h.snapshot = nil
}

func (h *Host) save() {
	if h.reject != "" {
		h.diag = h.reject
		return
	}
	if h.pending > 0 {
		h.pending--
		h.diag = h.layout.WarningToken + warningText
		return
	}
	h.mode = modeView
	h.created = false
	h.snapshot = nil
	h.diag = ""
	h.logger.Debug("panel saved", zap.String("panel", h.info.schema.Panel), zap.String("instance", h.cur.id()))
}

// discard drops unsaved edits, removing a never-saved new instance.
func (h *Host) discard() {
	if h.mode != modeEdit {
		return
	}
	if h.created {
		h.remove(h.at, h.cur)
	} else if h.cur != nil && h.snapshot != nil {
		h.cur.pages = h.snapshot
	}
	h.mode = modeView
	h.created = false
	h.snapshot = nil
}

func (h *Host) blankScreen() {
	for r := range h.screen {
		for c := range h.screen[r] {
			h.screen[r][c] = ' '
		}
	}
}

// render rebuilds the screen from the current page plus the host chrome:
// instance echo, selectors, the more indicator and the message line.
func (h *Host) render() {
	h.blankScreen()
	if h.info == nil {
		return
	}
	s := h.info.schema
	l := h.layout

	if h.cur == nil {
		h.screen = *h.info.template.clone()
	} else {
		h.screen = *h.cur.pages[0].clone()
		if h.page > 0 {
			pg := h.cur.pages[h.page]
			for c := range h.info.window {
				h.screen[c.row-1][c.col-1] = pg[c.row-1][c.col-1]
			}
		}
		echo := fmt.Sprintf("%*d", l.InstanceEcho.Width, h.cur.number)
		h.text(echo, l.InstanceEcho.Row, l.InstanceEcho.Col, l.InstanceEcho.Width)
	}

	if sel := s.Selector.Member; sel != nil {
		v := strings.Repeat(l.BlankFill, sel.Width)
		if h.at.member != "" && h.cur != nil {
			v = h.at.member
		}
		h.text(v, sel.Row, sel.Col, sel.Width)
	}
	if sel := s.Selector.Instance; sel != nil {
		v := strings.Repeat(l.BlankFill, sel.Width)
		if h.cur != nil {
			v = h.cur.id()
		}
		h.text(v, sel.Row, sel.Col, sel.Width)
	}

	if g := h.info.paged; g != nil && g.Paging == schema.PagingMore && h.cur != nil && h.page+1 < len(h.cur.pages) {
		m := l.MoreRegion(g)
		h.text(l.MoreToken, m.Row, m.Col, m.Width)
	}

	d := l.Diagnostic
	switch {
	case h.lastPage:
		lp := l.LastPage
		if lp.Col-d.Col >= runewidth.StringWidth(lastPagePrefix) {
			h.text(lastPagePrefix, d.Row, lp.Col-runewidth.StringWidth(lastPagePrefix), runewidth.StringWidth(lastPagePrefix))
		}
		h.text(l.LastPageToken, lp.Row, lp.Col, lp.Width)
	case h.diag != "":
		h.text(h.diag, d.Row, d.Col, d.Width)
	}
}

// text paints s clipped to width display cells.
func (h *Host) text(s string, row, col, width int) {
	s = runewidth.Truncate(s, width, "")
	for i, r := range []rune(s) {
		if col-1+i >= len(h.screen[row-1]) {
			return
		}
		h.screen[row-1][col-1+i] = r
	}
}

package binder

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"maxis/internal/schema"
	"maxis/internal/types"
)

// pageState is the position of the pager within a repeating group.
type pageState int

const (
	stateReading pageState = iota
	statePageBoundary
	stateDone
)

func (s pageState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case statePageBoundary:
		return "page_boundary"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("pageState(%d)", int(s))
	}
}

func isAllowedTransition(from, to pageState) bool {
	switch from {
	case stateReading:
		return to == stateReading || to == statePageBoundary || to == stateDone
	case statePageBoundary:
		return to == stateReading || to == stateDone
	default:
		return false
	}
}

// pager walks the slots of one group window, page by page. The slot cursor
// restarts at zero after every page turn, so the last slot of one page is
// never read again as the first slot of the next.
type pager struct {
	b     *Binder
	panel string
	g     *schema.Group
	state pageState
	slot  int
	turns int

	// expectKey is set after following a more indicator: the new page
	// must open on an occupied slot.
	expectKey bool

	// prev is the raw window of the page before the last turn.
	prev []string
}

func (b *Binder) newPager(panel string, g *schema.Group) *pager {
	return &pager{b: b, panel: panel, g: g, state: stateReading}
}

func (p *pager) transition(to pageState) error {
	if !isAllowedTransition(p.state, to) {
		return fmt.Errorf("pager %s.%s: disallowed transition %s -> %s", p.panel, p.g.Name, p.state, to)
	}
	p.state = to
	return nil
}

func (p *pager) offset() (int, int) { return p.g.SlotOffset(p.slot) }

func (p *pager) alignment(msg string, args ...any) error {
	return &PaginationAlignmentError{Panel: p.panel, Group: p.g.Name, Pages: p.turns, Msg: fmt.Sprintf(msg, args...)}
}

// turn pages forward, failing once the page bound is spent.
func (p *pager) turn(ctx context.Context) error {
	if p.turns >= p.b.cfg.MaxPageTurns {
		return p.alignment("no end of list within %d page turns", p.b.cfg.MaxPageTurns)
	}
	if err := p.b.nav.NextPage(ctx); err != nil {
		return stepError(p.panel, "next page", err)
	}
	p.turns++
	p.slot = 0
	p.b.logger.Debug("page turn", zap.String("panel", p.panel), zap.String("group", p.g.Name), zap.Int("turns", p.turns))
	return nil
}

// window reads the raw code of every field in every slot of the current
// page.
func (p *pager) window() ([]string, error) {
	out := make([]string, 0, p.g.Slots*len(p.g.Fields))
	for slot := 0; slot < p.g.Slots; slot++ {
		dr, dc := p.g.SlotOffset(slot)
		for i := range p.g.Fields {
			code, err := p.b.readCode(p.panel, &p.g.Fields[i], dr, dc)
			if err != nil {
				return nil, err
			}
			out = append(out, code)
		}
	}
	return out, nil
}

// checkMoved fails when the page on screen is the page shown before the
// last turn, field for field. It remembers the page for the next check.
func (p *pager) checkMoved() error {
	w, err := p.window()
	if err != nil {
		return err
	}
	if p.prev != nil && slices.Equal(w, p.prev) {
		return p.alignment("page did not advance")
	}
	p.prev = w
	return nil
}

func (p *pager) lastPageShown() (bool, error) {
	l := p.b.cfg.Layout
	return p.b.regionShown(p.panel, l.LastPage, l.LastPageToken)
}

// advance decides at a page boundary whether the list continues, turning
// the page when it does.
func (p *pager) advance(ctx context.Context) (bool, error) {
	l := p.b.cfg.Layout
	switch p.g.Paging {
	case schema.PagingMore:
		more, err := p.b.regionShown(p.panel, l.MoreRegion(p.g), l.MoreToken)
		if err != nil || !more {
			return false, err
		}
		if err := p.turn(ctx); err != nil {
			return false, err
		}
		p.expectKey = true
		return true, nil
	case schema.PagingLastPage:
		if err := p.turn(ctx); err != nil {
			return false, err
		}
		last, err := p.lastPageShown()
		if err != nil {
			return false, err
		}
		return !last, nil
	default:
		return false, nil
	}
}

// readGroup collects every entry of g in screen order.
func (b *Binder) readGroup(ctx context.Context, panel string, g *schema.Group) ([]types.Entry, int, error) {
	p := b.newPager(panel, g)
	key := g.KeyField()
	entries := make([]types.Entry, 0)
	onPage := 0

	for p.state != stateDone {
		switch p.state {
		case stateReading:
			if p.slot == g.Slots {
				if err := p.transition(statePageBoundary); err != nil {
					return nil, p.turns, err
				}
				continue
			}
			dr, dc := p.offset()
			code, err := b.readCode(panel, key, dr, dc)
			if err != nil {
				return nil, p.turns, err
			}
			if code == "" {
				if p.expectKey {
					return nil, p.turns, p.alignment("page opened on an empty slot after the more indicator")
				}
				if g.OnBlank == schema.BlankStop {
					if err := p.transition(stateDone); err != nil {
						return nil, p.turns, err
					}
					continue
				}
				p.slot++
				continue
			}
			p.expectKey = false
			entry, err := b.readEntry(panel, g, key, code, dr, dc)
			if err != nil {
				return nil, p.turns, err
			}
			entries = append(entries, entry)
			onPage++
			p.slot++

		case statePageBoundary:
			switch {
			case g.Paging == schema.PagingNone:
			case onPage == 0:
				p.prev = nil
			default:
				if err := p.checkMoved(); err != nil {
					return nil, p.turns, err
				}
			}
			onPage = 0
			more, err := p.advance(ctx)
			if err != nil {
				return nil, p.turns, err
			}
			next := stateDone
			if more {
				next = stateReading
			}
			if err := p.transition(next); err != nil {
				return nil, p.turns, err
			}
		}
	}
	return entries, p.turns, nil
}

// readEntry decodes one occupied slot. The key has already been read.
func (b *Binder) readEntry(panel string, g *schema.Group, key *schema.Field, keyCode string, dr, dc int) (types.Entry, error) {
	entry := make(types.Entry, len(g.Fields))
	for i := range g.Fields {
		f := &g.Fields[i]
		if f == key {
			v, err := b.decode(f, keyCode)
			if err != nil {
				return nil, err
			}
			entry[f.Name] = v
			continue
		}
		if !applies(f, entry) {
			continue
		}
		v, err := b.readField(panel, f, dr, dc)
		if err != nil {
			return nil, err
		}
		entry[f.Name] = v
	}
	return entry, nil
}

// freeSlot moves to the first slot whose key is blank, paging forward over
// full windows. The host is expected to be in edit mode, where paging past
// the end opens a blank page until its own limit.
func (b *Binder) freeSlot(ctx context.Context, panel string, g *schema.Group) (*pager, error) {
	p := b.newPager(panel, g)
	key := g.KeyField()
	full := func() error {
		return &SlotOccupiedError{Panel: panel, Group: g.Name, Pages: p.turns}
	}

	for {
		if p.state == stateReading {
			if p.slot == g.Slots {
				if err := p.transition(statePageBoundary); err != nil {
					return nil, err
				}
				continue
			}
			dr, dc := p.offset()
			code, err := b.readCode(panel, key, dr, dc)
			if err != nil {
				return nil, err
			}
			if code == "" {
				return p, nil
			}
			p.slot++
			continue
		}

		// Page boundary. Every slot is taken, so the same window after a
		// turn means the host stayed put.
		if g.Paging == schema.PagingNone {
			return nil, full()
		}
		if err := p.checkMoved(); err != nil {
			return nil, err
		}
		if p.turns >= b.cfg.MaxPageTurns {
			return nil, full()
		}
		if err := p.turn(ctx); err != nil {
			return nil, err
		}
		last, err := p.lastPageShown()
		if err != nil {
			return nil, err
		}
		if last {
			return nil, full()
		}
		if err := p.transition(stateReading); err != nil {
			return nil, err
		}
	}
}

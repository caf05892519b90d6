package bracket

import "slices"

// Clone deep-copies the bracket so operations never touch their input.
func (b Bracket) Clone() Bracket {
	out := b
	out.Matches = make(map[MatchID]Match, len(b.Matches))
	for id, m := range b.Matches {
		out.Matches[id] = m
	}
	out.Positions = slices.Clone(b.Positions)
	if out.Positions == nil {
		out.Positions = []Slot{}
	}
	return out
}

// Position returns the slot at p; TBD for out-of-range or unset positions.
func (b Bracket) Position(p Position) Slot {
	if !p.Valid() || int(p) > len(b.Positions) {
		return TBD()
	}
	return b.Positions[p-1]
}

func checkEditable(b Bracket) error {
	if b.Status == StatusNotSetup || len(b.Positions) != PositionCount {
		return ErrNotInSetup
	}
	if b.Status != StatusSetup {
		return ErrBracketInProgress
	}
	for _, m := range b.Matches {
		if m.Completed {
			return ErrBracketInProgress
		}
	}
	return nil
}

// pairFirstRound recomputes r1_m{k} from positions 2k-1 and 2k.
func pairFirstRound(b *Bracket) {
	for k, id := range FirstRound {
		m, ok := b.Matches[id]
		if !ok {
			continue
		}
		m.Robot1 = b.Positions[2*k]
		m.Robot2 = b.Positions[2*k+1]
		b.Matches[id] = m
	}
}

func openPositions(b Bracket) []Position {
	var open []Position
	for p := Position(1); p <= PositionCount; p++ {
		if !b.Position(p).IsResolved() {
			open = append(open, p)
		}
	}
	return open
}

func refreshCurrent(b *Bracket) {
	if m, ok := NextPlayableMatch(*b); ok {
		b.CurrentMatchID = m.ID
		b.CurrentRound = m.Round
		return
	}
	b.CurrentMatchID = ""
}

func setSide(m *Match, side SlotSide, s Slot) {
	if side == SideRobot1 {
		m.Robot1 = s
		return
	}
	m.Robot2 = s
}

func contains(list []string, name string) bool {
	return name != "" && slices.Contains(list, name)
}

package bracket

type SlotSide string

const (
	SideRobot1 SlotSide = "robot1"
	SideRobot2 SlotSide = "robot2"
)

// Edge says which downstream slot consumes the winner of Upstream.
type Edge struct {
	Upstream   MatchID
	Downstream MatchID
	Side       SlotSide
}

var Edges = [...]Edge{
	{Upstream: MatchR1M1, Downstream: MatchQFM1, Side: SideRobot1},
	{Upstream: MatchR1M2, Downstream: MatchQFM1, Side: SideRobot2},
	{Upstream: MatchR1M3, Downstream: MatchQFM2, Side: SideRobot1},
	{Upstream: MatchR1M4, Downstream: MatchQFM2, Side: SideRobot2},
	{Upstream: MatchR1M5, Downstream: MatchQFM3, Side: SideRobot1},
	{Upstream: MatchR1M6, Downstream: MatchQFM3, Side: SideRobot2},
	{Upstream: MatchR1M7, Downstream: MatchQFM4, Side: SideRobot1},
	{Upstream: MatchR1M8, Downstream: MatchQFM4, Side: SideRobot2},

	{Upstream: MatchQFM1, Downstream: MatchSFM1, Side: SideRobot1},
	{Upstream: MatchQFM2, Downstream: MatchSFM1, Side: SideRobot2},
	{Upstream: MatchQFM3, Downstream: MatchSFM2, Side: SideRobot1},
	{Upstream: MatchQFM4, Downstream: MatchSFM2, Side: SideRobot2},

	{Upstream: MatchSFM1, Downstream: MatchFinal, Side: SideRobot1},
	{Upstream: MatchSFM2, Downstream: MatchFinal, Side: SideRobot2},
}

// MatchOrder is the canonical play order.
var MatchOrder = [...]MatchID{
	MatchR1M1, MatchR1M2, MatchR1M3, MatchR1M4,
	MatchR1M5, MatchR1M6, MatchR1M7, MatchR1M8,
	MatchQFM1, MatchQFM2, MatchQFM3, MatchQFM4,
	MatchSFM1, MatchSFM2,
	MatchFinal,
}

// FirstRound lists round-1 matches; FirstRound[k] is fed by positions 2k+1 and 2k+2.
var FirstRound = [...]MatchID{
	MatchR1M1, MatchR1M2, MatchR1M3, MatchR1M4,
	MatchR1M5, MatchR1M6, MatchR1M7, MatchR1M8,
}

var roundOf = map[MatchID]Round{
	MatchR1M1: RoundOne, MatchR1M2: RoundOne, MatchR1M3: RoundOne, MatchR1M4: RoundOne,
	MatchR1M5: RoundOne, MatchR1M6: RoundOne, MatchR1M7: RoundOne, MatchR1M8: RoundOne,
	MatchQFM1: RoundQuarterfinals, MatchQFM2: RoundQuarterfinals,
	MatchQFM3: RoundQuarterfinals, MatchQFM4: RoundQuarterfinals,
	MatchSFM1: RoundSemifinals, MatchSFM2: RoundSemifinals,
	MatchFinal: RoundFinals,
}

// downstream returns the edge fed by id. The final feeds nothing.
func downstream(id MatchID) (Edge, bool) {
	for _, e := range Edges {
		if e.Upstream == id {
			return e, true
		}
	}
	return Edge{}, false
}

// RoundOf reports the round of a known match id.
func RoundOf(id MatchID) (Round, bool) {
	r, ok := roundOf[id]
	return r, ok
}

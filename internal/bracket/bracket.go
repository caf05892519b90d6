package bracket

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var ErrUnknownMatch = errors.New("unknown match")
var ErrUnknownPosition = errors.New("unknown position")
var ErrUnknownRobot = errors.New("unknown robot")
var ErrDuplicateRobot = errors.New("robot listed more than once")
var ErrInsufficientEntrants = errors.New("insufficient entrants: 16 robots required")
var ErrInvalidWinner = errors.New("winner is not a participant of this match")
var ErrAlreadyCompleted = errors.New("match already completed")
var ErrNotCompleted = errors.New("match not completed")
var ErrDependentMatchCompleted = errors.New("dependent match already completed")
var ErrNotInSetup = errors.New("bracket is not in setup")
var ErrIncompletePositions = errors.New("bracket positions incomplete")
var ErrBracketExists = errors.New("bracket already exists")
var ErrBracketInProgress = errors.New("bracket already in progress")

const PositionCount = 16

type Status string

const (
	StatusNotSetup Status = "not_setup"
	StatusSetup    Status = "setup"
	StatusRunning  Status = "running"
)

type Round string

const (
	RoundOne           Round = "round1"
	RoundQuarterfinals Round = "quarterfinals"
	RoundSemifinals    Round = "semifinals"
	RoundFinals        Round = "finals"
)

type MatchID string

const (
	MatchR1M1  MatchID = "r1_m1"
	MatchR1M2  MatchID = "r1_m2"
	MatchR1M3  MatchID = "r1_m3"
	MatchR1M4  MatchID = "r1_m4"
	MatchR1M5  MatchID = "r1_m5"
	MatchR1M6  MatchID = "r1_m6"
	MatchR1M7  MatchID = "r1_m7"
	MatchR1M8  MatchID = "r1_m8"
	MatchQFM1  MatchID = "qf_m1"
	MatchQFM2  MatchID = "qf_m2"
	MatchQFM3  MatchID = "qf_m3"
	MatchQFM4  MatchID = "qf_m4"
	MatchSFM1  MatchID = "sf_m1"
	MatchSFM2  MatchID = "sf_m2"
	MatchFinal MatchID = "final"
)

type Match struct {
	ID        MatchID `json:"id"`
	Round     Round   `json:"round"`
	Robot1    Slot    `json:"robot1"`
	Robot2    Slot    `json:"robot2"`
	Winner    string  `json:"winner,omitempty"` // set iff Completed
	Completed bool    `json:"completed"`
}

// Playable: not completed and both sides are concrete robots.
func (m Match) Playable() bool {
	return !m.Completed && m.Robot1.IsResolved() && m.Robot2.IsResolved()
}

// Bracket is the aggregate the engine operates on. Positions has PositionCount
// entries (position p at index p-1) unless Status is StatusNotSetup.
type Bracket struct {
	TournamentID   string            `json:"tournament_id,omitempty"`
	Status         Status            `json:"status"`
	CurrentRound   Round             `json:"current_round,omitempty"`
	CurrentMatchID MatchID           `json:"current_match_id,omitempty"`
	Matches        map[MatchID]Match `json:"matches"`
	Positions      []Slot            `json:"positions"`
}

// Position is a starting position, 1..PositionCount.
type Position int

func (p Position) Valid() bool { return p >= 1 && p <= PositionCount }

func (p Position) String() string { return "pos_" + strconv.Itoa(int(p)) }

// ParsePosition accepts "7" or "pos_7".
func ParsePosition(raw string) (Position, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), "pos_"))
	if err != nil || !Position(n).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPosition, raw)
	}
	return Position(n), nil
}

// Empty returns the not_setup bracket produced by a reset.
func Empty() Bracket {
	return Bracket{
		Status:    StatusNotSetup,
		Matches:   map[MatchID]Match{},
		Positions: []Slot{},
	}
}

// Reset discards all bracket state.
func Reset() Bracket { return Empty() }

// NewBracket builds the empty 16-slot skeleton with its fixed topology.
func NewBracket() Bracket {
	b := Bracket{
		TournamentID: uuid.NewString(),
		Status:       StatusSetup,
		CurrentRound: RoundOne,
		Matches:      make(map[MatchID]Match, len(MatchOrder)),
		Positions:    make([]Slot, PositionCount),
	}
	for _, id := range MatchOrder {
		b.Matches[id] = Match{ID: id, Round: roundOf[id]}
	}
	for _, e := range Edges {
		m := b.Matches[e.Downstream]
		setSide(&m, e.Side, PendingOn(e.Upstream))
		b.Matches[e.Downstream] = m
	}
	return b
}

// shuffleRobots is swapped out in tests.
var shuffleRobots = func(names []string) {
	rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
}

// AssignRobots fills all positions from the first 16 robots, in order or shuffled,
// and derives the round-1 pairings.
func AssignRobots(b Bracket, robots []string, shuffle bool) (Bracket, error) {
	if err := checkEditable(b); err != nil {
		return b, err
	}
	if len(robots) < PositionCount {
		return b, fmt.Errorf("%w: got %d", ErrInsufficientEntrants, len(robots))
	}

	picked := make([]string, PositionCount)
	copy(picked, robots[:PositionCount])
	seen := make(map[string]bool, PositionCount)
	for _, name := range picked {
		if name == "" {
			return b, fmt.Errorf("%w: empty name", ErrUnknownRobot)
		}
		if seen[name] {
			return b, fmt.Errorf("%w: %q", ErrDuplicateRobot, name)
		}
		seen[name] = true
	}
	if shuffle {
		shuffleRobots(picked)
	}

	next := b.Clone()
	for i, name := range picked {
		next.Positions[i] = Resolved(name)
	}
	pairFirstRound(&next)
	return next, nil
}

// AssignPosition binds one robot from the roster to one position. A robot already
// sitting elsewhere is moved, leaving its old position TBD.
func AssignPosition(b Bracket, roster []string, pos Position, robot string) (Bracket, error) {
	if err := checkEditable(b); err != nil {
		return b, err
	}
	if !pos.Valid() {
		return b, fmt.Errorf("%w: %d", ErrUnknownPosition, int(pos))
	}
	if !contains(roster, robot) {
		return b, fmt.Errorf("%w: %q", ErrUnknownRobot, robot)
	}

	next := b.Clone()
	for i, s := range next.Positions {
		if s.Holds(robot) && i != int(pos)-1 {
			next.Positions[i] = TBD()
		}
	}
	next.Positions[pos-1] = Resolved(robot)
	pairFirstRound(&next)
	return next, nil
}

// ClearPosition sets a position back to TBD.
func ClearPosition(b Bracket, pos Position) (Bracket, error) {
	if err := checkEditable(b); err != nil {
		return b, err
	}
	if !pos.Valid() {
		return b, fmt.Errorf("%w: %d", ErrUnknownPosition, int(pos))
	}
	next := b.Clone()
	next.Positions[pos-1] = TBD()
	pairFirstRound(&next)
	return next, nil
}

// StartTournament moves a fully seated bracket from setup to running. One-way.
func StartTournament(b Bracket) (Bracket, error) {
	if b.Status != StatusSetup {
		return b, fmt.Errorf("%w: status is %s", ErrNotInSetup, b.Status)
	}
	if missing := openPositions(b); len(missing) > 0 {
		return b, fmt.Errorf("%w: %d of %d still TBD", ErrIncompletePositions, len(missing), PositionCount)
	}
	next := b.Clone()
	next.Status = StatusRunning
	refreshCurrent(&next)
	return next, nil
}

// AdvanceWinner records the result of a match and writes the winner into the single
// downstream slot it feeds. Propagation is one hop only.
func AdvanceWinner(b Bracket, id MatchID, winner string) (Bracket, error) {
	m, ok := b.Matches[id]
	if !ok {
		return b, fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	if m.Completed {
		return b, fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}
	if winner == "" || !(m.Robot1.Holds(winner) || m.Robot2.Holds(winner)) {
		return b, fmt.Errorf("%w: %q in %s", ErrInvalidWinner, winner, id)
	}
	edge, feeds := downstream(id)
	if feeds {
		if _, ok := b.Matches[edge.Downstream]; !ok {
			return b, fmt.Errorf("%w: %s (downstream of %s)", ErrUnknownMatch, edge.Downstream, id)
		}
	}

	next := b.Clone()
	m.Winner = winner
	m.Completed = true
	next.Matches[id] = m
	if feeds {
		d := next.Matches[edge.Downstream]
		setSide(&d, edge.Side, Resolved(winner))
		next.Matches[edge.Downstream] = d
	}
	refreshCurrent(&next)
	return next, nil
}

// UndoMatch reverses a recorded result. It refuses when the downstream match has
// already been completed; undo runs from the final back towards round 1.
func UndoMatch(b Bracket, id MatchID) (Bracket, error) {
	m, ok := b.Matches[id]
	if !ok {
		return b, fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	if !m.Completed {
		return b, fmt.Errorf("%w: %s", ErrNotCompleted, id)
	}
	edge, feeds := downstream(id)
	d, hasDownstream := Match{}, false
	if feeds {
		d, hasDownstream = b.Matches[edge.Downstream]
	}
	if hasDownstream && d.Completed {
		return b, fmt.Errorf("%w: %s consumed by %s", ErrDependentMatchCompleted, id, edge.Downstream)
	}

	next := b.Clone()
	m.Winner = ""
	m.Completed = false
	next.Matches[id] = m
	if hasDownstream {
		setSide(&d, edge.Side, PendingOn(id))
		next.Matches[edge.Downstream] = d
	}
	refreshCurrent(&next)
	return next, nil
}

// NextPlayableMatch returns the first match in canonical order that is ready to be
// fought. ok is false when the bracket is finished or blocked.
func NextPlayableMatch(b Bracket) (Match, bool) {
	for _, id := range MatchOrder {
		if m, ok := b.Matches[id]; ok && m.Playable() {
			return m, true
		}
	}
	return Match{}, false
}

// Champion is the winner of the final, once it has been played.
func Champion(b Bracket) (string, bool) {
	f, ok := b.Matches[MatchFinal]
	if !ok || !f.Completed {
		return "", false
	}
	return f.Winner, true
}

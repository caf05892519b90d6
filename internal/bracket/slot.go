package bracket

import (
	"encoding/json"
	"fmt"
)

type SlotKind uint8

const (
	SlotUnresolved SlotKind = iota // TBD
	SlotPending                    // waiting on the winner of an upstream match
	SlotResolved                   // a concrete robot
)

// Slot is one side of a match or one starting position.
// Exactly one of Match (SlotPending) or Robot (SlotResolved) is meaningful.
type Slot struct {
	Kind  SlotKind
	Match MatchID
	Robot string
}

func TBD() Slot                      { return Slot{Kind: SlotUnresolved} }
func PendingOn(upstream MatchID) Slot { return Slot{Kind: SlotPending, Match: upstream} }
func Resolved(robot string) Slot     { return Slot{Kind: SlotResolved, Robot: robot} }

func (s Slot) IsResolved() bool { return s.Kind == SlotResolved }

// Holds reports whether the slot is resolved to exactly this robot.
func (s Slot) Holds(robot string) bool {
	return s.Kind == SlotResolved && s.Robot == robot
}

func (s Slot) String() string {
	switch s.Kind {
	case SlotPending:
		return "winner_" + string(s.Match)
	case SlotResolved:
		return s.Robot
	default:
		return "TBD"
	}
}

type slotJSON struct {
	State string  `json:"state"`
	Match MatchID `json:"match,omitempty"`
	Robot string  `json:"robot,omitempty"`
}

const (
	slotStateTBD      = "tbd"
	slotStatePending  = "pending"
	slotStateResolved = "resolved"
)

func (s Slot) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SlotUnresolved:
		return json.Marshal(slotJSON{State: slotStateTBD})
	case SlotPending:
		return json.Marshal(slotJSON{State: slotStatePending, Match: s.Match})
	case SlotResolved:
		return json.Marshal(slotJSON{State: slotStateResolved, Robot: s.Robot})
	default:
		return nil, fmt.Errorf("bracket: unknown slot kind %d", s.Kind)
	}
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.State {
	case slotStateTBD:
		*s = TBD()
	case slotStatePending:
		if raw.Match == "" {
			return fmt.Errorf("bracket: pending slot without match")
		}
		*s = PendingOn(raw.Match)
	case slotStateResolved:
		if raw.Robot == "" {
			return fmt.Errorf("bracket: resolved slot without robot")
		}
		*s = Resolved(raw.Robot)
	default:
		return fmt.Errorf("bracket: unknown slot state %q", raw.State)
	}
	return nil
}

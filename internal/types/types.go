package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
	"github.com/DoyleJ11/hebocon-control/internal/tournament"
)

type ClientMessage struct {
	Type     string      `json:"type"`
	Robot    string      `json:"robot,omitempty"`
	Shuffle  bool        `json:"shuffle,omitempty"`
	Position PositionRef `json:"position,omitempty"`
	MatchID  string      `json:"match_id,omitempty"`
	Winner   string      `json:"winner,omitempty"`
	Robot1   *string     `json:"robot1,omitempty"`
	Robot2   *string     `json:"robot2,omitempty"`
	Round    *string     `json:"round,omitempty"`
	Duration int         `json:"duration,omitempty"`
	Mode     string      `json:"mode,omitempty"`
	Title    string      `json:"title,omitempty"`
}

type ServerMessage struct {
	Type    string            `json:"type"` // "StateSnapshot" | "Ack" | "Error"
	Version int64             `json:"version,omitempty"`
	State   *tournament.State `json:"state,omitempty"`
	Code    string            `json:"code,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// PositionRef is a starting position as clients send it: 7, "7" or "pos_7".
type PositionRef string

func (p *PositionRef) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*p = ""
	case string:
		*p = PositionRef(x)
	case float64:
		*p = PositionRef(strconv.Itoa(int(x)))
	default:
		return fmt.Errorf("position: unexpected %T", v)
	}
	return nil
}

func (p PositionRef) Parse() (bracket.Position, error) {
	return bracket.ParsePosition(string(p))
}

// Error codes shared by the websocket and HTTP layers.
const (
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeInvalid    = "invalid"
	CodeBadRequest = "bad_request"
	CodeInternal   = "internal"
)

// ErrorCode sorts a command error into one of the codes above.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, bracket.ErrUnknownMatch),
		errors.Is(err, bracket.ErrUnknownPosition),
		errors.Is(err, bracket.ErrUnknownRobot),
		errors.Is(err, tournament.ErrRobotNotFound):
		return CodeNotFound

	case errors.Is(err, bracket.ErrAlreadyCompleted),
		errors.Is(err, bracket.ErrNotCompleted),
		errors.Is(err, bracket.ErrDependentMatchCompleted),
		errors.Is(err, bracket.ErrNotInSetup),
		errors.Is(err, bracket.ErrIncompletePositions),
		errors.Is(err, bracket.ErrBracketInProgress),
		errors.Is(err, bracket.ErrBracketExists),
		errors.Is(err, bracket.ErrInsufficientEntrants),
		errors.Is(err, tournament.ErrRobotExists),
		errors.Is(err, tournament.ErrTimerNotRunning):
		return CodeConflict

	case errors.Is(err, bracket.ErrInvalidWinner),
		errors.Is(err, bracket.ErrDuplicateRobot),
		errors.Is(err, tournament.ErrInvalidRobotName),
		errors.Is(err, tournament.ErrInvalidDuration),
		errors.Is(err, tournament.ErrInvalidOverlayMode):
		return CodeInvalid

	case errors.Is(err, tournament.ErrUnsupportedCommand):
		return CodeBadRequest
	}
	return CodeInternal
}

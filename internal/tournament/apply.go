package tournament

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
)

var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrInvalidRobotName = errors.New("invalid robot name")
var ErrRobotExists = errors.New("robot already exists")
var ErrRobotNotFound = errors.New("robot not found")
var ErrInvalidDuration = errors.New("invalid timer duration")
var ErrTimerNotRunning = errors.New("timer not running")
var ErrInvalidOverlayMode = errors.New("invalid overlay mode")

type CommandType string

const (
	CmdAddRobot           CommandType = "AddRobot"
	CmdDeleteRobot        CommandType = "DeleteRobot"
	CmdGenerateTestRobots CommandType = "GenerateTestRobots"
	CmdSetMatch           CommandType = "SetMatch"
	CmdCreateBracket      CommandType = "CreateBracket"
	CmdAssignRobots       CommandType = "AssignRobots"
	CmdAssignPosition     CommandType = "AssignPosition"
	CmdClearPosition      CommandType = "ClearPosition"
	CmdStartTournament    CommandType = "StartTournament"
	CmdAdvanceWinner      CommandType = "AdvanceWinner"
	CmdUndoMatch          CommandType = "UndoMatch"
	CmdResetBracket       CommandType = "ResetBracket"
	CmdStartTimer         CommandType = "StartTimer"
	CmdStopTimer          CommandType = "StopTimer"
	CmdResetTimer         CommandType = "ResetTimer"
	CmdExpireTimer        CommandType = "ExpireTimer"
	CmdSetOverlayMode     CommandType = "SetOverlayMode"
	CmdShowWinner         CommandType = "ShowWinner"
	CmdHideWinner         CommandType = "HideWinner"
	CmdSetTitle           CommandType = "SetTitle"
	CmdResetAll           CommandType = "ResetAll"
)

// touchesTimer reports whether the command may start, stop or rewind the countdown.
func (c CommandType) touchesTimer() bool {
	switch c {
	case CmdStartTimer, CmdStopTimer, CmdResetTimer, CmdExpireTimer, CmdResetAll:
		return true
	}
	return false
}

// MatchUpdate is a partial edit of the current match; nil fields are left alone.
type MatchUpdate struct {
	Robot1 *string
	Robot2 *string
	Round  *string
}

type Command struct {
	Type        CommandType
	Robot       string // roster name, position occupant, or announced winner
	Shuffle     bool
	Position    bracket.Position
	MatchID     bracket.MatchID
	Match       MatchUpdate
	DurationSec int // 0 keeps the configured duration
	Mode        OverlayMode
	Title       string
	At          time.Time
}

// Apply returns the state after cmd. On error the input state is returned untouched.
func Apply(s State, cmd Command) (State, error) {
	next := s.Clone()

	switch cmd.Type {
	case CmdAddRobot:
		name := strings.TrimSpace(cmd.Robot)
		if name == "" {
			return s, ErrInvalidRobotName
		}
		if slices.Contains(next.Robots, name) {
			return s, fmt.Errorf("%w: %q", ErrRobotExists, name)
		}
		next.Robots = append(next.Robots, name)

	case CmdDeleteRobot:
		i := slices.Index(next.Robots, cmd.Robot)
		if i < 0 {
			return s, fmt.Errorf("%w: %q", ErrRobotNotFound, cmd.Robot)
		}
		next.Robots = slices.Delete(next.Robots, i, i+1)
		// an unplayed bracket must not seat robots that left the roster
		for p := bracket.Position(1); p <= bracket.PositionCount; p++ {
			if next.Bracket.Position(p).Holds(cmd.Robot) {
				if b, err := bracket.ClearPosition(next.Bracket, p); err == nil {
					next.Bracket = b
				}
			}
		}

	case CmdGenerateTestRobots:
		next.Robots = slices.Clone(TestRobots)

	case CmdSetMatch:
		if cmd.Match.Robot1 != nil {
			next.CurrentMatch.Robot1 = *cmd.Match.Robot1
		}
		if cmd.Match.Robot2 != nil {
			next.CurrentMatch.Robot2 = *cmd.Match.Robot2
		}
		if cmd.Match.Round != nil {
			next.CurrentMatch.Round = *cmd.Match.Round
		}

	case CmdCreateBracket:
		// a bracket only goes back to setup through ResetBracket
		if next.Bracket.Status != bracket.StatusNotSetup {
			return s, fmt.Errorf("%w: status is %s", bracket.ErrBracketExists, next.Bracket.Status)
		}
		next.Bracket = bracket.NewBracket()

	case CmdAssignRobots:
		b, err := bracket.AssignRobots(next.Bracket, next.Robots, cmd.Shuffle)
		if err != nil {
			return s, err
		}
		next.Bracket = b

	case CmdAssignPosition:
		b, err := bracket.AssignPosition(next.Bracket, next.Robots, cmd.Position, cmd.Robot)
		if err != nil {
			return s, err
		}
		next.Bracket = b

	case CmdClearPosition:
		b, err := bracket.ClearPosition(next.Bracket, cmd.Position)
		if err != nil {
			return s, err
		}
		next.Bracket = b

	case CmdStartTournament:
		b, err := bracket.StartTournament(next.Bracket)
		if err != nil {
			return s, err
		}
		next.Bracket = b
		followBracket(&next)

	case CmdAdvanceWinner:
		b, err := bracket.AdvanceWinner(next.Bracket, cmd.MatchID, cmd.Robot)
		if err != nil {
			return s, err
		}
		next.Bracket = b
		followBracket(&next)

	case CmdUndoMatch:
		b, err := bracket.UndoMatch(next.Bracket, cmd.MatchID)
		if err != nil {
			return s, err
		}
		next.Bracket = b
		followBracket(&next)

	case CmdResetBracket:
		next.Bracket = bracket.Reset()

	case CmdStartTimer:
		if cmd.DurationSec != 0 {
			if err := validDuration(cmd.DurationSec); err != nil {
				return s, err
			}
			next.Timer.DurationSec = cmd.DurationSec
			next.Timer.RemainingSec = cmd.DurationSec
			// a new duration restarts the clock
			next.Timer.IsRunning = false
		}
		if next.Timer.IsRunning {
			break
		}
		if next.Timer.RemainingSec <= 0 {
			next.Timer.RemainingSec = next.Timer.DurationSec
		}
		at := cmd.At
		next.Timer.StartedAt = &at
		next.Timer.IsRunning = true

	case CmdStopTimer:
		if !next.Timer.IsRunning {
			return s, ErrTimerNotRunning
		}
		next.Timer.RemainingSec = wholeSeconds(next.Timer.Left(cmd.At))
		next.Timer.IsRunning = false
		next.Timer.StartedAt = nil

	case CmdResetTimer:
		if cmd.DurationSec != 0 {
			if err := validDuration(cmd.DurationSec); err != nil {
				return s, err
			}
			next.Timer.DurationSec = cmd.DurationSec
		}
		next.Timer = Timer{DurationSec: next.Timer.DurationSec, RemainingSec: next.Timer.DurationSec}

	case CmdExpireTimer:
		if !next.Timer.IsRunning {
			return s, ErrTimerNotRunning
		}
		next.Timer = Timer{DurationSec: next.Timer.DurationSec}

	case CmdSetOverlayMode:
		if cmd.Mode != OverlayMatch && cmd.Mode != OverlayBracket {
			return s, fmt.Errorf("%w: %q", ErrInvalidOverlayMode, cmd.Mode)
		}
		next.Overlay.Mode = cmd.Mode

	case CmdShowWinner:
		name := strings.TrimSpace(cmd.Robot)
		if name == "" {
			return s, ErrInvalidRobotName
		}
		next.Winner = Winner{Show: true, Robot: name}

	case CmdHideWinner:
		next.Winner = Winner{}

	case CmdSetTitle:
		next.Settings.Title = strings.TrimSpace(cmd.Title)

	case CmdResetAll:
		next = DefaultState()

	default:
		return s, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Type)
	}

	next.LastUpdated = cmd.At
	return next, nil
}

// followBracket points the current match at the next playable bracket match.
func followBracket(s *State) {
	m, ok := bracket.NextPlayableMatch(s.Bracket)
	if !ok {
		return
	}
	s.CurrentMatch = CurrentMatch{
		Robot1: m.Robot1.Robot,
		Robot2: m.Robot2.Robot,
		Round:  RoundLabel(m.Round),
	}
}

func validDuration(sec int) error {
	if sec < 1 || sec > MaxTimerSec {
		return fmt.Errorf("%w: %d seconds", ErrInvalidDuration, sec)
	}
	return nil
}

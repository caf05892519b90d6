package ws

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
	"github.com/DoyleJ11/hebocon-control/internal/tournament"
	"github.com/DoyleJ11/hebocon-control/internal/types"
)

// ToCommand translates a client frame into a session command. ExpireTimer is
// internal to the session and never accepted from clients.
func ToCommand(m types.ClientMessage) (tournament.Command, error) {
	typ := tournament.CommandType(m.Type)
	cmd := tournament.Command{Type: typ}

	switch typ {
	case tournament.CmdAddRobot, tournament.CmdDeleteRobot, tournament.CmdShowWinner:
		cmd.Robot = m.Robot

	case tournament.CmdGenerateTestRobots, tournament.CmdCreateBracket, tournament.CmdStartTournament,
		tournament.CmdResetBracket, tournament.CmdStopTimer, tournament.CmdHideWinner:

	case tournament.CmdSetMatch:
		cmd.Match = tournament.MatchUpdate{Robot1: m.Robot1, Robot2: m.Robot2, Round: m.Round}

	case tournament.CmdAssignRobots:
		cmd.Shuffle = m.Shuffle

	case tournament.CmdAssignPosition, tournament.CmdClearPosition:
		pos, err := m.Position.Parse()
		if err != nil {
			return tournament.Command{}, err
		}
		cmd.Position = pos
		cmd.Robot = strings.TrimSpace(m.Robot)
		if cmd.Robot == "" {
			cmd.Type = tournament.CmdClearPosition
		}

	case tournament.CmdAdvanceWinner:
		cmd.MatchID = bracket.MatchID(m.MatchID)
		cmd.Robot = m.Winner

	case tournament.CmdUndoMatch:
		cmd.MatchID = bracket.MatchID(m.MatchID)

	case tournament.CmdStartTimer, tournament.CmdResetTimer:
		cmd.DurationSec = m.Duration

	case tournament.CmdSetOverlayMode:
		cmd.Mode = tournament.OverlayMode(m.Mode)

	case tournament.CmdSetTitle:
		cmd.Title = m.Title

	default:
		return tournament.Command{}, fmt.Errorf("%w: %q", tournament.ErrUnsupportedCommand, m.Type)
	}
	return cmd, nil
}

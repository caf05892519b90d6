package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
	"github.com/DoyleJ11/hebocon-control/internal/tournament"
	"github.com/DoyleJ11/hebocon-control/internal/types"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// read serves a GET from the current state.
func read(s *tournament.Session, render func(v tournament.View) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.View(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, render(v))
	}
}

// command decodes the body into a B, runs the command built from it and
// answers with reply's response.
func command[B any](s *tournament.Session, build func(r *http.Request, body B) (tournament.Command, error), reply func(st tournament.State) Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body B
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		cmd, err := build(r, body)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := s.Execute(r.Context(), cmd)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := reply(res.State)
		resp.Success = true
		resp.Version = res.Version
		writeJSON(w, http.StatusOK, resp)
	}
}

func just(t tournament.CommandType) func(*http.Request, struct{}) (tournament.Command, error) {
	return func(*http.Request, struct{}) (tournament.Command, error) {
		return tournament.Command{Type: t}, nil
	}
}

func message(msg string) func(tournament.State) Response {
	return func(tournament.State) Response { return Response{Message: msg} }
}

func withBracket(msg string) func(tournament.State) Response {
	return func(st tournament.State) Response {
		b := st.Bracket
		m := st.CurrentMatch
		return Response{Message: msg, Bracket: &b, Match: &m}
	}
}

func timerView(t tournament.Timer, now time.Time) *TimerView {
	return &TimerView{Duration: t.DurationSec, Remaining: t.LeftSec(now), IsRunning: t.IsRunning}
}

func withTimer(msg string) func(tournament.State) Response {
	return func(st tournament.State) Response {
		return Response{Message: msg, Timer: timerView(st.Timer, time.Now())}
	}
}

// Full state

func GetData(s *tournament.Session) http.HandlerFunc {
	return read(s, func(v tournament.View) any {
		return struct {
			tournament.State
			Version int64 `json:"version"`
		}{v.State, v.Version}
	})
}

func ResetAll(s *tournament.Session) http.HandlerFunc {
	return command(s, just(tournament.CmdResetAll), message("Daten zurückgesetzt"))
}

// Robots

func ListRobots(s *tournament.Session) http.HandlerFunc {
	return read(s, func(v tournament.View) any { return v.State.Robots })
}

type robotBody struct {
	Name string `json:"name"`
}

func AddRobot(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b robotBody) (tournament.Command, error) {
			return tournament.Command{Type: tournament.CmdAddRobot, Robot: b.Name}, nil
		},
		func(st tournament.State) Response {
			return Response{Message: fmt.Sprintf("Roboter %q hinzugefügt", st.Robots[len(st.Robots)-1]), Robots: st.Robots}
		},
	)
}

func DeleteRobot(s *tournament.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// chi matches on RawPath when it is set, leaving the param escaped
		name := chi.URLParam(r, "name")
		if r.URL.RawPath != "" {
			unescaped, err := url.PathUnescape(name)
			if err != nil {
				writeError(w, fmt.Errorf("%w: %w", errBadBody, err))
				return
			}
			name = unescaped
		}
		command(s,
			func(*http.Request, struct{}) (tournament.Command, error) {
				return tournament.Command{Type: tournament.CmdDeleteRobot, Robot: name}, nil
			},
			func(st tournament.State) Response {
				return Response{Message: fmt.Sprintf("Roboter %q gelöscht", name), Robots: st.Robots}
			},
		)(w, r)
	}
}

func GenerateTestRobots(s *tournament.Session) http.HandlerFunc {
	return command(s, just(tournament.CmdGenerateTestRobots), func(st tournament.State) Response {
		return Response{Message: fmt.Sprintf("%d Test-Roboter generiert", len(st.Robots)), Robots: st.Robots}
	})
}

// Current match

func GetMatch(s *tournament.Session) http.HandlerFunc {
	return read(s, func(v tournament.View) any { return v.State.CurrentMatch })
}

type matchBody struct {
	Robot1 *string `json:"robot1"`
	Robot2 *string `json:"robot2"`
	Round  *string `json:"round"`
}

func SetMatch(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b matchBody) (tournament.Command, error) {
			return tournament.Command{Type: tournament.CmdSetMatch, Match: tournament.MatchUpdate(b)}, nil
		},
		func(st tournament.State) Response {
			m := st.CurrentMatch
			return Response{Match: &m}
		},
	)
}

// Bracket

func GetBracket(s *tournament.Session) http.HandlerFunc {
	return read(s, func(v tournament.View) any {
		champion, _ := bracket.Champion(v.State.Bracket)
		return struct {
			bracket.Bracket
			Champion string `json:"champion,omitempty"`
		}{v.State.Bracket, champion}
	})
}

func NextMatch(s *tournament.Session) http.HandlerFunc {
	return read(s, func(v tournament.View) any {
		m, ok := bracket.NextPlayableMatch(v.State.Bracket)
		if !ok {
			return struct {
				Success bool    `json:"success"`
				Match   *string `json:"match"`
				Message string  `json:"message"`
			}{true, nil, "Kein spielbares Match"}
		}
		return struct {
			Success bool          `json:"success"`
			Match   bracket.Match `json:"match"`
			Round   string        `json:"round_label"`
		}{true, m, tournament.RoundLabel(m.Round)}
	})
}

func CreateBracket(s *tournament.Session) http.HandlerFunc {
	return command(s, just(tournament.CmdCreateBracket), withBracket("Turnierbaum erstellt"))
}

type assignBody struct {
	Shuffle bool `json:"shuffle"`
}

func AssignRobots(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b assignBody) (tournament.Command, error) {
			return tournament.Command{Type: tournament.CmdAssignRobots, Shuffle: b.Shuffle}, nil
		},
		withBracket("Roboter zugewiesen"),
	)
}

type positionBody struct {
	Position types.PositionRef `json:"position"`
	Robot    string            `json:"robot"`
}

func AssignPosition(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b positionBody) (tournament.Command, error) {
			pos, err := b.Position.Parse()
			if err != nil {
				return tournament.Command{}, err
			}
			if b.Robot == "" {
				return tournament.Command{Type: tournament.CmdClearPosition, Position: pos}, nil
			}
			return tournament.Command{Type: tournament.CmdAssignPosition, Position: pos, Robot: b.Robot}, nil
		},
		withBracket("Position aktualisiert"),
	)
}

func StartTournament(s *tournament.Session) http.HandlerFunc {
	return command(s, just(tournament.CmdStartTournament), withBracket("Turnier gestartet"))
}

type advanceBody struct {
	MatchID string `json:"match_id"`
	Winner  string `json:"winner"`
}

func AdvanceWinner(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b advanceBody) (tournament.Command, error) {
			return tournament.Command{Type: tournament.CmdAdvanceWinner, MatchID: bracket.MatchID(b.MatchID), Robot: b.Winner}, nil
		},
		func(st tournament.State) Response {
			r := withBracket("Sieger eingetragen")(st)
			if champion, ok := bracket.Champion(st.Bracket); ok {
				r.Message = fmt.Sprintf("%s gewinnt das Turnier", champion)
			}
			return r
		},
	)
}

type undoBody struct {
	MatchID string `json:"match_id"`
}

func UndoMatch(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b undoBody) (tournament.Command, error) {
			return tournament.Command{Type: tournament.CmdUndoMatch, MatchID: bracket.MatchID(b.MatchID)}, nil
		},
		withBracket("Match zurückgesetzt"),
	)
}

func ResetBracket(s *tournament.Session) http.HandlerFunc {
	return command(s, just(tournament.CmdResetBracket), withBracket("Turnierbaum zurückgesetzt"))
}

// Timer

func GetTimer(s *tournament.Session) http.HandlerFunc {
	return read(s, func(v tournament.View) any { return timerView(v.State.Timer, time.Now()) })
}

type timerBody struct {
	Duration int `json:"duration"`
}

func timerCommand(t tournament.CommandType) func(*http.Request, timerBody) (tournament.Command, error) {
	return func(_ *http.Request, b timerBody) (tournament.Command, error) {
		return tournament.Command{Type: t, DurationSec: b.Duration}, nil
	}
}

func StartTimer(s *tournament.Session) http.HandlerFunc {
	return command(s, timerCommand(tournament.CmdStartTimer), withTimer("Timer gestartet"))
}

func StopTimer(s *tournament.Session) http.HandlerFunc {
	return command(s, just(tournament.CmdStopTimer), withTimer("Timer gestoppt"))
}

func ResetTimer(s *tournament.Session) http.HandlerFunc {
	return command(s, timerCommand(tournament.CmdResetTimer), withTimer("Timer zurückgesetzt"))
}

// Overlay, winner animation, settings

func GetOverlayMode(s *tournament.Session) http.HandlerFunc {
	return read(s, func(v tournament.View) any { return v.State.Overlay })
}

type modeBody struct {
	Mode string `json:"mode"`
}

func SetOverlayMode(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b modeBody) (tournament.Command, error) {
			return tournament.Command{Type: tournament.CmdSetOverlayMode, Mode: tournament.OverlayMode(b.Mode)}, nil
		},
		func(st tournament.State) Response { return Response{Mode: st.Overlay.Mode} },
	)
}

type winnerBody struct {
	Robot string `json:"robot"`
}

func ShowWinner(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b winnerBody) (tournament.Command, error) {
			return tournament.Command{Type: tournament.CmdShowWinner, Robot: b.Robot}, nil
		},
		func(st tournament.State) Response {
			return Response{Message: fmt.Sprintf("%s gewinnt!", st.Winner.Robot)}
		},
	)
}

func HideWinner(s *tournament.Session) http.HandlerFunc {
	return command(s, just(tournament.CmdHideWinner), message("Sieger ausgeblendet"))
}

type settingsBody struct {
	Title string `json:"title"`
}

func SaveSettings(s *tournament.Session) http.HandlerFunc {
	return command(s,
		func(_ *http.Request, b settingsBody) (tournament.Command, error) {
			return tournament.Command{Type: tournament.CmdSetTitle, Title: b.Title}, nil
		},
		message("Einstellungen gespeichert"),
	)
}

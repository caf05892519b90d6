package tournament

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
)

type OverlayMode string

const (
	OverlayMatch   OverlayMode = "match"
	OverlayBracket OverlayMode = "bracket"
)

const (
	DefaultTimerSec = 180
	MaxTimerSec     = 3600
)

// State is everything the control panel edits and the overlay shows.
type State struct {
	Robots       []string        `json:"robots"`
	CurrentMatch CurrentMatch    `json:"current_match"`
	Bracket      bracket.Bracket `json:"bracket"`
	Timer        Timer           `json:"timer"`
	Overlay      Overlay         `json:"overlay"`
	Winner       Winner          `json:"winner"`
	Settings     Settings        `json:"tournament_settings"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// naiveLayout is the local, zone-less timestamp the Flask server wrote.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// UnmarshalJSON also accepts last_updated without a time zone.
func (s *State) UnmarshalJSON(b []byte) error {
	type plain State
	aux := struct {
		*plain
		LastUpdated json.RawMessage `json:"last_updated"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	var raw string
	if len(aux.LastUpdated) == 0 || string(aux.LastUpdated) == "null" {
		return nil
	}
	if err := json.Unmarshal(aux.LastUpdated, &raw); err != nil {
		return fmt.Errorf("last_updated: %w", err)
	}
	if raw == "" {
		s.LastUpdated = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, naiveLayout} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			s.LastUpdated = t
			return nil
		}
	}
	return fmt.Errorf("last_updated: unrecognised timestamp %q", raw)
}

type CurrentMatch struct {
	Robot1 string `json:"robot1"`
	Robot2 string `json:"robot2"`
	Round  string `json:"round"`
}

// Timer is a countdown. While running, RemainingSec is the time that was left at
// StartedAt; use Left for the live value.
type Timer struct {
	DurationSec  int        `json:"duration"`
	RemainingSec int        `json:"remaining"`
	IsRunning    bool       `json:"is_running"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
}

func (t Timer) Left(now time.Time) time.Duration {
	left := time.Duration(t.RemainingSec) * time.Second
	if t.IsRunning && t.StartedAt != nil {
		left -= now.Sub(*t.StartedAt)
	}
	return max(left, 0)
}

// LeftSec is Left rounded up to whole seconds.
func (t Timer) LeftSec(now time.Time) int { return wholeSeconds(t.Left(now)) }

func wholeSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

type Overlay struct {
	Mode OverlayMode `json:"mode"`
}

// Winner drives the winner-announcement animation on the overlay.
type Winner struct {
	Show  bool   `json:"show"`
	Robot string `json:"robot,omitempty"`
}

type Settings struct {
	Title string `json:"title"`
}

var defaultRobots = []string{
	"Wackel-Bot 3000",
	"Chaos-Maschine",
	"Sturz-Roboter",
	"Mega-Wackler",
	"Schrott-König",
	"Bumm-Bot",
	"Zitter-Zerstörer",
	"Krach-Kiste",
	"Wums-Wurm",
	"Rüttel-Rex",
	"Kipp-Bot",
	"Vibro-Fighter",
}

// TestRobots is the roster installed by "generate test data".
var TestRobots = []string{
	"Wackel-Bot 3000",
	"Chaos-Maschine",
	"Sturz-Roboter",
	"Mega-Wackler",
	"Schrott-König",
	"Bumm-Bot",
	"Zitter-Zerstörer",
	"Krach-Kiste",
	"Wums-Wurm",
	"Rüttel-Rex",
	"Kipp-Bot",
	"Vibro-Fighter",
	"Crash-Dummy",
	"Shake-n-Break",
	"Klapper-Maschine",
	"Wobble-Bot",
}

func DefaultState() State {
	return State{
		Robots: slices.Clone(defaultRobots),
		CurrentMatch: CurrentMatch{
			Robot1: "Wackel-Bot 3000",
			Robot2: "Chaos-Maschine",
			Round:  "Viertelfinale",
		},
		Bracket:  bracket.Empty(),
		Timer:    Timer{DurationSec: DefaultTimerSec, RemainingSec: DefaultTimerSec},
		Overlay:  Overlay{Mode: OverlayMatch},
		Settings: Settings{Title: "Hebocon"},
	}
}

func (s State) Clone() State {
	out := s
	out.Robots = slices.Clone(s.Robots)
	out.Bracket = s.Bracket.Clone()
	if s.Timer.StartedAt != nil {
		at := *s.Timer.StartedAt
		out.Timer.StartedAt = &at
	}
	return out
}

// RoundLabel is the name the control panel and overlay show for a bracket round.
func RoundLabel(r bracket.Round) string {
	switch r {
	case bracket.RoundOne:
		return "Vorrunde"
	case bracket.RoundQuarterfinals:
		return "Viertelfinale"
	case bracket.RoundSemifinals:
		return "Halbfinale"
	case bracket.RoundFinals:
		return "Finale"
	default:
		return string(r)
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
	"github.com/DoyleJ11/hebocon-control/internal/tournament"
	"github.com/DoyleJ11/hebocon-control/internal/types"
)

// Response is the body of every mutating endpoint.
type Response struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message,omitempty"`
	Code    string                   `json:"code,omitempty"`
	Version int64                    `json:"version,omitempty"`
	Robots  []string                 `json:"robots,omitempty"`
	Match   *tournament.CurrentMatch `json:"match,omitempty"`
	Bracket *bracket.Bracket         `json:"bracket,omitempty"`
	Timer   *TimerView               `json:"timer,omitempty"`
	Mode    tournament.OverlayMode   `json:"mode,omitempty"`
}

// TimerView is the timer with the live remaining time filled in.
type TimerView struct {
	Duration  int  `json:"duration"`
	Remaining int  `json:"remaining"`
	IsRunning bool `json:"is_running"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := types.ErrorCode(err)
	if errors.Is(err, errBadBody) {
		code = types.CodeBadRequest
	}
	status := statusFor(code)
	if errors.Is(err, tournament.ErrSessionClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, Response{Success: false, Message: err.Error(), Code: code})
}

func statusFor(code string) int {
	switch code {
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeConflict:
		return http.StatusConflict
	case types.CodeInvalid, types.CodeBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errBadBody = errors.New("bad request body")

// decode reads an optional JSON body into v; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %w", errBadBody, err)
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hebocon-control/internal/tournament"
	"github.com/DoyleJ11/hebocon-control/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 30 * time.Second
)

// Handler upgrades the request, subscribes the connection to the session and
// accepts commands from it. Overlays that never send anything stay connected;
// liveness is checked with pings.
func Handler(sess *tournament.Session, log *zap.Logger, originPatterns []string) http.HandlerFunc {
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		clientID := uuid.NewString()
		clog := log.With(zap.String("client_id", clientID))

		out := make(chan tournament.Snapshot, 8)
		select {
		case sess.Inbox() <- tournament.Subscribe{ClientID: clientID, Outbox: out}:
		case <-sess.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer func() {
			select {
			case sess.Inbox() <- tournament.Unsubscribe{ClientID: clientID}:
			case <-sess.Done():
			}
		}()
		clog.Info("client connected", zap.String("remote", r.RemoteAddr))

		replies := make(chan types.ServerMessage, 8)
		go func() {
			defer cancel()
			writeLoop(ctx, conn, out, replies, clog)
		}()

		reply := func(m types.ServerMessage) {
			select {
			case replies <- m:
			case <-ctx.Done():
			}
		}

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Info("client disconnected")
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				reply(types.ServerMessage{Type: "Error", Code: types.CodeBadRequest, Error: "bad json"})
				continue
			}

			cmd, err := ToCommand(cm)
			if err != nil {
				reply(errorMessage(err))
				continue
			}

			res, err := sess.Execute(ctx, cmd)
			if errors.Is(err, tournament.ErrSessionClosed) || ctx.Err() != nil {
				return
			}
			if err != nil {
				reply(errorMessage(err))
				continue
			}
			reply(types.ServerMessage{Type: "Ack", Version: res.Version})
		}
	}
}

func errorMessage(err error) types.ServerMessage {
	return types.ServerMessage{Type: "Error", Code: types.ErrorCode(err), Error: err.Error()}
}

// writeLoop is the only writer on conn.
func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan tournament.Snapshot, replies <-chan types.ServerMessage, log *zap.Logger) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		var msg types.ServerMessage
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-out:
			if !ok {
				// dropped as a slow reader, or the session is shutting down
				conn.Close(websocket.StatusTryAgainLater, "subscription ended")
				return
			}
			msg = types.ServerMessage{Type: "StateSnapshot", Version: snap.Version, State: &snap.State}

		case msg = <-replies:

		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug("ping failed", zap.Error(err))
				return
			}
			continue
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			log.Error("encode message", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = conn.Write(wctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			log.Debug("write failed", zap.Error(err))
			return
		}
	}
}

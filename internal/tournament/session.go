package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
	"github.com/DoyleJ11/hebocon-control/internal/metrics"
	"github.com/DoyleJ11/hebocon-control/internal/store"
)

var ErrSessionClosed = errors.New("session closed")
var ErrPersist = errors.New("snapshot not saved")

const saveTimeout = 5 * time.Second

type Msg interface{ isSessionMsg() }

// Do applies Cmd. Reply must be buffered: the loop never waits on it and drops
// the result if the send would block.
type Do struct {
	Cmd   Command
	Reply chan Result
}

func (Do) isSessionMsg() {}

type Subscribe struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Subscribe) isSessionMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isSessionMsg() {}

// GetState asks for the current view; Reply must be buffered, as with Do.
type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// timerFired is sent by the countdown; gen identifies which arming it belongs to.
type timerFired struct{ gen int }

func (timerFired) isSessionMsg() {}

// Snapshot is what subscribers receive. State must be treated as read-only.
type Snapshot struct {
	Version int64
	State   State
}

type View struct {
	Version    int64
	NumClients int
	State      State
}

type Result struct {
	Version int64
	State   State
	Err     error
}

// Session is the single writer of the tournament state: every load-mutate-save
// cycle runs on its goroutine, so concurrent requests are serialized.
type Session struct {
	inbox    chan Msg
	state    State
	version  int64
	clients  map[string]chan Snapshot
	store    store.Store
	log      *zap.Logger
	now      func() time.Time
	timer    *time.Timer
	timerGen int
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Open loads the last snapshot (or the default state on first use) and starts
// the session loop.
func Open(parent context.Context, st store.Store, log *zap.Logger, opts ...Option) (*Session, error) {
	state, version, err := load(parent, st)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:   make(chan Msg, 64),
		state:   state,
		version: version,
		clients: make(map[string]chan Snapshot),
		store:   st,
		log:     log.Named("session"),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Info("session opened", zap.Int64("version", version), zap.String("bracket_status", string(state.Bracket.Status)))
	s.armTimer()
	go s.loop()
	return s, nil
}

func load(ctx context.Context, st store.Store) (State, int64, error) {
	snap, err := st.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultState(), 0, nil
	}
	if err != nil {
		return State{}, 0, fmt.Errorf("load snapshot: %w", err)
	}

	// keys missing from older files keep their defaults
	s := DefaultState()
	if err := json.Unmarshal(snap.Payload, &s); err != nil {
		return State{}, 0, fmt.Errorf("decode snapshot v%d: %w", snap.Version, err)
	}
	if s.Bracket.Status == "" {
		s.Bracket = bracket.Empty()
	}
	return s, snap.Version, nil
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Subscribe:
				s.clients[msg.ClientID] = msg.Outbox
				s.send(msg.ClientID, msg.Outbox, Snapshot{Version: s.version, State: s.state})
				metrics.SetSubscribers(len(s.clients))

			case Unsubscribe:
				if ch, ok := s.clients[msg.ClientID]; ok {
					close(ch)
					delete(s.clients, msg.ClientID)
					metrics.SetSubscribers(len(s.clients))
				}

			case Do:
				res := s.execute(msg.Cmd)
				select {
				case msg.Reply <- res:
				default:
					s.log.Warn("reply dropped, channel not ready", zap.String("command", string(msg.Cmd.Type)))
				}

			case timerFired:
				if msg.gen != s.timerGen {
					s.log.Debug("stale timer fire dropped", zap.Int("gen", msg.gen), zap.Int("current_gen", s.timerGen))
					break
				}
				s.execute(Command{Type: CmdExpireTimer})

			case GetState:
				select {
				case msg.Reply <- View{Version: s.version, NumClients: len(s.clients), State: s.state}:
				default:
					s.log.Warn("state reply dropped, channel not ready")
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) execute(cmd Command) Result {
	if cmd.At.IsZero() {
		cmd.At = s.now()
	}

	next, err := Apply(s.state, cmd)
	metrics.ObserveCommand(string(cmd.Type), err)
	if err != nil {
		s.log.Info("command rejected", zap.String("command", string(cmd.Type)), zap.Error(err))
		return Result{Version: s.version, State: s.state, Err: err}
	}

	if err := s.persist(next, s.version+1, cmd.At); err != nil {
		s.log.Error("persist failed", zap.String("command", string(cmd.Type)), zap.Error(err))
		return Result{Version: s.version, State: s.state, Err: fmt.Errorf("%w: %w", ErrPersist, err)}
	}

	s.state = next
	s.version++
	if cmd.Type.touchesTimer() {
		s.armTimer()
	}
	s.broadcast(Snapshot{Version: s.version, State: s.state})
	s.log.Debug("command applied", zap.String("command", string(cmd.Type)), zap.Int64("version", s.version))
	return Result{Version: s.version, State: s.state}
}

func (s *Session) persist(state State, version int64, at time.Time) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(s.ctx, saveTimeout)
	defer cancel()
	return s.store.Save(ctx, store.Snapshot{Version: version, Payload: payload, SavedAt: at})
}

// armTimer schedules expiry for a running countdown. Every call bumps the
// generation, so fires from earlier armings are ignored.
func (s *Session) armTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	if !s.state.Timer.IsRunning {
		return
	}

	gen := s.timerGen
	s.timer = time.AfterFunc(s.state.Timer.Left(s.now()), func() {
		select {
		case s.inbox <- timerFired{gen: gen}:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) shutdown() {
	if s.timer != nil {
		s.timer.Stop()
	}
	for id, ch := range s.clients {
		close(ch) // no more snapshots for this client
		delete(s.clients, id)
	}
	metrics.SetSubscribers(0)
	s.cancel()
	s.log.Info("session closed", zap.Int64("version", s.version))
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		s.send(id, ch, snap)
	}
}

// send drops a client whose outbox is full.
func (s *Session) send(id string, ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
	default:
		s.log.Warn("dropping slow client", zap.String("client_id", id))
		close(ch)
		delete(s.clients, id)
		metrics.SetSubscribers(len(s.clients))
	}
}

// Inbox is exposed so the websocket layer and tests can talk to the loop directly.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Done() <-chan struct{} { return s.done }

// Execute runs cmd on the session loop and waits for the outcome. The returned
// error is the command's rejection reason, a persistence failure, or a
// context/shutdown error.
func (s *Session) Execute(ctx context.Context, cmd Command) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case s.inbox <- Do{Cmd: cmd, Reply: reply}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.done:
		return Result{}, ErrSessionClosed
	}

	select {
	case r := <-reply:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.done:
		return Result{}, ErrSessionClosed
	}
}

func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case s.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrSessionClosed
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrSessionClosed
	}
}

// Close stops the loop and waits for it to finish.
func (s *Session) Close() {
	select {
	case s.inbox <- Shutdown{}:
	case <-s.done:
	}
	<-s.done
}

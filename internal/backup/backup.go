package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hebocon-control/internal/tournament"
)

const runTimeout = 30 * time.Second

// Viewer is the part of the session a backup needs.
type Viewer interface {
	View(ctx context.Context) (tournament.View, error)
}

// Copy is one serialized tournament state handed to every sink.
type Copy struct {
	Version int64
	Title   string
	TakenAt time.Time
	Payload []byte
}

// Name is the file/object name for the copy, e.g. "hebocon-berlin-v42-20260509T140000Z.json".
func (c Copy) Name() string {
	base := slug.Make(c.Title)
	if base == "" {
		base = "hebocon"
	}
	return fmt.Sprintf("%s-v%d-%s.json", base, c.Version, c.TakenAt.UTC().Format("20060102T150405Z"))
}

type Sink interface {
	Name() string
	Put(ctx context.Context, c Copy) error
}

type Job struct {
	src   Viewer
	sinks []Sink
	log   *zap.Logger
	now   func() time.Time

	mu   sync.Mutex
	last int64

	sched gocron.Scheduler
}

func New(src Viewer, log *zap.Logger, sinks ...Sink) *Job {
	return &Job{
		src:   src,
		sinks: sinks,
		log:   log.Named("backup"),
		now:   time.Now,
		last:  -1,
	}
}

// RunOnce copies the current state to every sink unless the version has
// already been backed up. Sink failures are combined; the version is only
// marked done when every sink succeeded.
func (j *Job) RunOnce(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	v, err := j.src.View(ctx)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if v.Version == j.last {
		j.log.Debug("state unchanged, skipping", zap.Int64("version", v.Version))
		return nil
	}

	payload, err := json.MarshalIndent(v.State, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	c := Copy{Version: v.Version, Title: v.State.Settings.Title, TakenAt: j.now(), Payload: payload}

	var errs error
	for _, s := range j.sinks {
		if err := s.Put(ctx, c); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		j.log.Info("backup written", zap.String("sink", s.Name()), zap.String("name", c.Name()), zap.Int64("version", c.Version))
	}
	if errs == nil {
		j.last = v.Version
	}
	return errs
}

// Start schedules RunOnce every interval. A non-positive interval or an empty
// sink list leaves the job idle.
func (j *Job) Start(interval time.Duration) error {
	if interval <= 0 || len(j.sinks) == 0 {
		j.log.Info("backups disabled")
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("new scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			defer cancel()
			if err := j.RunOnce(ctx); err != nil {
				for _, e := range multierr.Errors(err) {
					j.log.Error("backup failed", zap.Error(e))
				}
			}
		}),
		gocron.WithName("snapshot-backup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return multierr.Append(fmt.Errorf("schedule backup: %w", err), sched.Shutdown())
	}

	sched.Start()
	j.sched = sched
	j.log.Info("backups scheduled", zap.Duration("interval", interval), zap.Int("sinks", len(j.sinks)))
	return nil
}

// Stop shuts the scheduler down and takes a final copy.
func (j *Job) Stop(ctx context.Context) error {
	if j.sched == nil {
		return nil
	}
	err := j.sched.Shutdown()
	j.sched = nil
	return multierr.Append(err, j.RunOnce(ctx))
}

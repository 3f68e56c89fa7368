package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/groutine"
	"github.com/srg/plugmini/internal/plug"
)

// DefaultJobTimeout bounds a single timer run (scan, connect and exchange)
const DefaultJobTimeout = time.Minute

// Runner executes a plug command. *plug.Plug satisfies it.
type Runner interface {
	Do(ctx context.Context, cmd plug.Command) (plug.PowerState, error)
}

// Entry is one timer rule
type Entry struct {
	Name    string
	Spec    string // 5-field cron expression or descriptor (@daily, @every 1h)
	Command plug.Command
}

// Upcoming describes the next planned run of an entry
type Upcoming struct {
	Name    string
	Command plug.Command
	Next    time.Time
}

// Timer runs plug commands on cron schedules. A run that is still in
// progress when its next activation fires causes that activation to be skipped.
type Timer struct {
	runner     Runner
	logger     *logrus.Logger
	cron       *cron.Cron
	jobTimeout time.Duration

	mu      sync.Mutex
	entries map[string]registered
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

type registered struct {
	id    cron.EntryID
	entry Entry
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewTimer creates a timer driving runner
func NewTimer(runner Runner, logger *logrus.Logger) *Timer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Timer{
		runner:     runner,
		logger:     logger,
		jobTimeout: DefaultJobTimeout,
		entries:    make(map[string]registered),
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger{logger: logger}),
		),
	}
}

// SetJobTimeout overrides DefaultJobTimeout (0 = bounded only by Stop)
func (t *Timer) SetJobTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobTimeout = d
}

// Add registers an entry. Names must be unique.
func (t *Timer) Add(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("timer entry name is required")
	}
	if e.Command.Frame() == nil {
		return fmt.Errorf("timer entry %q: unsupported command %s", e.Name, e.Command)
	}
	schedule, err := parser.Parse(e.Spec)
	if err != nil {
		return fmt.Errorf("timer entry %q: invalid schedule %q: %w", e.Name, e.Spec, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[e.Name]; exists {
		return fmt.Errorf("timer entry %q already exists", e.Name)
	}

	cl := cronLogger{logger: t.logger}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		t.run(e)
	}))
	id := t.cron.Schedule(schedule, job)
	t.entries[e.Name] = registered{id: id, entry: e}

	t.logger.WithFields(logrus.Fields{
		"name":    e.Name,
		"spec":    e.Spec,
		"command": e.Command.String(),
	}).Info("Timer entry added")
	return nil
}

// Remove unregisters an entry
func (t *Timer) Remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.entries[name]
	if !ok {
		return false
	}
	t.cron.Remove(r.id)
	delete(t.entries, name)
	return true
}

// Upcoming lists entries ordered by their next activation
func (t *Timer) Upcoming() []Upcoming {
	t.mu.Lock()
	byID := make(map[cron.EntryID]Entry, len(t.entries))
	for _, r := range t.entries {
		byID[r.id] = r.entry
	}
	t.mu.Unlock()

	var out []Upcoming
	for _, ce := range t.cron.Entries() {
		e, ok := byID[ce.ID]
		if !ok {
			continue
		}
		next := ce.Next
		if next.IsZero() {
			next = ce.Schedule.Next(time.Now())
		}
		out = append(out, Upcoming{Name: e.Name, Command: e.Command, Next: next})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

// RunNow executes the named entry immediately on the caller's goroutine
func (t *Timer) RunNow(ctx context.Context, name string) (plug.PowerState, error) {
	t.mu.Lock()
	r, ok := t.entries[name]
	t.mu.Unlock()
	if !ok {
		return plug.PowerOff, fmt.Errorf("timer entry %q not found", name)
	}
	return t.execute(ctx, r.entry)
}

// Start begins firing entries. Runs derive their context from ctx.
func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.cron.Start()
	t.started = true

	t.logger.WithField("entries", len(t.entries)).Info("Power timer started")
	return nil
}

// Stop halts scheduling, cancels in-flight runs and waits for them to return
// or for ctx to be done.
func (t *Timer) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.cancel()
	t.started = false
	t.mu.Unlock()

	select {
	case <-t.cron.Stop().Done():
		t.logger.Info("Power timer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timer stop: %w", ctx.Err())
	}
}

func (t *Timer) run(e Entry) {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		t.logger.WithField("name", e.Name).Debug("Timer stopped, skipping run")
		return
	}

	var crashed any
	done := groutine.Go(ctx, "timer-"+e.Name, func(ctx context.Context) {
		defer func() { crashed = recover() }()
		_, _ = t.execute(ctx, e)
	})
	<-done

	// re-raised on the cron goroutine so the Recover wrapper reports it
	if crashed != nil {
		panic(crashed)
	}
}

func (t *Timer) execute(ctx context.Context, e Entry) (plug.PowerState, error) {
	t.mu.Lock()
	timeout := t.jobTimeout
	t.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	state, err := t.runner.Do(ctx, e.Command)

	log := t.logger.WithFields(logrus.Fields{
		"name":     e.Name,
		"command":  e.Command.String(),
		"duration": time.Since(start),
	})
	if name := groutine.GetName(ctx); name != "" {
		log = log.WithField("goroutine", name)
	}
	if err != nil {
		log.WithFields(logrus.Fields{
			"code":  plug.CodeOf(err),
			"error": err,
		}).Warn("Timer run failed")
		return state, err
	}
	log.WithField("power", state.String()).Info("Timer run completed")
	return state, nil
}

package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"hwbot/internal/homework"
	"hwbot/internal/notifier"
	logx "hwbot/pkg/logx"
)

// errorReportPrefix opens the chat message describing a failed cycle.
const errorReportPrefix = "При запросе данных бот столкнулся с ошибкой:"

// Poller fetches submissions updated since a cursor.
type Poller interface {
	Poll(ctx context.Context, cursor int64) (homework.Batch, error)
}

// Notifier delivers a chat message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Config struct {
	Schedule ParsedSpec
	// Location is used for cron schedules (time.Local when nil).
	Location *time.Location

	// ReportErrors also sends a best-effort chat message for failed cycles.
	ReportErrors bool

	// InitialCursor is the first from_date; 0 means the current time.
	InitialCursor int64
}

// Tracker runs the poll-translate-notify loop for one submission stream.
//
// Cycles run strictly one after another. The cursor only moves forward and
// only after a successful poll.
type Tracker struct {
	poller   Poller
	notifier Notifier
	log      logx.Logger

	mu       sync.Mutex
	cfg      Config
	sched    Schedule
	cursor   int64
	last     Outcome
	onCycle  func(Outcome)
	resched  chan struct{}
	reported string // last error text sent to chat; loop goroutine only
}

func New(cfg Config, poller Poller, n Notifier, log logx.Logger) (*Tracker, error) {
	if poller == nil {
		return nil, errors.New("tracker: poller is nil")
	}
	if n == nil {
		return nil, errors.New("tracker: notifier is nil")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Schedule.Source == "" && cfg.Schedule.Every == 0 && cfg.Schedule.Cron == "" {
		cfg.Schedule, _ = ParseSchedule("")
	}
	sched, err := cfg.Schedule.Schedule(cfg.Location)
	if err != nil {
		return nil, err
	}
	cursor := cfg.InitialCursor
	if cursor <= 0 {
		cursor = time.Now().Unix()
	}
	return &Tracker{
		poller:   poller,
		notifier: n,
		log:      log,
		cfg:      cfg,
		sched:    sched,
		cursor:   cursor,
		resched:  make(chan struct{}, 1),
	}, nil
}

// Apply swaps the schedule and reporting flag. The cursor is kept.
func (t *Tracker) Apply(cfg Config) error {
	sched, err := cfg.Schedule.Schedule(cfg.Location)
	if err != nil {
		return err
	}
	t.mu.Lock()
	changed := t.cfg.Schedule != cfg.Schedule || t.cfg.Location != cfg.Location
	cfg.InitialCursor = t.cfg.InitialCursor
	t.cfg = cfg
	t.sched = sched
	t.mu.Unlock()

	if changed {
		select {
		case t.resched <- struct{}{}:
		default:
		}
	}
	return nil
}

// OnCycle installs a hook called after every cycle. Set it before Run.
func (t *Tracker) OnCycle(fn func(Outcome)) {
	t.mu.Lock()
	t.onCycle = fn
	t.mu.Unlock()
}

// Cursor returns the current from_date cursor.
func (t *Tracker) Cursor() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// Last returns the outcome of the most recent cycle.
func (t *Tracker) Last() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Tracker) snapshot() (Config, Schedule, func(Outcome)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg, t.sched, t.onCycle
}

// Run polls until ctx is cancelled. Cycle failures never end the loop.
func (t *Tracker) Run(ctx context.Context) error {
	cfg, _, _ := t.snapshot()
	t.log.Debug("tracker started", logx.Int64("cursor", t.Cursor()), logx.String("schedule", cfg.Schedule.String()))

	for {
		startedAt := time.Now()
		out := t.Cycle(ctx)
		_, sched, hook := t.snapshot()
		if hook != nil {
			hook(out)
		}
		if ctx.Err() != nil {
			t.log.Debug("tracker stopped", logx.Int64("cursor", t.Cursor()))
			return nil
		}

		timer := time.NewTimer(time.Until(sched.Next(startedAt)))
	wait:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				t.log.Debug("tracker stopped", logx.Int64("cursor", t.Cursor()))
				return nil
			case <-timer.C:
				break wait
			case <-t.resched:
				_, sched, _ = t.snapshot()
				timer.Stop()
				timer = time.NewTimer(time.Until(sched.Next(startedAt)))
			}
		}
	}
}

// Cycle performs one poll, and on success notifies about the latest
// submission only. It never panics on bad input and never returns an error:
// the failure, if any, is reported in Outcome.
func (t *Tracker) Cycle(ctx context.Context) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	cursor := t.Cursor()

	batch, err := t.poller.Poll(ctx, cursor)
	if err != nil {
		return t.finish(ctx, Outcome{Result: classify(err), Err: err, Cursor: cursor})
	}

	next := batch.Cursor
	if next < cursor {
		t.log.Warn("server cursor moved backwards; keeping current", logx.Int64("cursor", cursor), logx.Int64("current_date", next))
		next = cursor
	}
	t.mu.Lock()
	t.cursor = next
	t.mu.Unlock()

	out := Outcome{Result: ResultSuccess, Cursor: next}
	sub, ok := batch.Latest()
	if !ok {
		t.log.Debug("no status updates", logx.Int64("cursor", next))
		return t.finish(ctx, out)
	}
	if n := len(batch.Submissions); n > 1 {
		t.log.Debug("several updates in one poll; notifying the latest only", logx.Int("count", n))
	}
	out.Submission = &sub

	text, err := homework.Translate(sub)
	if err != nil {
		out.Result = classify(err)
		out.Err = err
		return t.finish(ctx, out)
	}

	err = t.notifier.Notify(ctx, text)
	switch {
	case err == nil:
		out.Sent = true
		t.log.Info("notification sent", logx.String("homework", sub.Name), logx.String("status", string(sub.Status)))
	case errors.Is(err, notifier.ErrSuppressed):
		out.Suppressed = true
		t.log.Debug("notification suppressed as duplicate", logx.String("homework", sub.Name))
	default:
		out.Result = ResultDeliveryFail
		out.Err = err
	}
	return t.finish(ctx, out)
}

func (t *Tracker) finish(ctx context.Context, out Outcome) Outcome {
	if out.Err != nil {
		t.logFailure(ctx, out)
		if t.reportEnabled() && out.Result != ResultDeliveryFail && ctx.Err() == nil {
			t.report(ctx, out.Err)
		}
	} else {
		t.reported = ""
	}

	t.mu.Lock()
	t.last = out
	t.mu.Unlock()
	return out
}

func (t *Tracker) reportEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg.ReportErrors
}

func (t *Tracker) logFailure(ctx context.Context, out Outcome) {
	if ctx.Err() != nil {
		t.log.Debug("cycle interrupted", logx.String("kind", out.Result.String()), logx.Err(out.Err))
		return
	}
	fields := []logx.Field{
		logx.String("kind", out.Result.String()),
		logx.Err(out.Err),
		logx.Int64("cursor", out.Cursor),
	}
	var he *homework.Error
	if errors.As(out.Err, &he) {
		if he.Request != nil {
			fields = append(fields, logx.String("request", he.Request.String()))
		}
		if he.HTTPStatus != 0 {
			fields = append(fields, logx.Int("http_status", he.HTTPStatus))
		}
	}
	if out.Submission != nil {
		fields = append(fields, logx.String("homework", out.Submission.Name))
	}
	fields = append(fields, logx.CallStack())
	t.log.Error("poll cycle failed", fields...)
}

// report sends a failure description to the chat. Delivery problems here are
// logged at debug and go no further.
func (t *Tracker) report(ctx context.Context, cause error) {
	msg := errorReportPrefix + " " + cause.Error()
	if msg == t.reported {
		return
	}
	if err := t.notifier.Notify(ctx, msg); err != nil {
		t.log.Debug("error report not delivered", logx.Err(err))
		return
	}
	t.reported = msg
}

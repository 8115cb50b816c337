package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

var (
	ErrEmptyMessage = errors.New("notifier: empty message")
	ErrNoTarget     = errors.New("notifier: destination chat not configured")
	// ErrSuppressed is returned when the dedup window swallowed the message.
	ErrSuppressed = errors.New("notifier: duplicate message suppressed")
)

const historyMax = 100

// Service delivers messages to one chat through a kit.Sender.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender

	cfg     Config
	limiter *rate.Limiter

	// In-memory dedup cache: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sender: sender,
		log:    log,
		dedup:  map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 200
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Target returns the configured destination.
func (s *Service) Target() kit.ChatTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Target
}

// Notify sends text to the configured chat.
//
// Transport failures come back as *DeliveryError. A message swallowed by the
// dedup window returns ErrSuppressed.
func (s *Service) Notify(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	log := s.log
	s.mu.Unlock()

	if cfg.Target.ChatID == 0 {
		return ErrNoTarget
	}
	if sender == nil {
		return &DeliveryError{Target: cfg.Target, Err: errors.New("no transport configured")}
	}

	key := dedupKey(cfg.Target, text)
	if cfg.DedupWindow > 0 && !s.dedupAllow(key, cfg.DedupWindow, cfg.DedupMaxEntries) {
		log.Debug("notification suppressed (dedup window)", logx.Duration("window", cfg.DedupWindow))
		return ErrSuppressed
	}

	maxAttempts := 1 + cfg.RetryMax
	opts := &kit.SendOptions{DisablePreview: cfg.DisablePreview}

	var lastErr error
	attempt := 0
retry:
	for attempt < maxAttempts {
		attempt++
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				lastErr = errors.Join(lastErr, err)
				break retry
			}
		}

		// Bound per-send call so a stuck transport can't hold the caller.
		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		ref, err := sender.SendText(callCtx, cfg.Target, text, opts)
		cancel()
		if err == nil {
			s.appendHistory(text, ref.MessageID)
			return nil
		}
		lastErr = err
		log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if ctx.Err() != nil {
			lastErr = errors.Join(lastErr, ctx.Err())
			break
		}
		if attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			lastErr = errors.Join(lastErr, ctx.Err())
			break retry
		}
	}

	// A failed send must not keep suppressing the retry in the next cycle.
	if cfg.DedupWindow > 0 {
		s.dedupForget(key)
	}
	return &DeliveryError{Target: cfg.Target, Attempts: attempt, Err: lastErr}
}

func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(text string, id int) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Text: text, MessageID: id})
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.hmu.Unlock()
}

func dedupKey(to kit.ChatTarget, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fmt.Sprintf("%d:%d|", to.ChatID, to.ThreadID)))
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupAllow(key string, window time.Duration, max int) bool {
	now := time.Now()

	s.dmu.Lock()
	defer s.dmu.Unlock()
	if s.dedup == nil {
		s.dedup = map[string]time.Time{}
	}
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(window)

	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	// Remove entries with earliest expiry until within cap.
	for max > 0 && len(s.dedup) > max {
		var (
			minKey string
			minT   time.Time
		)
		for k, t := range s.dedup {
			if minKey == "" || t.Before(minT) {
				minKey, minT = k, t
			}
		}
		delete(s.dedup, minKey)
	}
	return true
}

func (s *Service) dedupForget(key string) {
	s.dmu.Lock()
	delete(s.dedup, key)
	s.dmu.Unlock()
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	base := cfg.RetryBase
	maxD := cfg.RetryMaxDelay
	// Exponential backoff: base * 2^(attempt-1)
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	// Jitter 0.7..1.3
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	d = time.Duration(float64(d) * (0.7 + rng.Float64()*0.6))
	if d < 0 {
		return 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}

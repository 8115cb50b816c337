package notifier

import (
	"fmt"
	"time"

	kit "hwbot/internal/transport"
)

// Config controls message delivery.
type Config struct {
	Target         kit.ChatTarget
	DisablePreview bool

	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration

	// DedupWindow suppresses identical text sent again within the window (0 disables).
	DedupWindow     time.Duration
	DedupMaxEntries int
}

type HistoryItem struct {
	At        time.Time
	Text      string
	MessageID int
}

// DeliveryError reports a message the transport failed to deliver.
type DeliveryError struct {
	Target   kit.ChatTarget
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notifier: delivery to chat %d failed after %d attempt(s): %v", e.Target.ChatID, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

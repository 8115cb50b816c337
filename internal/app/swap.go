package app

import (
	"context"
	"sync/atomic"

	"hwbot/internal/homework"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram/adapter"
)

// pollerRef lets a config reload replace the API client under a running
// tracker. The tracker never sees the swap.
type pollerRef struct {
	cur atomic.Pointer[homework.Client]
}

func (r *pollerRef) Poll(ctx context.Context, cursor int64) (homework.Batch, error) {
	return r.cur.Load().Poll(ctx, cursor)
}

// senderRef does the same for the Telegram adapter.
type senderRef struct {
	cur atomic.Pointer[telegram.Adapter]
}

func (r *senderRef) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return r.cur.Load().SendText(ctx, to, text, opt)
}

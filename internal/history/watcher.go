package history

import (
	"context"
	"fmt"

	"solana-fee-lab/internal/solana"
)

// Watcher appends usage rows for a payer's transactions as they land.
type Watcher struct {
	ws     solana.WSClient
	reader *Reader
	payer  string
}

// NewWatcher creates a Watcher. The reader must have a usage store.
func NewWatcher(ws solana.WSClient, reader *Reader, payer string) *Watcher {
	return &Watcher{ws: ws, reader: reader, payer: payer}
}

// Run subscribes to logs mentioning the payer and ingests each notification
// until ctx is cancelled or the subscription closes.
func (w *Watcher) Run(ctx context.Context) error {
	if w.reader.usage == nil {
		return fmt.Errorf("history: watcher requires a usage store")
	}
	if err := solana.ValidateAddress(w.payer); err != nil {
		return err
	}

	notifs, err := w.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{w.payer}})
	if err != nil {
		return fmt.Errorf("subscribe logs for %s: %w", w.payer, err)
	}
	w.reader.logger.Printf("watching payer %s", w.payer)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifs:
			if !ok {
				w.reader.logger.Printf("subscription for %s closed", w.payer)
				return nil
			}
			if err := w.ingest(ctx, n); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.reader.logger.Printf("ingest %s: %v", n.Signature, err)
			}
		}
	}
}

// ingest stores one notification, preferring the full transaction and
// falling back to the notification logs.
func (w *Watcher) ingest(ctx context.Context, n solana.LogNotification) error {
	observedAt := w.reader.now().UnixMilli()

	tx, err := w.reader.fetch(ctx, n.Signature)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	usage := FromNotification(w.payer, n, observedAt)
	if err == nil && tx != nil {
		usage = FromTransaction(w.payer, tx, observedAt)
	} else {
		w.reader.logger.Printf("transaction %s unavailable, using notification logs", n.Signature)
	}

	if _, err := w.reader.store(ctx, usage); err != nil {
		return err
	}
	return w.reader.advance(ctx, w.payer, usage.Slot, usage.Signature)
}

package stub

import (
	"context"
	"errors"
	"sync"

	"solana-fee-lab/internal/solana"
)

// WSClient implements solana.WSClient by fanning Publish calls out to subscribers.
type WSClient struct {
	mu     sync.Mutex
	subs   []wsSub
	closed bool
}

type wsSub struct {
	filter solana.LogsFilter
	ch     chan solana.LogNotification
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a stub logs client.
func NewWSClient() *WSClient {
	return &WSClient{}
}

// SubscribeLogs registers a subscriber.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("stub: client closed")
	}
	ch := make(chan solana.LogNotification, 64)
	c.subs = append(c.subs, wsSub{filter: filter, ch: ch})
	return ch, nil
}

// Publish delivers n to every subscriber. The mentions filter is not applied:
// mentions are resolved by the node, not visible in the notification.
func (c *WSClient) Publish(n solana.LogNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs {
		s.ch <- n
	}
}

// Close closes all subscriber channels.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, s := range c.subs {
		close(s.ch)
	}
	return nil
}

// Subscribers returns the number of active subscriptions.
func (c *WSClient) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Update is one message off the quote feed. Exactly one of Quote or VIX
// is meaningful, selected by Kind.
type Update struct {
	Kind  string  `json:"kind"` // "quote" or "vix"
	Quote Quote   `json:"quote,omitempty"`
	VIX   float64 `json:"vix,omitempty"`
}

// Stream consumes a websocket quote/VIX feed, pushes every update into
// the cache, and fans updates out to subscribers.
type Stream struct {
	url    string
	cache  *Cache // optional
	dialer *websocket.Dialer

	updates chan Update
}

// NewStream prepares a feed consumer. cache may be nil when no caching
// layer is deployed.
func NewStream(url string, cache *Cache) *Stream {
	return &Stream{
		url:     url,
		cache:   cache,
		dialer:  websocket.DefaultDialer,
		updates: make(chan Update, 256),
	}
}

// Updates is the fan-out channel. It closes when Run returns.
func (s *Stream) Updates() <-chan Update { return s.updates }

// Run connects and pumps messages until ctx is cancelled or the
// connection drops. Reconnection policy belongs to the caller; Run does
// one connection lifetime.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.updates)

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	log.Info().Str("url", s.url).Msg("market data stream connected")

	// Unblock ReadMessage on cancellation. done releases the watcher
	// when Run exits on a read error first.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		var u Update
		if err := json.Unmarshal(raw, &u); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable stream message")
			continue
		}

		switch u.Kind {
		case "quote":
			if u.Quote.AsOf.IsZero() {
				u.Quote.AsOf = time.Now().UTC()
			}
			if s.cache != nil {
				s.cache.Put(ctx, u.Quote)
			}
		case "vix":
			if s.cache != nil {
				s.cache.PutVIX(ctx, u.VIX)
			}
		default:
			log.Debug().Str("kind", u.Kind).Msg("ignoring unknown stream message kind")
			continue
		}

		select {
		case s.updates <- u:
		default:
			// Slow subscriber: drop rather than stall the read loop.
			log.Warn().Str("kind", u.Kind).Msg("dropping update for slow subscriber")
		}
	}
}

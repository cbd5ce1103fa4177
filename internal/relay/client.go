// Package relay is the client side of the signaling relay: a persistent
// websocket carrying membership, mute, speaking and negotiation events for
// voice channels. Outbound sends are fire-and-forget; while the socket is
// down they are dropped and the coordinator resyncs from the participants
// snapshot after reconnect.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

const sendBuffer = 32

type Client struct {
	url     string
	handler core.RelayHandler

	reconnectMin time.Duration
	reconnectMax time.Duration

	mu     sync.RWMutex
	conn   *websocket.Conn
	send   chan []byte
	online bool
}

func NewClient(url string, reconnectMin, reconnectMax time.Duration) *Client {
	return &Client{
		url:          url,
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
	}
}

// Bind sets the inbound event handler. Must be called before Run; the
// coordinator is constructed against this client, so binding is a second
// step.
func (c *Client) Bind(handler core.RelayHandler) { c.handler = handler }

// Run dials the relay and keeps the connection alive with backoff until ctx
// is done. Each successful connect notifies the handler so it can resync.
func (c *Client) Run(ctx context.Context) {
	backoff := c.reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Warn().Err(err).Str("module", "relay").Str("url", c.url).Dur("retry_in", backoff).Msg("dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.reconnectMax)
			continue
		}
		backoff = c.reconnectMin

		send := make(chan []byte, sendBuffer)
		c.mu.Lock()
		c.conn = conn
		c.send = send
		c.online = true
		c.mu.Unlock()

		log.Info().Str("module", "relay").Str("url", c.url).Msg("connected")
		c.handler.RelayConnected()

		pumpCtx, cancel := context.WithCancel(ctx)
		go c.writePump(pumpCtx, conn, send)
		c.readPump(conn) // blocks until the socket dies
		cancel()

		c.mu.Lock()
		c.online = false
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		log.Warn().Str("module", "relay").Msg("disconnected")
	}
}

// TrySend queues a frame for the write pump. Frames are dropped when the
// socket is down or the buffer is full; callers never block on the relay.
func (c *Client) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.online {
		return errors.New("relay offline")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"waitroom/internal/api"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// Reconnect backoff bounds for Subscribe.
const (
	MinReconnectDelay = 500 * time.Millisecond
	MaxReconnectDelay = 30 * time.Second
)

func (c *Client) wsURL() string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// Subscribe listens for gateway events and calls onEvent for each one,
// from a single goroutine. Dropped connections are retried with
// exponential backoff until ctx is cancelled, which is the only way it
// returns.
func (c *Client) Subscribe(ctx context.Context, onEvent func(api.Event)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = MinReconnectDelay
	b.MaxInterval = MaxReconnectDelay
	b.MaxElapsedTime = 0

	target := c.wsURL()
	for {
		connected, err := c.listen(ctx, target, onEvent)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}
		delay := b.NextBackOff()
		c.log.WithError(err).With(log.F("retry_in", delay.String())).Warn("Event stream lost")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// listen holds one connection until it fails. connected reports whether
// the dial succeeded.
func (c *Client) listen(ctx context.Context, target string, onEvent func(api.Event)) (connected bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, target, nil)
	cancel()
	if err != nil {
		return false, errors.NewRemoteError("event stream dial failed", "/ws", 0, err)
	}
	defer conn.Close()
	c.log.Debug("Event stream connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(c.idle))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.idle))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, errors.NewRemoteError("event stream closed", "/ws", 0, err)
		}
		conn.SetReadDeadline(time.Now().Add(c.idle))
		var ev api.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.WithError(err).Warn("Ignoring malformed event")
			continue
		}
		onEvent(ev)
	}
}

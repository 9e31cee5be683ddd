package collector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/net/websocket"
)

// WebsocketDialer dials the alert stream over a plain websocket
type WebsocketDialer struct {
	// Origin is sent in the handshake; derived from the stream URL when empty
	Origin  string
	Timeout time.Duration
}

// Dial opens a websocket to rawURL
func (d *WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		o, err := originFor(rawURL)
		if err != nil {
			return nil, err
		}
		origin = o
	}

	cfg, err := websocket.NewConfig(rawURL, origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	return &websocketConn{ws: ws}, nil
}

// originFor maps ws://host/path to http://host, wss to https
func originFor(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	scheme := "http"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + u.Host, nil
}

type websocketConn struct {
	ws *websocket.Conn
}

func (c *websocketConn) Receive() ([]byte, error) {
	var data []byte
	if err := websocket.Message.Receive(c.ws, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *websocketConn) Close() error {
	return c.ws.Close()
}

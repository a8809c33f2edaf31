package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/models"
)

// Options tunes the websocket transport.
type Options struct {
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	ReadLimit        int64
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1024 * 1024
	}
	return o
}

// Listener receives the events of one subscription. It is called from the
// subscription's read goroutine, one event at a time.
type Listener func(sub *Subscription, ev Event)

// Client opens station-scoped push subscriptions. It never reconnects on its own.
type Client struct {
	baseURL string
	dialer  *websocket.Dialer
	opts    Options
	logger  *zap.Logger
}

// NewClient builds a stream client for the given base URL (http, https, ws or wss).
func NewClient(baseURL string, opts Options, logger *zap.Logger) *Client {
	opts = opts.withDefaults()
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		opts:   opts,
		logger: logger,
	}
}

// StreamURL returns the websocket endpoint for a station.
func (c *Client) StreamURL(stationID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("stream: unsupported scheme %q", u.Scheme)
	}
	prefix := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/stations/" + stationID + "/stream"
	u.RawPath = prefix + "/stations/" + url.PathEscape(stationID) + "/stream"
	return u.String(), nil
}

// Open dials the stream for stationID with the bearer token and starts delivering
// events to listener. The first event is always EventConnected. Failures are
// returned as *models.StreamConnectionError and leave no goroutine behind.
func (c *Client) Open(ctx context.Context, stationID, token string, listener Listener) (*Subscription, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &models.StreamConnectionError{StationID: stationID, Err: models.ErrMissingToken}
	}
	endpoint, err := c.StreamURL(stationID)
	if err != nil {
		return nil, &models.StreamConnectionError{StationID: stationID, Err: err}
	}

	sub := newSubscription(stationID, listener, c.opts, c.logger.With(zap.String("station_id", stationID)))
	sub.setState(StateConnecting)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		sub.setState(StateDisconnected)
		if resp != nil {
			err = fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)
		}
		return nil, &models.StreamConnectionError{StationID: stationID, Err: err}
	}

	sub.start(conn)
	c.logger.Info("battery stream opened", zap.String("station_id", stationID))
	return sub, nil
}

// Close closes the subscription. Closing nil or an already closed subscription is a no-op.
func (c *Client) Close(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Close()
}

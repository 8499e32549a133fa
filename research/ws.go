package research

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voyagent/voyagent/errors"
)

const wsHandshakeTimeout = 10 * time.Second

// wsConn adapts *websocket.Conn to the Conn interface
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsConn) WriteJSON(v interface{}) error {
	return w.conn.WriteJSON(v)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// WSDialer opens live channels against the research backend
type WSDialer struct {
	baseURL string
	dialer  *websocket.Dialer
}

// NewWSDialer creates a dialer from the backend's HTTP base URL. The
// scheme is rewritten for the WebSocket handshake (http to ws, https
// to wss); any API path prefix on the base URL is dropped because the
// live channel is mounted at the server root.
func NewWSDialer(baseURL string) (*WSDialer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid backend base URL")
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, errors.Newf("unsupported backend URL scheme %q", u.Scheme)
	}
	u.Path = ""
	u.RawQuery = ""

	return &WSDialer{
		baseURL: strings.TrimRight(u.String(), "/"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
		},
	}, nil
}

// Dial opens the live channel for one job
func (d *WSDialer) Dial(ctx context.Context, jobID string) (Conn, error) {
	endpoint := d.baseURL + "/ws/research/" + url.PathEscape(jobID)
	conn, resp, err := d.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "websocket handshake rejected with status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "websocket dial failed")
	}
	return &wsConn{conn: conn}, nil
}

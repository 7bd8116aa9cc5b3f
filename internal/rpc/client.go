package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
)

// Client is a surface's (or the CLI's) connection to the daemon.
type Client struct {
	cli *jrpc2.Client
	log *slog.Logger
}

// Dial opens a websocket session. onPush receives messages the daemon
// pushes, each on its own goroutine.
func Dial(ctx context.Context, rawURL string, onPush func(message.Message), logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.Dial(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial daemon %s: %w", rawURL, err)
	}
	ch := &wsChannel{conn: conn, ctx: context.Background()}
	opts := &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) {
			var raw json.RawMessage
			if err := req.UnmarshalParams(&raw); err != nil {
				logger.Warn("undecodable push", "method", req.Method(), "err", err)
				return
			}
			msg, err := message.DecodeParams(message.Type(req.Method()), raw)
			if err != nil {
				logger.Warn("unknown push", "method", req.Method(), "err", err)
				return
			}
			if onPush != nil {
				go onPush(msg)
			}
		},
	}
	return &Client{cli: jrpc2.NewClient(ch, opts), log: logger}, nil
}

// DialHTTP sends each call as a plain HTTP POST; it cannot receive pushes.
func DialHTTP(rawURL string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse daemon url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	ch := jhttp.NewChannel(u.String(), nil)
	return &Client{cli: jrpc2.NewClient(ch, nil), log: logger}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) call(ctx context.Context, msg message.Message, out any) error {
	if err := c.cli.CallResult(ctx, string(msg.Type()), msg, out); err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(string(msg.Type())), err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, s model.Schedule) error {
	var ack message.Ack
	return c.call(ctx, message.RegisterSchedule{Medicine: message.SpecFromSchedule(s)}, &ack)
}

func (c *Client) Remove(ctx context.Context, id string) error {
	var ack message.Ack
	return c.call(ctx, message.RemoveSchedule{MedicineID: id}, &ack)
}

func (c *Client) RemoveAll(ctx context.Context) (int, error) {
	var ack message.Ack
	if err := c.call(ctx, message.RemoveAllSchedules{}, &ack); err != nil {
		return 0, err
	}
	return ack.Removed, nil
}

func (c *Client) Check(ctx context.Context) (message.CheckResult, error) {
	var res message.CheckResult
	err := c.call(ctx, message.CheckSchedules{Time: nowMillis()}, &res)
	return res, err
}

func (c *Client) ShowNow(ctx context.Context, ref message.MedicineRef) (bool, error) {
	var ack message.Ack
	if err := c.call(ctx, message.ScheduleNotification{Medicine: ref}, &ack); err != nil {
		return false, err
	}
	return ack.OK, nil
}

func (c *Client) Ping(ctx context.Context) (message.DebugResponse, error) {
	var res message.DebugResponse
	err := c.call(ctx, message.DebugTest{Time: nowMillis()}, &res)
	return res, err
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Unreachable reports whether err came from the transport rather than
// from the daemon handling the request.
func Unreachable(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr *jrpc2.Error
	return !errors.As(err, &rpcErr)
}

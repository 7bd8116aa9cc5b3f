package rpc

import (
	"context"

	"github.com/coder/websocket"
)

// wsChannel carries one jrpc2 peer over a websocket connection.
type wsChannel struct {
	conn *websocket.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

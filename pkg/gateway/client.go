package gateway

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/xchange/pkg/netutil"
	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// Client is the order gateway's client side: it owns the client's
// outgoing n_seq counter and tracks the server's incoming n_seq to
// detect a dropped response.
type Client struct {
	conn           *net.TCPConn
	clientId       types.ClientId
	responses      *ring.Ring[wire.ClientResponse]
	logger         log.Logger

	txNSeq         atomic.Uint64
	expectedRxNext uint64

	running atomic.Bool
	wg      sync.WaitGroup
}

// Dial connects to the order gateway at addr as clientId, delivering
// decoded responses onto responses.
func Dial(addr string, clientId types.ClientId, responses *ring.Ring[wire.ClientResponse], logger log.Logger) (*Client, error) {
	conn, err := netutil.DialTCP(addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:      conn,
		clientId:  clientId,
		responses: responses,
		logger:    logger,
	}, nil
}

// Start spins the response-reading goroutine.
func (c *Client) Start() {
	c.running.Store(true)
	c.wg.Add(1)
	go c.readLoop()
}

// Stop closes the connection and joins the reader goroutine.
func (c *Client) Stop() {
	c.running.Store(false)
	c.conn.Close()
	c.wg.Wait()
}

// SendNew submits a NEW request.
func (c *Client) SendNew(ticker types.TickerId, clientOrderId types.ClientOrderId, side types.Side, price types.Price, qty types.Qty) error {
	return c.send(wire.ClientRequest{
		Type:          wire.RequestNew,
		ClientId:      c.clientId,
		TickerId:      ticker,
		ClientOrderId: clientOrderId,
		Side:          side,
		Price:         price,
		Qty:           qty,
	})
}

// SendCancel submits a CANCEL request.
func (c *Client) SendCancel(ticker types.TickerId, clientOrderId types.ClientOrderId) error {
	return c.send(wire.ClientRequest{
		Type:          wire.RequestCancel,
		ClientId:      c.clientId,
		TickerId:      ticker,
		ClientOrderId: clientOrderId,
	})
}

func (c *Client) send(req wire.ClientRequest) error {
	req.NSeq = c.txNSeq.Add(1) - 1
	buf := make([]byte, requestFrameSize)
	if err := req.Encode(buf); err != nil {
		return err
	}
	_, err := c.conn.Write(buf)
	return err
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	frame := make([]byte, responseFrameSize)
	for c.running.Load() {
		c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if _, err := io.ReadFull(c.conn, frame); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		var resp wire.ClientResponse
		if err := resp.Decode(frame); err != nil {
			c.logger.Warn("gateway client: decode error: %v", err)
			continue
		}
		if resp.NSeq != c.expectedRxNext {
			c.logger.Warn("gateway client: response n_seq=%d expected=%d, discarding", resp.NSeq, c.expectedRxNext)
			continue
		}
		c.expectedRxNext++

		if c.responses.Full() {
			c.logger.Fatal("gateway client: response ring overflow")
			return
		}
		*c.responses.NextWrite() = resp
		c.responses.CommitWrite()
	}
}

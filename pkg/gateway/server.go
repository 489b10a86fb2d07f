// Package gateway implements the order gateway server and client: the
// TCP boundary between client processes and the matching engine.
package gateway

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/xchange/pkg/netutil"
	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/sequencer"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// requestFrameSize/responseFrameSize are the full on-wire frame sizes.
// wire.ClientRequestWireSize/ClientResponseWireSize already account for
// the leading 8-byte n_seq: NSeq is the first field each struct
// encodes, so no separate prefix is added on top.
const requestFrameSize = wire.ClientRequestWireSize
const responseFrameSize = wire.ClientResponseWireSize

// Server is the order gateway server. Each connected socket is read by
// its own goroutine (Go's substitute for a single poll() loop across
// sockets); all goroutines push decoded requests into one sequencer
// guarded by a mutex, and a ticker-driven loop still calls
// SequenceAndPublish exactly once per poll iteration, preserving total
// ordering across all client sockets within one batch.
type Server struct {
	listener *net.TCPListener
	seq      *sequencer.FIFOSequencer
	responses *ring.Ring[wire.ClientResponse]
	logger   log.Logger

	pollInterval time.Duration

	mu             sync.Mutex
	socketByClient map[types.ClientId]*net.TCPConn
	expectedRxNext map[types.ClientId]uint64
	txNSeq         map[types.ClientId]uint64

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer binds addr and constructs a Server publishing sequenced
// requests through seq and draining responses from responses.
func NewServer(addr string, seq *sequencer.FIFOSequencer, responses *ring.Ring[wire.ClientResponse], logger log.Logger) (*Server, error) {
	ln, err := netutil.ListenTCP(addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:       ln,
		seq:            seq,
		responses:      responses,
		logger:         logger,
		pollInterval:   time.Millisecond,
		socketByClient: make(map[types.ClientId]*net.TCPConn),
		expectedRxNext: make(map[types.ClientId]uint64),
		txNSeq:         make(map[types.ClientId]uint64),
	}, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Start spins the accept loop and the poll/drain loop.
func (s *Server) Start() {
	s.running.Store(true)
	s.wg.Add(2)
	go s.acceptLoop()
	go s.pollLoop()
}

// Stop closes the listener and joins all server goroutines. Per-connection
// reader goroutines exit on their own once their socket errors out.
func (s *Server) Stop() {
	s.running.Store(false)
	s.listener.Close()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.logger.Warn("gateway: accept error: %v", err)
			continue
		}
		tcpConn := conn.(*net.TCPConn)
		if err := netutil.SetNoDelay(tcpConn); err != nil {
			s.logger.Warn("gateway: set no-delay: %v", err)
		}
		go s.connLoop(tcpConn)
	}
}

// connLoop peels fixed framed requests {n_seq:u64, ClientRequest} from
// one client socket.
func (s *Server) connLoop(conn *net.TCPConn) {
	frame := make([]byte, requestFrameSize)
	for s.running.Load() {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if _, err := io.ReadFull(conn, frame); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.forgetSocket(conn) // socket errors forget the client->socket mapping
			return
		}
		rxTime := time.Now().UnixNano()

		var req wire.ClientRequest
		if err := req.Decode(frame); err != nil {
			s.logger.Warn("gateway: decode error: %v", err)
			continue
		}
		req.RxTime = types.Nanos(rxTime)
		s.handleRequest(conn, req, rxTime)
	}
}

// handleRequest applies per-client bookkeeping: the first request from
// a client_id binds the socket; a later request on a different socket
// is discarded; an out-of-order n_seq is discarded without advancing.
func (s *Server) handleRequest(conn *net.TCPConn, req wire.ClientRequest, rxTime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.socketByClient[req.ClientId]; ok {
		if existing != conn {
			s.logger.Warn("gateway: client %d sent on a new socket, discarding", req.ClientId)
			return
		}
	} else {
		s.socketByClient[req.ClientId] = conn
	}

	expected := s.expectedRxNext[req.ClientId]
	if req.NSeq != expected {
		s.logger.Warn("gateway: client %d n_seq=%d expected=%d, discarding", req.ClientId, req.NSeq, expected)
		return
	}
	s.expectedRxNext[req.ClientId] = expected + 1
	s.seq.Push(req, rxTime)
}

func (s *Server) forgetSocket(conn *net.TCPConn) {
	conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for cid, c := range s.socketByClient {
		if c == conn {
			delete(s.socketByClient, cid)
		}
	}
}

// pollLoop calls SequenceAndPublish exactly once per tick and then
// drains the outbound response ring.
func (s *Server) pollLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for s.running.Load() {
		<-ticker.C
		s.mu.Lock()
		s.seq.SequenceAndPublish()
		s.mu.Unlock()
		s.drainResponses()
	}
}

func (s *Server) drainResponses() {
	for {
		r := s.responses.NextRead()
		if r == nil {
			return
		}
		resp := *r
		s.responses.CommitRead()

		s.mu.Lock()
		conn, ok := s.socketByClient[resp.ClientId]
		nSeq := s.txNSeq[resp.ClientId]
		s.txNSeq[resp.ClientId] = nSeq + 1
		s.mu.Unlock()

		if !ok {
			s.logger.Warn("gateway: no socket for client %d, dropping response", resp.ClientId)
			continue
		}
		resp.NSeq = nSeq

		buf := make([]byte, responseFrameSize)
		if err := resp.Encode(buf); err != nil {
			s.logger.Error("gateway: encode response: %v", err)
			continue
		}
		if _, err := conn.Write(buf); err != nil {
			s.logger.Warn("gateway: write response to client %d: %v", resp.ClientId, err)
		}
	}
}

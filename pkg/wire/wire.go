// Package wire defines the on-wire request/response/market-update
// layouts and their bit-packed, 1-byte-aligned, little-endian
// encodings. These structs also serve as the in-process message types
// passed along every pkg/ring between components — the exchange never
// has a second, richer internal representation that must be translated
// at the edge.
//
// Encoding uses manual encoding/binary.LittleEndian field-by-field
// packing rather than a reflection-based codec, since the layouts here
// are fixed and performance sensitive.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/xchange/pkg/types"
)

// RequestType enumerates OMEClientRequest.Type.
type RequestType uint8

const (
	RequestInvalid RequestType = 0
	RequestNew     RequestType = 1
	RequestCancel  RequestType = 2
)

// ClientRequest is a NEW or CANCEL request from a client, prefixed on
// the wire by an 8-byte n_seq.
type ClientRequest struct {
	NSeq          uint64
	Type          RequestType
	ClientId      types.ClientId
	TickerId      types.TickerId
	ClientOrderId types.ClientOrderId
	Side          types.Side
	Price         types.Price
	Qty           types.Qty

	// RxTime is the receive time the order gateway stamps with time.Now
	// once the frame's read completes (not a kernel timestamp), used only
	// in-process by the FIFO sequencer; it is never put on the wire.
	RxTime types.Nanos
}

// ClientRequestWireSize is the encoded size in bytes: n_seq(8) + type(1) +
// client_id(4) + ticker_id(4) + order_id(8) + side(1) + price(8) + qty(4).
const ClientRequestWireSize = 8 + 1 + 4 + 4 + 8 + 1 + 8 + 4

// Encode writes the wire layout of r (excluding RxTime, which is
// process-local) into buf, which must be at least ClientRequestWireSize
// bytes.
func (r *ClientRequest) Encode(buf []byte) error {
	if len(buf) < ClientRequestWireSize {
		return fmt.Errorf("wire: buffer too small for ClientRequest")
	}
	binary.LittleEndian.PutUint64(buf[0:], r.NSeq)
	buf[8] = byte(r.Type)
	binary.LittleEndian.PutUint32(buf[9:], uint32(r.ClientId))
	binary.LittleEndian.PutUint32(buf[13:], uint32(r.TickerId))
	binary.LittleEndian.PutUint64(buf[17:], uint64(r.ClientOrderId))
	buf[25] = byte(r.Side)
	binary.LittleEndian.PutUint64(buf[26:], uint64(r.Price))
	binary.LittleEndian.PutUint32(buf[34:], uint32(r.Qty))
	return nil
}

// Decode reads the wire layout of r from buf.
func (r *ClientRequest) Decode(buf []byte) error {
	if len(buf) < ClientRequestWireSize {
		return fmt.Errorf("wire: buffer too small for ClientRequest")
	}
	r.NSeq = binary.LittleEndian.Uint64(buf[0:])
	r.Type = RequestType(buf[8])
	r.ClientId = types.ClientId(binary.LittleEndian.Uint32(buf[9:]))
	r.TickerId = types.TickerId(binary.LittleEndian.Uint32(buf[13:]))
	r.ClientOrderId = types.ClientOrderId(binary.LittleEndian.Uint64(buf[17:]))
	r.Side = types.Side(int8(buf[25]))
	r.Price = types.Price(binary.LittleEndian.Uint64(buf[26:]))
	r.Qty = types.Qty(binary.LittleEndian.Uint32(buf[34:]))
	return nil
}

// ResponseType enumerates OMEClientResponse.Type.
type ResponseType uint8

const (
	ResponseInvalid        ResponseType = 0
	ResponseAccepted       ResponseType = 1
	ResponseCancelled      ResponseType = 2
	ResponseFilled         ResponseType = 3
	ResponseCancelRejected ResponseType = 4
)

func (t ResponseType) String() string {
	switch t {
	case ResponseAccepted:
		return "ACCEPTED"
	case ResponseCancelled:
		return "CANCELLED"
	case ResponseFilled:
		return "FILLED"
	case ResponseCancelRejected:
		return "CANCEL_REJECTED"
	default:
		return "INVALID"
	}
}

// ClientResponse is the exchange's response to a ClientRequest,
// prefixed on the wire by an 8-byte n_seq.
type ClientResponse struct {
	NSeq          uint64
	Type          ResponseType
	ClientId      types.ClientId
	TickerId      types.TickerId
	ClientOrderId types.ClientOrderId
	MarketOrderId types.OrderId
	Side          types.Side
	Price         types.Price
	QtyExec       types.Qty
	QtyRemain     types.Qty
}

// ClientResponseWireSize is the encoded size in bytes.
const ClientResponseWireSize = 8 + 1 + 4 + 4 + 8 + 8 + 1 + 8 + 4 + 4

// Encode writes the wire layout of r into buf.
func (r *ClientResponse) Encode(buf []byte) error {
	if len(buf) < ClientResponseWireSize {
		return fmt.Errorf("wire: buffer too small for ClientResponse")
	}
	binary.LittleEndian.PutUint64(buf[0:], r.NSeq)
	buf[8] = byte(r.Type)
	binary.LittleEndian.PutUint32(buf[9:], uint32(r.ClientId))
	binary.LittleEndian.PutUint32(buf[13:], uint32(r.TickerId))
	binary.LittleEndian.PutUint64(buf[17:], uint64(r.ClientOrderId))
	binary.LittleEndian.PutUint64(buf[25:], uint64(r.MarketOrderId))
	buf[33] = byte(r.Side)
	binary.LittleEndian.PutUint64(buf[34:], uint64(r.Price))
	binary.LittleEndian.PutUint32(buf[42:], uint32(r.QtyExec))
	binary.LittleEndian.PutUint32(buf[46:], uint32(r.QtyRemain))
	return nil
}

// Decode reads the wire layout of r from buf.
func (r *ClientResponse) Decode(buf []byte) error {
	if len(buf) < ClientResponseWireSize {
		return fmt.Errorf("wire: buffer too small for ClientResponse")
	}
	r.NSeq = binary.LittleEndian.Uint64(buf[0:])
	r.Type = ResponseType(buf[8])
	r.ClientId = types.ClientId(binary.LittleEndian.Uint32(buf[9:]))
	r.TickerId = types.TickerId(binary.LittleEndian.Uint32(buf[13:]))
	r.ClientOrderId = types.ClientOrderId(binary.LittleEndian.Uint64(buf[17:]))
	r.MarketOrderId = types.OrderId(binary.LittleEndian.Uint64(buf[25:]))
	r.Side = types.Side(int8(buf[33]))
	r.Price = types.Price(binary.LittleEndian.Uint64(buf[34:]))
	r.QtyExec = types.Qty(binary.LittleEndian.Uint32(buf[42:]))
	r.QtyRemain = types.Qty(binary.LittleEndian.Uint32(buf[46:]))
	return nil
}

// UpdateType enumerates OMEMarketUpdate.Type.
type UpdateType uint8

const (
	UpdateInvalid       UpdateType = 0
	UpdateClear         UpdateType = 1
	UpdateAdd           UpdateType = 2
	UpdateModify        UpdateType = 3
	UpdateCancel        UpdateType = 4
	UpdateTrade         UpdateType = 5
	UpdateSnapshotStart UpdateType = 6
	UpdateSnapshotEnd   UpdateType = 7
)

func (t UpdateType) String() string {
	switch t {
	case UpdateClear:
		return "CLEAR"
	case UpdateAdd:
		return "ADD"
	case UpdateModify:
		return "MODIFY"
	case UpdateCancel:
		return "CANCEL"
	case UpdateTrade:
		return "TRADE"
	case UpdateSnapshotStart:
		return "SNAP_START"
	case UpdateSnapshotEnd:
		return "SNAP_END"
	default:
		return "INVALID"
	}
}

// MarketUpdate is one book-effect event disseminated to clients,
// prefixed on the wire by an 8-byte n_seq (the incremental sequence, or
// the local snapshot sequence, depending on which stream carries it —
// see pkg/marketdata).
type MarketUpdate struct {
	NSeq     uint64
	Type     UpdateType
	OrderId  types.OrderId
	TickerId types.TickerId
	Side     types.Side
	Price    types.Price
	Qty      types.Qty
	Priority types.Priority
}

// MarketUpdateWireSize is the encoded size in bytes.
const MarketUpdateWireSize = 8 + 1 + 8 + 4 + 1 + 8 + 4 + 8

// Encode writes the wire layout of u into buf.
func (u *MarketUpdate) Encode(buf []byte) error {
	if len(buf) < MarketUpdateWireSize {
		return fmt.Errorf("wire: buffer too small for MarketUpdate")
	}
	binary.LittleEndian.PutUint64(buf[0:], u.NSeq)
	buf[8] = byte(u.Type)
	binary.LittleEndian.PutUint64(buf[9:], uint64(u.OrderId))
	binary.LittleEndian.PutUint32(buf[17:], uint32(u.TickerId))
	buf[21] = byte(u.Side)
	binary.LittleEndian.PutUint64(buf[22:], uint64(u.Price))
	binary.LittleEndian.PutUint32(buf[30:], uint32(u.Qty))
	binary.LittleEndian.PutUint64(buf[34:], uint64(u.Priority))
	return nil
}

// Decode reads the wire layout of u from buf.
func (u *MarketUpdate) Decode(buf []byte) error {
	if len(buf) < MarketUpdateWireSize {
		return fmt.Errorf("wire: buffer too small for MarketUpdate")
	}
	u.NSeq = binary.LittleEndian.Uint64(buf[0:])
	u.Type = UpdateType(buf[8])
	u.OrderId = types.OrderId(binary.LittleEndian.Uint64(buf[9:]))
	u.TickerId = types.TickerId(binary.LittleEndian.Uint32(buf[17:]))
	u.Side = types.Side(int8(buf[21]))
	u.Price = types.Price(binary.LittleEndian.Uint64(buf[22:]))
	u.Qty = types.Qty(binary.LittleEndian.Uint32(buf[30:]))
	u.Priority = types.Priority(binary.LittleEndian.Uint64(buf[34:]))
	return nil
}

package net

import (
	"encoding/binary"
	"errors"

	"gungnir/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	MoveOrder
	ReduceOrder
	LogBook
)

// Message format constants.
const (
	BaseMessageHeaderLen  = 2
	NewOrderMessageLen    = 4 + 8 + 8 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 8
	CancelOrderMessageLen = 4 + 8 + 8
	MoveOrderMessageLen   = 4 + 8 + 8 + 8
	ReduceOrderMessageLen = 4 + 8 + 8 + 8
)

type Message interface {
	GetType() MessageType
}

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat, LogBook:
		return BaseMessage{TypeOf: typeOf}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case MoveOrder:
		return parseMoveOrder(msg)
	case ReduceOrder:
		return parseReduceOrder(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type NewOrderMessage struct {
	BaseMessage
	Symbol       uint32           // 4 bytes
	UID          uint64           // 8 bytes
	OrderID      uint64           // 8 bytes
	Side         common.Side      // 1 byte
	OrderType    common.OrderType // 1 byte
	Price        int64            // 8 bytes
	ReservePrice int64            // 8 bytes
	StopPrice    int64            // 8 bytes
	Size         uint64           // 8 bytes
	VisibleSize  uint64           // 8 bytes
	ExpireTime   uint64           // 8 bytes
}

// Command converts the wire message into the engine's command form. The
// gateway stamps the timestamp at admission.
func (m NewOrderMessage) Command(timestamp uint64) common.OrderCommand {
	action := common.ActionBid
	if m.Side == common.Ask {
		action = common.ActionAsk
	}
	return common.OrderCommand{
		UID:          m.UID,
		OrderID:      m.OrderID,
		Symbol:       m.Symbol,
		Action:       action,
		OrderType:    m.OrderType,
		Side:         m.Side,
		Price:        m.Price,
		ReservePrice: m.ReservePrice,
		StopPrice:    m.StopPrice,
		Size:         m.Size,
		VisibleSize:  m.VisibleSize,
		ExpireTime:   m.ExpireTime,
		Timestamp:    timestamp,
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.Symbol = binary.BigEndian.Uint32(msg[0:4])
	m.UID = binary.BigEndian.Uint64(msg[4:12])
	m.OrderID = binary.BigEndian.Uint64(msg[12:20])
	m.Side = common.Side(msg[20])
	m.OrderType = common.OrderType(msg[21])
	m.Price = int64(binary.BigEndian.Uint64(msg[22:30]))
	m.ReservePrice = int64(binary.BigEndian.Uint64(msg[30:38]))
	m.StopPrice = int64(binary.BigEndian.Uint64(msg[38:46]))
	m.Size = binary.BigEndian.Uint64(msg[46:54])
	m.VisibleSize = binary.BigEndian.Uint64(msg[54:62])
	m.ExpireTime = binary.BigEndian.Uint64(msg[62:70])
	return m, nil
}

// SerializeNewOrder builds the wire frame for a new order; the client uses
// this to place orders.
func SerializeNewOrder(m NewOrderMessage) []byte {
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	binary.BigEndian.PutUint32(buf[2:6], m.Symbol)
	binary.BigEndian.PutUint64(buf[6:14], m.UID)
	binary.BigEndian.PutUint64(buf[14:22], m.OrderID)
	buf[22] = byte(m.Side)
	buf[23] = byte(m.OrderType)
	binary.BigEndian.PutUint64(buf[24:32], uint64(m.Price))
	binary.BigEndian.PutUint64(buf[32:40], uint64(m.ReservePrice))
	binary.BigEndian.PutUint64(buf[40:48], uint64(m.StopPrice))
	binary.BigEndian.PutUint64(buf[48:56], m.Size)
	binary.BigEndian.PutUint64(buf[56:64], m.VisibleSize)
	binary.BigEndian.PutUint64(buf[64:72], m.ExpireTime)
	return buf
}

type CancelOrderMessage struct {
	BaseMessage
	Symbol  uint32 // 4 bytes
	UID     uint64 // 8 bytes
	OrderID uint64 // 8 bytes
}

func (m CancelOrderMessage) Command(timestamp uint64) common.OrderCommand {
	return common.OrderCommand{
		UID:       m.UID,
		OrderID:   m.OrderID,
		Symbol:    m.Symbol,
		Action:    common.ActionCancel,
		Timestamp: timestamp,
	}
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}

	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	m.Symbol = binary.BigEndian.Uint32(msg[0:4])
	m.UID = binary.BigEndian.Uint64(msg[4:12])
	m.OrderID = binary.BigEndian.Uint64(msg[12:20])
	return m, nil
}

func SerializeCancelOrder(m CancelOrderMessage) []byte {
	buf := make([]byte, BaseMessageHeaderLen+CancelOrderMessageLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint32(buf[2:6], m.Symbol)
	binary.BigEndian.PutUint64(buf[6:14], m.UID)
	binary.BigEndian.PutUint64(buf[14:22], m.OrderID)
	return buf
}

type MoveOrderMessage struct {
	BaseMessage
	Symbol   uint32 // 4 bytes
	UID      uint64 // 8 bytes
	OrderID  uint64 // 8 bytes
	NewPrice int64  // 8 bytes
}

func (m MoveOrderMessage) Command(timestamp uint64) common.OrderCommand {
	return common.OrderCommand{
		UID:       m.UID,
		OrderID:   m.OrderID,
		Symbol:    m.Symbol,
		Action:    common.ActionMove,
		Price:     m.NewPrice,
		Timestamp: timestamp,
	}
}

func parseMoveOrder(msg []byte) (MoveOrderMessage, error) {
	if len(msg) < MoveOrderMessageLen {
		return MoveOrderMessage{}, ErrMessageTooShort
	}

	m := MoveOrderMessage{BaseMessage: BaseMessage{TypeOf: MoveOrder}}
	m.Symbol = binary.BigEndian.Uint32(msg[0:4])
	m.UID = binary.BigEndian.Uint64(msg[4:12])
	m.OrderID = binary.BigEndian.Uint64(msg[12:20])
	m.NewPrice = int64(binary.BigEndian.Uint64(msg[20:28]))
	return m, nil
}

func SerializeMoveOrder(m MoveOrderMessage) []byte {
	buf := make([]byte, BaseMessageHeaderLen+MoveOrderMessageLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(MoveOrder))
	binary.BigEndian.PutUint32(buf[2:6], m.Symbol)
	binary.BigEndian.PutUint64(buf[6:14], m.UID)
	binary.BigEndian.PutUint64(buf[14:22], m.OrderID)
	binary.BigEndian.PutUint64(buf[22:30], uint64(m.NewPrice))
	return buf
}

type ReduceOrderMessage struct {
	BaseMessage
	Symbol  uint32 // 4 bytes
	UID     uint64 // 8 bytes
	OrderID uint64 // 8 bytes
	Delta   uint64 // 8 bytes
}

func (m ReduceOrderMessage) Command(timestamp uint64) common.OrderCommand {
	return common.OrderCommand{
		UID:       m.UID,
		OrderID:   m.OrderID,
		Symbol:    m.Symbol,
		Action:    common.ActionReduce,
		Size:      m.Delta,
		Timestamp: timestamp,
	}
}

func parseReduceOrder(msg []byte) (ReduceOrderMessage, error) {
	if len(msg) < ReduceOrderMessageLen {
		return ReduceOrderMessage{}, ErrMessageTooShort
	}

	m := ReduceOrderMessage{BaseMessage: BaseMessage{TypeOf: ReduceOrder}}
	m.Symbol = binary.BigEndian.Uint32(msg[0:4])
	m.UID = binary.BigEndian.Uint64(msg[4:12])
	m.OrderID = binary.BigEndian.Uint64(msg[12:20])
	m.Delta = binary.BigEndian.Uint64(msg[20:28])
	return m, nil
}

func SerializeReduceOrder(m ReduceOrderMessage) []byte {
	buf := make([]byte, BaseMessageHeaderLen+ReduceOrderMessageLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ReduceOrder))
	binary.BigEndian.PutUint32(buf[2:6], m.Symbol)
	binary.BigEndian.PutUint64(buf[6:14], m.UID)
	binary.BigEndian.PutUint64(buf[14:22], m.OrderID)
	binary.BigEndian.PutUint64(buf[22:30], m.Delta)
	return buf
}

// Report is the wire form of one engine event, addressed to a session.
type Report struct {
	EventType    common.EventType // 1 byte
	Symbol       uint32           // 4 bytes
	MakerUID     uint64           // 8 bytes
	MakerOrderID uint64           // 8 bytes
	TakerUID     uint64           // 8 bytes
	TakerOrderID uint64           // 8 bytes
	UID          uint64           // 8 bytes
	OrderID      uint64           // 8 bytes
	Price        int64            // 8 bytes
	Size         uint64           // 8 bytes
	Remaining    uint64           // 8 bytes
	Reason       common.Reason    // 1 byte
	Timestamp    uint64           // 8 bytes
}

const ReportLen = 1 + 4 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 1 + 8

// SerializeReport converts an engine event to its wire frame.
func SerializeReport(symbol uint32, ev common.Event) []byte {
	buf := make([]byte, ReportLen)
	buf[0] = byte(ev.Type)
	binary.BigEndian.PutUint32(buf[1:5], symbol)
	binary.BigEndian.PutUint64(buf[5:13], ev.MakerUID)
	binary.BigEndian.PutUint64(buf[13:21], ev.MakerOrderID)
	binary.BigEndian.PutUint64(buf[21:29], ev.TakerUID)
	binary.BigEndian.PutUint64(buf[29:37], ev.TakerOrderID)
	binary.BigEndian.PutUint64(buf[37:45], ev.UID)
	binary.BigEndian.PutUint64(buf[45:53], ev.OrderID)
	binary.BigEndian.PutUint64(buf[53:61], uint64(ev.Price))
	binary.BigEndian.PutUint64(buf[61:69], ev.Size)
	binary.BigEndian.PutUint64(buf[69:77], ev.Remaining)
	buf[77] = byte(ev.Reason)
	binary.BigEndian.PutUint64(buf[78:86], ev.Timestamp)
	return buf
}

// ParseReport decodes a report frame; the client uses this to read
// execution reports off the wire.
func ParseReport(buf []byte) (Report, error) {
	if len(buf) < ReportLen {
		return Report{}, ErrMessageTooShort
	}
	return Report{
		EventType:    common.EventType(buf[0]),
		Symbol:       binary.BigEndian.Uint32(buf[1:5]),
		MakerUID:     binary.BigEndian.Uint64(buf[5:13]),
		MakerOrderID: binary.BigEndian.Uint64(buf[13:21]),
		TakerUID:     binary.BigEndian.Uint64(buf[21:29]),
		TakerOrderID: binary.BigEndian.Uint64(buf[29:37]),
		UID:          binary.BigEndian.Uint64(buf[37:45]),
		OrderID:      binary.BigEndian.Uint64(buf[45:53]),
		Price:        int64(binary.BigEndian.Uint64(buf[53:61])),
		Size:         binary.BigEndian.Uint64(buf[61:69]),
		Remaining:    binary.BigEndian.Uint64(buf[69:77]),
		Reason:       common.Reason(buf[77]),
		Timestamp:    binary.BigEndian.Uint64(buf[78:86]),
	}, nil
}

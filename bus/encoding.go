package bus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ParamSize is the encoded width of a Param:
// kind(1) + int(4) + strlen(1) + str(16).
const ParamSize = 6 + MaxParamString

// MessageSlotSize is the encoded width of one ring slot:
// receiver(1) + action(4) + sender(1) + param.
const MessageSlotSize = 6 + ParamSize

// ringHeaderSize is ringSize(2) + head(2) + count(2).
const ringHeaderSize = 6

// EncodedRingSize is the total size written by MessageQueue.Save.
const EncodedRingSize = ringHeaderSize + RingSize*MessageSlotSize

var (
	ErrRingSize    = errors.New("message ring size mismatch")
	ErrRingState   = errors.New("invalid message ring state")
	ErrParamKind   = errors.New("invalid message param kind")
	ErrParamLength = errors.New("invalid message param length")
)

// Save writes every slot of the ring, live or not, followed by nothing else.
// The layout is fixed-width little-endian so a save file can be resumed
// in the middle of a flush.
func (q *MessageQueue) Save(w io.Writer) error {
	q.mu.Lock()
	buf := make([]byte, EncodedRingSize)
	binary.LittleEndian.PutUint16(buf[0:], RingSize)
	binary.LittleEndian.PutUint16(buf[2:], uint16(q.head))
	binary.LittleEndian.PutUint16(buf[4:], uint16(q.count))
	for i := range q.ring {
		encodeMessage(buf[ringHeaderSize+i*MessageSlotSize:], q.ring[i])
	}
	q.mu.Unlock()

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing message ring: %w", err)
	}
	return nil
}

// Load replaces the ring with the one read from r. On error the queue is
// left exactly as it was.
func (q *MessageQueue) Load(r io.Reader) error {
	buf := make([]byte, EncodedRingSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("reading message ring: %w", err)
	}

	size := binary.LittleEndian.Uint16(buf[0:])
	if size != RingSize {
		return fmt.Errorf("%w: expected %d, got %d", ErrRingSize, RingSize, size)
	}
	head := int(binary.LittleEndian.Uint16(buf[2:]))
	count := int(binary.LittleEndian.Uint16(buf[4:]))
	if head >= RingSize || count > DefaultLimit {
		return fmt.Errorf("%w: head=%d count=%d", ErrRingState, head, count)
	}

	var ring [RingSize]Message
	for i := range ring {
		m, err := decodeMessage(buf[ringHeaderSize+i*MessageSlotSize:])
		if err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		ring[i] = m
	}

	q.mu.Lock()
	q.ring = ring
	q.head = head
	q.count = count
	q.mu.Unlock()
	return nil
}

func encodeMessage(buf []byte, m Message) {
	buf[0] = byte(m.Receiver)
	binary.LittleEndian.PutUint32(buf[1:], uint32(m.Action))
	buf[5] = byte(m.Sender)
	PutParam(buf[6:], m.Param)
}

func decodeMessage(buf []byte) (Message, error) {
	p, err := ReadParam(buf[6:])
	if err != nil {
		return Message{}, err
	}
	return Message{
		Receiver: CharacterID(buf[0]),
		Action:   Action(binary.LittleEndian.Uint32(buf[1:])),
		Sender:   CharacterID(buf[5]),
		Param:    p,
	}, nil
}

// PutParam encodes p into the first ParamSize bytes of buf.
func PutParam(buf []byte, p Param) {
	buf[0] = byte(p.Kind)
	binary.LittleEndian.PutUint32(buf[1:], uint32(p.Int))
	buf[5] = byte(len(p.Str))
	str := buf[6 : 6+MaxParamString]
	for i := range str {
		str[i] = 0
	}
	copy(str, p.Str)
}

// ReadParam decodes a Param written by PutParam.
func ReadParam(buf []byte) (Param, error) {
	var p Param
	p.Kind = ParamKind(buf[0])
	if p.Kind > ParamString {
		return Param{}, fmt.Errorf("%w: %d", ErrParamKind, buf[0])
	}
	p.Int = int32(binary.LittleEndian.Uint32(buf[1:]))
	n := int(buf[5])
	if n > MaxParamString {
		return Param{}, fmt.Errorf("%w: %d", ErrParamLength, n)
	}
	if n > 0 {
		p.Str = string(buf[6 : 6+n])
	}
	return p, nil
}

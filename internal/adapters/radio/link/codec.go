package link

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Op identifies a link frame. Replies echo the request op, or carry OpError.
type Op uint8

const (
	OpExchangeMTU Op = iota + 1
	OpWrite
	OpRead
	OpError
)

func (o Op) String() string {
	switch o {
	case OpExchangeMTU:
		return "mtu"
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpError:
		return "error"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

type Status uint8

const (
	StatusOK Status = iota
	StatusInvalidFrame
	StatusUnknownCharacteristic
	StatusNotPermitted
	StatusBusy
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidFrame:
		return "invalid frame"
	case StatusUnknownCharacteristic:
		return "unknown characteristic"
	case StatusNotPermitted:
		return "not permitted"
	case StatusBusy:
		return "write in progress"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Frame is the unit carried in one websocket binary message.
type Frame struct {
	ID             uint32 `cbor:"1,keyasint"`
	Op             Op     `cbor:"2,keyasint"`
	Characteristic string `cbor:"3,keyasint,omitempty"`
	Offset         int    `cbor:"4,keyasint,omitempty"`
	Value          []byte `cbor:"5,keyasint,omitempty"`
	MTU            int    `cbor:"6,keyasint,omitempty"`
	Status         Status `cbor:"7,keyasint,omitempty"`
	Message        string `cbor:"8,keyasint,omitempty"`
}

func (f Frame) Validate() error {
	switch f.Op {
	case OpExchangeMTU:
		if f.MTU <= 0 {
			return errors.New("mtu frame requires a positive mtu")
		}
	case OpWrite, OpRead:
		if f.Characteristic == "" {
			return fmt.Errorf("%s frame requires a characteristic", f.Op)
		}
	case OpError:
	default:
		return fmt.Errorf("unknown op %d", uint8(f.Op))
	}

	return nil
}

// FrameError is returned by the client when the peer answers with OpError.
type FrameError struct {
	Status  Status
	Message string
}

func (e *FrameError) Error() string {
	if e.Message == "" {
		return e.Status.String()
	}
	return e.Status.String() + ": " + e.Message
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

func EncodeFrame(f Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	return encMode.Marshal(f)
}

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := decMode.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("invalid frame: %w", err)
	}
	return f, nil
}

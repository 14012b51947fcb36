// Package protocol is the msgpack envelope exchanged between the websocket
// store and the tracking server.
package protocol

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/iburimskiy/sayyes/internal/tracking"
)

type Type string

const (
	TypeApply Type = "apply"
	TypeSub   Type = "sub"
	TypeUnsub Type = "unsub"
	TypeAck   Type = "ack"
	TypeSnap  Type = "snap"
	TypeErr   Type = "err"
)

// Envelope frames every message. Seq correlates an apply or sub with its ack
// or err; pushed snapshots carry Seq 0.
type Envelope struct {
	T   Type               `msgpack:"t"`
	Seq uint64             `msgpack:"seq,omitempty"`
	P   msgpack.RawMessage `msgpack:"p,omitempty"`
}

type Apply struct {
	ID string            `msgpack:"id"`
	M  tracking.Mutation `msgpack:"m"`
}

type Sub struct {
	ID string `msgpack:"id"`
}

type Ack struct {
	Record *tracking.Record `msgpack:"record"`
}

type Snap struct {
	ID     string           `msgpack:"id"`
	Record *tracking.Record `msgpack:"record"`
}

// Error codes let the client map failures back to tracking sentinels.
const (
	CodeInternal = "internal"
	CodeNotFound = "not_found"
	CodeInvalid  = "invalid"
)

type Err struct {
	Code    string `msgpack:"code"`
	Message string `msgpack:"message"`
}

// ErrFrom classifies a store error for the wire.
func ErrFrom(err error) Err {
	switch {
	case errors.Is(err, tracking.ErrNotFound):
		return Err{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, tracking.ErrInvalidOp), errors.Is(err, tracking.ErrEmptyID), errors.Is(err, tracking.ErrNegativeN):
		return Err{Code: CodeInvalid, Message: err.Error()}
	default:
		return Err{Code: CodeInternal, Message: err.Error()}
	}
}

// AsError turns a wire error back into an error, wrapping ErrNotFound where it
// applies.
func (e Err) AsError() error {
	if e.Code == CodeNotFound {
		return errors.Wrap(tracking.ErrNotFound, e.Message)
	}
	return errors.Errorf("remote %s: %s", e.Code, e.Message)
}

// Encode frames payload (which may be nil) under t and seq.
func Encode(t Type, seq uint64, payload any) ([]byte, error) {
	env := Envelope{T: t, Seq: seq}
	if payload != nil {
		raw, err := msgpack.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s payload", t)
		}
		env.P = raw
	}
	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s envelope", t)
	}
	return data, nil
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	if env.T == "" {
		return Envelope{}, errors.New("decode envelope: missing type")
	}
	return env, nil
}

func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, errors.Errorf("decode %s: empty payload", env.T)
	}
	if err := msgpack.Unmarshal(env.P, &out); err != nil {
		return out, errors.Wrapf(err, "decode %s payload", env.T)
	}
	return out, nil
}

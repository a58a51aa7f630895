package engine

import (
	"encoding/binary"
)

// enc is the byte order for every length and size field the engine writes,
// on disk and in the keydir. Kept as a package var the way the teacher's
// log package keeps a single `enc` for its length-prefixed store format.
var enc = binary.BigEndian

const lenWidth = 8

type commandKind uint8

const (
	cmdSet    commandKind = 1
	cmdRemove commandKind = 2
)

// command is the in-memory form of a persisted record: either Set{key,
// value} or Remove{key}.
type command struct {
	kind  commandKind
	key   string
	value string
}

func setCommand(key, value string) command {
	return command{kind: cmdSet, key: key, value: value}
}

func removeCommand(key string) command {
	return command{kind: cmdRemove, key: key}
}

// encodePayload serializes a command body: 1 byte kind, 4 byte key length,
// key bytes, and, for Set, 4 byte value length plus value bytes. This is
// the payload that goes inside a record's [length][payload] framing (see
// writer.go); it does not include the length prefix itself.
func encodePayload(cmd command) []byte {
	keyBytes := []byte(cmd.key)
	switch cmd.kind {
	case cmdSet:
		valBytes := []byte(cmd.value)
		buf := make([]byte, 1+4+len(keyBytes)+4+len(valBytes))
		buf[0] = byte(cmdSet)
		enc.PutUint32(buf[1:5], uint32(len(keyBytes)))
		copy(buf[5:5+len(keyBytes)], keyBytes)
		off := 5 + len(keyBytes)
		enc.PutUint32(buf[off:off+4], uint32(len(valBytes)))
		copy(buf[off+4:], valBytes)
		return buf
	default:
		buf := make([]byte, 1+4+len(keyBytes))
		buf[0] = byte(cmdRemove)
		enc.PutUint32(buf[1:5], uint32(len(keyBytes)))
		copy(buf[5:], keyBytes)
		return buf
	}
}

// decodePayload is the inverse of encodePayload. It returns
// ErrUnexpectedCommandKind if the leading tag byte is not a known kind,
// which the caller treats as on-disk corruption (or, during sequential
// recovery scans, as a torn tail).
func decodePayload(buf []byte) (command, error) {
	if len(buf) < 1 {
		return command{}, ErrUnexpectedCommandKind
	}
	kind := commandKind(buf[0])
	switch kind {
	case cmdSet:
		if len(buf) < 5 {
			return command{}, ErrUnexpectedCommandKind
		}
		keyLen := int(enc.Uint32(buf[1:5]))
		if len(buf) < 5+keyLen+4 {
			return command{}, ErrUnexpectedCommandKind
		}
		key := string(buf[5 : 5+keyLen])
		off := 5 + keyLen
		valLen := int(enc.Uint32(buf[off : off+4]))
		if len(buf) < off+4+valLen {
			return command{}, ErrUnexpectedCommandKind
		}
		value := string(buf[off+4 : off+4+valLen])
		return command{kind: cmdSet, key: key, value: value}, nil
	case cmdRemove:
		if len(buf) < 5 {
			return command{}, ErrUnexpectedCommandKind
		}
		keyLen := int(enc.Uint32(buf[1:5]))
		if len(buf) < 5+keyLen {
			return command{}, ErrUnexpectedCommandKind
		}
		return command{kind: cmdRemove, key: string(buf[5 : 5+keyLen])}, nil
	default:
		return command{}, ErrUnexpectedCommandKind
	}
}

// frame wraps an encoded payload with its 8 byte length prefix, the
// self-delimiting record format described in spec §4.1: given the
// (offset, size) of the whole frame, a reader can recover it in isolation.
func frame(payload []byte) []byte {
	out := make([]byte, lenWidth+len(payload))
	enc.PutUint64(out[:lenWidth], uint64(len(payload)))
	copy(out[lenWidth:], payload)
	return out
}

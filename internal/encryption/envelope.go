package encryption

import (
	"encoding/binary"

	"etcd-backup-agent/internal/errors"
)

// Envelope layout: a 4-byte big-endian wrapped-key length, the wrapped
// data key, a 12-byte nonce, then the ciphertext with its appended
// authentication tag. This is the one wire format the agent owns; any
// deviation on decode is a corruption error, never a partial read.

const (
	envelopeHeaderSize = 4
	envelopeNonceSize  = 12

	// maxWrappedKeySize bounds the declared key length against absurd
	// values before any allocation happens.
	maxWrappedKeySize = 64 * 1024
)

// envelope is the decoded form of the KMS backend's file format
type envelope struct {
	WrappedKey []byte
	Nonce      []byte
	Ciphertext []byte
}

// encodeEnvelope serializes an envelope into its binary layout
func encodeEnvelope(env *envelope) []byte {
	buf := make([]byte, 0, envelopeHeaderSize+len(env.WrappedKey)+len(env.Nonce)+len(env.Ciphertext))

	var header [envelopeHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(env.WrappedKey)))

	buf = append(buf, header[:]...)
	buf = append(buf, env.WrappedKey...)
	buf = append(buf, env.Nonce...)
	buf = append(buf, env.Ciphertext...)
	return buf
}

// decodeEnvelope parses the binary layout, validating every length
// field against the actual data size.
func decodeEnvelope(data []byte) (*envelope, error) {
	if len(data) < envelopeHeaderSize {
		return nil, errors.NewCorruptionError("envelope too short for key length header", nil)
	}

	keyLen := binary.BigEndian.Uint32(data[:envelopeHeaderSize])
	if keyLen == 0 || keyLen > maxWrappedKeySize {
		return nil, errors.NewCorruptionError("envelope declares an implausible wrapped key length", nil).
			WithContext("declared_length", keyLen)
	}
	if uint64(len(data)) < uint64(envelopeHeaderSize)+uint64(keyLen)+envelopeNonceSize {
		return nil, errors.NewCorruptionError("envelope shorter than its declared wrapped key and nonce", nil).
			WithContext("declared_length", keyLen).
			WithContext("actual_length", len(data))
	}

	offset := envelopeHeaderSize
	wrappedKey := data[offset : offset+int(keyLen)]
	offset += int(keyLen)
	nonce := data[offset : offset+envelopeNonceSize]
	offset += envelopeNonceSize

	return &envelope{
		WrappedKey: wrappedKey,
		Nonce:      nonce,
		Ciphertext: data[offset:],
	}, nil
}

package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/pkg/errors"
)

// HashSize is the size of every digest in the chain: block and transaction
// full hashes, payload hashes and generation signatures.
const HashSize = 32

// PublicKeySize is the size of a serialized Schnorr public key.
const PublicKeySize = 32

// SignatureSize is the size of a serialized Schnorr signature.
const SignatureSize = 64

// Hash is a SHA-256 digest.
type Hash [HashSize]byte

// PublicKey is a serialized Schnorr public key.
type PublicKey [PublicKeySize]byte

// Signature is a serialized Schnorr signature.
type Signature [SignatureSize]byte

// String returns the Hash as the hexadecimal string of the hash.
func (hash Hash) String() string {
	return hex.EncodeToString(hash[:])
}

// IsZero returns true if every byte of the hash is zero.
func (hash Hash) IsZero() bool {
	return hash == Hash{}
}

// String returns the PublicKey as a hexadecimal string.
func (key PublicKey) String() string {
	return hex.EncodeToString(key[:])
}

// HashFromString parses a hexadecimal hash.
func HashFromString(s string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return hash, errors.WithStack(err)
	}
	if len(decoded) != HashSize {
		return hash, errors.Errorf("hash %s has length %d, expected %d", s, len(decoded), HashSize)
	}
	copy(hash[:], decoded)
	return hash, nil
}

// DigestBytes returns the SHA-256 digest of the concatenation of the
// given byte slices.
func DigestBytes(data ...[]byte) Hash {
	hasher := sha256.New()
	for _, d := range data {
		hasher.Write(d)
	}
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// IDFromHash derives a 64-bit identifier from the first eight bytes of a
// full hash, read as little endian.
func IDFromHash(hash Hash) uint64 {
	return binary.LittleEndian.Uint64(hash[:8])
}

// AccountID returns the account identifier controlled by the given
// public key.
func AccountID(publicKey PublicKey) uint64 {
	return IDFromHash(DigestBytes(publicKey[:]))
}

// IDToString formats an identifier the way it appears on the wire:
// an unsigned decimal string.
func IDToString(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// IDFromString parses an identifier from its unsigned decimal string.
func IDFromString(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed id %q", s)
	}
	return id, nil
}

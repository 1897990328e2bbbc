package miniscript

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// pubKeyLen is the length of a public key inside P2WSH, which are 33
	// byte compressed public keys.
	pubKeyLen = 33

	// pubKeyDataPushLen is the length of a public key data push in P2WSH,
	// which is 1+33 (1 byte for the VarInt encoding of 33).
	pubKeyDataPushLen = 34
)

// Key is the capability set the type checker, compiler and decompiler need
// from a public key.  Nothing else about a key's representation is assumed.
type Key interface {
	// String returns the text form accepted back by the KeyParser that
	// produced the key.
	String() string

	// SerializedLen is the number of bytes pushed for the key.
	SerializedLen() int

	// Serialize returns the bytes pushed for the key, or an error if the
	// key has no concrete public key behind it.
	Serialize() ([]byte, error)

	// Hash160 is the hash a pk_h fragment commits to.
	Hash160() [20]byte
}

// KeyParser turns a key argument of a text fragment into a Key.
type KeyParser func(s string) (Key, error)

// KeyDecoder turns a 33 byte push of a script into a Key.
type KeyDecoder func(b []byte) (Key, error)

// PubKey is a compressed secp256k1 public key.
type PubKey struct {
	key *btcec.PublicKey
}

// NewPubKey wraps a parsed public key.
func NewPubKey(key *btcec.PublicKey) PubKey {
	return PubKey{key: key}
}

// PublicKey returns the wrapped public key.
func (k PubKey) PublicKey() *btcec.PublicKey {
	return k.key
}

// String returns the hex encoding of the compressed key.
func (k PubKey) String() string {
	return hex.EncodeToString(k.key.SerializeCompressed())
}

// SerializedLen returns 33.
func (k PubKey) SerializedLen() int {
	return pubKeyLen
}

// Serialize returns the compressed encoding of the key.
func (k PubKey) Serialize() ([]byte, error) {
	return k.key.SerializeCompressed(), nil
}

// Hash160 returns RIPEMD160(SHA256(key)).
func (k PubKey) Hash160() [20]byte {
	var h [20]byte
	copy(h[:], btcutil.Hash160(k.key.SerializeCompressed()))
	return h
}

// ParsePubKey is a KeyParser accepting hex encoded compressed public keys.
func ParsePubKey(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key %q is not hex: %w", s, err)
	}
	return DecodePubKey(b)
}

// DecodePubKey is a KeyDecoder accepting compressed public keys.
func DecodePubKey(b []byte) (Key, error) {
	if len(b) != pubKeyLen {
		return nil, fmt.Errorf("key has length %d, expected a %d "+
			"byte compressed key", len(b), pubKeyLen)
	}
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return PubKey{key: key}, nil
}

// NamedKey is an abstract key known only by its name, e.g. the A in pk(A).
// It type checks like a compressed key but cannot be compiled.
type NamedKey string

// String returns the name.
func (k NamedKey) String() string {
	return string(k)
}

// SerializedLen returns 33, the length of the key the name stands for.
func (k NamedKey) SerializedLen() int {
	return pubKeyLen
}

// Serialize always fails.
func (k NamedKey) Serialize() ([]byte, error) {
	return nil, Error{
		Err:         ErrMissingKeyMaterial,
		Description: fmt.Sprintf("key %q has no public key", string(k)),
		Offset:      -1,
	}
}

// Hash160 returns the hash of the name, which stands in for the key hash.
func (k NamedKey) Hash160() [20]byte {
	var h [20]byte
	copy(h[:], btcutil.Hash160([]byte(k)))
	return h
}

// ParseNamedKey is a KeyParser accepting names made of letters, digits and
// underscores.
func ParseNamedKey(s string) (Key, error) {
	if s == "" {
		return nil, fmt.Errorf("empty key name")
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9', c == '_':
		default:
			return nil, fmt.Errorf("key name %q contains %q", s, c)
		}
	}
	return NamedKey(s), nil
}

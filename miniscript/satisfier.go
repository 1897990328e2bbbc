package miniscript

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/ripemd160"
)

// preimageLen is the only preimage size the hash fragments accept.
const preimageLen = 32

// Satisfier is the lookup table a witness builder consults for the secrets
// and transaction context a miniscript depends on.
type Satisfier interface {
	// Signature returns a signature for key, if one is available.
	Signature(key Key) ([]byte, bool)

	// PubKeyForHash returns the key committed to by a pk_h fragment.
	PubKeyForHash(hash [20]byte) (Key, bool)

	Sha256Preimage(hash [32]byte) ([]byte, bool)
	Hash256Preimage(hash [32]byte) ([]byte, bool)
	Ripemd160Preimage(hash [20]byte) ([]byte, bool)
	Hash160Preimage(hash [20]byte) ([]byte, bool)

	// CheckOlder reports whether an older fragment with the given relative
	// lock time is satisfied by the spending transaction.
	CheckOlder(lockTime uint32) bool

	// CheckAfter reports whether an after fragment with the given absolute
	// lock time is satisfied by the spending transaction.
	CheckAfter(lockTime uint32) bool
}

// TxContext is the part of the spending transaction the lock time checks
// depend on.
type TxContext struct {
	// Version is the version of the transaction being signed.
	Version uint32

	// LockTime is the nLockTime of the transaction being signed.
	LockTime uint32

	// Sequence is the sequence field of the input being signed.
	Sequence uint32
}

// MapSatisfier is a Satisfier backed by in-memory tables.
type MapSatisfier struct {
	Tx TxContext

	signatures map[string][]byte
	keys       []Key
	preimages  [][]byte
}

// NewMapSatisfier returns an empty satisfier for the given transaction.
func NewMapSatisfier(tx TxContext) *MapSatisfier {
	return &MapSatisfier{
		Tx:         tx,
		signatures: make(map[string][]byte),
	}
}

// AddSignature makes a signature for key available.  The key is also made
// available for pk_h lookups.
func (s *MapSatisfier) AddSignature(key Key, sig []byte) {
	if _, ok := s.signatures[key.String()]; !ok {
		s.keys = append(s.keys, key)
	}
	s.signatures[key.String()] = sig
}

// AddKey makes key available for pk_h lookups without a signature.
func (s *MapSatisfier) AddKey(key Key) {
	s.keys = append(s.keys, key)
}

// AddPreimage makes a preimage available to all four hash fragments.
func (s *MapSatisfier) AddPreimage(preimage []byte) {
	s.preimages = append(s.preimages, preimage)
}

func (s *MapSatisfier) Signature(key Key) ([]byte, bool) {
	sig, ok := s.signatures[key.String()]
	return sig, ok
}

func (s *MapSatisfier) PubKeyForHash(hash [20]byte) (Key, bool) {
	for _, key := range s.keys {
		if key.Hash160() == hash {
			return key, true
		}
	}
	return nil, false
}

// preimage returns the first 32 byte preimage whose hash under f is hash.
func (s *MapSatisfier) preimage(hash []byte,
	f func([]byte) []byte) ([]byte, bool) {

	for _, p := range s.preimages {
		if len(p) == preimageLen && bytes.Equal(f(p), hash) {
			return p, true
		}
	}
	return nil, false
}

func (s *MapSatisfier) Sha256Preimage(hash [32]byte) ([]byte, bool) {
	return s.preimage(hash[:], chainhash.HashB)
}

func (s *MapSatisfier) Hash256Preimage(hash [32]byte) ([]byte, bool) {
	return s.preimage(hash[:], chainhash.DoubleHashB)
}

func (s *MapSatisfier) Ripemd160Preimage(hash [20]byte) ([]byte, bool) {
	return s.preimage(hash[:], func(b []byte) []byte {
		h := ripemd160.New()
		h.Write(b)
		return h.Sum(nil)
	})
}

func (s *MapSatisfier) Hash160Preimage(hash [20]byte) ([]byte, bool) {
	return s.preimage(hash[:], btcutil.Hash160)
}

func (s *MapSatisfier) CheckOlder(lockTime uint32) bool {
	return s.Tx.Older(lockTime)
}

func (s *MapSatisfier) CheckAfter(lockTime uint32) bool {
	return s.Tx.After(lockTime)
}

// sameUnit reports whether a and b are on the same side of threshold, that is
// both heights or both times.
func sameUnit(a, b, threshold uint32) bool {
	return (a < threshold) == (b < threshold)
}

// Older reports whether an OP_CHECKSEQUENCEVERIFY of lockTime passes for
// the input.  Per BIP68 only the unit flag and the low 16 bits of either
// value are compared, and the input must not have relative lock times
// disabled.
func (tx TxContext) Older(lockTime uint32) bool {
	if tx.Version < 2 || tx.Sequence&wire.SequenceLockTimeDisabled != 0 {
		return false
	}

	const mask = wire.SequenceLockTimeIsSeconds | wire.SequenceLockTimeMask
	have, want := tx.Sequence&mask, lockTime&mask
	if !sameUnit(have, want, wire.SequenceLockTimeIsSeconds) {
		return false
	}
	return want <= have
}

// After reports whether an OP_CHECKLOCKTIMEVERIFY of lockTime passes for
// the transaction.  A final input sequence makes the opcode fail (BIP65).
func (tx TxContext) After(lockTime uint32) bool {
	if tx.Sequence == wire.MaxTxInSequenceNum {
		return false
	}
	if !sameUnit(tx.LockTime, lockTime, txscript.LockTimeThreshold) {
		return false
	}
	return lockTime <= tx.LockTime
}

// CanSatisfy reports whether s holds enough secrets and a suitable
// transaction for some satisfaction of m to exist.  Dissatisfactions are
// assumed to be available wherever the type allows them.
func (m *Miniscript) CanSatisfy(s Satisfier) bool {
	switch t := m.Node.(type) {
	case True:
		return true
	case False:
		return false
	case Pk:
		_, ok := s.Signature(t.Key)
		return ok
	case PkH:
		key, ok := s.PubKeyForHash(t.Hash)
		if !ok {
			return false
		}
		_, ok = s.Signature(key)
		return ok
	case After:
		return s.CheckAfter(t.LockTime)
	case Older:
		return s.CheckOlder(t.LockTime)
	case Sha256:
		_, ok := s.Sha256Preimage(t.Hash)
		return ok
	case Hash256:
		_, ok := s.Hash256Preimage(t.Hash)
		return ok
	case Ripemd160:
		_, ok := s.Ripemd160Preimage(t.Hash)
		return ok
	case Hash160:
		_, ok := s.Hash160Preimage(t.Hash)
		return ok

	case Alt:
		return t.Sub.CanSatisfy(s)
	case Swap:
		return t.Sub.CanSatisfy(s)
	case Check:
		return t.Sub.CanSatisfy(s)
	case DupIf:
		return t.Sub.CanSatisfy(s)
	case Verify:
		return t.Sub.CanSatisfy(s)
	case NonZero:
		return t.Sub.CanSatisfy(s)
	case ZeroNotEqual:
		return t.Sub.CanSatisfy(s)

	case AndV:
		return t.X.CanSatisfy(s) && t.Y.CanSatisfy(s)
	case AndB:
		return t.X.CanSatisfy(s) && t.Y.CanSatisfy(s)
	case AndOr:
		return t.X.CanSatisfy(s) && t.Y.CanSatisfy(s) ||
			t.Z.CanSatisfy(s)
	case OrB:
		return t.X.CanSatisfy(s) || t.Z.CanSatisfy(s)
	case OrD:
		return t.X.CanSatisfy(s) || t.Z.CanSatisfy(s)
	case OrC:
		return t.X.CanSatisfy(s) || t.Z.CanSatisfy(s)
	case OrI:
		return t.X.CanSatisfy(s) || t.Z.CanSatisfy(s)

	case Thresh:
		n := 0
		for _, sub := range t.Subs {
			if sub.CanSatisfy(s) {
				n++
			}
		}
		return n >= t.K
	case ThreshM:
		n := 0
		for _, key := range t.Keys {
			if _, ok := s.Signature(key); ok {
				n++
			}
		}
		return n >= t.K
	}
	return false
}

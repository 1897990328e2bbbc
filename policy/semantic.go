package policy

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/miniscript/miniscript"
)

// SemanticKind identifies the variant of a Semantic policy.
type SemanticKind uint8

// These constants define the semantic policy variants.
const (
	// SemanticUnsatisfiable can never be satisfied.
	SemanticUnsatisfiable SemanticKind = iota

	// SemanticTrivial is always satisfied.
	SemanticTrivial

	// SemanticKey requires a signature by Key.
	SemanticKey

	// SemanticKeyHash requires a signature by a key hashing to KeyHash.
	SemanticKeyHash

	// SemanticAfter requires an absolute lock time of LockTime.
	SemanticAfter

	// SemanticOlder requires a relative lock time of LockTime.
	SemanticOlder

	// SemanticSha256 requires the SHA256 preimage of Hash.
	SemanticSha256

	// SemanticHash256 requires the double SHA256 preimage of Hash.
	SemanticHash256

	// SemanticRipemd160 requires the RIPEMD160 preimage of Hash.
	SemanticRipemd160

	// SemanticHash160 requires the RIPEMD160(SHA256) preimage of Hash.
	SemanticHash160

	// SemanticThreshold requires K of Subs.
	SemanticThreshold
)

var semanticNames = map[SemanticKind]string{
	SemanticUnsatisfiable: "UNSATISFIABLE",
	SemanticTrivial:       "TRIVIAL",
	SemanticKey:           "pk",
	SemanticKeyHash:       "pkh",
	SemanticAfter:         "after",
	SemanticOlder:         "older",
	SemanticSha256:        "sha256",
	SemanticHash256:       "hash256",
	SemanticRipemd160:     "ripemd160",
	SemanticHash160:       "hash160",
	SemanticThreshold:     "thresh",
}

// String returns the SemanticKind as a human-readable name.
func (k SemanticKind) String() string {
	if s, ok := semanticNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown SemanticKind (%d)", uint8(k))
}

// Semantic is the spending condition of a script reduced to keys, lock
// times, hash locks and thresholds over them.  It forgets how a script
// enforces the condition and is what auditing compares.
type Semantic struct {
	Kind SemanticKind

	// Key is set for SemanticKey.
	Key miniscript.Key

	// KeyHash is set for SemanticKeyHash.
	KeyHash [20]byte

	// LockTime is set for SemanticAfter and SemanticOlder.
	LockTime uint32

	// Hash is set for the four hash locks.
	Hash []byte

	// K and Subs are set for SemanticThreshold.
	K    int
	Subs []*Semantic
}

// NewThreshold returns a semantic threshold of k out of subs.
func NewThreshold(k int, subs ...*Semantic) *Semantic {
	return &Semantic{Kind: SemanticThreshold, K: k, Subs: subs}
}

var (
	unsatisfiable = &Semantic{Kind: SemanticUnsatisfiable}
	trivial       = &Semantic{Kind: SemanticTrivial}
)

// String renders the policy.  A threshold requiring all of its branches
// prints as and(...) and one requiring a single branch as or(...).
func (p *Semantic) String() string {
	var b strings.Builder
	p.write(&b)
	return b.String()
}

func (p *Semantic) write(b *strings.Builder) {
	switch p.Kind {
	case SemanticUnsatisfiable, SemanticTrivial:
		b.WriteString(p.Kind.String())

	case SemanticKey:
		fmt.Fprintf(b, "pk(%s)", p.Key)

	case SemanticKeyHash:
		fmt.Fprintf(b, "pkh(%x)", p.KeyHash[:])

	case SemanticAfter, SemanticOlder:
		fmt.Fprintf(b, "%s(%d)", p.Kind, p.LockTime)

	case SemanticSha256, SemanticHash256, SemanticRipemd160,
		SemanticHash160:

		fmt.Fprintf(b, "%s(%s)", p.Kind, hex.EncodeToString(p.Hash))

	case SemanticThreshold:
		switch {
		case p.K == len(p.Subs):
			b.WriteString("and(")
		case p.K == 1:
			b.WriteString("or(")
		default:
			fmt.Fprintf(b, "thresh(%d,", p.K)
		}
		for i, sub := range p.Subs {
			if i > 0 {
				b.WriteByte(',')
			}
			sub.write(b)
		}
		b.WriteByte(')')
	}
}

// Normalized returns an equivalent policy with nested conjunctions and
// disjunctions flattened into their parents, trivial and unsatisfiable
// branches folded away and single branch thresholds replaced by the branch.
func (p *Semantic) Normalized() *Semantic {
	if p.Kind != SemanticThreshold {
		return p
	}

	isAnd := p.K == len(p.Subs)
	isOr := p.K == 1

	k := p.K
	subs := make([]*Semantic, 0, len(p.Subs))
	for _, sub := range p.Subs {
		n := sub.Normalized()
		switch {
		case n.Kind == SemanticTrivial:
			k--

		case n.Kind == SemanticUnsatisfiable:

		case n.Kind == SemanticThreshold && isAnd &&
			n.K == len(n.Subs):

			subs = append(subs, n.Subs...)
			k += len(n.Subs) - 1

		case n.Kind == SemanticThreshold && isOr && n.K == 1:
			subs = append(subs, n.Subs...)

		default:
			subs = append(subs, n)
		}
	}

	switch {
	case k <= 0:
		return trivial
	case k > len(subs):
		return unsatisfiable
	case len(subs) == 1:
		return subs[0]
	}
	return NewThreshold(k, subs...)
}

// Sorted returns the policy with the branches of every threshold in a
// canonical order, so that policies differing only in branch order compare
// equal by their string form.
func (p *Semantic) Sorted() *Semantic {
	if p.Kind != SemanticThreshold {
		return p
	}
	subs := make([]*Semantic, len(p.Subs))
	for i, sub := range p.Subs {
		subs[i] = sub.Sorted()
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].String() < subs[j].String()
	})
	return NewThreshold(p.K, subs...)
}

// walk calls f on p and every policy below it.
func (p *Semantic) walk(f func(*Semantic)) {
	f(p)
	for _, sub := range p.Subs {
		sub.walk(f)
	}
}

// Keys returns the keys of the policy in order of appearance.
func (p *Semantic) Keys() []miniscript.Key {
	var keys []miniscript.Key
	p.walk(func(s *Semantic) {
		if s.Kind == SemanticKey {
			keys = append(keys, s.Key)
		}
	})
	return keys
}

// NKeys returns the number of key and key hash leaves of the policy.
func (p *Semantic) NKeys() int {
	var n int
	p.walk(func(s *Semantic) {
		if s.Kind == SemanticKey || s.Kind == SemanticKeyHash {
			n++
		}
	})
	return n
}

// MinimumNKeys returns the smallest number of signatures any satisfaction
// of the policy needs, or -1 if it cannot be satisfied.
func (p *Semantic) MinimumNKeys() int {
	switch p.Kind {
	case SemanticUnsatisfiable:
		return -1

	case SemanticKey, SemanticKeyHash:
		return 1

	case SemanticThreshold:
		var counts []int
		for _, sub := range p.Subs {
			if n := sub.MinimumNKeys(); n >= 0 {
				counts = append(counts, n)
			}
		}
		if len(counts) < p.K {
			return -1
		}
		sort.Ints(counts)
		var total int
		for _, n := range counts[:p.K] {
			total += n
		}
		return total
	}
	return 0
}

// RelativeTimeLocks returns the distinct older values of the policy in
// ascending order.
func (p *Semantic) RelativeTimeLocks() []uint32 {
	return p.timeLocks(SemanticOlder)
}

// AbsoluteTimeLocks returns the distinct after values of the policy in
// ascending order.
func (p *Semantic) AbsoluteTimeLocks() []uint32 {
	return p.timeLocks(SemanticAfter)
}

func (p *Semantic) timeLocks(kind SemanticKind) []uint32 {
	seen := make(map[uint32]struct{})
	var locks []uint32
	p.walk(func(s *Semantic) {
		if s.Kind != kind {
			return
		}
		if _, ok := seen[s.LockTime]; !ok {
			seen[s.LockTime] = struct{}{}
			locks = append(locks, s.LockTime)
		}
	})
	sort.Slice(locks, func(i, j int) bool { return locks[i] < locks[j] })
	return locks
}

// AtAge returns the policy as seen by a spend whose input has the relative
// lock time sequence: every older branch the sequence does not meet becomes
// unsatisfiable.  The result is normalized.
func (p *Semantic) AtAge(sequence uint32) *Semantic {
	return p.filterLocks(SemanticOlder, func(lock uint32) bool {
		return relativeLockMet(lock, sequence)
	})
}

// AtLockTime returns the policy as seen by a spend with the transaction
// lock time lockTime: every after branch it does not meet becomes
// unsatisfiable.  The result is normalized.
func (p *Semantic) AtLockTime(lockTime uint32) *Semantic {
	return p.filterLocks(SemanticAfter, func(lock uint32) bool {
		return absoluteLockMet(lock, lockTime)
	})
}

func (p *Semantic) filterLocks(kind SemanticKind,
	met func(uint32) bool) *Semantic {

	var filter func(*Semantic) *Semantic
	filter = func(s *Semantic) *Semantic {
		switch {
		case s.Kind == kind && !met(s.LockTime):
			return unsatisfiable

		case s.Kind == SemanticThreshold:
			subs := make([]*Semantic, len(s.Subs))
			for i, sub := range s.Subs {
				subs[i] = filter(sub)
			}
			return NewThreshold(s.K, subs...)
		}
		return s
	}
	return filter(p).Normalized()
}

// isTimeBasedOlder reports whether an older value counts in units of 512
// seconds rather than blocks.
func isTimeBasedOlder(lock uint32) bool {
	return lock&wire.SequenceLockTimeIsSeconds != 0
}

// isTimeBasedAfter reports whether an after value is a timestamp rather
// than a block height.
func isTimeBasedAfter(lock uint32) bool {
	return lock >= txscript.LockTimeThreshold
}

func relativeLockMet(lock, sequence uint32) bool {
	if isTimeBasedOlder(lock) != isTimeBasedOlder(sequence) {
		return false
	}
	const mask = wire.SequenceLockTimeMask
	return lock&mask <= sequence&mask
}

func absoluteLockMet(lock, lockTime uint32) bool {
	if isTimeBasedAfter(lock) != isTimeBasedAfter(lockTime) {
		return false
	}
	return lock <= lockTime
}

// timeLockInfo records which kinds of lock times a branch needs.
type timeLockInfo struct {
	olderHeight bool
	olderTime   bool
	afterHeight bool
	afterTime   bool

	// mixed is set when some satisfaction needs both units of the same
	// kind of lock.
	mixed bool
}

// and returns the requirements of satisfying both a and b.
func (a timeLockInfo) and(b timeLockInfo) timeLockInfo {
	return timeLockInfo{
		olderHeight: a.olderHeight || b.olderHeight,
		olderTime:   a.olderTime || b.olderTime,
		afterHeight: a.afterHeight || b.afterHeight,
		afterTime:   a.afterTime || b.afterTime,
		mixed: a.mixed || b.mixed ||
			(a.olderHeight && b.olderTime) ||
			(a.olderTime && b.olderHeight) ||
			(a.afterHeight && b.afterTime) ||
			(a.afterTime && b.afterHeight),
	}
}

// or returns the requirements of satisfying either a or b.
func (a timeLockInfo) or(b timeLockInfo) timeLockInfo {
	return timeLockInfo{
		olderHeight: a.olderHeight || b.olderHeight,
		olderTime:   a.olderTime || b.olderTime,
		afterHeight: a.afterHeight || b.afterHeight,
		afterTime:   a.afterTime || b.afterTime,
		mixed:       a.mixed || b.mixed,
	}
}

func (p *Semantic) timeLockInfo() timeLockInfo {
	switch p.Kind {
	case SemanticOlder:
		if isTimeBasedOlder(p.LockTime) {
			return timeLockInfo{olderTime: true}
		}
		return timeLockInfo{olderHeight: true}

	case SemanticAfter:
		if isTimeBasedAfter(p.LockTime) {
			return timeLockInfo{afterTime: true}
		}
		return timeLockInfo{afterHeight: true}

	case SemanticThreshold:
		var info timeLockInfo
		subs := make([]timeLockInfo, len(p.Subs))
		for i, sub := range p.Subs {
			subs[i] = sub.timeLockInfo()
			info = info.or(subs[i])
		}
		if p.K < 2 {
			return info
		}

		// Any two branches may be satisfied together.
		for i := range subs {
			for j := i + 1; j < len(subs); j++ {
				info.mixed = info.mixed || subs[i].and(subs[j]).mixed
			}
		}
		return info
	}
	return timeLockInfo{}
}

// CheckTimeLocks returns ErrMixedTimeLocks if some branch of the policy can
// only be satisfied by combining a height based and a time based lock of the
// same kind.
func (p *Semantic) CheckTimeLocks() error {
	if p.timeLockInfo().mixed {
		return policyError(ErrMixedTimeLocks, -1, "policy %v combines "+
			"height and time based lock times", p)
	}
	return nil
}

package core

// Block is re-architected per spec §9's design note: the source
// (original_source/btcb/lib/blocks.cpp) uses class inheritance with virtual
// dispatch for five block kinds; here it is a single tagged struct with
// per-kind fields left zero-valued when unused, and per-kind behaviour is a
// switch over Kind rather than a vtable. This keeps hashing, serialization,
// and predecessor validity as plain functions instead of methods needing a
// visitor.

import "fmt"

// Kind identifies which of the five block variants a Block carries. Values
// are stable wire tags (spec §9) inherited from the source's
// `block_type` enum and must never be renumbered.
type Kind byte

const (
	KindInvalid   Kind = 0
	KindNotABlock Kind = 1 // multi-vote payload marker, never a real block
	KindSend      Kind = 2
	KindReceive   Kind = 3
	KindOpen      Kind = 4
	KindChange    Kind = 5
	KindState     Kind = 6
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	case KindOpen:
		return "open"
	case KindChange:
		return "change"
	case KindState:
		return "state"
	case KindNotABlock:
		return "not_a_block"
	default:
		return "invalid"
	}
}

// Block is the tagged union of all five variants plus the signature/work
// common to every kind.
type Block struct {
	Kind Kind

	// send
	Previous    U256
	Destination Account
	Balance     U128

	// receive
	Source U256

	// open
	Representative Account
	OpenAccount    Account

	// change
	// (Previous, Representative shared with above)

	// state
	StateAccount U256
	StateLink    U256

	Signature Signature
	Work      Work
}

// legacyPredecessors is the set of block kinds that may legitimately
// precede another legacy (non-state) block, per spec §4.C step 3 ("send may
// follow send/receive/open/change, never state").
var legacyPredecessors = map[Kind]bool{
	KindSend:    true,
	KindReceive: true,
	KindOpen:    true,
	KindChange:  true,
}

// ValidPredecessor reports whether prevKind may immediately precede a block
// of kind k on the same account chain.
func ValidPredecessor(k Kind, prevKind Kind) bool {
	switch k {
	case KindSend, KindReceive, KindChange:
		return legacyPredecessors[prevKind]
	case KindState:
		// A state block may follow anything: it is the upgrade point from
		// legacy chains and may also continue an existing state chain.
		return true
	case KindOpen:
		// open has no previous; the caller never reaches this path for it.
		return false
	default:
		return false
	}
}

// Root returns the election fork key for this block: `previous` for every
// variant except `open` (and state-with-zero-previous), which roots on the
// account itself.
func (b *Block) Root() U256 {
	switch b.Kind {
	case KindOpen:
		return b.OpenAccount
	case KindState:
		if b.Previous.IsZero() {
			return b.StateAccount
		}
		return b.Previous
	default:
		return b.Previous
	}
}

// PreviousHash returns the hash of the predecessor block, or the zero hash
// for an open block / first state block.
func (b *Block) PreviousHash() U256 {
	if b.Kind == KindOpen {
		return U256{}
	}
	return b.Previous
}

// LinkOrSource returns the link (state) / source (receive, open) field used
// to find the matching pending entry. Zero for send and change.
func (b *Block) LinkOrSource() U256 {
	switch b.Kind {
	case KindReceive:
		return b.Source
	case KindOpen:
		return b.Source
	case KindState:
		return b.StateLink
	default:
		return U256{}
	}
}

// Account returns the account this block belongs to when that is
// determinable from the block alone (state and open blocks carry it
// directly; other kinds require the ledger to resolve it via `previous`).
func (b *Block) Account() (U256, bool) {
	switch b.Kind {
	case KindState:
		return b.StateAccount, true
	case KindOpen:
		return b.OpenAccount, true
	default:
		return U256{}, false
	}
}

// Hash computes the content hash over the variant-specific fields, per
// spec §3. State blocks prepend a 32-byte preamble equal to the variant tag
// to disambiguate their hash domain from the legacy variants
// (original_source/btcb/lib/blocks.cpp: `preamble(block_type::state)`).
func (b *Block) Hash() U256 {
	switch b.Kind {
	case KindSend:
		return blake2b256(b.Previous[:], b.Destination[:], b.Balance[:])
	case KindReceive:
		return blake2b256(b.Previous[:], b.Source[:])
	case KindOpen:
		return blake2b256(b.Source[:], b.Representative[:], b.OpenAccount[:])
	case KindChange:
		return blake2b256(b.Previous[:], b.Representative[:])
	case KindState:
		var preamble [32]byte
		preamble[31] = byte(KindState)
		return blake2b256(preamble[:], b.StateAccount[:], b.Previous[:], b.Representative[:], b.Balance[:], b.StateLink[:])
	default:
		return U256{}
	}
}

// FullHash folds Hash() with signature and work, per spec §3
// (`full_hash() = hash() ‖ signature ‖ work`). It is the key the block
// uniquer interns by.
func (b *Block) FullHash() U256 {
	return blake2b256(b.Hash().Bytes(), b.Signature[:], be64(uint64(b.Work)))
}

// Signer returns the account whose signature is expected over Hash(), per
// spec §4.C step 2: state and open blocks carry the account directly;
// other kinds are signed by the account that owns `previous`, which the
// ledger resolves by looking up the predecessor's account.
func (b *Block) Signer(ledgerAccountOfPrevious func(prev U256) (U256, bool)) (U256, bool) {
	if acc, ok := b.Account(); ok {
		return acc, true
	}
	return ledgerAccountOfPrevious(b.Previous)
}

func (b *Block) String() string {
	return fmt.Sprintf("%s(%s)", b.Kind, b.Hash().Hex())
}

package core

import "testing"

func TestBlockUniquerCollapsesDuplicates(t *testing.T) {
	u := NewBlockUniquer()
	a := &Block{Kind: KindSend, Previous: U256{1}, Destination: Account{2}, Balance: U128FromUint64(1)}
	b := &Block{Kind: KindSend, Previous: U256{1}, Destination: Account{2}, Balance: U128FromUint64(1)}

	first := u.Unique(a)
	second := u.Unique(b)
	if first != second {
		t.Fatalf("expected duplicate blocks with the same full_hash to intern to the same pointer")
	}
	if first != a {
		t.Fatalf("expected the first-seen block to be the interned value")
	}
}

func TestBlockUniquerDistinguishesDifferentBlocks(t *testing.T) {
	u := NewBlockUniquer()
	a := &Block{Kind: KindSend, Previous: U256{1}, Destination: Account{2}, Balance: U128FromUint64(1)}
	b := &Block{Kind: KindSend, Previous: U256{3}, Destination: Account{2}, Balance: U128FromUint64(1)}

	if u.Unique(a) == u.Unique(b) {
		t.Fatalf("distinct blocks must not collapse to the same interned pointer")
	}
	if u.Len() != 2 {
		t.Fatalf("expected two live interned entries, got %d", u.Len())
	}
}

func TestVoteUniquerCollapsesDuplicates(t *testing.T) {
	u := NewVoteUniquer()
	a := &Vote{Account: Account{1}, Sequence: 1, Hashes: []U256{{2}}}
	b := &Vote{Account: Account{1}, Sequence: 1, Hashes: []U256{{2}}}

	first := u.Unique(a)
	second := u.Unique(b)
	if first != second {
		t.Fatalf("expected duplicate votes with the same full_hash to intern to the same pointer")
	}
}

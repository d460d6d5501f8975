package store

import "testing"

func seedTable(t *testing.T, s Store, table Table, kv map[string]string) {
	t.Helper()
	err := s.Update(func(txn Txn) error {
		for k, v := range kv {
			if err := txn.Put(table, []byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed %s: %v", table, err)
	}
}

func TestMergeIteratorCombinesTwoGenerationsInOrder(t *testing.T) {
	s := New()
	seedTable(t, s, TableAccountsEpoch0, map[string]string{"a": "0a", "c": "0c"})
	seedTable(t, s, TableAccountsEpoch1, map[string]string{"b": "1b", "d": "1d"})

	err := s.View(func(txn Txn) error {
		m := NewMergeIterator(txn.Iterate(TableAccountsEpoch0, nil, nil), txn.Iterate(TableAccountsEpoch1, nil, nil))
		defer m.Close()
		var keys []string
		for m.Next() {
			keys = append(keys, string(m.Key()))
		}
		want := []string{"a", "b", "c", "d"}
		if len(keys) != len(want) {
			t.Fatalf("expected %d merged keys, got %d (%v)", len(want), len(keys), keys)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Fatalf("expected merged order %v, got %v", want, keys)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestMergeIteratorPrefersFirstIteratorOnTie(t *testing.T) {
	s := New()
	seedTable(t, s, TableAccountsEpoch0, map[string]string{"a": "from-epoch0"})
	seedTable(t, s, TableAccountsEpoch1, map[string]string{"a": "from-epoch1"})

	err := s.View(func(txn Txn) error {
		m := NewMergeIterator(txn.Iterate(TableAccountsEpoch0, nil, nil), txn.Iterate(TableAccountsEpoch1, nil, nil))
		defer m.Close()
		if !m.Next() {
			t.Fatalf("expected one merged entry")
		}
		if string(m.Value()) != "from-epoch0" {
			t.Fatalf("expected the first iterator's value to win a key collision, got %s", m.Value())
		}
		if m.Next() {
			t.Fatalf("expected the duplicate key in the second generation to be consumed, not yielded again")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestMergeIteratorHandlesOneEmptySide(t *testing.T) {
	s := New()
	seedTable(t, s, TableAccountsEpoch0, map[string]string{"a": "1", "b": "2"})

	err := s.View(func(txn Txn) error {
		m := NewMergeIterator(txn.Iterate(TableAccountsEpoch0, nil, nil), txn.Iterate(TableAccountsEpoch1, nil, nil))
		defer m.Close()
		var n int
		for m.Next() {
			n++
		}
		if n != 2 {
			t.Fatalf("expected 2 entries from the non-empty side alone, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

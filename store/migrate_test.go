package store

import "testing"

func TestOpenFreshStoreInsertsGenesisAndSetsCurrentVersion(t *testing.T) {
	s := New()
	var inserted bool
	err := Open(s, func(txn Txn) error {
		inserted = true
		return txn.Put(TableOpen, []byte("genesis"), []byte("block"))
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !inserted {
		t.Fatalf("expected genesisInsert to run on a fresh store")
	}

	err = s.View(func(txn Txn) error {
		v, err := readVersion(txn)
		if err != nil {
			return err
		}
		if v != CurrentVersion {
			t.Fatalf("expected version %d after opening a fresh store, got %d", CurrentVersion, v)
		}
		ok, err := txn.Exists(TableOpen, []byte("genesis"))
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("expected the genesis insert to have run")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOpenExistingStoreSkipsGenesisInsert(t *testing.T) {
	s := New()
	err := s.Update(func(txn Txn) error { return writeVersion(txn, CurrentVersion) })
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var called bool
	err = Open(s, func(txn Txn) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if called {
		t.Fatalf("expected genesisInsert not to run on a store that already has a version")
	}
}

func TestOpenRunsOnlyMigrationsNewerThanCurrentVersion(t *testing.T) {
	s := New()
	err := s.Update(func(txn Txn) error { return writeVersion(txn, 10) })
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var ran []int
	for i := range Migrations {
		n := Migrations[i].Number
		Migrations[i].Run = func(txn Txn) error {
			ran = append(ran, n)
			return nil
		}
	}
	defer func() {
		for i := range Migrations {
			Migrations[i].Run = noop
		}
	}()

	err = Open(s, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(ran) != 2 {
		t.Fatalf("expected exactly the 2 migrations numbered above 10 to run, got %v", ran)
	}
	if ran[0] != 11 || ran[1] != 12 {
		t.Fatalf("expected migrations 11 then 12 in order, got %v", ran)
	}

	err = s.View(func(txn Txn) error {
		v, err := readVersion(txn)
		if err != nil {
			return err
		}
		if v != CurrentVersion {
			t.Fatalf("expected version advanced to %d, got %d", CurrentVersion, v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOpenAtCurrentVersionIsNoop(t *testing.T) {
	s := New()
	err := s.Update(func(txn Txn) error { return writeVersion(txn, CurrentVersion) })
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var ran bool
	for i := range Migrations {
		Migrations[i].Run = func(txn Txn) error {
			ran = true
			return nil
		}
	}
	defer func() {
		for i := range Migrations {
			Migrations[i].Run = noop
		}
	}()

	if err := Open(s, nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	if ran {
		t.Fatalf("expected no migrations to run when already at current version")
	}
}

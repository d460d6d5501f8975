package core

import "testing"

func TestAccountEncodeDecodeRoundTrip(t *testing.T) {
	var account Account
	for i := range account {
		account[i] = byte(i * 3)
	}
	encoded := EncodeAccount("btcb", account)
	got, err := DecodeAccount("btcb", encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != account {
		t.Fatalf("round trip mismatch: got %x want %x", got, account)
	}
}

func TestAccountDecodeRejectsWrongTag(t *testing.T) {
	var account Account
	encoded := EncodeAccount("btcb", account)
	if _, err := DecodeAccount("xrb", encoded); err == nil {
		t.Fatalf("expected error for mismatched tag")
	}
}

func TestAccountDecodeRejectsBadChecksum(t *testing.T) {
	var account Account
	account[0] = 1
	encoded := EncodeAccount("btcb", account)
	corrupted := []byte(encoded)
	last := corrupted[len(corrupted)-1]
	if last == 'z' {
		corrupted[len(corrupted)-1] = '3'
	} else {
		corrupted[len(corrupted)-1] = 'z'
	}
	if _, err := DecodeAccount("btcb", string(corrupted)); err == nil {
		t.Fatalf("expected error for corrupted checksum")
	}
}

func TestAccountDecodeRejectsWrongLength(t *testing.T) {
	if _, err := DecodeAccount("btcb", "btcb_tooshort"); err == nil {
		t.Fatalf("expected error for short body")
	}
}

package storage

import (
	"testing"

	"github.com/stellar/go/xdr"
)

func contractDataKey(contractID byte, symbol string, durability xdr.ContractDataDurability) xdr.LedgerKey {
	var hash xdr.Hash
	hash[0] = contractID
	sym := xdr.ScSymbol(symbol)
	return xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.LedgerKeyContractData{
			Contract:   xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &hash},
			Key:        xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym},
			Durability: durability,
		},
	}
}

func TestBuildFootprintRejectsDuplicateAcrossModes(t *testing.T) {
	k := contractDataKey(1, "counter", xdr.ContractDataDurabilityPersistent)
	_, err := BuildFootprint([]xdr.LedgerKey{k}, []xdr.LedgerKey{k})
	if err == nil {
		t.Fatal("expected error for key declared in both read-only and read-write lists")
	}
}

func TestBuildFootprintRejectsUnsupportedKind(t *testing.T) {
	bad := xdr.LedgerKey{Type: xdr.LedgerEntryTypeConfigSetting}
	_, err := BuildFootprint(nil, []xdr.LedgerKey{bad})
	if err == nil {
		t.Fatal("expected error for unsupported key kind")
	}
}

func TestFootprintRWKeyAtPreservesDeclarationOrder(t *testing.T) {
	a := contractDataKey(1, "a", xdr.ContractDataDurabilityPersistent)
	b := contractDataKey(2, "b", xdr.ContractDataDurabilityPersistent)
	fp, err := BuildFootprint(nil, []xdr.LedgerKey{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantA, _ := CanonicalString(a)
	gotA, ok := fp.RWKeyAt(0)
	if !ok || gotA != wantA {
		t.Errorf("RWKeyAt(0) = %q, want %q", gotA, wantA)
	}
	wantB, _ := CanonicalString(b)
	gotB, ok := fp.RWKeyAt(1)
	if !ok || gotB != wantB {
		t.Errorf("RWKeyAt(1) = %q, want %q", gotB, wantB)
	}
	if _, ok := fp.RWKeyAt(2); ok {
		t.Error("expected out-of-range RWKeyAt to report false")
	}
}

func TestFootprintTouchGrowsUndeclaredKey(t *testing.T) {
	fp := newGrowableFootprint()
	a := contractDataKey(1, "a", xdr.ContractDataDurabilityPersistent)
	s, err := fp.Touch(a, AccessReadOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode, ok := fp.AccessOf(s); !ok || mode != AccessReadOnly {
		t.Fatalf("expected key to be declared ReadOnly, got %v, %v", mode, ok)
	}
	if fp.Len() != 1 {
		t.Fatalf("expected 1 declared key, got %d", fp.Len())
	}
}

func TestFootprintTouchUpgradesReadOnlyToReadWriteInPlace(t *testing.T) {
	fp := newGrowableFootprint()
	a := contractDataKey(1, "a", xdr.ContractDataDurabilityPersistent)
	b := contractDataKey(2, "b", xdr.ContractDataDurabilityPersistent)
	if _, err := fp.Touch(a, AccessReadOnly); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fp.Touch(b, AccessReadWrite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fp.Touch(a, AccessReadWrite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantA, _ := CanonicalString(a)
	if mode, _ := fp.AccessOf(wantA); mode != AccessReadWrite {
		t.Fatalf("expected key a to be upgraded to ReadWrite, got %v", mode)
	}
	// a was declared first, so it keeps RW ordinal 0 despite being upgraded
	// after b.
	gotA, ok := fp.RWKeyAt(0)
	if !ok || gotA != wantA {
		t.Errorf("RWKeyAt(0) = %q, ok=%v, want %q", gotA, ok, wantA)
	}
}

func TestFootprintTouchNeverDowngradesReadWrite(t *testing.T) {
	fp := newGrowableFootprint()
	a := contractDataKey(1, "a", xdr.ContractDataDurabilityPersistent)
	if _, err := fp.Touch(a, AccessReadWrite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := fp.Touch(a, AccessReadOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode, _ := fp.AccessOf(s); mode != AccessReadWrite {
		t.Fatalf("expected key to remain ReadWrite, got %v", mode)
	}
}

func TestFootprintKeysSortedByCanonicalEncoding(t *testing.T) {
	a := contractDataKey(1, "a", xdr.ContractDataDurabilityPersistent)
	b := contractDataKey(2, "b", xdr.ContractDataDurabilityPersistent)
	fp, err := BuildFootprint([]xdr.LedgerKey{b}, []xdr.LedgerKey{a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := fp.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0] >= keys[1] {
		t.Errorf("expected keys in sorted order, got %q then %q", keys[0], keys[1])
	}
}

package storage

import (
	"testing"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

func contractCodeEntry(t *testing.T, codeByte byte, payload []byte) (xdr.LedgerEntry, xdr.LedgerKey) {
	t.Helper()
	var hash xdr.Hash
	hash[0] = codeByte
	entry := xdr.LedgerEntry{
		Data: xdr.LedgerEntryData{
			Type: xdr.LedgerEntryTypeContractCode,
			ContractCode: &xdr.ContractCodeEntry{
				Hash: hash,
				Code: payload,
			},
		},
	}
	key := xdr.LedgerKey{Type: xdr.LedgerEntryTypeContractCode, ContractCode: &xdr.LedgerKeyContractCode{Hash: hash}}
	return entry, key
}

func ttlRecordBytes(t *testing.T, keyBytes []byte, liveUntil uint32) []byte {
	t.Helper()
	hash := xdrcodec.ContentHash(keyBytes)
	var keyHash xdr.Hash
	copy(keyHash[:], hash[:])
	out, err := xdrcodec.Encode(xdr.TtlEntry{KeyHash: keyHash, LiveUntilLedgerSeq: xdr.Uint32(liveUntil)})
	if err != nil {
		t.Fatalf("failed to encode fixture ttl: %v", err)
	}
	return out
}

func TestBuildStorageMapInsertsPresentEntry(t *testing.T) {
	entry, key := contractCodeEntry(t, 1, []byte("wasm-bytes"))
	fp, err := BuildFootprint(nil, []xdr.LedgerKey{key})
	if err != nil {
		t.Fatalf("unexpected footprint error: %v", err)
	}
	keyBytes := xdrcodec.MustCanonicalKeyBytes(key)
	encodedEntry, err := xdrcodec.Encode(entry)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	b := budget.New(1_000_000, 1_000_000)
	m, ttlMap, err := BuildStorageMap(b, fp, []EncodedEntryTTLPair{
		{EncodedEntry: encodedEntry, EncodedTTL: ttlRecordBytes(t, keyBytes, 1000)},
	}, 100, ModeEnforcing)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	s, _ := CanonicalString(key)
	slot, ok := m.Get(s)
	if !ok || !slot.Present {
		t.Fatal("expected present slot for the declared key")
	}
	if slot.LiveUntil != 1000 {
		t.Errorf("expected live_until 1000, got %d", slot.LiveUntil)
	}
	if _, ok := ttlMap.Lookup(s); !ok {
		t.Error("expected a ttl record in the initial ttl map")
	}
}

func TestBuildStorageMapBackfillsMissingFootprintKeys(t *testing.T) {
	_, key := contractCodeEntry(t, 2, nil)
	fp, err := BuildFootprint(nil, []xdr.LedgerKey{key})
	if err != nil {
		t.Fatalf("unexpected footprint error: %v", err)
	}
	b := budget.New(1_000_000, 1_000_000)
	m, _, err := BuildStorageMap(b, fp, nil, 100, ModeEnforcing)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	s, _ := CanonicalString(key)
	slot, ok := m.Get(s)
	if !ok || slot.Present {
		t.Fatal("expected a None slot backfilled for the undeclared-but-footprinted key")
	}
}

func TestBuildStorageMapRejectsKeyOutsideFootprint(t *testing.T) {
	entry, key := contractCodeEntry(t, 3, []byte("wasm"))
	emptyFP, err := BuildFootprint(nil, nil)
	if err != nil {
		t.Fatalf("unexpected footprint error: %v", err)
	}
	keyBytes := xdrcodec.MustCanonicalKeyBytes(key)
	encodedEntry, _ := xdrcodec.Encode(entry)

	b := budget.New(1_000_000, 1_000_000)
	_, _, err = BuildStorageMap(b, emptyFP, []EncodedEntryTTLPair{
		{EncodedEntry: encodedEntry, EncodedTTL: ttlRecordBytes(t, keyBytes, 1000)},
	}, 100, ModeEnforcing)
	if err == nil {
		t.Fatal("expected error for entry whose key is not declared in the footprint")
	}
}

func TestBuildStorageMapEnforcingFailsOnExpiredEntry(t *testing.T) {
	entry, key := contractCodeEntry(t, 4, []byte("wasm"))
	fp, err := BuildFootprint(nil, []xdr.LedgerKey{key})
	if err != nil {
		t.Fatalf("unexpected footprint error: %v", err)
	}
	keyBytes := xdrcodec.MustCanonicalKeyBytes(key)
	encodedEntry, _ := xdrcodec.Encode(entry)

	b := budget.New(1_000_000, 1_000_000)
	_, _, err = BuildStorageMap(b, fp, []EncodedEntryTTLPair{
		{EncodedEntry: encodedEntry, EncodedTTL: ttlRecordBytes(t, keyBytes, 50)},
	}, 100, ModeEnforcing)
	if err == nil {
		t.Fatal("expected Storage/Internal error for an expired entry under enforcing mode")
	}
}

func TestBuildStorageMapRecordingDropsExpiredTemporaryEntry(t *testing.T) {
	var contractHash xdr.Hash
	contractHash[0] = 9
	sym := xdr.ScSymbol("k")
	dataKey := xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.LedgerKeyContractData{
			Contract:   xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &contractHash},
			Key:        xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym},
			Durability: xdr.ContractDataDurabilityTemporary,
		},
	}
	dataEntry := xdr.LedgerEntry{
		Data: xdr.LedgerEntryData{
			Type: xdr.LedgerEntryTypeContractData,
			ContractData: &xdr.ContractDataEntry{
				Contract:   dataKey.ContractData.Contract,
				Key:        dataKey.ContractData.Key,
				Durability: xdr.ContractDataDurabilityTemporary,
				Val:        xdr.ScVal{Type: xdr.ScValTypeScvVoid},
			},
		},
	}
	fp, err := BuildFootprint(nil, []xdr.LedgerKey{dataKey})
	if err != nil {
		t.Fatalf("unexpected footprint error: %v", err)
	}
	keyBytes := xdrcodec.MustCanonicalKeyBytes(dataKey)
	encodedEntry, _ := xdrcodec.Encode(dataEntry)

	b := budget.New(1_000_000, 1_000_000)
	m, _, err := BuildStorageMap(b, fp, []EncodedEntryTTLPair{
		{EncodedEntry: encodedEntry, EncodedTTL: ttlRecordBytes(t, keyBytes, 50)},
	}, 100, ModeRecording)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	s, _ := CanonicalString(dataKey)
	slot, ok := m.Get(s)
	if !ok || slot.Present {
		t.Fatal("expected the expired temporary entry to be dropped (absent slot)")
	}
}

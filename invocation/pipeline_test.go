package invocation

import (
	"testing"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/host"
	"github.com/withobsrvr/soroban-invocation-core/storage"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

func contractDataKeyAndEntry(t *testing.T, salt byte, durability xdr.ContractDataDurability, val xdr.ScVal) (xdr.LedgerKey, xdr.LedgerEntry) {
	t.Helper()
	var contractID xdr.Hash
	contractID[0] = salt
	contract := xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &contractID}
	sym := xdr.ScSymbol("k")
	dataKey := xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}

	key := xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.LedgerKeyContractData{
			Contract:   contract,
			Key:        dataKey,
			Durability: durability,
		},
	}
	entry := xdr.LedgerEntry{
		Data: xdr.LedgerEntryData{
			Type: xdr.LedgerEntryTypeContractData,
			ContractData: &xdr.ContractDataEntry{
				Contract:   contract,
				Key:        dataKey,
				Durability: durability,
				Val:        val,
			},
		},
	}
	return key, entry
}

func encodedTTLFor(t *testing.T, key xdr.LedgerKey, liveUntil uint32) []byte {
	t.Helper()
	keyBytes := xdrcodec.MustCanonicalKeyBytes(key)
	hash := xdrcodec.ContentHash(keyBytes)
	var keyHash xdr.Hash
	copy(keyHash[:], hash[:])
	out, err := xdrcodec.Encode(xdr.TtlEntry{KeyHash: keyHash, LiveUntilLedgerSeq: xdr.Uint32(liveUntil)})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	return out
}

// echoVM returns a fixed ScVal and, when writeKey is set, writes writeVal
// under that key, simulating a contract call that touches storage.
type echoVM struct {
	writeKey string
	writeVal xdr.LedgerEntry
	result   xdr.ScVal
	err      error
}

func (v *echoVM) Invoke(session *host.Session, hostFn xdr.HostFunction) (xdr.ScVal, error) {
	if v.err != nil {
		return xdr.ScVal{}, herror.New(herror.KindWasmVmInvalidAction, "simulated contract trap")
	}
	if v.writeKey != "" {
		session.Storage().Set(v.writeKey, storage.Slot{Present: true, Entry: v.writeVal, LiveUntil: 5000, HasLiveUntil: true})
	}
	return v.result, nil
}

func baseInput(t *testing.T, vm host.VM, readOnly, readWrite []xdr.LedgerKey, entries []storage.EncodedEntryTTLPair) EnforcingInput {
	t.Helper()
	encodedHostFn, err := xdrcodec.Encode(xdr.HostFunction{Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	encodedSourceAccount, err := xdrcodec.Encode(xdr.AccountId{})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	return EnforcingInput{
		Budget:               budget.New(10_000_000, 10_000_000),
		VM:                   vm,
		EncodedHostFunction:  encodedHostFn,
		Resources:            Resources{ReadOnly: readOnly, ReadWrite: readWrite},
		EncodedSourceAccount: encodedSourceAccount,
		LedgerInfo:           host.LedgerInfo{SequenceNumber: 100, MinPersistentEntryTTL: 500},
		Entries:              entries,
		PRNGSeed:              make([]byte, 32),
		DiagnosticLevel:       host.DiagnosticNone,
	}
}

func TestInvokeSuccessProducesChangeSetAndEvents(t *testing.T) {
	key, entry := contractDataKeyAndEntry(t, 1, xdr.ContractDataDurabilityPersistent, xdr.ScVal{Type: xdr.ScValTypeScvVoid})
	encodedEntry, err := xdrcodec.Encode(entry)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	s, err := storage.CanonicalString(key)
	if err != nil {
		t.Fatalf("unexpected canonical-string error: %v", err)
	}

	newVal, newEntry := contractDataKeyAndEntry(t, 1, xdr.ContractDataDurabilityPersistent, xdr.ScVal{Type: xdr.ScValTypeScvBool, B: boolPtr(true)})
	_ = newVal

	vm := &echoVM{writeKey: s, writeVal: newEntry, result: xdr.ScVal{Type: xdr.ScValTypeScvVoid}}
	in := baseInput(t, vm, nil, []xdr.LedgerKey{key}, []storage.EncodedEntryTTLPair{
		{EncodedEntry: encodedEntry, EncodedTTL: encodedTTLFor(t, key, 1000)},
	})

	result, err := Invoke(in)
	if err != nil {
		t.Fatalf("unexpected pipeline-aborting error: %v", err)
	}
	if result.CarriedError != nil {
		t.Fatalf("unexpected carried error: %v", result.CarriedError)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(result.Changes))
	}
	if result.Changes[0].EncodedNewValue == nil {
		t.Error("expected the written entry to appear as a new value in the change set")
	}
	if result.EncodedReturnValue == nil {
		t.Error("expected an encoded return value on success")
	}
}

func TestInvokeCarriesVMErrorWithoutAborting(t *testing.T) {
	key, entry := contractDataKeyAndEntry(t, 2, xdr.ContractDataDurabilityPersistent, xdr.ScVal{Type: xdr.ScValTypeScvVoid})
	encodedEntry, err := xdrcodec.Encode(entry)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	vm := &echoVM{err: herror.New(herror.KindWasmVmInvalidAction, "trap")}
	in := baseInput(t, vm, []xdr.LedgerKey{key}, nil, []storage.EncodedEntryTTLPair{
		{EncodedEntry: encodedEntry, EncodedTTL: encodedTTLFor(t, key, 1000)},
	})

	result, err := Invoke(in)
	if err != nil {
		t.Fatalf("a VM/logic error must not abort the pipeline, got: %v", err)
	}
	if result.CarriedError == nil {
		t.Fatal("expected a carried VM error")
	}
	if len(result.Changes) != 0 {
		t.Errorf("expected an empty change set on a carried error, got %d changes", len(result.Changes))
	}
	if len(result.EncodedEvents) != 0 {
		t.Errorf("expected no events on a carried error")
	}
}

func TestInvokeAbortsOnUnrepresentableMinLiveUntilLedger(t *testing.T) {
	vm := &echoVM{result: xdr.ScVal{Type: xdr.ScValTypeScvVoid}}
	in := baseInput(t, vm, nil, nil, nil)
	in.LedgerInfo.SequenceNumber = 4_294_967_000
	in.LedgerInfo.MinPersistentEntryTTL = 1000

	if _, err := Invoke(in); err == nil {
		t.Fatal("expected the pipeline to abort on an unrepresentable min_live_until_ledger")
	}
}

func boolPtr(b bool) *bool { return &b }

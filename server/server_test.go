package server

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stellar/go/xdr"
	"go.uber.org/zap"

	"github.com/withobsrvr/soroban-invocation-core/host"
	"github.com/withobsrvr/soroban-invocation-core/rentsize"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// constantVM returns a fixed ScVal without touching storage, matching the
// footprint/snapshot the test sets up directly in the request body.
type constantVM struct {
	result xdr.ScVal
}

func (v constantVM) Invoke(session *host.Session, hostFn xdr.HostFunction) (xdr.ScVal, error) {
	return v.result, nil
}

func testServer(t *testing.T, vm host.VM) *Server {
	t.Helper()
	logger := zap.NewNop()
	deps := PipelineDependencies{
		VM:        vm,
		Estimator: rentsize.ZeroEstimator{},
	}
	return New(logger, ":0", ":0", 100_000_000, 40*1024*1024, deps)
}

func encodeOrFatal(t *testing.T, v interface{ MarshalBinary() ([]byte, error) }) []byte {
	t.Helper()
	b, err := xdrcodec.Encode(v)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	return b
}

func baseLedgerInfoDTO() ledgerInfoDTO {
	return ledgerInfoDTO{
		ProtocolVersion:       21,
		SequenceNumber:        1000,
		Timestamp:             1,
		NetworkID:             make([]byte, 32),
		BaseReserve:           100,
		MinPersistentEntryTTL: 10,
		MinTemporaryEntryTTL:  5,
		MaxEntryTTL:           100_000,
	}
}

func TestHandleInvokeSucceeds(t *testing.T) {
	s := testServer(t, constantVM{result: xdr.ScVal{Type: xdr.ScValTypeScvVoid}})

	req := invokeRequest{
		EncodedHostFunction:  encodeOrFatal(t, xdr.HostFunction{Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract}),
		EncodedSourceAccount: encodeOrFatal(t, xdr.AccountId{}),
		InstructionLimit:     1_000_000,
		DiskReadByteLimit:    1_000_000,
		WriteByteLimit:       1_000_000,
		LedgerInfo:           baseLedgerInfoDTO(),
		PRNGSeed:             make([]byte, 32),
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/v1/invoke", bytes.NewReader(body))
	s.withCorrelationID(s.handleInvoke)(w, r)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Correlation-Id") == "" {
		t.Error("expected a correlation ID to be stamped on the response")
	}

	var resp invokeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if resp.CarriedError != "" {
		t.Errorf("expected no carried error, got %q", resp.CarriedError)
	}
}

func TestHandleInvokeRejectsMalformedBody(t *testing.T) {
	s := testServer(t, constantVM{})
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/v1/invoke", bytes.NewReader([]byte("not json")))
	s.withCorrelationID(s.handleInvoke)(w, r)
	if w.Code != 400 {
		t.Errorf("expected 400 for a malformed body, got %d", w.Code)
	}
}

func TestHandleSimulateSucceeds(t *testing.T) {
	s := testServer(t, constantVM{result: xdr.ScVal{Type: xdr.ScValTypeScvVoid}})

	var contractID xdr.Hash
	contractID[0] = 7
	contract := xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &contractID}
	sym := xdr.ScSymbol("k")
	dataKey := xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
	key := xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.LedgerKeyContractData{Contract: contract, Key: dataKey, Durability: xdr.ContractDataDurabilityPersistent},
	}
	entry := xdr.LedgerEntry{
		Data: xdr.LedgerEntryData{
			Type: xdr.LedgerEntryTypeContractData,
			ContractData: &xdr.ContractDataEntry{Contract: contract, Key: dataKey, Durability: xdr.ContractDataDurabilityPersistent, Val: dataKey},
		},
	}
	req := simulateRequest{
		EncodedHostFunction:  encodeOrFatal(t, xdr.HostFunction{Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract}),
		EncodedSourceAccount: encodeOrFatal(t, xdr.AccountId{}),
		Snapshot: []snapshotEntryDTO{
			{EncodedKey: encodeOrFatal(t, key), EncodedEntry: encodeOrFatal(t, entry), LiveUntil: 100_000, HasLiveUntil: true},
		},
		LedgerInfo:                baseLedgerInfoDTO(),
		PRNGSeed:                  make([]byte, 32),
		SignatureExpirationLedger: 101_000,
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/v1/simulate", bytes.NewReader(body))
	s.withCorrelationID(s.handleSimulate)(w, r)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp simulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if resp.CarriedError != "" {
		t.Errorf("expected no carried error, got %q", resp.CarriedError)
	}
}

func TestHandleHealthz(t *testing.T) {
	s := testServer(t, constantVM{})
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/healthz", nil)
	s.handleHealthz(w, r)
	if w.Code != 200 {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

package server

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/host"
	"github.com/withobsrvr/soroban-invocation-core/simulation"
	"github.com/withobsrvr/soroban-invocation-core/storage"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// snapshotEntryDTO is one pre-invocation ledger entry the recording
// pipeline's snapshot source can serve (spec.md §4.7: "snapshot source is
// supplied directly"). Present=false entries are never sent — an absent
// key is simply omitted, matching storage.MemorySnapshot's own "not found"
// default for any key it was never Put with.
type snapshotEntryDTO struct {
	EncodedKey   []byte `json:"encoded_key"`
	EncodedEntry []byte `json:"encoded_entry"`
	LiveUntil    uint32 `json:"live_until,omitempty"`
	HasLiveUntil bool   `json:"has_live_until,omitempty"`
}

// simulateRequest is the recording-mode HTTP/JSON surface (spec.md §4.7).
type simulateRequest struct {
	EncodedHostFunction       []byte             `json:"encoded_host_function"`
	EncodedSourceAccount      []byte             `json:"encoded_source_account"`
	Snapshot                  []snapshotEntryDTO `json:"snapshot"`
	LedgerInfo                ledgerInfoDTO      `json:"ledger_info"`
	PRNGSeed                  []byte             `json:"prng_seed"`
	DiagnosticLevel           diagnosticLevelDTO `json:"diagnostic_level"`
	DisableNonRootAuth        bool               `json:"disable_non_root_auth,omitempty"`
	TransactionSizeBytes      uint32             `json:"transaction_size_bytes,omitempty"`
	ContractEventsSizeBytes   uint32             `json:"contract_events_size_bytes,omitempty"`
	SignatureExpirationLedger uint32             `json:"signature_expiration_ledger,omitempty"`
}

func (r simulateRequest) buildSnapshot() (*storage.MemorySnapshot, error) {
	snap := storage.NewMemorySnapshot()
	for _, e := range r.Snapshot {
		key, err := xdrcodec.Decode[xdr.LedgerKey, *xdr.LedgerKey](e.EncodedKey, xdrcodec.DefaultLimits)
		if err != nil {
			return nil, err
		}
		entry, err := xdrcodec.Decode[xdr.LedgerEntry, *xdr.LedgerEntry](e.EncodedEntry, xdrcodec.DefaultLimits)
		if err != nil {
			return nil, err
		}
		if err := snap.Put(key, storage.Slot{Present: true, Entry: entry, LiveUntil: e.LiveUntil, HasLiveUntil: e.HasLiveUntil}); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (r simulateRequest) toRecordingInput(vm host.VM, b *budgetFactory, deps PipelineDependencies) simulation.RecordingInput {
	snap, err := r.buildSnapshot()
	if err != nil {
		// handleSimulate rejects a request whose snapshot entries do not
		// decode before it calls this, so the fallback to an empty snapshot
		// is reached only by a caller that skips that check.
		snap = storage.NewMemorySnapshot()
	}

	signatureExpirationLedger := r.SignatureExpirationLedger
	if signatureExpirationLedger == 0 {
		signatureExpirationLedger = r.LedgerInfo.SequenceNumber + r.LedgerInfo.MaxEntryTTL
	}

	return simulation.RecordingInput{
		Budget:                    b.New(),
		VM:                        vm,
		EncodedHostFunction:       r.EncodedHostFunction,
		EncodedSourceAccount:      r.EncodedSourceAccount,
		Snapshot:                  snap,
		LedgerInfo:                r.LedgerInfo.toLedgerInfo(),
		PRNGSeed:                  r.PRNGSeed,
		DiagnosticLevel:           r.DiagnosticLevel.toDiagnosticLevel(),
		DisableNonRootAuth:        r.DisableNonRootAuth,
		Estimator:                 deps.Estimator,
		FeeConfig:                 deps.FeeConfig,
		RentFeeConfig:             deps.RentFeeConfig,
		TransactionSizeBytes:      r.TransactionSizeBytes,
		ContractEventsSizeBytes:   r.ContractEventsSizeBytes,
		Adjustment:                simulation.NoAdjustments(),
		SignatureExpirationLedger: signatureExpirationLedger,
	}
}

// simulateResponse is the recording pipeline's prediction, JSON-encoded for
// a caller that will build a subsequent enforcing-mode request from it.
// Synthesized auth entries travel as their three scalar fields plus the
// root invocation's own encoding, rather than a reconstructed
// xdr.SorobanAuthorizationEntry — this core never confirmed
// SorobanCredentials' generated field names (see host/auth.go, DESIGN.md),
// so assembling the full union here would repeat that same guesswork; a
// caller that wants the final entry combines these fields with its own
// signature.
type synthesizedAuthEntryDTO struct {
	EncodedAddress            []byte `json:"encoded_address,omitempty"`
	Nonce                     int64  `json:"nonce"`
	SignatureExpirationLedger uint32 `json:"signature_expiration_ledger"`
	EmulatedSignatureLen      int    `json:"emulated_signature_len"`
	EncodedRootInvocation     []byte `json:"encoded_root_invocation"`
}

type simulateResponse struct {
	CarriedError             string                    `json:"carried_error,omitempty"`
	EncodedReturnValue       []byte                    `json:"encoded_return_value,omitempty"`
	EncodedEvents            [][]byte                  `json:"encoded_events,omitempty"`
	ReadOnlyKeys             [][]byte                  `json:"read_only_keys,omitempty"`
	ReadWriteKeys            [][]byte                  `json:"read_write_keys,omitempty"`
	InstructionLimit         uint32                    `json:"instruction_limit"`
	DiskReadByteLimit        uint32                    `json:"disk_read_byte_limit"`
	WriteByteLimit           uint32                    `json:"write_byte_limit"`
	RestoredRWEntryIndices   []uint32                  `json:"restored_rw_entry_indices,omitempty"`
	SynthesizedAuthEntries   []synthesizedAuthEntryDTO `json:"synthesized_auth_entries,omitempty"`
	ResourceFeeNonRefundable int64                     `json:"resource_fee_non_refundable"`
	ResourceFeeRefundable    int64                     `json:"resource_fee_refundable"`
	RentFee                  int64                     `json:"rent_fee"`
	ChangeCount              int                       `json:"change_count"`
}

func newSimulateResponse(result *simulation.RecordingResult) simulateResponse {
	resp := simulateResponse{
		EncodedReturnValue:       result.EncodedReturnValue,
		EncodedEvents:            result.EncodedEvents,
		InstructionLimit:         result.PredictedResources.InstructionLimit,
		DiskReadByteLimit:        result.PredictedResources.DiskReadByteLimit,
		WriteByteLimit:           result.PredictedResources.WriteByteLimit,
		RestoredRWEntryIndices:   result.RestoredRWEntryIndices,
		ResourceFeeNonRefundable: result.ResourceFeeNonRefundable,
		ResourceFeeRefundable:    result.ResourceFeeRefundable,
		RentFee:                  result.RentFee,
		ChangeCount:              len(result.Changes),
	}
	if result.CarriedError != nil {
		resp.CarriedError = result.CarriedError.Error()
	}
	for _, k := range result.PredictedResources.ReadOnly {
		encoded, err := xdrcodec.Encode(k)
		if err == nil {
			resp.ReadOnlyKeys = append(resp.ReadOnlyKeys, encoded)
		}
	}
	for _, k := range result.PredictedResources.ReadWrite {
		encoded, err := xdrcodec.Encode(k)
		if err == nil {
			resp.ReadWriteKeys = append(resp.ReadWriteKeys, encoded)
		}
	}
	for _, a := range result.SynthesizedAuthEntries {
		entry := synthesizedAuthEntryDTO{
			Nonce:                     a.Nonce,
			SignatureExpirationLedger: a.SignatureExpirationLedger,
			EmulatedSignatureLen:      a.EmulatedSignatureLen,
		}
		if a.Address != nil {
			if encoded, err := xdrcodec.Encode(a.Address); err == nil {
				entry.EncodedAddress = encoded
			}
		}
		if encoded, err := xdrcodec.Encode(&a.RootInvocation); err == nil {
			entry.EncodedRootInvocation = encoded
		}
		resp.SynthesizedAuthEntries = append(resp.SynthesizedAuthEntries, entry)
	}
	return resp
}

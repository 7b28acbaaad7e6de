package server

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/host"
	"github.com/withobsrvr/soroban-invocation-core/invocation"
	"github.com/withobsrvr/soroban-invocation-core/storage"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// ledgerInfoDTO is LedgerInfo's wire shape: un-encoded, unlike every other
// pipeline input (spec.md §4.6 step 1 treats it specially), so it travels
// as a plain JSON object rather than an opaque encoded blob.
type ledgerInfoDTO struct {
	ProtocolVersion       uint32 `json:"protocol_version"`
	SequenceNumber        uint32 `json:"sequence_number"`
	Timestamp             uint64 `json:"timestamp"`
	NetworkID             []byte `json:"network_id"`
	BaseReserve           uint32 `json:"base_reserve"`
	MinPersistentEntryTTL uint32 `json:"min_persistent_entry_ttl"`
	MinTemporaryEntryTTL  uint32 `json:"min_temporary_entry_ttl"`
	MaxEntryTTL           uint32 `json:"max_entry_ttl"`
}

func (d ledgerInfoDTO) toLedgerInfo() host.LedgerInfo {
	var networkID [32]byte
	copy(networkID[:], d.NetworkID)
	return host.LedgerInfo{
		ProtocolVersion:       d.ProtocolVersion,
		SequenceNumber:        d.SequenceNumber,
		Timestamp:             d.Timestamp,
		NetworkID:             networkID,
		BaseReserve:           d.BaseReserve,
		MinPersistentEntryTTL: d.MinPersistentEntryTTL,
		MinTemporaryEntryTTL:  d.MinTemporaryEntryTTL,
		MaxEntryTTL:           d.MaxEntryTTL,
	}
}

// encodedEntryTTLPairDTO mirrors storage.EncodedEntryTTLPair.
type encodedEntryTTLPairDTO struct {
	EncodedEntry []byte `json:"encoded_entry"`
	EncodedTTL   []byte `json:"encoded_ttl,omitempty"`
}

// diagnosticLevelDTO is the JSON-friendly spelling of host.DiagnosticLevel.
type diagnosticLevelDTO string

const (
	diagnosticNone  diagnosticLevelDTO = "none"
	diagnosticBasic diagnosticLevelDTO = "basic"
	diagnosticDebug diagnosticLevelDTO = "debug"
)

func (d diagnosticLevelDTO) toDiagnosticLevel() host.DiagnosticLevel {
	switch d {
	case diagnosticDebug:
		return host.DiagnosticDebug
	case diagnosticBasic:
		return host.DiagnosticBasic
	default:
		return host.DiagnosticNone
	}
}

// invokeRequest is the enforcing-mode HTTP/JSON invocation surface. Every
// XDR-shaped field (everything but ledger_info, whose struct shape the core
// itself never re-encodes) travels as raw bytes: encoding/json already
// base64-encodes a []byte field, so this core's serialization oracle
// (package xdrcodec) is the only XDR encoder/decoder in the whole request
// path. Footprint keys and the instruction/byte caps travel as separate
// fields rather than a single encoded xdr.SorobanResources blob, because
// this core never confirmed SorobanResources' generated cap field names
// (see invocation.Resources's doc comment and DESIGN.md) — decoding each
// xdr.LedgerKey individually sidesteps that gap entirely.
type invokeRequest struct {
	EncodedHostFunction     []byte                   `json:"encoded_host_function"`
	ReadOnlyKeys            [][]byte                 `json:"read_only_keys"`
	ReadWriteKeys           [][]byte                 `json:"read_write_keys"`
	InstructionLimit        uint32                   `json:"instruction_limit"`
	DiskReadByteLimit       uint32                   `json:"disk_read_byte_limit"`
	WriteByteLimit          uint32                   `json:"write_byte_limit"`
	RestoredRWEntryIndices  []uint32                 `json:"restored_rw_entry_indices"`
	EncodedSourceAccount    []byte                   `json:"encoded_source_account"`
	EncodedAuthEntries      [][]byte                 `json:"encoded_auth_entries"`
	LedgerInfo              ledgerInfoDTO            `json:"ledger_info"`
	Entries                 []encodedEntryTTLPairDTO `json:"entries"`
	PRNGSeed                []byte                   `json:"prng_seed"`
	DiagnosticLevel         diagnosticLevelDTO        `json:"diagnostic_level"`
	TransactionSizeBytes    uint32                   `json:"transaction_size_bytes"`
	ContractEventsSizeBytes uint32                   `json:"contract_events_size_bytes"`
}

func decodeLedgerKeys(encoded [][]byte) ([]xdr.LedgerKey, error) {
	keys := make([]xdr.LedgerKey, 0, len(encoded))
	for _, raw := range encoded {
		key, err := xdrcodec.Decode[xdr.LedgerKey, *xdr.LedgerKey](raw, xdrcodec.DefaultLimits)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (r invokeRequest) toEnforcingInput(vm host.VM, b *budgetFactory, deps PipelineDependencies) (invocation.EnforcingInput, error) {
	readOnly, err := decodeLedgerKeys(r.ReadOnlyKeys)
	if err != nil {
		return invocation.EnforcingInput{}, err
	}
	readWrite, err := decodeLedgerKeys(r.ReadWriteKeys)
	if err != nil {
		return invocation.EnforcingInput{}, err
	}

	entries := make([]storage.EncodedEntryTTLPair, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, storage.EncodedEntryTTLPair{EncodedEntry: e.EncodedEntry, EncodedTTL: e.EncodedTTL})
	}

	return invocation.EnforcingInput{
		Budget:                 b.New(),
		VM:                     vm,
		EncodedHostFunction:    r.EncodedHostFunction,
		Resources: invocation.Resources{
			ReadOnly:          readOnly,
			ReadWrite:         readWrite,
			InstructionLimit:  r.InstructionLimit,
			DiskReadByteLimit: r.DiskReadByteLimit,
			WriteByteLimit:    r.WriteByteLimit,
		},
		RestoredRWEntryIndices:  r.RestoredRWEntryIndices,
		EncodedSourceAccount:    r.EncodedSourceAccount,
		EncodedAuthEntries:      r.EncodedAuthEntries,
		LedgerInfo:              r.LedgerInfo.toLedgerInfo(),
		Entries:                 entries,
		PRNGSeed:                r.PRNGSeed,
		DiagnosticLevel:         r.DiagnosticLevel.toDiagnosticLevel(),
		Estimator:               deps.Estimator,
		FeeConfig:               deps.FeeConfig,
		RentFeeConfig:           deps.RentFeeConfig,
		TransactionSizeBytes:    r.TransactionSizeBytes,
		ContractEventsSizeBytes: r.ContractEventsSizeBytes,
	}, nil
}

// invokeResponse is the enforcing pipeline's result, JSON-encoded the same
// way: changes/events travel as their own encoded bytes, the carried error
// (if any) as a message string so a client can distinguish "the contract
// call failed" from "the request was malformed" (an HTTP error status).
type invokeResponse struct {
	CarriedError             string   `json:"carried_error,omitempty"`
	EncodedReturnValue       []byte   `json:"encoded_return_value,omitempty"`
	EncodedEvents            [][]byte `json:"encoded_events,omitempty"`
	ResourceFeeNonRefundable int64    `json:"resource_fee_non_refundable"`
	ResourceFeeRefundable    int64    `json:"resource_fee_refundable"`
	RentFee                  int64    `json:"rent_fee"`
	ChangeCount              int      `json:"change_count"`
}

func newInvokeResponse(result *invocation.EnforcingResult) invokeResponse {
	resp := invokeResponse{
		EncodedReturnValue:       result.EncodedReturnValue,
		EncodedEvents:            result.EncodedEvents,
		ResourceFeeNonRefundable: result.ResourceFeeNonRefundable,
		ResourceFeeRefundable:    result.ResourceFeeRefundable,
		RentFee:                  result.RentFee,
		ChangeCount:              len(result.Changes),
	}
	if result.CarriedError != nil {
		resp.CarriedError = result.CarriedError.Error()
	}
	return resp
}

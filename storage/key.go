// Package storage implements the footprint and storage-map layer of
// spec.md §4.3/§4.4: the declared access set and the working copy of
// ledger entries, both keyed by the canonical encoding of an xdr.LedgerKey.
package storage

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// EntryKind is the five-way classification of spec.md §3: "Ledger key. An
// opaque, hashable identifier for a stored item. Discriminated by entry kind
// ∈ {Account, Trustline, ContractData, ContractCode, Other}."
type EntryKind int

const (
	EntryKindAccount EntryKind = iota
	EntryKindTrustline
	EntryKindContractData
	EntryKindContractCode
	EntryKindOther
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindAccount:
		return "Account"
	case EntryKindTrustline:
		return "Trustline"
	case EntryKindContractData:
		return "ContractData"
	case EntryKindContractCode:
		return "ContractCode"
	case EntryKindOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Durability mirrors xdr.ContractDataDurability; only ContractData and
// ContractCode entries carry one (spec.md §3).
type Durability int

const (
	DurabilityNone Durability = iota
	DurabilityPersistent
	DurabilityTemporary
)

// ClassifyKey maps an xdr.LedgerKey to its EntryKind and, where applicable,
// its Durability. It returns an error for key kinds that cannot participate
// in a footprint at all (Ttl records are tracked out-of-band per key, never
// addressed directly; ConfigSetting entries are a protocol-level concern
// with no rent/TTL semantics and are excluded the same way the original
// ledger_entry_to_ledger_key classification excludes anything it cannot
// derive a key for).
func ClassifyKey(key xdr.LedgerKey) (EntryKind, Durability, error) {
	switch key.Type {
	case xdr.LedgerEntryTypeAccount:
		return EntryKindAccount, DurabilityNone, nil
	case xdr.LedgerEntryTypeTrustline:
		return EntryKindTrustline, DurabilityNone, nil
	case xdr.LedgerEntryTypeContractData:
		if key.ContractData == nil {
			return 0, 0, herror.New(herror.KindValueInvalidInput, "contract data key missing ContractData body")
		}
		return EntryKindContractData, durabilityOf(key.ContractData.Durability), nil
	case xdr.LedgerEntryTypeContractCode:
		return EntryKindContractCode, DurabilityPersistent, nil
	case xdr.LedgerEntryTypeOffer, xdr.LedgerEntryTypeData, xdr.LedgerEntryTypeClaimableBalance, xdr.LedgerEntryTypeLiquidityPool:
		return EntryKindOther, DurabilityNone, nil
	default:
		return 0, 0, herror.New(herror.KindValueInvalidInput, "unsupported ledger key kind %v", key.Type)
	}
}

func durabilityOf(d xdr.ContractDataDurability) Durability {
	if d == xdr.ContractDataDurabilityTemporary {
		return DurabilityTemporary
	}
	return DurabilityPersistent
}

// classifyEntryData does the same classification starting from an
// xdr.LedgerEntryData, used when a key must be derived from a decoded entry
// (change-set construction, restore/extend helpers).
func classifyEntryData(data xdr.LedgerEntryData) (EntryKind, Durability, error) {
	switch data.Type {
	case xdr.LedgerEntryTypeAccount:
		return EntryKindAccount, DurabilityNone, nil
	case xdr.LedgerEntryTypeTrustline:
		return EntryKindTrustline, DurabilityNone, nil
	case xdr.LedgerEntryTypeContractData:
		if data.ContractData == nil {
			return 0, 0, herror.New(herror.KindValueInvalidInput, "contract data entry missing body")
		}
		return EntryKindContractData, durabilityOf(data.ContractData.Durability), nil
	case xdr.LedgerEntryTypeContractCode:
		return EntryKindContractCode, DurabilityPersistent, nil
	case xdr.LedgerEntryTypeOffer, xdr.LedgerEntryTypeData, xdr.LedgerEntryTypeClaimableBalance, xdr.LedgerEntryTypeLiquidityPool:
		return EntryKindOther, DurabilityNone, nil
	default:
		return 0, 0, herror.New(herror.KindStorageInternal, "unsupported ledger entry kind %v", data.Type)
	}
}

// KeyOf derives the xdr.LedgerKey addressing a decoded entry, mirroring the
// four concrete cases the original host supports (ledger_entry_to_ledger_key
// in e2e_invoke.rs): anything else is a Storage/Internal error since it
// should never reach the pipeline as a footprint target.
func KeyOf(entry xdr.LedgerEntry) (xdr.LedgerKey, error) {
	var key xdr.LedgerKey
	switch entry.Data.Type {
	case xdr.LedgerEntryTypeAccount:
		key.Type = xdr.LedgerEntryTypeAccount
		key.Account = &xdr.LedgerKeyAccount{AccountId: entry.Data.Account.AccountId}
	case xdr.LedgerEntryTypeTrustline:
		key.Type = xdr.LedgerEntryTypeTrustline
		key.TrustLine = &xdr.LedgerKeyTrustLine{
			AccountId: entry.Data.TrustLine.AccountId,
			Asset:     entry.Data.TrustLine.Asset,
		}
	case xdr.LedgerEntryTypeContractData:
		key.Type = xdr.LedgerEntryTypeContractData
		key.ContractData = &xdr.LedgerKeyContractData{
			Contract:   entry.Data.ContractData.Contract,
			Key:        entry.Data.ContractData.Key,
			Durability: entry.Data.ContractData.Durability,
		}
	case xdr.LedgerEntryTypeContractCode:
		key.Type = xdr.LedgerEntryTypeContractCode
		key.ContractCode = &xdr.LedgerKeyContractCode{Hash: entry.Data.ContractCode.Hash}
	default:
		return xdr.LedgerKey{}, herror.New(herror.KindStorageInternal, "cannot derive a ledger key for entry kind %v", entry.Data.Type)
	}
	return key, nil
}

// CanonicalString is the map-key form used throughout this package: the
// canonical XDR encoding of the key, as a Go string (safe as a map key since
// strings are compared byte-for-byte).
func CanonicalString(key xdr.LedgerKey) (string, error) {
	b, err := xdrcodec.CanonicalKeyBytes(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MustCanonicalString panics on encode failure; for keys already known to be
// well-formed (e.g. freshly decoded in this same pipeline run).
func MustCanonicalString(key xdr.LedgerKey) string {
	return string(xdrcodec.MustCanonicalKeyBytes(key))
}

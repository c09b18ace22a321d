package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashes.
// Version suffix enables future algorithm migration.
const (
	DomainRecord      = "regen/record/v1"
	DomainHistory     = "regen/history/v1"
	DomainIdentityMap = "regen/identity-map/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordHash computes the content hash of a single operation record.
func RecordHash(rec OperationRecord) (string, error) {
	obj, err := EncodeRecord(rec)
	if err != nil {
		return "", fmt.Errorf("RecordHash: %w", err)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RecordHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// HistoryHash computes the content hash of an ordered history.
// Two histories hash equal only if every record matches in order.
func HistoryHash(records []OperationRecord) (string, error) {
	arr := make(IRArray, 0, len(records))
	for i, rec := range records {
		obj, err := EncodeRecord(rec)
		if err != nil {
			return "", fmt.Errorf("HistoryHash: record %d: %w", i, err)
		}
		arr = append(arr, obj)
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("HistoryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainHistory, canonical), nil
}

// IdentityMapHash hashes serialized identity-map text.
// The text is already canonical, so equal maps hash equal.
func IdentityMapHash(text string) string {
	return hashWithDomain(DomainIdentityMap, []byte(text))
}

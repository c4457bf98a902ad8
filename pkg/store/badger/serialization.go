package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/treefs/treefs/pkg/namespace"
	"github.com/treefs/treefs/pkg/tenant"
)

// Serialization Strategy
// ======================
//
// BadgerDB stores raw bytes, so every record kind needs an explicit wire
// form. Three strategies are used, by record complexity:
//
// 1. JSON (namespace records, endpoint bindings, tree roots)
//    Human-readable and schema-flexible. These records are small and rarely
//    written, so encoding cost is irrelevant and debuggability wins.
//
// 2. XDR (node attribute records)
//    Fixed-width and language-neutral. Node records are also handed out as
//    opaque root descriptors, so their layout must not depend on Go JSON
//    quirks. Encoding lives in the kvtree package (EncodeAttr/DecodeAttr).
//
// 3. Binary (sequence counters, uuid links)
//    Counters are big-endian uint64; parent and child links are the raw
//    16-byte uuid.

// rootRecord is the persisted form of a tree root.
type rootRecord struct {
	// Root is the node id of the root directory
	Root uuid.UUID `json:"root"`

	// Attr is the XDR-encoded root attribute blob, identical to the
	// namespace root descriptor
	Attr []byte `json:"attr"`
}

func encodeNamespace(ns *namespace.Namespace) ([]byte, error) {
	data, err := json.Marshal(ns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode namespace record: %w", err)
	}
	return data, nil
}

func decodeNamespace(data []byte) (*namespace.Namespace, error) {
	var ns namespace.Namespace
	if err := json.Unmarshal(data, &ns); err != nil {
		return nil, fmt.Errorf("failed to decode namespace record: %w", err)
	}
	return &ns, nil
}

func encodeTenant(rec *tenant.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tenant record: %w", err)
	}
	return data, nil
}

func decodeTenant(data []byte) (*tenant.Record, error) {
	var rec tenant.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode tenant record: %w", err)
	}
	return &rec, nil
}

func encodeRootRecord(rec *rootRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode root record: %w", err)
	}
	return data, nil
}

func decodeRootRecord(data []byte) (*rootRecord, error) {
	var rec rootRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode root record: %w", err)
	}
	return &rec, nil
}

func encodeCounter(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}

func decodeCounter(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid counter value length: %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func encodeNodeID(id uuid.UUID) []byte {
	return id[:]
}

func decodeNodeID(data []byte) (uuid.UUID, error) {
	id, err := uuid.FromBytes(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid node id value: %w", err)
	}
	return id, nil
}

package db

import (
	"github.com/ugorji/go/codec"
)

var msgpackHandle = &codec.MsgpackHandle{}

// snapshotRecord is one field of the RDB-like snapshot payload: either
// (field, value) or (expire_at_ms, field, value) when an expiry is
// present. ExpireAt omits from the wire form when zero, avoiding a
// wasted byte on every TTL-less field.
type snapshotRecord struct {
	Field    []byte `codec:"field"`
	Value    []byte `codec:"value"`
	ExpireAt int64  `codec:"expire_at_ms,omitempty"`
}

type hashSnapshot struct {
	Encoding Encoding         `codec:"encoding"`
	Records  []snapshotRecord `codec:"records"`
}

// EncodeSnapshot serializes h's records, whatever its current encoding:
// the compact encodings are persisted verbatim (no conversion happens
// purely to snapshot), the HT form as a length-prefixed list of records.
// Msgpack (via ugorji/go/codec) gives length-prefixing for free without
// hand-rolling a binary format.
func EncodeSnapshot(h *Hash) ([]byte, error) {
	snap := hashSnapshot{Encoding: h.Encoding}
	switch h.Encoding {
	case EncodingListpack:
		for _, e := range h.lp.entries {
			snap.Records = append(snap.Records, snapshotRecord{Field: e.field, Value: e.value})
		}
	case EncodingListpackEx:
		for _, e := range h.lpx.entries {
			snap.Records = append(snap.Records, snapshotRecord{Field: e.field, Value: e.value, ExpireAt: e.expireAt})
		}
	case EncodingHT:
		for _, e := range h.ht.fields {
			snap.Records = append(snap.Records, snapshotRecord{
				Field:    e.field.Name,
				Value:    e.value,
				ExpireAt: e.field.ExpireAt(),
			})
		}
	}

	var buf []byte
	enc := codec.NewEncoderBytes(&buf, msgpackHandle)
	if err := enc.Encode(snap); err != nil {
		return nil, annotate(err, "encode hash snapshot")
	}
	return buf, nil
}

// DecodeSnapshot rebuilds a *Hash from a payload produced by
// EncodeSnapshot, reinstating the encoding it was saved under (size
// thresholds were already satisfied before the snapshot was taken, so
// load does not re-run the promotion rules) and re-linking every
// finite-TTL field into the appropriate private Index.
func DecodeSnapshot(now int64, key []byte, payload []byte) (*Hash, error) {
	var snap hashSnapshot
	dec := codec.NewDecoderBytes(payload, msgpackHandle)
	if err := dec.Decode(&snap); err != nil {
		return nil, annotate(err, "decode hash snapshot")
	}

	h := newHash(now, key)
	h.Encoding = snap.Encoding
	switch snap.Encoding {
	case EncodingListpack:
		h.lp = newListpack()
		for _, r := range snap.Records {
			h.lp.entries = append(h.lp.entries, lpEntry{field: r.Field, value: r.Value})
		}
	case EncodingListpackEx:
		h.lp = nil
		h.lpx = newListpackEx()
		for _, r := range snap.Records {
			h.lpx.entries = append(h.lpx.entries, lpxEntry{field: r.Field, value: r.Value, expireAt: r.ExpireAt})
		}
		h.lpx.resort()
	case EncodingHT:
		h.lp = nil
		h.ht = newHTTable()
		for _, r := range snap.Records {
			var f *Field
			if r.ExpireAt != 0 {
				f = NewFieldWithExpiry(r.Field)
				f.SetExpireAt(r.ExpireAt)
			} else {
				f = NewField(r.Field)
			}
			entry := &httEntry{field: f, value: r.Value}
			h.ht.fields[string(r.Field)] = entry
			if r.ExpireAt != 0 {
				h.ht.hfe.Add(entry, r.ExpireAt)
			}
		}
	}
	return h, nil
}

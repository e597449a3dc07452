package db

import (
	"math"
	"math/rand"
)

// Hash is the dual/triple-encoded value type: one of LISTPACK,
// LISTPACK_EX or HT at any moment, dispatched through the encoding tag.
// Only lpx and ht ever carry a globalHandle link (a LISTPACK hash can
// never have a TTL field by construction).
type Hash struct {
	Object
	key    []byte // borrowed from the keyspace; see keyspace.go
	lp     *listpack
	lpx    *listpackEx
	ht     *httable
	global Handle // this hash's position in the process-wide Index
}

func newHash(now int64, key []byte) *Hash {
	return &Hash{
		Object: newObject(now, EncodingListpack),
		key:    append([]byte(nil), key...),
		lp:     newListpack(),
	}
}

// ExpireHandle/ExpireAt make *Hash an Item, so DB's process-wide Index
// can track it directly.
func (h *Hash) ExpireHandle() *Handle { return &h.global }
func (h *Hash) ExpireAt() int64 {
	t, ok := h.MinExpire()
	if !ok {
		return 0
	}
	return t
}

// MinExpire returns the smallest finite expire_at_ms over the hash's
// fields. Computed on demand rather than cached: for LISTPACK_EX it's
// O(1) (leading entry, by the ordering invariant); for HT it's bounded
// by the private Index's bucket count plus the size of its coarsest
// live bucket, not by the whole hash (see Index.Min).
func (h *Hash) MinExpire() (int64, bool) {
	switch h.Encoding {
	case EncodingListpackEx:
		return h.lpx.minExpire()
	case EncodingHT:
		it, ok := h.ht.hfe.Min()
		if !ok {
			return 0, false
		}
		return it.ExpireAt(), true
	default:
		return 0, false
	}
}

func (h *Hash) linked() bool { return !h.global.Detached() }

func (h *Hash) isEmpty() bool {
	switch h.Encoding {
	case EncodingListpack:
		return h.lp.len() == 0
	case EncodingListpackEx:
		return h.lpx.len() == 0
	case EncodingHT:
		return h.ht.len() == 0
	}
	return true
}

func (h *Hash) length() int {
	switch h.Encoding {
	case EncodingListpack:
		return h.lp.len()
	case EncodingListpackEx:
		return h.lpx.len()
	case EncodingHT:
		return h.ht.len()
	}
	return 0
}

// lengthExcludingExpired counts only fields not yet expired: a dry-run
// count against the private Index, no mutation.
func (h *Hash) lengthExcludingExpired(now int64) int {
	total := h.length()
	switch h.Encoding {
	case EncodingListpackEx:
		return total - h.lpx.expireDryRun(now)
	case EncodingHT:
		return total - h.ht.hfe.DryRunExpired(now)
	default:
		return total
	}
}

// promote upgrades the encoding in place to satisfy the size/length
// thresholds, or is a no-op if the hash is already in (or past) the
// required encoding.
func (h *Hash) promote(cfg *hashLimits, target Encoding) {
	if h.Encoding >= target {
		return
	}
	switch h.Encoding {
	case EncodingListpack:
		if target == EncodingListpackEx {
			h.lpx = h.lp.toListpackEx()
			h.lp = nil
			h.Encoding = EncodingListpackEx
			return
		}
		h.ht = h.lp.toHashTable()
		h.lp = nil
		h.Encoding = EncodingHT
	case EncodingListpackEx:
		h.ht = h.lpx.toHashTable()
		h.lpx = nil
		h.Encoding = EncodingHT
	}
}

// needsHashTable reports whether field/value would overflow the compact
// encodings' configured thresholds.
func (h *Hash) needsHashTable(cfg *hashLimits, field, value []byte) bool {
	if len(field) > cfg.maxListpackValue || len(value) > cfg.maxListpackValue {
		return true
	}
	if h.length()+1 > cfg.maxListpackEntries {
		return true
	}
	return false
}

type hashLimits struct {
	maxListpackEntries int
	maxListpackValue   int
}

// get looks up field's value plus whether it is present, expired, or
// missing outright. It does not itself perform lazy expiration; callers
// go through DB.HGet so the deletion + propagation + "hash now empty"
// steps happen under one owner action.
func (h *Hash) get(field []byte, now int64) (value []byte, expireAt int64, status FieldStatus) {
	switch h.Encoding {
	case EncodingListpack:
		v, ok := h.lp.get(field)
		if !ok {
			return nil, 0, FieldMissing
		}
		return v, 0, FieldFound
	case EncodingListpackEx:
		v, exp, ok := h.lpx.get(field)
		if !ok {
			return nil, 0, FieldMissing
		}
		if exp != 0 && exp <= now {
			return v, exp, FieldExpired
		}
		return v, exp, FieldFound
	case EncodingHT:
		e, ok := h.ht.get(field)
		if !ok {
			return nil, 0, FieldMissing
		}
		exp := e.field.ExpireAt()
		if exp != 0 && exp <= now {
			return e.value, exp, FieldExpired
		}
		return e.value, exp, FieldFound
	}
	return nil, 0, FieldMissing
}

type FieldStatus int

const (
	FieldMissing FieldStatus = iota
	FieldFound
	FieldExpired
)

// SetOpts mirrors set() flags.
type SetOpts struct {
	KeepTTL bool // "keep_field": preserve an existing field's TTL on overwrite
}

// set stores field/value, upgrading the encoding first if field/value
// would overflow the compact thresholds.
func (h *Hash) set(cfg *hashLimits, field, value []byte, opts SetOpts) (created bool) {
	if h.Encoding != EncodingHT && h.needsHashTable(cfg, field, value) {
		h.promote(cfg, EncodingHT)
	}
	switch h.Encoding {
	case EncodingListpack:
		return h.lp.set(field, value)
	case EncodingListpackEx:
		return h.lpx.set(field, value, opts.KeepTTL)
	case EncodingHT:
		return h.ht.set(field, value, opts.KeepTTL)
	}
	return false
}

// delete removes field, unlinking it from the private Index first if
// attached.
func (h *Hash) delete(field []byte) bool {
	switch h.Encoding {
	case EncodingListpack:
		return h.lp.delete(field)
	case EncodingListpackEx:
		return h.lpx.delete(field)
	case EncodingHT:
		return h.ht.delete(field)
	}
	return false
}

func (h *Hash) keys() [][]byte {
	switch h.Encoding {
	case EncodingListpack:
		out := make([][]byte, 0, h.lp.len())
		for _, e := range h.lp.entries {
			out = append(out, e.field)
		}
		return out
	case EncodingListpackEx:
		out := make([][]byte, 0, h.lpx.len())
		for _, e := range h.lpx.entries {
			out = append(out, e.field)
		}
		return out
	case EncodingHT:
		out := make([][]byte, 0, h.ht.len())
		for _, e := range h.ht.fields {
			out = append(out, e.field.Name)
		}
		return out
	}
	return nil
}

// all enumerates (field, value) pairs, skipping fields already past
// now.
func (h *Hash) all(now int64) (fields [][]byte, values [][]byte) {
	switch h.Encoding {
	case EncodingListpack:
		for _, e := range h.lp.entries {
			fields = append(fields, e.field)
			values = append(values, e.value)
		}
	case EncodingListpackEx:
		for _, e := range h.lpx.entries {
			if e.expireAt != 0 && e.expireAt <= now {
				continue
			}
			fields = append(fields, e.field)
			values = append(values, e.value)
		}
	case EncodingHT:
		for _, e := range h.ht.fields {
			if exp := e.field.ExpireAt(); exp != 0 && exp <= now {
				continue
			}
			fields = append(fields, e.field.Name)
			values = append(values, e.value)
		}
	}
	return fields, values
}

// randomField backs HRANDFIELD: sampling is from the hash as stored,
// without lazily expiring first.
func (h *Hash) randomField(r *rand.Rand) (field, value []byte, ok bool) {
	n := h.length()
	if n == 0 {
		return nil, nil, false
	}
	i := r.Intn(n)
	switch h.Encoding {
	case EncodingListpack:
		return h.lp.entries[i].field, h.lp.entries[i].value, true
	case EncodingListpackEx:
		return h.lpx.entries[i].field, h.lpx.entries[i].value, true
	case EncodingHT:
		for _, e := range h.ht.fields {
			if i == 0 {
				return e.field.Name, e.value, true
			}
			i--
		}
	}
	return nil, nil, false
}

// incrBy increments field's integer value, preserving any existing TTL
// (opts.KeepTTL == true always for increments).
func (h *Hash) incrBy(cfg *hashLimits, field []byte, delta int64) (int64, error) {
	raw, _, _ := h.get(field, 0) // now=0: never matches a real finite deadline, caller already lazily-expired
	cur := int64(0)
	if raw != nil {
		v, err := parseInt(raw)
		if err != nil {
			return 0, ErrNotInteger
		}
		cur = v
	}
	next := cur + delta
	if (delta > 0 && next < cur) || (delta < 0 && next > cur) {
		return 0, ErrIncrOverflow
	}
	h.set(cfg, field, formatInt(next), SetOpts{KeepTTL: true})
	return next, nil
}

func (h *Hash) incrByFloat(cfg *hashLimits, field []byte, delta float64) (float64, error) {
	raw, _, _ := h.get(field, 0)
	cur := float64(0)
	if raw != nil {
		v, err := parseFloat(raw)
		if err != nil {
			return 0, ErrNotFloat
		}
		cur = v
	}
	next := cur + delta
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return 0, ErrNaNOrInfinity
	}
	h.set(cfg, field, formatFloat(next), SetOpts{KeepTTL: true})
	return next, nil
}

// duplicateInto deep-copies h into a freshly identified Hash carrying
// its own byte slices throughout, so neither hash's later mutations
// alias the other's storage. Per-field expirations come along
// unchanged; the new hash is not yet linked into any Index, global or
// private beyond what copying the HT's hfe entries establishes.
func (h *Hash) duplicateInto(now int64) *Hash {
	nh := &Hash{Object: newObject(now, h.Encoding)}
	switch h.Encoding {
	case EncodingListpack:
		lp := newListpack()
		for _, e := range h.lp.entries {
			lp.entries = append(lp.entries, lpEntry{
				field: append([]byte(nil), e.field...),
				value: append([]byte(nil), e.value...),
			})
		}
		nh.lp = lp
	case EncodingListpackEx:
		lpx := newListpackEx()
		for _, e := range h.lpx.entries {
			lpx.entries = append(lpx.entries, lpxEntry{
				field:    append([]byte(nil), e.field...),
				value:    append([]byte(nil), e.value...),
				expireAt: e.expireAt,
			})
		}
		nh.lpx = lpx
	case EncodingHT:
		ht := newHTTable()
		for name, e := range h.ht.fields {
			var f *Field
			if e.field.HasExpiry() {
				f = NewFieldWithExpiry(append([]byte(nil), e.field.Name...))
				f.SetExpireAt(e.field.ExpireAt())
			} else {
				f = NewField(append([]byte(nil), e.field.Name...))
			}
			entry := &httEntry{field: f, value: append([]byte(nil), e.value...)}
			ht.fields[name] = entry
			if f.HasExpiry() {
				ht.hfe.Add(entry, f.ExpireAt())
			}
		}
		nh.ht = ht
	}
	return nh
}

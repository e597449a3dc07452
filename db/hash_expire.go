package db

import "math"

// ExpireCond is the NX/XX/GT/LT qualifier HEXPIRE and its siblings accept,
// evaluated per field against that field's current TTL state.
type ExpireCond int

const (
	CondNone ExpireCond = iota
	CondNX              // only set if the field has no TTL
	CondXX              // only set if the field already has a TTL
	CondGT              // only set if the new time is later than the current one
	CondLT              // only set if the new time is earlier than the current one
)

// evalCondition implements the NX/XX/GT/LT condition table. A field with
// no TTL is treated as an infinite deadline for GT/LT purposes: GT can
// never fire against a persistent field, LT always does.
func evalCondition(cond ExpireCond, hasTTL bool, oldExpire, newExpire int64) bool {
	switch cond {
	case CondNX:
		return !hasTTL
	case CondXX:
		return hasTTL
	case CondGT:
		return hasTTL && newExpire > oldExpire
	case CondLT:
		return !hasTTL || newExpire < oldExpire
	default:
		return true
	}
}

// FieldResultCode is the private, encoding-level outcome of a single
// setExpiry/persist call against a listpackEx or httable entry.
type FieldResultCode int

const (
	FieldResultNoField FieldResultCode = iota
	FieldResultConditionNotMet
	FieldResultOK
	FieldResultNoTTL
)

// FieldExpireResult is the per-field outcome the HEXPIRE family
// reports back to the caller, one step coarser than FieldResultCode: it
// also folds in the "expiry lands in the past" case, which deletes the
// field outright rather than attaching a TTL.
type FieldExpireResult int

const (
	FieldExpireNoSuchField FieldExpireResult = iota
	FieldExpireConditionNotMet
	FieldExpireSet
	FieldExpireDeleted
)

// expireBatch carries the Init/Apply/Finalize state for one multi-field
// HEXPIRE-family call against a single hash: Init promotes the encoding
// and snapshots the hash's current minimum expiry, Apply runs once per
// field, Finalize compares the post-batch minimum against the snapshot
// so the caller knows whether the hash's position in the process-wide
// Index needs to move.
type expireBatch struct {
	h         *Hash
	at        int64
	cond      ExpireCond
	now       int64
	threshold int64

	prevMin   int64
	prevMinOK bool

	minTouched   int64
	minTouchedOK bool

	deleted [][]byte
}

// beginSetExpire is the Init phase: any attempt to attach a TTL forces at
// least LISTPACK_EX, so a plain LISTPACK hash is promoted up front,
// before any field is touched, so encoding transitions always happen
// before the fields they gate are written. threshold is the minimum
// movement of the hash's minimum expiry (HASH_NEW_EXPIRE_DIFF_THRESHOLD)
// that justifies re-publishing the hash in the process-wide Index.
func (h *Hash) beginSetExpire(at int64, cond ExpireCond, now, threshold int64) *expireBatch {
	h.promoteForExpiry()
	prevMin, prevMinOK := h.MinExpire()
	return &expireBatch{h: h, at: at, cond: cond, now: now, threshold: threshold, prevMin: prevMin, prevMinOK: prevMinOK}
}

// touch folds a touched field's prior deadline into minTouched:
// min_expire_fields_touched = min(min_expire_fields_touched, max(old, new)).
// A field with no prior TTL is treated as an infinite deadline, matching
// evalCondition's GT/LT treatment of "no TTL".
func (b *expireBatch) touch(oldExpire int64) {
	old := oldExpire
	if old == 0 {
		old = sentinelInfinite
	}
	m := old
	if b.at > m {
		m = b.at
	}
	if !b.minTouchedOK || m < b.minTouched {
		b.minTouched = m
		b.minTouchedOK = true
	}
}

// promoteForExpiry upgrades LISTPACK to LISTPACK_EX unconditionally. It
// never downgrades and never touches an already-HT hash; the size-driven
// thresholds are orthogonal and still apply on top, handled by the
// normal set() path the next time a field/value exceeds them.
func (h *Hash) promoteForExpiry() {
	if h.Encoding == EncodingListpack {
		h.promote(nil, EncodingListpackEx)
	}
}

// apply is the Apply phase for one field.
func (b *expireBatch) apply(field []byte) FieldExpireResult {
	switch b.h.Encoding {
	case EncodingListpackEx:
		return b.applyListpackEx(field)
	case EncodingHT:
		return b.applyHT(field)
	default:
		return FieldExpireNoSuchField
	}
}

func (b *expireBatch) applyListpackEx(field []byte) FieldExpireResult {
	_, oldExpire, ok := b.h.lpx.get(field)
	if !ok {
		return FieldExpireNoSuchField
	}
	code := b.h.lpx.setExpiry(field, b.at, b.cond)
	switch code {
	case FieldResultNoField:
		return FieldExpireNoSuchField
	case FieldResultConditionNotMet:
		return FieldExpireConditionNotMet
	case FieldResultOK:
		b.touch(oldExpire)
		if b.at <= b.now {
			b.h.lpx.delete(field)
			b.deleted = append(b.deleted, field)
			return FieldExpireDeleted
		}
		return FieldExpireSet
	default:
		return FieldExpireNoSuchField
	}
}

func (b *expireBatch) applyHT(field []byte) FieldExpireResult {
	e, ok := b.h.ht.get(field)
	if !ok {
		return FieldExpireNoSuchField
	}
	hasTTL := e.field.HasExpiry()
	old := e.field.ExpireAt()
	if !evalCondition(b.cond, hasTTL, old, b.at) {
		return FieldExpireConditionNotMet
	}
	b.touch(old)
	if b.at <= b.now {
		b.h.ht.delete(field)
		b.deleted = append(b.deleted, field)
		return FieldExpireDeleted
	}
	b.h.ht.attach(e, b.at)
	return FieldExpireSet
}

// finalize is the Finalize phase: it reports the hash's minimum expiry
// after the batch and whether the process-wide Index entry should move
// to it. The hash's presence in the Index always needs to change when
// it newly gained or lost a minimum; otherwise a move is only worth the
// churn when the touched fields could have been the previous minimum
// (prevMin >= minTouched) and the new minimum differs from the old by
// at least threshold — below that, republishing is deferred to the next
// active-expire pass rather than paid on every single field update.
func (b *expireBatch) finalize() (newMin int64, newMinOK bool, republish bool) {
	newMin, newMinOK = b.h.MinExpire()
	if newMinOK != b.prevMinOK {
		return newMin, newMinOK, true
	}
	if !newMinOK {
		return newMin, newMinOK, false
	}
	if !b.minTouchedOK || b.prevMin < b.minTouched {
		return newMin, newMinOK, false
	}
	diff := newMin - b.prevMin
	if diff < 0 {
		diff = -diff
	}
	return newMin, newMinOK, diff >= b.threshold
}

// persistField clears a field's TTL without deleting it, reporting
// whether it had one to clear.
func (h *Hash) persistField(field []byte) FieldResultCode {
	switch h.Encoding {
	case EncodingListpack:
		if _, ok := h.lp.get(field); ok {
			return FieldResultNoTTL
		}
		return FieldResultNoField
	case EncodingListpackEx:
		return h.lpx.persist(field)
	case EncodingHT:
		e, ok := h.ht.get(field)
		if !ok {
			return FieldResultNoField
		}
		if !e.field.HasExpiry() {
			return FieldResultNoTTL
		}
		h.ht.detach(e)
		return FieldResultOK
	default:
		return FieldResultNoField
	}
}

// fieldTTL reports a field's absolute expiry plus whether it is present
// and whether it carries a TTL at all, leaving the "no TTL" vs "no
// field" vs "has TTL" distinction to the caller (HTTL/HPERSIST report
// these three cases differently).
func (h *Hash) fieldTTL(field []byte, now int64) (expireAt int64, status FieldStatus) {
	value, expireAt, st := h.get(field, now)
	_ = value
	return expireAt, st
}

// sentinelInfinite stands in for "no TTL" when a caller needs every field
// to compare on a single numeric axis (e.g. picking the field among a
// batch whose old deadline was soonest); no stored expire_at_ms ever
// reaches this value since it is many millennia past any real clock.
const sentinelInfinite = math.MaxInt64

package db

import "sort"

// listpackEx is the LISTPACK_EX encoding: (field, value, expiry)
// triples kept in ascending expiry order, expiry==0 meaning "no TTL"
// and sorting to the trailing run. All operations below preserve that
// ordering invariant.
type listpackEx struct {
	entries []lpxEntry
}

type lpxEntry struct {
	field    []byte
	value    []byte
	expireAt int64 // 0 == no TTL
}

func newListpackEx() *listpackEx {
	return &listpackEx{}
}

func (lpx *listpackEx) indexOf(field []byte) int {
	for i := range lpx.entries {
		if string(lpx.entries[i].field) == string(field) {
			return i
		}
	}
	return -1
}

func (lpx *listpackEx) get(field []byte) (value []byte, expireAt int64, ok bool) {
	i := lpx.indexOf(field)
	if i < 0 {
		return nil, 0, false
	}
	return lpx.entries[i].value, lpx.entries[i].expireAt, true
}

// set replaces or appends field=value. This clears any TTL on the
// field unless keepMeta is true (HSET with a "keep field" flag, used
// internally by incrBy so an existing TTL survives an increment).
func (lpx *listpackEx) set(field, value []byte, keepMeta bool) (created bool) {
	i := lpx.indexOf(field)
	if i < 0 {
		lpx.entries = append(lpx.entries, lpxEntry{field: field, value: value, expireAt: 0})
		lpx.resort()
		return true
	}
	lpx.entries[i].value = value
	if !keepMeta {
		lpx.entries[i].expireAt = 0
		lpx.resort()
	}
	return false
}

func (lpx *listpackEx) delete(field []byte) bool {
	i := lpx.indexOf(field)
	if i < 0 {
		return false
	}
	lpx.entries = append(lpx.entries[:i], lpx.entries[i+1:]...)
	return true
}

// setExpiry applies cond and re-sorts the triple into position. The
// caller (expireBatch.applyListpackEx) is responsible for deleting the
// field outright when the result is DELETED.
func (lpx *listpackEx) setExpiry(field []byte, t int64, cond ExpireCond) FieldResultCode {
	i := lpx.indexOf(field)
	if i < 0 {
		return FieldResultNoField
	}
	old := lpx.entries[i].expireAt
	if !evalCondition(cond, old != 0, old, t) {
		return FieldResultConditionNotMet
	}
	lpx.entries[i].expireAt = t
	lpx.resort()
	return FieldResultOK
}

func (lpx *listpackEx) persist(field []byte) FieldResultCode {
	i := lpx.indexOf(field)
	if i < 0 {
		return FieldResultNoField
	}
	if lpx.entries[i].expireAt == 0 {
		return FieldResultNoTTL
	}
	lpx.entries[i].expireAt = 0
	lpx.resort()
	return FieldResultOK
}

// resort restores ascending-finite-then-trailing-zero ordering. The
// listpack is small by the time it would ever reach this encoding's size
// limits, so a stable sort on every mutation is simpler and cheaper in
// practice than maintaining an insertion-ordered skip structure.
func (lpx *listpackEx) resort() {
	sort.SliceStable(lpx.entries, func(i, j int) bool {
		a, b := lpx.entries[i].expireAt, lpx.entries[j].expireAt
		if a == 0 && b == 0 {
			return false
		}
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a < b
	})
}

func (lpx *listpackEx) len() int { return len(lpx.entries) }

// minExpire returns the smallest finite expiry, if any.
func (lpx *listpackEx) minExpire() (int64, bool) {
	if len(lpx.entries) > 0 && lpx.entries[0].expireAt != 0 {
		return lpx.entries[0].expireAt, true
	}
	return 0, false
}

// expireDryRun counts the leading run of triples with 0 < expiry <= now.
func (lpx *listpackEx) expireDryRun(now int64) int {
	count := 0
	for _, e := range lpx.entries {
		if e.expireAt == 0 || e.expireAt > now {
			break
		}
		count++
	}
	return count
}

// expire deletes the leading run of expired triples in bulk, capped at
// maxItems (<=0 meaning unlimited), returning the fields removed (so the
// caller can propagate one deletion event per field) and the next
// remaining finite expiry (0 if none).
func (lpx *listpackEx) expire(now int64, maxItems int) (removed []lpxEntry, nextExpire int64) {
	n := 0
	for n < len(lpx.entries) {
		e := lpx.entries[n]
		if e.expireAt == 0 || e.expireAt > now {
			break
		}
		if maxItems > 0 && n >= maxItems {
			break
		}
		n++
	}
	if n == 0 {
		next, ok := lpx.minExpire()
		if !ok {
			return nil, 0
		}
		return nil, next
	}
	removed = append(removed, lpx.entries[:n]...)
	lpx.entries = lpx.entries[n:]
	next, ok := lpx.minExpire()
	if !ok {
		next = 0
	}
	return removed, next
}

func (lpx *listpackEx) maxFieldValueLen() int {
	max := 0
	for _, e := range lpx.entries {
		if len(e.field) > max {
			max = len(e.field)
		}
		if len(e.value) > max {
			max = len(e.value)
		}
	}
	return max
}

func (lpx *listpackEx) toHashTable() *httable {
	ht := newHTTable()
	for _, e := range lpx.entries {
		var f *Field
		if e.expireAt != 0 {
			f = NewFieldWithExpiry(e.field)
			f.SetExpireAt(e.expireAt)
		} else {
			f = NewField(e.field)
		}
		entry := &httEntry{field: f, value: e.value}
		ht.fields[string(e.field)] = entry
		if e.expireAt != 0 {
			ht.hfe.Add(entry, e.expireAt)
		}
	}
	return ht
}

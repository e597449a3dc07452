package db

// httable is the HT encoding: a Go map keyed by field name, each entry
// a Field (carrying optional inline expiry metadata) paired with its
// value, plus a private Index ("hfe") linking exactly the entries that
// currently carry a finite TTL. Invariant: a field's inline metadata is
// "attached" iff it appears in the hash's private ebuckets.
type httable struct {
	fields map[string]*httEntry
	hfe    *Index
}

type httEntry struct {
	field *Field
	value []byte
}

func (e *httEntry) ExpireHandle() *Handle { return e.field.ExpireHandle() }
func (e *httEntry) ExpireAt() int64       { return e.field.ExpireAt() }

// hfePrecisionMs is the bucket quantum used by every per-hash private
// Index. It does not need to match the process-wide Index's precision:
// only requires each Index to quantize to *some* power-of-two
// precision.
const hfePrecisionMs = 1024

func newHTTable() *httable {
	return &httable{
		fields: make(map[string]*httEntry),
		hfe:    NewIndex(hfePrecisionMs),
	}
}

func (ht *httable) get(field []byte) (*httEntry, bool) {
	e, ok := ht.fields[string(field)]
	return e, ok
}

func (ht *httable) set(field, value []byte, keepMeta bool) (created bool) {
	name := string(field)
	e, ok := ht.fields[name]
	if !ok {
		ht.fields[name] = &httEntry{field: NewField(append([]byte(nil), field...)), value: value}
		return true
	}
	e.value = value
	if !keepMeta && e.field.HasExpiry() {
		ht.hfe.Remove(e)
		e.field.Persist()
	}
	return false
}

// attach gives field a finite TTL, linking it into hfe. It allocates the
// metadata block lazily via Field.ExpireHandle if this is the field's
// first expiry.
func (ht *httable) attach(e *httEntry, t int64) {
	e.field.SetExpireAt(t)
	ht.hfe.Add(e, t)
}

// detach removes field's TTL without deleting the field: the key stays
// in metadata-carrying form, but is unlinked from hfe and marked
// detached.
func (ht *httable) detach(e *httEntry) {
	if e.field.Attached() {
		ht.hfe.Remove(e)
	}
	e.field.Persist()
}

func (ht *httable) delete(field []byte) bool {
	name := string(field)
	e, ok := ht.fields[name]
	if !ok {
		return false
	}
	if e.field.Attached() {
		ht.hfe.Remove(e)
	}
	delete(ht.fields, name)
	return true
}

func (ht *httable) len() int { return len(ht.fields) }

func (ht *httable) maxFieldValueLen() int {
	max := 0
	for name, e := range ht.fields {
		if len(name) > max {
			max = len(name)
		}
		if len(e.value) > max {
			max = len(e.value)
		}
	}
	return max
}

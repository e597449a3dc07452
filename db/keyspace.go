package db

// Keyspace is the external collaborator storing every hash: a mapping
// from key string to value object. The engine only requires
// lookup/insert/delete and a way to borrow the canonical key string
// (findEntry); it does not need to know about any value type besides
// Hash, so unlike a general keyspace that also stores strings, sets,
// and other types behind a shared object header, this one is
// specialized to *Hash.
type Keyspace struct {
	entries map[string]*Hash
}

func newKeyspace() *Keyspace {
	return &Keyspace{entries: make(map[string]*Hash)}
}

// lookup returns the hash stored at key, or nil if key doesn't exist.
func (ks *Keyspace) lookup(key []byte) *Hash {
	return ks.entries[string(key)]
}

// insert stores h at key, giving h its borrowed key reference: the
// hash's stored key string equals the current key under which the hash
// is addressable in the keyspace.
func (ks *Keyspace) insert(key []byte, h *Hash) {
	h.key = append([]byte(nil), key...)
	ks.entries[string(key)] = h
}

// delete removes key from the keyspace. It does not touch the
// process-wide Index; callers unlink before or after per the operation
// they're implementing (DB enforces the ordering).
func (ks *Keyspace) delete(key []byte) {
	delete(ks.entries, string(key))
}

// findEntry returns the canonical stored key bytes and the hash at key,
// letting a caller borrow the keyspace-owned string.
func (ks *Keyspace) findEntry(key []byte) ([]byte, *Hash, bool) {
	h, ok := ks.entries[string(key)]
	if !ok {
		return nil, nil, false
	}
	return h.key, h, true
}

// rename moves the hash at oldKey to newKey, updating its borrowed key
// reference before returning so no intervening active-expire turn can
// observe a stale key.
func (ks *Keyspace) rename(oldKey, newKey []byte) (*Hash, bool) {
	h, ok := ks.entries[string(oldKey)]
	if !ok {
		return nil, false
	}
	delete(ks.entries, string(oldKey))
	h.key = append([]byte(nil), newKey...)
	ks.entries[string(newKey)] = h
	return h, true
}

package db

import (
	"math/rand"
	"sync"

	"github.com/distributedio/titanhfe/conf"
	"github.com/distributedio/titanhfe/metrics"
)

// DB is the single cooperative owner of every hash it holds: every
// exported method takes db.mu for its entire body, so however many
// client connections feed commands into it, field mutation, encoding
// transitions and index bookkeeping happen one at a time, in the order
// commands arrive.
type DB struct {
	mu sync.Mutex

	ID  int
	cfg *conf.Hash

	keyspace *Keyspace
	global   *Index // process-wide Index, keyed by each hash's MinExpire

	sink     Sink
	execUnit executionUnit
	// replicationForced, when true, means every write this DB performs
	// replicates even if the surrounding caller would otherwise suppress
	// it; only the propagate* helpers set it, for the duration of their
	// synthesized call.
	replicationForced bool

	quota *quotaLimiter
	rnd   *rand.Rand

	metrics     dbMetrics
	cacheMemory int64 // approximate count of fields/hashes linked into an expiration index
}

type dbMetrics struct {
	fieldDeletesPropagated prometheusCounter
	cacheMemory            prometheusGauge
}

// prometheusCounter is the narrow slice of prometheus.Counter this
// package touches, kept as an interface so db.go doesn't need to import
// the prometheus client package directly just to hold one field.
type prometheusCounter interface {
	Inc()
}

// prometheusGauge is the narrow slice of prometheus.Gauge this package
// touches.
type prometheusGauge interface {
	Set(float64)
}

// NewDB wires a DB against cfg, propagating every field/key deletion
// synthesized by expiration into sink (use NopSink when nothing should
// receive them, e.g. in isolated unit tests).
func NewDB(id int, cfg *conf.Hash, sink Sink) *DB {
	if sink == nil {
		sink = NopSink
	}
	precision := cfg.BucketPrecisionMs
	if precision <= 0 {
		precision = 1024
	}
	m := metrics.GetMetrics()
	return &DB{
		ID:       id,
		cfg:      cfg,
		keyspace: newKeyspace(),
		global:   NewIndex(precision),
		sink:     sink,
		quota:    newQuotaLimiter(cfg.ActiveExpireQuota),
		rnd:      rand.New(rand.NewSource(1)),
		metrics: dbMetrics{
			fieldDeletesPropagated: m.FieldDeletesPropagated,
			cacheMemory:            m.CacheMemoryBytes,
		},
	}
}

// expireDiffThreshold is HASH_NEW_EXPIRE_DIFF_THRESHOLD: the minimum
// movement of a hash's minimum expiry that justifies re-publishing it
// in the process-wide Index, floored at the Index's own bucket
// precision (a republish smaller than one bucket can't even change
// which bucket the hash lands in).
func (db *DB) expireDiffThreshold() int64 {
	p := db.global.PrecisionMs()
	if db.cfg.NewExpireDiffThreshold > p {
		return db.cfg.NewExpireDiffThreshold
	}
	return p
}

// adjustCacheMemory bumps the approximate linked-item counter backing
// the cache_memory gauge and republishes it. Never goes negative: the
// gauge tracks a count, not a signed delta.
func (db *DB) adjustCacheMemory(delta int64) {
	db.cacheMemory += delta
	if db.cacheMemory < 0 {
		db.cacheMemory = 0
	}
	db.metrics.cacheMemory.Set(float64(db.cacheMemory))
}

// publishGlobal re-links h into the process-wide Index at its current
// minimum expiry, or unlinks it if it no longer carries one. Every
// write path that can move a hash's minimum expiry ends by calling
// this, so the process-wide Index never drifts out of sync with
// per-hash state.
func (db *DB) publishGlobal(h *Hash) {
	wasLinked := h.linked()
	min, ok := h.MinExpire()
	if !ok {
		if wasLinked {
			db.global.Remove(h)
			db.adjustCacheMemory(-1)
		}
		return
	}
	db.global.Add(h, min)
	if !wasLinked {
		db.adjustCacheMemory(1)
	}
}

func (db *DB) unpublishGlobal(h *Hash) {
	if h.linked() {
		db.global.Remove(h)
		db.adjustCacheMemory(-1)
	}
}

// deleteHash removes key from the keyspace entirely, unlinking it from
// the process-wide Index first. Callers hold db.mu.
func (db *DB) deleteHash(key []byte, h *Hash) {
	db.unpublishGlobal(h)
	db.keyspace.delete(key)
}

// onDataChanged is called after any mutation that may have emptied a
// hash (field delete, lazy/active expiration): it removes the key and
// propagates a synthetic DEL, deleting the hash object itself once its
// last field is gone.
func (db *DB) onDataChanged(key []byte, h *Hash) {
	if !h.isEmpty() {
		db.publishGlobal(h)
		return
	}
	db.deleteHash(key, h)
	if err := db.propagateKeyDelete(key); err != nil {
		// Best effort: the in-memory state is already correct, and the
		// sink's own retry policy has been exhausted by this point.
		_ = err
	}
}

// lazyExpireField treats a field whose inline expiry is due as absent
// to every reader, and deletes it (with propagation) the first time any
// operation notices. Returns the value
// and a status that is never FieldExpired — by the time this returns,
// an expired field has already been turned into FieldMissing. With
// LazyExpireDisabled set, an expired field is neither deleted nor
// hidden: it is returned as FieldFound with its stored value.
func (db *DB) lazyExpireField(key []byte, h *Hash, field []byte, now int64) ([]byte, FieldStatus) {
	value, _, status := h.get(field, now)
	if status != FieldExpired {
		return value, status
	}
	if db.cfg.LazyExpireDisabled {
		return value, FieldFound
	}
	h.delete(field)
	if err := db.propagateFieldDelete(key, field); err != nil {
		_ = err
	}
	db.onDataChanged(key, h)
	return nil, FieldMissing
}

// lookup returns the hash at key without performing any expiration.
func (db *DB) lookup(key []byte) (*Hash, bool) {
	h := db.keyspace.lookup(key)
	return h, h != nil
}

// HGet implements get(key, field).
func (db *DB) HGet(key, field []byte, now int64) ([]byte, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if !ok {
		return nil, false, nil
	}
	value, status := db.lazyExpireField(key, h, field, now)
	return value, status == FieldFound, nil
}

// HExists implements exists(key, field).
func (db *DB) HExists(key, field []byte, now int64) (bool, error) {
	_, ok, err := db.HGet(key, field, now)
	return ok, err
}

// HGetForScan reads field's value without lazily expiring it, backing
// iterate_for_scan's "does not lazy-expire" contract: a field already
// past its deadline is still returned here until some other read or
// active expiration removes it.
func (db *DB) HGetForScan(key, field []byte) ([]byte, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if !ok {
		return nil, false, nil
	}
	value, _, status := h.get(field, 0) // now=0: never matches a real finite deadline
	return value, status != FieldMissing, nil
}

// HStrlen reports len(value) for field, or 0 if absent.
func (db *DB) HStrlen(key, field []byte, now int64) (int, error) {
	v, ok, err := db.HGet(key, field, now)
	if err != nil || !ok {
		return 0, err
	}
	return len(v), nil
}

func (db *DB) limits() *hashLimits {
	return &hashLimits{maxListpackEntries: db.cfg.MaxListpackEntries, maxListpackValue: db.cfg.MaxListpackValue}
}

// HSet stores field/value, creating the key if absent and clearing an
// expired-but-not-yet-reaped field's TTL before overwriting it: a field
// lazily expired by this same call was logically gone first.
func (db *DB) HSet(key, field, value []byte, opts SetOpts, now int64) (created bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if ok {
		// Lazily expiring the last field removes the key; recreate it below.
		db.lazyExpireField(key, h, field, now)
		h, ok = db.lookup(key)
	}
	if !ok {
		h = newHash(now, key)
		db.keyspace.insert(key, h)
	}
	created = h.set(db.limits(), field, value, opts)
	db.publishGlobal(h)
	return created, nil
}

// HSetNX implements set_if_absent: only set(field) when it is missing or
// already expired.
func (db *DB) HSetNX(key, field, value []byte, now int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if ok {
		if _, status := db.lazyExpireField(key, h, field, now); status == FieldFound {
			return false, nil
		}
		h, ok = db.lookup(key)
	}
	if !ok {
		h = newHash(now, key)
		db.keyspace.insert(key, h)
	}
	h.set(db.limits(), field, value, SetOpts{})
	db.publishGlobal(h)
	return true, nil
}

// HDel implements delete(key, field), one field at a time,
// returning how many of fields actually existed.
func (db *DB) HDel(key []byte, fields [][]byte, now int64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if !ok {
		return 0, nil
	}
	removed := 0
	for _, field := range fields {
		if _, status := db.lazyExpireField(key, h, field, now); status != FieldFound {
			continue
		}
		if h.delete(field) {
			removed++
		}
	}
	if removed > 0 {
		db.onDataChanged(key, h)
	}
	return removed, nil
}

// HLen implements length(key, subtract_expired=false): the stored count,
// not a lazily-corrected one (distinguishes the two).
func (db *DB) HLen(key []byte) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	h, ok := db.lookup(key)
	if !ok {
		return 0, nil
	}
	return h.length(), nil
}

// HLenExcludingExpired implements length(key, subtract_expired=true).
func (db *DB) HLenExcludingExpired(key []byte, now int64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	h, ok := db.lookup(key)
	if !ok {
		return 0, nil
	}
	return h.lengthExcludingExpired(now), nil
}

// HGetAll returns every (field, value) pair, skipping already-expired
// fields without reaping them: a dry-run read, matching HGETALL, which
// does not mutate.
func (db *DB) HGetAll(key []byte, now int64) (fields, values [][]byte, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	h, ok := db.lookup(key)
	if !ok {
		return nil, nil, nil
	}
	fields, values = h.all(now)
	return fields, values, nil
}

// HKeys returns every field name, unfiltered: it does not skip expired
// fields, matching HKEYS.
func (db *DB) HKeys(key []byte) ([][]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	h, ok := db.lookup(key)
	if !ok {
		return nil, nil
	}
	return h.keys(), nil
}

// HRandField uniformly samples one field over the hash as stored,
// deliberately not lazily expiring first.
func (db *DB) HRandField(key []byte) (field, value []byte, ok bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	h, found := db.lookup(key)
	if !found {
		return nil, nil, false, nil
	}
	field, value, ok = h.randomField(db.rnd)
	return field, value, ok, nil
}

// HIncrBy implements incr_by(key, field, delta), creating key/field as
// needed, preserving any existing TTL on field.
func (db *DB) HIncrBy(key, field []byte, delta int64, now int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if ok {
		db.lazyExpireField(key, h, field, now)
		h, ok = db.lookup(key)
	}
	if !ok {
		h = newHash(now, key)
		db.keyspace.insert(key, h)
	}
	next, err := h.incrBy(db.limits(), field, delta)
	if err != nil {
		return 0, err
	}
	db.publishGlobal(h)
	return next, nil
}

// HIncrByFloat implements incr_by_float(key, field, delta).
func (db *DB) HIncrByFloat(key, field []byte, delta float64, now int64) (float64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if ok {
		db.lazyExpireField(key, h, field, now)
		h, ok = db.lookup(key)
	}
	if !ok {
		h = newHash(now, key)
		db.keyspace.insert(key, h)
	}
	next, err := h.incrByFloat(db.limits(), field, delta)
	if err != nil {
		return 0, err
	}
	db.publishGlobal(h)
	return next, nil
}

// SetFieldExpires backs the HEXPIRE-family batched write: every field
// in fields is evaluated against cond and either set to at, left
// untouched, or deleted outright if at already lies at or before now.
func (db *DB) SetFieldExpires(key []byte, fields [][]byte, at int64, cond ExpireCond, now int64) ([]FieldExpireResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if !ok {
		results := make([]FieldExpireResult, len(fields))
		for i := range results {
			results[i] = FieldExpireNoSuchField
		}
		return results, nil
	}

	batch := h.beginSetExpire(at, cond, now, db.expireDiffThreshold())
	results := make([]FieldExpireResult, len(fields))
	var set [][]byte
	changed := false
	for i, field := range fields {
		results[i] = batch.apply(field)
		switch results[i] {
		case FieldExpireSet:
			set = append(set, field)
			changed = true
		case FieldExpireDeleted:
			changed = true
		}
	}
	if !changed {
		return results, nil
	}

	for _, field := range batch.deleted {
		if err := db.propagateFieldDelete(key, field); err != nil {
			_ = err
		}
	}
	if err := db.propagateSetExpire(key, set, at); err != nil {
		_ = err
	}
	db.adjustCacheMemory(int64(len(set) - len(batch.deleted)))

	_, _, republish := batch.finalize()
	if h.isEmpty() {
		db.deleteHash(key, h)
		if err := db.propagateKeyDelete(key); err != nil {
			_ = err
		}
	} else if republish {
		db.publishGlobal(h)
	}
	return results, nil
}

// FieldTTLs implements ttl(key, field) over a batch of fields,
// reporting each field's absolute expiry in unix milliseconds (0 for no
// TTL); turning that into HTTL's seconds or HPTTL's milliseconds
// remaining is the command layer's job.
func (db *DB) FieldTTLs(key []byte, fields [][]byte, now int64) ([]int64, []FieldStatus, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	expireAts := make([]int64, len(fields))
	statuses := make([]FieldStatus, len(fields))
	h, ok := db.lookup(key)
	if !ok {
		for i := range statuses {
			statuses[i] = FieldMissing
		}
		return expireAts, statuses, nil
	}
	for i, field := range fields {
		value, status := db.lazyExpireField(key, h, field, now)
		_ = value
		if status != FieldFound {
			statuses[i] = FieldMissing
			continue
		}
		exp, st := h.fieldTTL(field, now)
		expireAts[i] = exp
		statuses[i] = st
	}
	return expireAts, statuses, nil
}

// HPersist implements persist(key, field) over a batch.
func (db *DB) HPersist(key []byte, fields [][]byte, now int64) ([]FieldResultCode, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	results := make([]FieldResultCode, len(fields))
	h, ok := db.lookup(key)
	if !ok {
		for i := range results {
			results[i] = FieldResultNoField
		}
		return results, nil
	}
	changed := false
	persisted := 0
	for i, field := range fields {
		if _, status := db.lazyExpireField(key, h, field, now); status != FieldFound {
			results[i] = FieldResultNoField
			continue
		}
		results[i] = h.persistField(field)
		if results[i] == FieldResultOK {
			changed = true
			persisted++
		}
	}
	if persisted > 0 {
		db.adjustCacheMemory(int64(-persisted))
	}
	if changed {
		db.publishGlobal(h)
	}
	return results, nil
}

// HDelKey drops key outright, for whichever call site removes a hash
// regardless of field expiry.
func (db *DB) HDelKey(key []byte) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	h, ok := db.lookup(key)
	if !ok {
		return false
	}
	db.deleteHash(key, h)
	return true
}

// HRenameTo moves src's hash to dst: the destination key inherits
// src's hash (and hence its private index and global linkage)
// unchanged in identity, only its key changes.
func (db *DB) HRenameTo(src, dst []byte) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.keyspace.rename(src, dst)
	return ok, nil
}

// Duplicate implements duplicate(key, new_key): deep-copies key's value,
// including every field's expiration, under a new identity at new_key,
// then registers it in the process-wide Index under its own minimum.
// Reports false if key does not exist. Any hash already at new_key is
// unlinked and overwritten.
func (db *DB) Duplicate(key, newKey []byte, now int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.lookup(key)
	if !ok {
		return false, nil
	}
	nh := h.duplicateInto(now)
	if existing, ok := db.lookup(newKey); ok {
		db.unpublishGlobal(existing)
	}
	db.keyspace.insert(newKey, nh)
	db.publishGlobal(nh)
	return true, nil
}

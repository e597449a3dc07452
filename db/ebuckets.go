package db

import (
	"container/list"
	"sort"
)

// Handle is the embedded position of an Item inside an Index. A zero
// Handle is detached ("trash"). Handle lives inside the item itself
// (the Field's inline metadata, or the Hash header), so Remove is O(1)
// without a lookup.
type Handle struct {
	b *bucket
	e *list.Element
}

// Detached reports whether the handle currently links its owner into any
// Index.
func (h Handle) Detached() bool {
	return h.b == nil
}

// Item is anything an Index can track: a hash field (indexed by its own
// hash's private Index) or a hash (indexed by the process-wide Index).
// ExpireHandle exposes the embedded Handle so Index can mutate it in
// place; ExpireAt is the item's authoritative deadline, rechecked by
// Index whenever bucket-level coarseness isn't enough.
type Item interface {
	ExpireHandle() *Handle
	ExpireAt() int64
}

type bucket struct {
	key   int64
	items *list.List
}

// Action is returned by the callback passed to Index.Expire for each
// visited item.
type Action struct {
	Kind    ActionKind
	NewTime int64 // meaningful only for ActionUpdateKeyTo
}

type ActionKind int

const (
	// ActionRemove detaches the item permanently; it counts toward
	// items_expired.
	ActionRemove ActionKind = iota
	// ActionUpdateKeyTo re-inserts the item under NewTime; it does not
	// count toward items_expired.
	ActionUpdateKeyTo
	// ActionStop halts the scan immediately, leaving the current item's
	// linkage untouched. No further items are visited in this call.
	ActionStop
)

var (
	actionRemove = Action{Kind: ActionRemove}
)

// RemoveAction is the zero-alloc constructor for the REMOVE action.
func RemoveAction() Action { return actionRemove }

// UpdateKeyToAction constructs the UPDATE_KEY_TO(t') action.
func UpdateKeyToAction(t int64) Action { return Action{Kind: ActionUpdateKeyTo, NewTime: t} }

// StopAction constructs the STOP action.
func StopAction() Action { return Action{Kind: ActionStop} }

// Index is the expiration bucket index ("ebuckets"). It quantizes
// absolute deadlines to a precision P (power-of-two milliseconds) and
// groups items sharing a bucket without further ordering; callers that
// need finer ordering re-check Item.ExpireAt.
//
// Index has no internal lock: a single logical owner holds exclusive
// access to every hash, the keyspace and both kinds of Index (per-hash
// and process-wide) at any instant, so synchronization here would be
// dead weight.
type Index struct {
	precisionMs int64
	buckets     map[int64]*bucket
}

// NewIndex builds an Index quantizing to precisionMs, which must be a
// power of two number of milliseconds; the process-wide Index takes
// conf.Hash.BucketPrecisionMs.
func NewIndex(precisionMs int64) *Index {
	if precisionMs <= 0 {
		precisionMs = 1
	}
	return &Index{precisionMs: precisionMs, buckets: make(map[int64]*bucket)}
}

func quantize(t, precision int64) int64 {
	if precision <= 1 {
		return t
	}
	return t - (t % precision)
}

// Add links item under absolute deadline t, O(log B) amortized over the
// bucket map. Re-adding an already-linked item first removes it.
func (idx *Index) Add(item Item, t int64) {
	idx.Remove(item)
	k := quantize(t, idx.precisionMs)
	b := idx.buckets[k]
	if b == nil {
		b = &bucket{key: k, items: list.New()}
		idx.buckets[k] = b
	}
	e := b.items.PushBack(item)
	*item.ExpireHandle() = Handle{b: b, e: e}
}

// Remove unlinks item using its embedded handle, O(1). It is a no-op if
// the item is already detached.
func (idx *Index) Remove(item Item) {
	h := item.ExpireHandle()
	if h.b == nil {
		return
	}
	h.b.items.Remove(h.e)
	if h.b.items.Len() == 0 {
		delete(idx.buckets, h.b.key)
	}
	*h = Handle{}
}

// NextExpireTime returns the earliest bucket lower bound, or ok=false if
// the index is empty.
func (idx *Index) NextExpireTime() (t int64, ok bool) {
	for k := range idx.buckets {
		if !ok || k < t {
			t, ok = k, true
		}
	}
	return t, ok
}

// Min returns the item with the smallest authoritative ExpireAt: it
// walks the bucket keys to find the lowest one, then scans only that
// bucket's items (bounded by the bucket count plus how many items share
// the coarsest deadline, not by the whole index).
func (idx *Index) Min() (Item, bool) {
	k, ok := idx.NextExpireTime()
	if !ok {
		return nil, false
	}
	b := idx.buckets[k]
	var best Item
	for e := b.items.Front(); e != nil; e = e.Next() {
		it := e.Value.(Item)
		if best == nil || it.ExpireAt() < best.ExpireAt() {
			best = it
		}
	}
	return best, best != nil
}

// DryRunExpired counts items that would expire now without mutating the
// index.
func (idx *Index) DryRunExpired(now int64) int {
	count := 0
	for k, b := range idx.buckets {
		if k > now {
			continue
		}
		for e := b.items.Front(); e != nil; e = e.Next() {
			if e.Value.(Item).ExpireAt() <= now {
				count++
			}
		}
	}
	return count
}

// Expire visits items with real ExpireAt <= now, in ascending bucket
// order, invoking onItem for each and applying the returned Action. It
// visits at most maxItems items (maxItems <= 0 means unlimited) and
// returns how many were actually removed plus the index's new next
// expiration time.
func (idx *Index) Expire(now int64, maxItems int, onItem func(Item) Action) (itemsExpired int, nextExpireTime int64, hasNext bool) {
	unlimited := maxItems <= 0
	visited := 0

	keys := make([]int64, 0, len(idx.buckets))
	for k := range idx.buckets {
		if k <= now {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

stop:
	for _, k := range keys {
		b := idx.buckets[k]
		if b == nil {
			continue
		}
		e := b.items.Front()
		for e != nil {
			next := e.Next()
			it := e.Value.(Item)
			if it.ExpireAt() > now {
				e = next
				continue
			}
			if !unlimited && visited >= maxItems {
				break stop
			}
			visited++
			action := onItem(it)
			switch action.Kind {
			case ActionRemove:
				idx.Remove(it)
				itemsExpired++
			case ActionUpdateKeyTo:
				idx.Add(it, action.NewTime)
			case ActionStop:
				break stop
			}
			e = next
		}
	}

	nextExpireTime, hasNext = idx.NextExpireTime()
	return itemsExpired, nextExpireTime, hasNext
}

// Len reports the number of distinct buckets currently live, primarily
// for tests and metrics.
func (idx *Index) Len() int {
	return len(idx.buckets)
}

// PrecisionMs reports the quantum this Index buckets deadlines to.
func (idx *Index) PrecisionMs() int64 {
	return idx.precisionMs
}

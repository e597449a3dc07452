package db

import (
	"testing"
	"time"

	"github.com/distributedio/titanhfe/conf"
	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB() *DB {
	cfg := conf.Default().Hash
	cfg.MaxListpackEntries = 4
	cfg.MaxListpackValue = 16
	return NewDB(0, &cfg, NopSink)
}

func TestHSetHGetRoundTrip(t *testing.T) {
	d := newTestDB()
	now := int64(1000)

	created, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)
	assert.True(t, created)

	v, ok, err := d.HGet([]byte("k"), []byte("f"), now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	created, err = d.HSet([]byte("k"), []byte("f"), []byte("v2"), SetOpts{}, now)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestHExpireLazyExpiry(t *testing.T) {
	d := newTestDB()
	now := int64(1000)

	_, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)

	results, err := d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+10, CondNone, now)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, FieldExpireSet, results[0])

	// still alive just before the deadline
	_, ok, err := d.HGet([]byte("k"), []byte("f"), now+9)
	require.NoError(t, err)
	assert.True(t, ok)

	// lazily expired once time passes the deadline
	_, ok, err = d.HGet([]byte("k"), []byte("f"), now+11)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHExpireConditions(t *testing.T) {
	d := newTestDB()
	now := int64(1000)

	_, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)

	results, err := d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+100, CondNone, now)
	require.NoError(t, err)
	assert.Equal(t, FieldExpireSet, results[0])

	// GT with an earlier deadline than the current TTL is rejected
	results, err = d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+50, CondGT, now)
	require.NoError(t, err)
	assert.Equal(t, FieldExpireConditionNotMet, results[0], "GT must reject a smaller deadline")

	results, err = d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+200, CondGT, now)
	require.NoError(t, err)
	assert.Equal(t, FieldExpireSet, results[0])
}

func TestHPersist(t *testing.T) {
	d := newTestDB()
	now := int64(1000)

	_, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)

	codes, err := d.HPersist([]byte("k"), [][]byte{[]byte("f")}, now)
	require.NoError(t, err)
	assert.Equal(t, FieldResultNoTTL, codes[0])

	_, err = d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+100, CondNone, now)
	require.NoError(t, err)

	codes, err = d.HPersist([]byte("k"), [][]byte{[]byte("f")}, now)
	require.NoError(t, err)
	assert.Equal(t, FieldResultOK, codes[0])

	expireAts, statuses, err := d.FieldTTLs([]byte("k"), [][]byte{[]byte("f")}, now)
	require.NoError(t, err)
	assert.Equal(t, FieldFound, statuses[0])
	assert.Equal(t, int64(0), expireAts[0], "a persisted field reports no absolute expiry")
}

func TestEncodingPromotionOnOversizedValue(t *testing.T) {
	d := newTestDB()
	now := int64(1000)

	big := make([]byte, 64)
	_, err := d.HSet([]byte("k"), []byte("f"), big, SetOpts{}, now)
	require.NoError(t, err)

	h, ok := d.lookup([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, EncodingHT, h.Encoding, "a value past MaxListpackValue must force hashtable encoding")
}

func TestHDelDeletesEmptyHash(t *testing.T) {
	d := newTestDB()
	now := int64(1000)

	_, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)

	n, err := d.HDel([]byte("k"), [][]byte{[]byte("f")}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := d.lookup([]byte("k"))
	assert.False(t, ok, "a hash with no remaining fields must be removed from the keyspace")
}

func TestActiveExpireCycleRemovesDueFields(t *testing.T) {
	d := newTestDB()
	now := int64(1000)

	_, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)
	_, err = d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+10, CondNone, now)
	require.NoError(t, err)

	restore := freezeNow(now)
	n, err := d.ActiveExpireCycle(10)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing is due yet")
	restore()

	restore = freezeNow(now + 50)
	defer restore()
	n, err = d.ActiveExpireCycle(10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := d.lookup([]byte("k"))
	assert.False(t, ok)
}

// recordingSink captures every propagated command array for inspection,
// standing in for a real append-log/replication transport in tests.
type recordingSink struct {
	calls    [][]string
	payloads [][]byte
}

func (s *recordingSink) Propagate(dbID int, argv []string, payload []byte) error {
	s.calls = append(s.calls, argv)
	s.payloads = append(s.payloads, payload)
	return nil
}

func TestSetFieldExpiresPropagatesAbsoluteHPEXPIREAT(t *testing.T) {
	sink := &recordingSink{}
	cfg := conf.Default().Hash
	d := NewDB(0, &cfg, sink)
	now := int64(1000)

	_, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)

	results, err := d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+100, CondNone, now)
	require.NoError(t, err)
	require.Equal(t, FieldExpireSet, results[0])

	require.Len(t, sink.calls, 1)
	assert.Equal(t, []string{"HPEXPIREAT", "k", "1100", "FIELDS", "1", "f"}, sink.calls[0],
		"relative HEXPIRE-family calls must propagate as an absolute HPEXPIREAT")
}

func TestPropagateFieldDeleteEncodesRecord(t *testing.T) {
	sink := &recordingSink{}
	cfg := conf.Default().Hash
	d := NewDB(0, &cfg, sink)
	now := int64(1000)

	_, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)
	_, err = d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+10, CondNone, now)
	require.NoError(t, err)

	_, ok, err := d.HGet([]byte("k"), []byte("f"), now+11)
	require.NoError(t, err)
	assert.False(t, ok, "field must lazily expire past its deadline")

	require.Len(t, sink.calls, 3, "HPEXPIREAT rewrite, the lazy-expire HDEL, then the DEL of the emptied key")
	assert.Equal(t, []string{"HDEL", "k", "f"}, sink.calls[1])

	require.NotNil(t, sink.payloads[1], "a field-delete propagation must carry its encoded record")
	var rec FieldDeleteRecord
	require.NoError(t, proto.Unmarshal(sink.payloads[1], &rec))
	assert.Equal(t, "k", rec.Key)
	assert.Equal(t, "f", rec.Field)
}

func TestCacheMemoryTracksLinkedHashesAndFields(t *testing.T) {
	d := newTestDB()
	now := int64(1000)

	_, err := d.HSet([]byte("k"), []byte("f"), []byte("v"), SetOpts{}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.cacheMemory, "a hash with no TTLs is not linked into any index")

	_, err = d.SetFieldExpires([]byte("k"), [][]byte{[]byte("f")}, now+100, CondNone, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.cacheMemory, "setting the first TTL links both the field and its hash")

	codes, err := d.HPersist([]byte("k"), [][]byte{[]byte("f")}, now)
	require.NoError(t, err)
	require.Equal(t, FieldResultOK, codes[0])
	assert.Equal(t, int64(0), d.cacheMemory, "persisting the only TTL unlinks the hash and the field")
}

// freezeNow pins NowMs to atMs for the duration of a test, returning a
// restore func; db/clock.go indirects through nowFunc for exactly this.
func freezeNow(atMs int64) (restore func()) {
	prev := nowFunc
	nowFunc = func() time.Time { return time.Unix(0, atMs*int64(time.Millisecond)) }
	return func() { nowFunc = prev }
}

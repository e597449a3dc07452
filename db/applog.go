package db

import (
	"encoding/binary"
	"strings"
	"time"

	bolt "github.com/coreos/bbolt"
)

var appLogBucket = []byte("applog")

// AppLogSink is a reference implementation of the persistence/
// replication Sink, backing the append log with a single embedded
// bbolt.DB file. Every propagated record is appended as one key/value
// pair ordered by an auto-incrementing sequence, so replaying the
// bucket in key order reproduces the exact propagation order.
type AppLogSink struct {
	bdb *bolt.DB
}

// OpenAppLog opens (creating if needed) a bbolt file at path as the
// backing store for an AppLogSink.
func OpenAppLog(path string) (*AppLogSink, error) {
	bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, annotate(err, "open applog")
	}
	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appLogBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, annotate(err, "init applog bucket")
	}
	return &AppLogSink{bdb: bdb}, nil
}

// Propagate implements Sink by appending argv, space-joined (see
// encodeAppLogRecord), under a monotonically increasing key. When the
// caller built a wire-encoded payload for the record (e.g.
// propagateFieldDelete's protobuf-marshaled FieldDeleteRecord), it is
// stored alongside argv rather than discarded. Replay hands its
// callback the argv part only; the stored payload is not passed on.
func (s *AppLogSink) Propagate(dbID int, argv []string, payload []byte) error {
	return s.bdb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appLogBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, encodeAppLogRecord(argv, payload))
	})
}

// encodeAppLogRecord lays out one record as a 4-byte big-endian length
// prefix for the space-joined argv, the argv bytes themselves, then
// whatever payload bytes accompanied the propagation (zero-length when
// none did).
func encodeAppLogRecord(argv []string, payload []byte) []byte {
	joined := []byte(strings.Join(argv, " "))
	out := make([]byte, 4+len(joined)+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(joined)))
	copy(out[4:], joined)
	copy(out[4+len(joined):], payload)
	return out
}

// decodeAppLogRecord splits a record written by encodeAppLogRecord back
// into its argv and payload parts.
func decodeAppLogRecord(rec []byte) (argv []string, payload []byte) {
	if len(rec) < 4 {
		return nil, nil
	}
	n := binary.BigEndian.Uint32(rec[:4])
	rec = rec[4:]
	if uint32(len(rec)) < n {
		return nil, nil
	}
	argv = strings.Split(string(rec[:n]), " ")
	payload = rec[n:]
	return argv, payload
}

// Close releases the backing bbolt file.
func (s *AppLogSink) Close() error {
	return s.bdb.Close()
}

// Replay invokes fn for every propagated record in the order they were
// appended, letting a replica apply them deterministically.
func (s *AppLogSink) Replay(fn func(argv []string) error) error {
	return s.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(appLogBucket)
		return b.ForEach(func(k, v []byte) error {
			argv, _ := decodeAppLogRecord(v)
			return fn(argv)
		})
	})
}

package db

import (
	"strconv"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/shafreeck/retry"
	"go.uber.org/zap"
)

// FieldDeleteRecord is a field deletion wire-encoded with the legacy
// (struct-tag + reflection) github.com/golang/protobuf API so the sink
// can hand a stable byte payload to whatever append-log/replication
// transport it fronts.
type FieldDeleteRecord struct {
	DbId  int32  `protobuf:"varint,1,opt,name=db_id" json:"db_id,omitempty"`
	Key   string `protobuf:"bytes,2,opt,name=key" json:"key,omitempty"`
	Field string `protobuf:"bytes,3,opt,name=field" json:"field,omitempty"`
}

func (m *FieldDeleteRecord) Reset()         { *m = FieldDeleteRecord{} }
func (m *FieldDeleteRecord) String() string { return proto.CompactTextString(m) }
func (m *FieldDeleteRecord) ProtoMessage()  {}

// Sink is the persistence/replication collaborator: it accepts a
// synthetic command array plus, where one was built, its wire-encoded
// form, enqueued into the append log and replication stream. The
// engine never talks to the transport directly, only to this
// interface, so tests can substitute a recording fake. payload is nil
// for propagations that have no dedicated wire encoding (e.g.
// HPEXPIREAT/DEL rewrites, which replicate as argv alone).
type Sink interface {
	Propagate(dbID int, argv []string, payload []byte) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(dbID int, argv []string, payload []byte) error

func (f SinkFunc) Propagate(dbID int, argv []string, payload []byte) error {
	return f(dbID, argv, payload)
}

// NopSink discards every record; used when no persistence/replication
// layer is configured (e.g. unit tests of the encoding/expiration logic
// alone).
var NopSink Sink = SinkFunc(func(int, []string, []byte) error { return nil })

// executionUnit brackets propagation calls so they coalesce with any
// surrounding batch. It is a plain nesting counter: the engine has no
// MULTI/EXEC of its own, so there is nothing to buffer beyond tracking
// depth for a sink that wants to know whether it's inside one.
type executionUnit struct {
	depth int
}

func (u *executionUnit) enter() { u.depth++ }
func (u *executionUnit) exit() {
	if u.depth > 0 {
		u.depth--
	}
}
func (u *executionUnit) inside() bool { return u.depth > 0 }

// propagateFieldDelete synthesizes ("HDEL", key, field), forces
// replication on for the duration of the synthesized call, retries
// transient sink failures, and always restores the forced flag even on
// error.
func (db *DB) propagateFieldDelete(key, field []byte) error {
	db.execUnit.enter()
	defer db.execUnit.exit()

	prevForced := db.replicationForced
	db.replicationForced = true
	defer func() { db.replicationForced = prevForced }()

	rec := &FieldDeleteRecord{DbId: int32(db.ID), Key: string(key), Field: string(field)}
	payload, err := proto.Marshal(rec)
	if err != nil {
		zap.L().Error("encode field-delete record failed", zap.Error(err))
		payload = nil
	}

	argv := []string{"HDEL", string(key), string(field)}
	op := func() error { return db.sink.Propagate(db.ID, argv, payload) }

	err = retry.Ensure(op, retry.Times(db.cfg.PropagateRetries), retry.Interval(10*time.Millisecond))
	if err != nil {
		zap.L().Error("propagate field delete failed",
			zap.String("key", string(key)), zap.String("field", string(field)), zap.Error(err))
		return err
	}
	if logEnv := zap.L().Check(zap.DebugLevel, "propagated field delete"); logEnv != nil {
		logEnv.Write(zap.String("key", string(key)), zap.String("field", string(field)),
			zap.String("db", strconv.Itoa(db.ID)))
	}
	db.metrics.fieldDeletesPropagated.Inc()
	return nil
}

// propagateSetExpire synthesizes ("HPEXPIREAT", key, at, "FIELDS",
// len(fields), field...): every accepted HEXPIRE/HPEXPIRE/HEXPIREAT
// call is rewritten to its absolute-millisecond HPEXPIREAT form before
// propagation, so a replica applying the record at any later wall-clock
// still expires the fields at the same deadline.
func (db *DB) propagateSetExpire(key []byte, fields [][]byte, at int64) error {
	if len(fields) == 0 {
		return nil
	}
	db.execUnit.enter()
	defer db.execUnit.exit()

	prevForced := db.replicationForced
	db.replicationForced = true
	defer func() { db.replicationForced = prevForced }()

	argv := make([]string, 0, 4+len(fields))
	argv = append(argv, "HPEXPIREAT", string(key), strconv.FormatInt(at, 10),
		"FIELDS", strconv.Itoa(len(fields)))
	for _, field := range fields {
		argv = append(argv, string(field))
	}
	op := func() error { return db.sink.Propagate(db.ID, argv, nil) }

	err := retry.Ensure(op, retry.Times(db.cfg.PropagateRetries), retry.Interval(10*time.Millisecond))
	if err != nil {
		zap.L().Error("propagate set expire failed",
			zap.String("key", string(key)), zap.Int64("at", at), zap.Error(err))
		return err
	}
	if logEnv := zap.L().Check(zap.DebugLevel, "propagated set expire"); logEnv != nil {
		logEnv.Write(zap.String("key", string(key)), zap.Int64("at", at),
			zap.Int("fields", len(fields)), zap.String("db", strconv.Itoa(db.ID)))
	}
	return nil
}

// propagateKeyDelete synthesizes ("DEL", key) when a hash is removed
// because its last field expired.
func (db *DB) propagateKeyDelete(key []byte) error {
	db.execUnit.enter()
	defer db.execUnit.exit()

	prevForced := db.replicationForced
	db.replicationForced = true
	defer func() { db.replicationForced = prevForced }()

	argv := []string{"DEL", string(key)}
	op := func() error { return db.sink.Propagate(db.ID, argv, nil) }
	return retry.Ensure(op, retry.Times(db.cfg.PropagateRetries), retry.Interval(10*time.Millisecond))
}

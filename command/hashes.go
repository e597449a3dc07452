package command

import (
	"path/filepath"
	"strconv"

	"github.com/distributedio/titanhfe/db"
	"github.com/distributedio/titanhfe/encoding/resp"
)

func nowMs() int64 { return db.NowMs() }

// HSet implements HSET key field value [field value ...], reporting how
// many of the given fields were newly created (fields that already
// existed are overwritten but not counted, matching Redis's HSET arity).
func HSet(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 3 || len(ctx.Args)%2 != 1 {
		return nil, ErrWrongNumberOfArguments("hset")
	}
	key := []byte(ctx.Args[0])
	now := ctx.now()
	created := int64(0)
	for i := 1; i < len(ctx.Args); i += 2 {
		field := []byte(ctx.Args[i])
		value := []byte(ctx.Args[i+1])
		wasCreated, err := txn.HSet(key, field, value, db.SetOpts{}, now)
		if err != nil {
			return nil, translateErr(err)
		}
		if wasCreated {
			created++
		}
	}
	return Integer(ctx.Out, created), nil
}

// HSetNX implements HSETNX key field value.
func HSetNX(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 3 {
		return nil, ErrWrongNumberOfArguments("hsetnx")
	}
	key := []byte(ctx.Args[0])
	field := []byte(ctx.Args[1])
	value := []byte(ctx.Args[2])
	ok, err := txn.HSetNX(key, field, value, ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	if ok {
		return Integer(ctx.Out, 1), nil
	}
	return Integer(ctx.Out, 0), nil
}

// HGet implements HGET key field.
func HGet(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 2 {
		return nil, ErrWrongNumberOfArguments("hget")
	}
	key := []byte(ctx.Args[0])
	field := []byte(ctx.Args[1])
	value, ok, err := txn.HGet(key, field, ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	if !ok {
		return NullBulkString(ctx.Out), nil
	}
	return BulkString(ctx.Out, string(value)), nil
}

// HDel implements HDEL key field [field ...].
func HDel(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 2 {
		return nil, ErrWrongNumberOfArguments("hdel")
	}
	key := []byte(ctx.Args[0])
	fields := toByteSlices(ctx.Args[1:])
	n, err := txn.HDel(key, fields, ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	return Integer(ctx.Out, int64(n)), nil
}

// HExists implements HEXISTS key field.
func HExists(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 2 {
		return nil, ErrWrongNumberOfArguments("hexists")
	}
	ok, err := txn.HExists([]byte(ctx.Args[0]), []byte(ctx.Args[1]), ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	if ok {
		return Integer(ctx.Out, 1), nil
	}
	return Integer(ctx.Out, 0), nil
}

// HLen implements HLEN key.
func HLen(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 1 {
		return nil, ErrWrongNumberOfArguments("hlen")
	}
	n, err := txn.HLen([]byte(ctx.Args[0]))
	if err != nil {
		return nil, translateErr(err)
	}
	return Integer(ctx.Out, int64(n)), nil
}

// HStrlen implements HSTRLEN key field.
func HStrlen(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 2 {
		return nil, ErrWrongNumberOfArguments("hstrlen")
	}
	n, err := txn.HStrlen([]byte(ctx.Args[0]), []byte(ctx.Args[1]), ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	return Integer(ctx.Out, int64(n)), nil
}

// HKeys implements HKEYS key (unfiltered, matching Redis's own HKEYS,
// which does not lazily expire).
func HKeys(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 1 {
		return nil, ErrWrongNumberOfArguments("hkeys")
	}
	keys, err := txn.HKeys([]byte(ctx.Args[0]))
	if err != nil {
		return nil, translateErr(err)
	}
	return BytesArrayOnce(ctx.Out, keys), nil
}

// HVals implements HVALS key, skipping already-expired fields the same
// way HGETALL does.
func HVals(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 1 {
		return nil, ErrWrongNumberOfArguments("hvals")
	}
	_, values, err := txn.HGetAll([]byte(ctx.Args[0]), ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	return BytesArrayOnce(ctx.Out, values), nil
}

// HGetAll implements HGETALL key: a flattened field1 value1 field2
// value2 ... array, skipping fields already past their deadline.
func HGetAll(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 1 {
		return nil, ErrWrongNumberOfArguments("hgetall")
	}
	fields, values, err := txn.HGetAll([]byte(ctx.Args[0]), ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	flat := make([][]byte, 0, 2*len(fields))
	for i := range fields {
		flat = append(flat, fields[i], values[i])
	}
	return BytesArrayOnce(ctx.Out, flat), nil
}

// HIncrBy implements HINCRBY key field delta.
func HIncrBy(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 3 {
		return nil, ErrWrongNumberOfArguments("hincrby")
	}
	delta, err := strconv.ParseInt(ctx.Args[2], 10, 64)
	if err != nil {
		return nil, ErrInteger
	}
	next, err := txn.HIncrBy([]byte(ctx.Args[0]), []byte(ctx.Args[1]), delta, ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	return Integer(ctx.Out, next), nil
}

// HIncrByFloat implements HINCRBYFLOAT key field delta.
func HIncrByFloat(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 3 {
		return nil, ErrWrongNumberOfArguments("hincrbyfloat")
	}
	delta, err := strconv.ParseFloat(ctx.Args[2], 64)
	if err != nil {
		return nil, ErrFloat
	}
	next, err := txn.HIncrByFloat([]byte(ctx.Args[0]), []byte(ctx.Args[1]), delta, ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	return BulkString(ctx.Out, strconv.FormatFloat(next, 'f', -1, 64)), nil
}

// HRandField implements HRANDFIELD key [count [WITHVALUES]]. Every draw
// samples independently with replacement (db.Hash.randomField's
// contract); a distinct-without-replacement mode for positive counts,
// the way real Redis behaves when count > 0, is not implemented here.
func HRandField(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 1 || len(ctx.Args) > 3 {
		return nil, ErrWrongNumberOfArguments("hrandfield")
	}
	key := []byte(ctx.Args[0])
	if len(ctx.Args) == 1 {
		field, _, ok, err := txn.HRandField(key)
		if err != nil {
			return nil, translateErr(err)
		}
		if !ok {
			return NullBulkString(ctx.Out), nil
		}
		return BulkString(ctx.Out, string(field)), nil
	}

	count, err := strconv.Atoi(ctx.Args[1])
	if err != nil {
		return nil, ErrInteger
	}
	withValues := false
	if len(ctx.Args) == 3 {
		if ctx.Args[2] != "WITHVALUES" {
			return nil, ErrSyntax
		}
		withValues = true
	}
	n := count
	if n < 0 {
		n = -n
	}
	out := make([][]byte, 0, n*2)
	for i := 0; i < n; i++ {
		field, value, ok, err := txn.HRandField(key)
		if err != nil {
			return nil, translateErr(err)
		}
		if !ok {
			break
		}
		out = append(out, field)
		if withValues {
			out = append(out, value)
		}
	}
	return BytesArrayOnce(ctx.Out, out), nil
}

// HScan implements HSCAN key cursor [MATCH pattern] [COUNT count]. The
// keyspace this engine models fits comfortably in memory per hash, so a
// single pass returning cursor "0" (meaning "done") with every matching
// field satisfies the scan contract without needing real cursor state.
// Expired fields are not filtered here, matching HKEYS's unfiltered
// semantics, and are not lazily expired either: a scan must
// not mutate the hash or emit deletion events as a side effect of
// paging through it.
func HScan(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 2 {
		return nil, ErrWrongNumberOfArguments("hscan")
	}
	key := []byte(ctx.Args[0])
	pattern := ""
	for i := 2; i < len(ctx.Args); i++ {
		switch ctx.Args[i] {
		case "MATCH":
			if i+1 >= len(ctx.Args) {
				return nil, ErrSyntax
			}
			i++
			pattern = ctx.Args[i]
		case "COUNT":
			if i+1 >= len(ctx.Args) {
				return nil, ErrSyntax
			}
			i++ // accepted and ignored: one pass already returns everything
		default:
			return nil, ErrSyntax
		}
	}

	fields, err := txn.HKeys(key)
	if err != nil {
		return nil, translateErr(err)
	}
	out := make([][]byte, 0, 2*len(fields))
	for _, field := range fields {
		if pattern != "" {
			matched, merr := filepath.Match(pattern, string(field))
			if merr != nil || !matched {
				continue
			}
		}
		value, ok, err := txn.HGetForScan(key, field)
		if err != nil {
			return nil, translateErr(err)
		}
		if !ok {
			continue
		}
		out = append(out, field, value)
	}

	return func() {
		resp.ReplyArrayHeader(ctx.Out, 2)
		resp.ReplyBulkString(ctx.Out, []byte("0"))
		resp.ReplyBytesArray(ctx.Out, out)
	}, nil
}

// HCopy implements HCOPY key newkey (duplicate): deep-copies key's value,
// per-field expirations included, under a fresh identity at newkey. Any
// existing value at newkey is unlinked and overwritten. Replies 1 if key
// existed and was copied, 0 if key did not exist.
func HCopy(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) != 2 {
		return nil, ErrWrongNumberOfArguments("hcopy")
	}
	ok, err := txn.Duplicate([]byte(ctx.Args[0]), []byte(ctx.Args[1]), ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	if ok {
		return Integer(ctx.Out, 1), nil
	}
	return Integer(ctx.Out, 0), nil
}

func toByteSlices(args []string) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}

func translateErr(err error) error {
	switch err {
	case db.ErrTypeMismatch:
		return ErrTypeMismatch
	case db.ErrNotInteger:
		return ErrInteger
	case db.ErrNotFloat:
		return ErrFloat
	default:
		return err
	}
}

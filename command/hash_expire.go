package command

import (
	"strconv"
	"time"

	"github.com/distributedio/titanhfe/db"
)

// parseFieldsClause parses the trailing "FIELDS numfields field
// [field ...]" clause every HEXPIRE-family command ends with.
func parseFieldsClause(args []string) ([][]byte, error) {
	if len(args) < 2 || args[0] != "FIELDS" {
		return nil, ErrSyntax
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n <= 0 {
		return nil, ErrSyntax
	}
	rest := args[2:]
	if len(rest) != n {
		return nil, ErrSyntax
	}
	return toByteSlices(rest), nil
}

// parseExpireArgs parses "key <time> [NX|XX|GT|LT] FIELDS ...".
func parseExpireArgs(args []string) (key []byte, amount int64, cond db.ExpireCond, fields [][]byte, err error) {
	if len(args) < 4 {
		return nil, 0, db.CondNone, nil, ErrWrongNumberOfArguments("hexpire")
	}
	key = []byte(args[0])
	amount, err = strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return nil, 0, db.CondNone, nil, ErrInteger
	}
	rest := args[2:]
	cond = db.CondNone
	switch rest[0] {
	case "NX":
		cond, rest = db.CondNX, rest[1:]
	case "XX":
		cond, rest = db.CondXX, rest[1:]
	case "GT":
		cond, rest = db.CondGT, rest[1:]
	case "LT":
		cond, rest = db.CondLT, rest[1:]
	}
	fields, err = parseFieldsClause(rest)
	if err != nil {
		return nil, 0, db.CondNone, nil, err
	}
	return key, amount, cond, fields, nil
}

// resultsToReplyCodes maps FieldExpireResult to the integer codes the
// HEXPIRE family replies with: -2 no such field, 0 condition not met, 1
// TTL set, 2 deleted outright (expiry already due).
func resultsToReplyCodes(results []db.FieldExpireResult) []int64 {
	codes := make([]int64, len(results))
	for i, r := range results {
		switch r {
		case db.FieldExpireNoSuchField:
			codes[i] = -2
		case db.FieldExpireConditionNotMet:
			codes[i] = 0
		case db.FieldExpireSet:
			codes[i] = 1
		case db.FieldExpireDeleted:
			codes[i] = 2
		}
	}
	return codes
}

func hexpire(ctx *Context, txn *db.Transaction, toAbsoluteMs func(amount, now int64) int64) (OnCommit, error) {
	key, amount, cond, fields, err := parseExpireArgs(ctx.Args)
	if err != nil {
		return nil, err
	}
	now := ctx.now()
	at := toAbsoluteMs(amount, now)
	results, err := txn.SetFieldExpires(key, fields, at, cond, now)
	if err != nil {
		return nil, translateErr(err)
	}
	return IntegerArray(ctx.Out, resultsToReplyCodes(results)), nil
}

// HExpire implements HEXPIRE key seconds [NX|XX|GT|LT] FIELDS numfields
// field [field ...].
func HExpire(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	return hexpire(ctx, txn, func(seconds, now int64) int64 { return now + seconds*1000 })
}

// HPExpire implements HPEXPIRE (milliseconds relative to now).
func HPExpire(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	return hexpire(ctx, txn, func(ms, now int64) int64 { return now + ms })
}

// HExpireAt implements HEXPIREAT (absolute unix seconds).
func HExpireAt(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	return hexpire(ctx, txn, func(unixSeconds, _ int64) int64 { return unixSeconds * 1000 })
}

// HPExpireAt implements HPEXPIREAT (absolute unix milliseconds).
func HPExpireAt(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	return hexpire(ctx, txn, func(unixMs, _ int64) int64 { return unixMs })
}

func ttlReplyCodes(expireAts []int64, statuses []db.FieldStatus, now int64, toUnit func(deltaMs int64) int64) []int64 {
	codes := make([]int64, len(expireAts))
	for i, status := range statuses {
		if status != db.FieldFound {
			codes[i] = -2
			continue
		}
		if expireAts[i] == 0 {
			codes[i] = -1
			continue
		}
		codes[i] = toUnit(expireAts[i] - now)
	}
	return codes
}

// HTTL implements HTTL key FIELDS numfields field [field ...], replying
// with the remaining TTL in whole seconds.
func HTTL(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 3 {
		return nil, ErrWrongNumberOfArguments("httl")
	}
	key := []byte(ctx.Args[0])
	fields, err := parseFieldsClause(ctx.Args[1:])
	if err != nil {
		return nil, err
	}
	now := ctx.now()
	expireAts, statuses, err := txn.FieldTTLs(key, fields, now)
	if err != nil {
		return nil, translateErr(err)
	}
	codes := ttlReplyCodes(expireAts, statuses, now, func(deltaMs int64) int64 {
		return int64(time.Duration(deltaMs) * time.Millisecond / time.Second)
	})
	return IntegerArray(ctx.Out, codes), nil
}

// HPTTL implements HPTTL, replying in milliseconds.
func HPTTL(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 3 {
		return nil, ErrWrongNumberOfArguments("hpttl")
	}
	key := []byte(ctx.Args[0])
	fields, err := parseFieldsClause(ctx.Args[1:])
	if err != nil {
		return nil, err
	}
	now := ctx.now()
	expireAts, statuses, err := txn.FieldTTLs(key, fields, now)
	if err != nil {
		return nil, translateErr(err)
	}
	codes := ttlReplyCodes(expireAts, statuses, now, func(deltaMs int64) int64 { return deltaMs })
	return IntegerArray(ctx.Out, codes), nil
}

func expireTimeReplyCodes(expireAts []int64, statuses []db.FieldStatus, toUnit func(int64) int64) []int64 {
	codes := make([]int64, len(expireAts))
	for i, status := range statuses {
		if status != db.FieldFound {
			codes[i] = -2
			continue
		}
		if expireAts[i] == 0 {
			codes[i] = -1
			continue
		}
		codes[i] = toUnit(expireAts[i])
	}
	return codes
}

// HExpireTime implements HEXPIRETIME, replying with the absolute unix
// expiry in whole seconds.
func HExpireTime(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 3 {
		return nil, ErrWrongNumberOfArguments("hexpiretime")
	}
	key := []byte(ctx.Args[0])
	fields, err := parseFieldsClause(ctx.Args[1:])
	if err != nil {
		return nil, err
	}
	now := ctx.now()
	expireAts, statuses, err := txn.FieldTTLs(key, fields, now)
	if err != nil {
		return nil, translateErr(err)
	}
	codes := expireTimeReplyCodes(expireAts, statuses, func(ms int64) int64 { return ms / 1000 })
	return IntegerArray(ctx.Out, codes), nil
}

// HPExpireTime implements HPEXPIRETIME, replying in unix milliseconds.
func HPExpireTime(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 3 {
		return nil, ErrWrongNumberOfArguments("hpexpiretime")
	}
	key := []byte(ctx.Args[0])
	fields, err := parseFieldsClause(ctx.Args[1:])
	if err != nil {
		return nil, err
	}
	now := ctx.now()
	expireAts, statuses, err := txn.FieldTTLs(key, fields, now)
	if err != nil {
		return nil, translateErr(err)
	}
	codes := expireTimeReplyCodes(expireAts, statuses, func(ms int64) int64 { return ms })
	return IntegerArray(ctx.Out, codes), nil
}

// HPersist implements HPERSIST key FIELDS numfields field [field ...]:
// -2 no such field, -1 field has no TTL to clear, 1 TTL removed.
func HPersist(ctx *Context, txn *db.Transaction) (OnCommit, error) {
	if len(ctx.Args) < 3 {
		return nil, ErrWrongNumberOfArguments("hpersist")
	}
	key := []byte(ctx.Args[0])
	fields, err := parseFieldsClause(ctx.Args[1:])
	if err != nil {
		return nil, err
	}
	results, err := txn.HPersist(key, fields, ctx.now())
	if err != nil {
		return nil, translateErr(err)
	}
	codes := make([]int64, len(results))
	for i, r := range results {
		switch r {
		case db.FieldResultNoField:
			codes[i] = -2
		case db.FieldResultNoTTL:
			codes[i] = -1
		case db.FieldResultOK:
			codes[i] = 1
		}
	}
	return IntegerArray(ctx.Out, codes), nil
}

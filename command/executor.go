package command

import (
	"strings"

	"github.com/distributedio/titanhfe/db"
	"github.com/distributedio/titanhfe/encoding/resp"
)

// Handler is one command's implementation: given the parsed Context and
// a Transaction, it either returns the OnCommit reply thunk to run after
// a successful commit, or a client-facing error.
type Handler func(ctx *Context, txn *db.Transaction) (OnCommit, error)

// Executor holds the command registry and dispatches one parsed command
// at a time via a CanExecute/Execute split used directly by client.go's
// serve loop.
type Executor struct {
	handlers map[string]Handler
	db       *db.DB
}

// NewExecutor builds an Executor backed by database, wired with every
// handler registered in hashes.go and hash_expire.go.
func NewExecutor(database *db.DB) *Executor {
	return &Executor{handlers: defaultHandlers(), db: database}
}

// CanExecute reports whether name (case-insensitively) has a registered
// handler.
func (e *Executor) CanExecute(name string) bool {
	_, ok := e.handlers[strings.ToUpper(name)]
	return ok
}

// Execute runs ctx.Name against a fresh Transaction and writes the
// reply: handler errors and commit failures both produce a RESP error
// reply, never a panic, since the client loop keeps the connection open
// across unknown or malformed commands (client.go closes it after the
// third unknown command on that connection).
func (e *Executor) Execute(ctx *Context) {
	h, ok := e.handlers[strings.ToUpper(ctx.Name)]
	if !ok {
		resp.ReplyError(ctx.Out, ErrUnKnownCommand(ctx.Name).Error())
		return
	}

	txn, err := e.db.Begin()
	if err != nil {
		resp.ReplyError(ctx.Out, err.Error())
		return
	}

	onCommit, err := h(ctx, txn)
	if err != nil {
		txn.Rollback()
		resp.ReplyError(ctx.Out, err.Error())
		return
	}
	if err := txn.Commit(); err != nil {
		resp.ReplyError(ctx.Out, err.Error())
		return
	}
	if onCommit != nil {
		onCommit()
	}
}

func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		"HSET":          HSet,
		"HSETNX":        HSetNX,
		"HGET":          HGet,
		"HDEL":          HDel,
		"HEXISTS":       HExists,
		"HLEN":          HLen,
		"HKEYS":         HKeys,
		"HVALS":         HVals,
		"HGETALL":       HGetAll,
		"HSTRLEN":       HStrlen,
		"HINCRBY":       HIncrBy,
		"HINCRBYFLOAT":  HIncrByFloat,
		"HRANDFIELD":    HRandField,
		"HSCAN":         HScan,
		"HEXPIRE":       HExpire,
		"HPEXPIRE":      HPExpire,
		"HEXPIREAT":     HExpireAt,
		"HPEXPIREAT":    HPExpireAt,
		"HTTL":          HTTL,
		"HPTTL":         HPTTL,
		"HEXPIRETIME":   HExpireTime,
		"HPEXPIRETIME":  HPExpireTime,
		"HPERSIST":      HPersist,
		"HCOPY":         HCopy,
	}
}

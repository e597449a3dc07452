// Package context carries the per-client and per-server state the
// command layer and client loop (client.go) thread through every
// command, split between a per-connection ClientContext and a shared
// ServerContext.
package context

import (
	"time"

	"github.com/distributedio/titanhfe/db"
)

// ClientContext is the per-connection state client.go keeps across the
// lifetime of one client: identity, the last command it sent (for error
// logging) and a Done channel the server closes to force it to exit.
type ClientContext struct {
	ID         int64
	RemoteAddr string
	Namespace  string
	Multi      bool
	Txn        *db.Transaction
	LastCmd    string
	Updated    time.Time
	SkipN      int
	Done       chan struct{}
}

// NewClientContext builds a ClientContext for a freshly accepted
// connection.
func NewClientContext(id int64, remoteAddr string) *ClientContext {
	return &ClientContext{
		ID:         id,
		RemoteAddr: remoteAddr,
		Updated:    time.Now(),
		Done:       make(chan struct{}),
	}
}

// ServerContext is shared, read-mostly state every client's commands
// dispatch against: the engine itself plus a couple of operator knobs
// (Pause lets an operator inject an artificial per-command delay during
// incident response).
type ServerContext struct {
	DB    *db.DB
	Pause time.Duration
}

// Context is what command.Context embeds: a client's identity plus the
// shared server state, bundled by New.
type Context struct {
	*ClientContext
	*ServerContext
}

// New bundles cliCtx and servCtx into one embeddable Context.
func New(cliCtx *ClientContext, servCtx *ServerContext) *Context {
	return &Context{ClientContext: cliCtx, ServerContext: servCtx}
}

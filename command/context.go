package command

import (
	"bufio"
	"io"

	titancontext "github.com/distributedio/titanhfe/context"
)

// Context is one command invocation's working state: the parsed name and
// argument vector, the connection's reader/writer, a trace id for log
// correlation, and the embedded client/server context every handler can
// reach through it (ctx.DB, ctx.Namespace, ...).
//
// Now is the command-time snapshot: a single millisecond timestamp
// taken once at command entry by the serve loop (client.go), before
// dispatch, and shared by every time comparison the handler and the
// fields it touches make. This is what keeps a multi-field HEXPIRE or
// an HGETALL from observing different clock readings mid-command.
type Context struct {
	Name    string
	Args    []string
	In      *bufio.Reader
	Out     io.Writer
	TraceID string
	Now     int64
	*titancontext.Context
}

// now reports ctx's command-time snapshot, falling back to the live
// clock when Now was never set (tests that build a Context directly
// rather than going through the serve loop's dispatch).
func (ctx *Context) now() int64 {
	if ctx.Now != 0 {
		return ctx.Now
	}
	return nowMs()
}

// OnCommit is returned by a command handler alongside a nil error: the
// reply to actually write once the transaction it ran under has
// committed. Handlers that want no reply (none currently do) may return
// nil.
type OnCommit func()

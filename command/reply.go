package command

import (
	"io"

	"github.com/distributedio/titanhfe/encoding/resp"
)

// Integer builds the OnCommit for a RESP integer reply.
func Integer(w io.Writer, n int64) OnCommit {
	return func() { resp.ReplyInteger(w, n) }
}

// SimpleString builds the OnCommit for a RESP simple-string reply (e.g.
// "+OK\r\n").
func SimpleString(w io.Writer, s string) OnCommit {
	return func() { resp.ReplySimpleString(w, s) }
}

// BulkString builds the OnCommit for a single RESP bulk string reply.
func BulkString(w io.Writer, s string) OnCommit {
	return func() { resp.ReplyBulkString(w, []byte(s)) }
}

// NullBulkString builds the OnCommit for a RESP2 nil bulk string, used
// when a field or key is missing.
func NullBulkString(w io.Writer) OnCommit {
	return func() { resp.ReplyNullBulkString(w) }
}

// BytesArrayOnce builds the OnCommit for a flat array of bulk strings.
// A nil items reports a RESP2 nil array, the convention used for a
// missing key's "doesn't exist" case.
func BytesArrayOnce(w io.Writer, items [][]byte) OnCommit {
	return func() { resp.ReplyBytesArray(w, items) }
}

// IntegerArray builds the OnCommit for an array of integers, the shape
// HTTL/HPTTL/HEXPIRETIME/HPEXPIRETIME/HPERSIST/HEXPIRE all reply with:
// one result code per requested field, in the same order.
func IntegerArray(w io.Writer, ns []int64) OnCommit {
	return func() {
		resp.ReplyArrayHeader(w, len(ns))
		for _, n := range ns {
			resp.ReplyInteger(w, n)
		}
	}
}

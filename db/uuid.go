package db

import uuid "github.com/satori/go.uuid"

// NewObjectID mints the identity carried by a hash's Object header.
// Nothing here needs identity for cross-transaction GC, since there is
// no distributed store to reconcile against, but keeping a stable ID on
// every hash gives the snapshot format a cheap, comparable handle
// distinct from the key string.
func NewObjectID() []byte {
	id := uuid.NewV4()
	return id.Bytes()
}

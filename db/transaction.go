package db

// Transaction is the command-dispatch handle the command package is
// built around (db.Begin() / txn.HSet(key, ...) / txn.Commit()). This
// engine has no multi-key atomicity to offer beyond what db.mu already
// guarantees: one cooperative owner serializes every operation, so
// Transaction is a thin, stateless wrapper. Commit and Rollback are
// no-ops kept only so the command layer can be written in this
// begin/commit/rollback shape.
type Transaction struct {
	*DB
}

// Begin opens a Transaction against db. It cannot fail; the error
// return is kept so command handlers can treat every store call
// uniformly.
func (db *DB) Begin() (*Transaction, error) {
	return &Transaction{DB: db}, nil
}

// Commit is a no-op: every mutation already took effect under db.mu by
// the time the command handler returned.
func (t *Transaction) Commit() error { return nil }

// Rollback is also a no-op for the same reason; kept so handlers can
// call it on error without a type check.
func (t *Transaction) Rollback() error { return nil }

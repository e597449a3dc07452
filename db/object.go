package db

// Encoding is the keyspace-level value header tag: one hash value is
// always in exactly one of these three representations.
type Encoding int

const (
	// EncodingListpack: inline (field, value) pairs, no field may carry
	// a TTL.
	EncodingListpack Encoding = iota
	// EncodingListpackEx: inline (field, value, expiry) triples ordered
	// by expiry ascending, "no TTL" triples trailing.
	EncodingListpackEx
	// EncodingHT: hash table with a private Index and a global-index
	// handle.
	EncodingHT
)

func (e Encoding) String() string {
	switch e {
	case EncodingListpack:
		return "listpack"
	case EncodingListpackEx:
		return "listpackex"
	case EncodingHT:
		return "hashtable"
	default:
		return "unknown"
	}
}

// Object is the small identity/bookkeeping header every hash carries:
// an ID, creation/update timestamps and the encoding tag. Per-field
// expiration lives in the fields themselves (Field/httEntry), not here;
// hash-level key TTL is out of this engine's scope — only hash *field*
// expiration is modeled.
type Object struct {
	ID        []byte
	CreatedAt int64
	UpdatedAt int64
	Encoding  Encoding
}

func newObject(now int64, enc Encoding) Object {
	return Object{
		ID:        NewObjectID(),
		CreatedAt: now,
		UpdatedAt: now,
		Encoding:  enc,
	}
}

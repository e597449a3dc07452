package db

// Field is a field name carrying an optional fixed-size expiration
// block. The two flavors (with and without a TTL) are represented by
// whether meta is nil rather than by pointer tagging, since Go gives
// every interface value a type tag already and there is no unsafe
// pointer arithmetic in the hot path. A Field's identity (pointer)
// never changes across the no-metadata -> metadata upgrade: meta is
// allocated in place on first expiry instead of swapping the owning
// map's key.
type Field struct {
	Name []byte
	meta *fieldMeta
}

type fieldMeta struct {
	expireAt int64 // 0 means "no TTL"
	handle   Handle
}

// NewField builds a field with no metadata reserved.
func NewField(name []byte) *Field {
	return &Field{Name: name}
}

// NewFieldWithExpiry builds a field with a metadata block already
// reserved, handle starting detached.
func NewFieldWithExpiry(name []byte) *Field {
	return &Field{Name: name, meta: &fieldMeta{}}
}

// HasMeta reports whether the metadata block has been allocated.
func (f *Field) HasMeta() bool { return f.meta != nil }

// HasExpiry reports whether the field currently carries a finite TTL.
func (f *Field) HasExpiry() bool { return f.meta != nil && f.meta.expireAt != 0 }

// ExpireAt returns the field's absolute deadline, or 0 for "no TTL".
func (f *Field) ExpireAt() int64 {
	if f.meta == nil {
		return 0
	}
	return f.meta.expireAt
}

// SetExpireAt sets the field's deadline, allocating the metadata block
// on first use.
func (f *Field) SetExpireAt(t int64) {
	if f.meta == nil {
		f.meta = &fieldMeta{}
	}
	f.meta.expireAt = t
}

// Persist clears the field's TTL without reallocating; downgrade
// happens only via persist, which removes the expiry without
// reallocating the field.
func (f *Field) Persist() {
	if f.meta != nil {
		f.meta.expireAt = 0
	}
}

// ExpireHandle exposes the embedded bucket handle to an Index, allocating
// the metadata block if this is the field's first attachment.
func (f *Field) ExpireHandle() *Handle {
	if f.meta == nil {
		f.meta = &fieldMeta{}
	}
	return &f.meta.handle
}

// Attached reports whether the field is currently linked into its
// owning hash's private Index.
func (f *Field) Attached() bool {
	return f.meta != nil && !f.meta.handle.Detached()
}

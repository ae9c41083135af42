package resource

// Cow is the result of consuming a Resource: either a view borrowed from
// process-lifetime embedded storage or an owned buffer that nothing else
// references. Callers that don't care which backend produced the content
// can treat both the same way.
type Cow[C Content] struct {
	value    C
	borrowed bool
}

// Borrowed wraps process-lifetime content. Byte content must not be modified.
func Borrowed[C Content](v C) Cow[C] { return Cow[C]{value: v, borrowed: true} }

// Owned wraps an independently allocated buffer.
func Owned[C Content](v C) Cow[C] { return Cow[C]{value: v} }

func (c Cow[C]) Value() C         { return c.value }
func (c Cow[C]) IsBorrowed() bool { return c.borrowed }
func (c Cow[C]) IsOwned() bool    { return !c.borrowed }

// Equal compares content, ignoring ownership.
func (c Cow[C]) Equal(v C) bool { return string(c.value) == string(v) }

// IntoOwned returns content the caller may modify freely, copying only when
// the value is borrowed.
func (c Cow[C]) IntoOwned() C {
	if c.borrowed {
		return clone(c.value)
	}
	return c.value
}

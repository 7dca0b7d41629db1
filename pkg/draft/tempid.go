package draft

// TempIDs issues negative placeholder ids for records that have not been
// persisted yet. The sequence is -1, -2, -3, ... and only restarts on Reset.
type TempIDs struct {
	next int64
}

// NewTempIDs returns an allocator whose first id is -1.
func NewTempIDs() *TempIDs {
	return &TempIDs{next: -1}
}

// Next returns the next temporary id.
func (t *TempIDs) Next() int64 {
	id := t.next
	t.next--
	return id
}

// Reset restarts the sequence at -1.
func (t *TempIDs) Reset() {
	t.next = -1
}

// IsTempID reports whether id was issued by a TempIDs allocator.
func IsTempID(id int64) bool {
	return id < 0
}

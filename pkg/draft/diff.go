package draft

// DiffObject returns the fields of current whose value differs from saved,
// carrying the current value. It returns nil when nothing differs or when
// either side is missing; a missing baseline is never treated as "all
// fields changed".
func DiffObject(current, saved Record) Record {
	if current == nil || saved == nil {
		return nil
	}
	if Equal(current, saved) {
		return nil
	}
	changes := Record{}
	for k, v := range current {
		old, ok := saved[k]
		if ok && Equal(v, old) {
			continue
		}
		changes[k] = clone(v)
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

// Update is one changed persisted record of a collection diff.
type Update struct {
	ID      int64  `json:"id"`
	Changes Record `json:"changes"`
}

// CollectionDiff describes how a collection moved away from its snapshot.
type CollectionDiff struct {
	Added     []Record `json:"added"`
	Updated   []Update `json:"updated"`
	Deleted   []int64  `json:"deleted"`
	Reordered bool     `json:"reordered"`
}

// Empty reports whether the diff carries no operation.
func (d CollectionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Deleted) == 0 && !d.Reordered
}

// DiffCollection compares an ordered collection against its snapshot.
//
// Records with a negative id are added, in current order. Persisted records
// found in saved with field differences are updated. Persisted records that
// the snapshot does not know are skipped. Saved ids missing from current are
// deleted. Reordered is set when the saved id order differs from the order
// of the persisted ids in current.
func DiffCollection(current, saved []Record) CollectionDiff {
	diff := CollectionDiff{
		Added:   []Record{},
		Updated: []Update{},
		Deleted: []int64{},
	}

	savedByID := make(map[int64]Record, len(saved))
	savedOrder := make([]int64, 0, len(saved))
	for _, r := range saved {
		id, ok := r.ID()
		if !ok {
			continue
		}
		savedByID[id] = r
		savedOrder = append(savedOrder, id)
	}

	present := make(map[int64]struct{}, len(current))
	currentOrder := make([]int64, 0, len(current))
	for _, r := range current {
		id, ok := r.ID()
		if !ok {
			continue
		}
		present[id] = struct{}{}
		if IsTempID(id) {
			diff.Added = append(diff.Added, r.Clone())
			continue
		}
		currentOrder = append(currentOrder, id)
		old, found := savedByID[id]
		if !found {
			continue
		}
		if changes := DiffObject(r, old); changes != nil {
			diff.Updated = append(diff.Updated, Update{ID: id, Changes: changes})
		}
	}

	for _, id := range savedOrder {
		if _, ok := present[id]; !ok {
			diff.Deleted = append(diff.Deleted, id)
		}
	}

	diff.Reordered = !sameOrder(savedOrder, currentOrder)
	return diff
}

func sameOrder(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package draft

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ObjectWriter persists changes to an object section.
type ObjectWriter interface {
	// UpdateFields stores changes. current is the full working record the
	// changes were computed from.
	UpdateFields(ctx context.Context, changes Record, current Record) error
}

// CollectionWriter persists the records of a collection section.
type CollectionWriter interface {
	// Create inserts a record and returns its server-assigned id. fields
	// never carries the id field.
	Create(ctx context.Context, fields Record) (int64, error)
	UpdateFields(ctx context.Context, id int64, changes Record) error
	Delete(ctx context.Context, id int64) error
	// Reorder stores the position of every persisted record of the section.
	Reorder(ctx context.Context, positions []Position) error
}

// Writers binds section names to the collaborators that persist them.
type Writers struct {
	Objects     map[string]ObjectWriter
	Collections map[string]CollectionWriter
}

// Result summarizes a successful publish.
type Result struct {
	// IDMap maps every temporary id created during the publish to the id the
	// writer returned for it.
	IDMap     map[int64]int64 `json:"idMap"`
	Sections  []string        `json:"sections"`
	Created   int             `json:"created"`
	Updated   int             `json:"updated"`
	Deleted   int             `json:"deleted"`
	Reordered int             `json:"reordered"`
}

// Publisher reconciles a store's working copy into storage.
type Publisher struct {
	writers Writers
	log     zerolog.Logger
}

// NewPublisher returns a publisher that persists through writers.
func NewPublisher(writers Writers, log zerolog.Logger) *Publisher {
	return &Publisher{writers: writers, log: log}
}

// Publish computes the diff of every section against the snapshot and
// applies it through the writers: object sections first, then collections
// with parents ahead of the sections referencing them.
//
// Publish sets the store's Saving flag and returns ErrSaveInProgress, with
// no other effect, when it is already set. On success Saving stays set: the
// caller applies Result.IDMap with ApplyIDMap and then calls CommitSave. On
// failure Saving is cleared, the snapshot is untouched and the working copy
// is left as it was, so a retry attempts the same operations. Operations
// that succeeded before the failure are not rolled back.
func (p *Publisher) Publish(ctx context.Context, s *Store) (*Result, error) {
	order, err := s.Schema().PublishOrder()
	if err != nil {
		return nil, err
	}
	working, snapshot, err := s.beginPublish()
	if err != nil {
		return nil, err
	}

	res := &Result{IDMap: map[int64]int64{}, Sections: []string{}}
	for _, sec := range order {
		var changed bool
		if sec.Kind == KindObject {
			changed, err = p.publishObject(ctx, sec, working, snapshot)
		} else {
			changed, err = p.publishCollection(ctx, sec, working, snapshot, res)
		}
		if err != nil {
			s.EndSave()
			p.log.Warn().Err(err).Str("section", sec.Name).Msg("publish failed")
			return nil, err
		}
		if changed {
			res.Sections = append(res.Sections, sec.Name)
		}
	}

	p.log.Info().
		Strs("sections", res.Sections).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("deleted", res.Deleted).
		Int("reordered", res.Reordered).
		Msg("published")
	return res, nil
}

func (p *Publisher) publishObject(ctx context.Context, sec SectionSpec, working, snapshot Document) (bool, error) {
	cur, err := asRecord(working[sec.Name])
	if err != nil {
		return false, err
	}
	saved, err := asRecord(snapshot[sec.Name])
	if err != nil {
		return false, err
	}
	if cur == nil || saved == nil || Equal(cur, saved) {
		return false, nil
	}
	// A removed key changes the section without leaving a changed field.
	changes := DiffObject(cur, saved)
	if changes == nil {
		changes = Record{}
	}
	w, ok := p.writers.Objects[sec.Name]
	if !ok {
		return false, fmt.Errorf("%w: no writer for %q", ErrUnknownSection, sec.Name)
	}
	p.log.Debug().Str("section", sec.Name).Int("fields", len(changes)).Msg("update object")
	if err := w.UpdateFields(ctx, changes, cur.Clone()); err != nil {
		return false, &PersistenceError{Section: sec.Name, Op: OpUpdate, Err: err}
	}
	return true, nil
}

func (p *Publisher) publishCollection(ctx context.Context, sec SectionSpec, working, snapshot Document, res *Result) (bool, error) {
	current, err := asRecords(working[sec.Name])
	if err != nil {
		return false, err
	}
	saved, err := asRecords(snapshot[sec.Name])
	if err != nil {
		return false, err
	}

	// Parents were published first, so every temporary foreign key must
	// have a server id by now.
	for _, r := range current {
		for field := range sec.ForeignKeys {
			ref, ok := r.Int(field)
			if !ok || !IsTempID(ref) {
				continue
			}
			realID, found := res.IDMap[ref]
			if !found {
				id, _ := r.ID()
				return false, fmt.Errorf("%s %d field %q: %w: %d", sec.Name, id, field, ErrUnresolvedTempID, ref)
			}
			r[field] = realID
		}
	}

	diff := DiffCollection(current, saved)
	if diff.Empty() {
		return false, nil
	}
	w, ok := p.writers.Collections[sec.Name]
	if !ok {
		return false, fmt.Errorf("%w: no writer for %q", ErrUnknownSection, sec.Name)
	}
	log := p.log.With().Str("section", sec.Name).Logger()

	for _, id := range diff.Deleted {
		log.Debug().Int64("id", id).Msg("delete")
		if err := w.Delete(ctx, id); err != nil {
			return false, &PersistenceError{Section: sec.Name, Op: OpDelete, ID: id, Err: err}
		}
		res.Deleted++
	}

	for _, rec := range diff.Added {
		tempID, _ := rec.ID()
		realID, err := w.Create(ctx, rec.Without(IDField))
		if err != nil {
			return false, &PersistenceError{Section: sec.Name, Op: OpCreate, ID: tempID, Err: err}
		}
		log.Debug().Int64("tempId", tempID).Int64("id", realID).Msg("create")
		res.IDMap[tempID] = realID
		res.Created++
		if i := indexOf(current, tempID); i >= 0 {
			current[i].SetID(realID)
		}
	}

	for _, u := range diff.Updated {
		log.Debug().Int64("id", u.ID).Int("fields", len(u.Changes)).Msg("update")
		if err := w.UpdateFields(ctx, u.ID, u.Changes); err != nil {
			return false, &PersistenceError{Section: sec.Name, Op: OpUpdate, ID: u.ID, Err: err}
		}
		res.Updated++
	}

	if diff.Reordered || len(diff.Added) > 0 {
		positions := make([]Position, 0, len(current))
		for _, r := range current {
			id, ok := r.ID()
			if !ok || IsTempID(id) {
				continue
			}
			positions = append(positions, Position{ID: id, Position: len(positions)})
		}
		log.Debug().Int("records", len(positions)).Msg("reorder")
		if err := w.Reorder(ctx, positions); err != nil {
			return false, &PersistenceError{Section: sec.Name, Op: OpReorder, Err: err}
		}
		res.Reordered++
	}
	return true, nil
}

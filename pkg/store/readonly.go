package store

import (
	"context"

	"github.com/stagepage/stagepage/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects content writes while read-only
// mode is on.
//
// The read-only state is read through isReadOnly on every call, so the
// application can toggle it at runtime (for example during a backup or a
// migration between backends) without recreating the store. Reads and the
// append-only analytics writes keep passing through; a blocked write fails
// with ErrReadOnly.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a new read-only wrapper for a store
func NewReadOnlyStore(store Store, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

// Write operations - check read-only mode first

func (r *ReadOnlyStore) UpdateProfileFields(ctx context.Context, fields Fields) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateProfileFields(ctx, fields)
}

func (r *ReadOnlyStore) UpdateSettingsFields(ctx context.Context, fields Fields) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateSettingsFields(ctx, fields)
}

func (r *ReadOnlyStore) CreateBlock(ctx context.Context, block *models.Block) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreateBlock(ctx, block)
}

func (r *ReadOnlyStore) UpdateBlockFields(ctx context.Context, id int64, fields Fields) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateBlockFields(ctx, id, fields)
}

func (r *ReadOnlyStore) DeleteBlock(ctx context.Context, id int64) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteBlock(ctx, id)
}

func (r *ReadOnlyStore) ReorderBlocks(ctx context.Context, positions []Position) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.ReorderBlocks(ctx, positions)
}

func (r *ReadOnlyStore) CreateLink(ctx context.Context, link *models.Link) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreateLink(ctx, link)
}

func (r *ReadOnlyStore) UpdateLinkFields(ctx context.Context, id int64, fields Fields) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateLinkFields(ctx, id, fields)
}

func (r *ReadOnlyStore) DeleteLink(ctx context.Context, id int64) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteLink(ctx, id)
}

func (r *ReadOnlyStore) ReorderLinks(ctx context.Context, positions []Position) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.ReorderLinks(ctx, positions)
}

func (r *ReadOnlyStore) CreateTourDate(ctx context.Context, td *models.TourDate) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreateTourDate(ctx, td)
}

func (r *ReadOnlyStore) UpdateTourDateFields(ctx context.Context, id int64, fields Fields) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateTourDateFields(ctx, id, fields)
}

func (r *ReadOnlyStore) DeleteTourDate(ctx context.Context, id int64) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteTourDate(ctx, id)
}

func (r *ReadOnlyStore) ReorderTourDates(ctx context.Context, positions []Position) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.ReorderTourDates(ctx, positions)
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Migrate(ctx)
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/offpos/internal/model"
)

// SnapshotKey is the fixed key of the catalog snapshot record.
const SnapshotKey = "snapshot"

// SaveCatalog replaces the cached catalog snapshot in one write.
func (s *Store) SaveCatalog(ctx context.Context, snap model.CatalogSnapshot) error {
	if snap.Products == nil {
		snap.Products = []model.Product{}
	}
	if err := s.Put(ctx, CollectionProducts, SnapshotKey, snap); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

// LoadCatalog returns the cached snapshot. ok is false if none was saved.
func (s *Store) LoadCatalog(ctx context.Context) (snap model.CatalogSnapshot, ok bool, err error) {
	err = s.Get(ctx, CollectionProducts, SnapshotKey, &snap)
	if model.IsNotFound(err) {
		return model.CatalogSnapshot{Products: []model.Product{}}, false, nil
	}
	if err != nil {
		return model.CatalogSnapshot{}, false, fmt.Errorf("load catalog: %w", err)
	}
	if snap.Products == nil {
		snap.Products = []model.Product{}
	}
	return snap, true, nil
}

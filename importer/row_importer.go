package importer

import (
	"context"
)

// RowImporter runs one CSV row through parsing, entity resolution and the upsert.
type RowImporter struct {
	Resolver *Resolver
	Upserter *Upserter
}

func NewRowImporter(resolver *Resolver, upserter *Upserter) *RowImporter {
	return &RowImporter{Resolver: resolver, Upserter: upserter}
}

func (ri *RowImporter) ImportRow(ctx context.Context, headers []string, row []string, cfg Config) (UpsertResult, error) {
	rec, err := ParseRow(headers, row, cfg.Mapping)
	if err != nil {
		return UpsertResult{}, err
	}

	var refs References
	if cfg.CreateCategories && rec.Category != "" {
		refs.CategoryID, err = ri.Resolver.Resolve(ctx, EntityCategory, rec.Category)
		if err != nil {
			return UpsertResult{}, &RowError{Message: "Falha ao resolver categoria", Err: err}
		}
	}
	if cfg.CreateMaterials && rec.Material != "" {
		refs.MaterialID, err = ri.Resolver.Resolve(ctx, EntityMaterial, rec.Material)
		if err != nil {
			return UpsertResult{}, &RowError{Message: "Falha ao resolver material", Err: err}
		}
	}

	return ri.Upserter.Upsert(ctx, rec, refs, cfg.DuplicatePolicy)
}

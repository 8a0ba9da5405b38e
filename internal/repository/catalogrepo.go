package repository

import (
	"context"

	"github.com/casebros/case-engine/internal/model"
)

// CatalogRepository reads the case/item content set. Content is written by
// import tooling, never by the engine.
type CatalogRepository interface {
	// ListActiveCases returns all cases currently open for purchase.
	ListActiveCases(ctx context.Context) ([]model.Case, error)
	// GetCaseBySlug loads one case regardless of its active flag; callers
	// distinguish inactive from unknown.
	GetCaseBySlug(ctx context.Context, slug string) (*model.Case, error)
	// ListCaseItems returns the drop table of a case.
	ListCaseItems(ctx context.Context, caseID int64) ([]model.CaseItem, error)
}

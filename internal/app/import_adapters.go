package app

// ─────────────────────────────────────────────────────────────
// Import Adapter Bridge
// ─────────────────────────────────────────────────────────────
//
// The import sources package reaches saved database connections through
// the DBProvider interface instead of importing the service layer, which
// would be a circular dep. This file provides the concrete adapter.

import (
	"context"

	"taskflow/internal/service"
	"taskflow/internal/taskio/sources"
)

// setupImportAdapters wires the import source adapters to the database
// service.
func setupImportAdapters(a *App) {
	sources.SetDBProvider(&dbProvider{database: a.database})
}

// dbProvider satisfies sources.DBProvider using the database service.
type dbProvider struct {
	database *service.DatabaseService
}

func (p *dbProvider) ExecuteImportQuery(ctx context.Context, connID, query string, fetchSize int) (*sources.QueryPage, error) {
	page, err := p.database.QueryForImport(ctx, connID, query, fetchSize)
	if err != nil {
		return nil, err
	}
	return &sources.QueryPage{Columns: page.Columns, Rows: page.Rows, HasMore: page.HasMore}, nil
}

func (p *dbProvider) FetchMoreImportRows(ctx context.Context, connID string, fetchSize int) (*sources.QueryPage, error) {
	page, err := p.database.FetchMoreRows(ctx, connID, fetchSize)
	if err != nil {
		return nil, err
	}
	return &sources.QueryPage{Columns: page.Columns, Rows: page.Rows, HasMore: page.HasMore}, nil
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rpattn/salesingest/internal/config"
	"github.com/rpattn/salesingest/internal/db"
	"github.com/rpattn/salesingest/internal/ingestion"
	"github.com/rpattn/salesingest/internal/mapping"
	"github.com/rpattn/salesingest/internal/repository"
	"github.com/rpattn/salesingest/internal/repository/sqlite"
	"github.com/rpattn/salesingest/internal/storage"
)

// app holds the wired repositories and services of one process.
type app struct {
	tenants repository.TenantRepository
	service *ingestion.Service
	closer  func()
}

func (a *app) Close() {
	if a.closer != nil {
		a.closer()
	}
}

// repositories is the backend specific repository set.
type repositories struct {
	tenants  repository.TenantRepository
	uploads  repository.UploadRepository
	mappings repository.ColumnMappingRepository
	sales    repository.SalesRepository
	audit    repository.AuditRepository
	closer   func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	repos, err := openRepositories(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	artifacts, err := openArtifactStore(cfg.Storage)
	if err != nil {
		repos.closer()
		return nil, err
	}

	var opts []ingestion.Option
	if cfg.Mapping.AliasFile != "" {
		catalog, err := loadCatalog(cfg.Mapping.AliasFile)
		if err != nil {
			repos.closer()
			return nil, err
		}
		opts = append(opts, ingestion.WithResolver(mapping.NewResolver(catalog)))
	}

	service := ingestion.NewService(
		repos.uploads,
		repos.mappings,
		repos.audit,
		ingestion.NewStore(repos.sales, artifacts),
		opts...,
	)
	return &app{tenants: repos.tenants, service: service, closer: repos.closer}, nil
}

// openRepositories connects to the configured database and applies pending
// migrations.
func openRepositories(ctx context.Context, cfg db.Config) (repositories, error) {
	switch cfg.Driver {
	case db.DriverSQLite:
		conn, err := openSQLite(cfg)
		if err != nil {
			return repositories{}, err
		}
		return repositories{
			tenants:  sqlite.NewTenantRepository(conn),
			uploads:  sqlite.NewUploadRepository(conn),
			mappings: sqlite.NewColumnMappingRepository(conn),
			sales:    sqlite.NewSalesRepository(conn),
			audit:    sqlite.NewAuditRepository(conn),
			closer:   func() { _ = conn.Close() },
		}, nil
	case db.DriverPostgres:
		if err := db.RunMigrations(cfg); err != nil {
			return repositories{}, err
		}
		conn, err := db.NewConnection(ctx, cfg)
		if err != nil {
			return repositories{}, err
		}
		return repositories{
			tenants:  repository.NewTenantRepository(conn.Pool),
			uploads:  repository.NewUploadRepository(conn.Pool),
			mappings: repository.NewColumnMappingRepository(conn.Pool),
			sales:    repository.NewSalesRepository(conn),
			audit:    repository.NewAuditRepository(conn.Pool),
			closer:   conn.Close,
		}, nil
	default:
		return repositories{}, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(cfg db.Config) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}
	conn, err := db.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := db.RunSQLiteMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func openArtifactStore(cfg config.StorageConfig) (storage.ArtifactStore, error) {
	switch cfg.Backend {
	case config.StorageS3:
		log.Printf("[INGEST] storing artifacts in s3 bucket %s", cfg.S3.Bucket)
		return storage.NewS3Store(cfg.S3)
	default:
		log.Printf("[INGEST] storing artifacts under %s", cfg.Dir)
		return storage.NewLocalStore(cfg.Dir)
	}
}

func loadCatalog(path string) (mapping.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return mapping.Catalog{}, fmt.Errorf("failed to open alias file: %w", err)
	}
	defer f.Close()

	catalog, err := mapping.LoadCatalog(f)
	if err != nil {
		return mapping.Catalog{}, fmt.Errorf("failed to load alias file %s: %w", path, err)
	}
	return catalog, nil
}

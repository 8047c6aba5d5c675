package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	catalogmemory "github.com/archivehub/archivehub/internal/catalog/memory"
	catalogmongo "github.com/archivehub/archivehub/internal/catalog/mongo"
	catalogsqlite "github.com/archivehub/archivehub/internal/catalog/sqlite"
	"github.com/archivehub/archivehub/internal/config"
	"github.com/archivehub/archivehub/internal/controllers"
	"github.com/archivehub/archivehub/internal/domain"
	"github.com/archivehub/archivehub/internal/managers"
	"github.com/archivehub/archivehub/internal/metrics"
	"github.com/archivehub/archivehub/internal/policy"
	"github.com/archivehub/archivehub/internal/storage/fs"
)

// AppDependencies bundles everything the serve command wires together.
type AppDependencies struct {
	Catalog           domain.NamespaceStore
	ContentStore      domain.ContentStore
	ArchiveService    domain.ArchiveService
	ArchiveController *controllers.ArchiveController
}

func BuildAppDependencies(ctx context.Context, cfg *config.Config) (*AppDependencies, error) {
	catalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}

	contentStore, err := fs.NewStore(fs.StoreDependencies{
		BasePath:      cfg.UploadDir,
		RetryAttempts: cfg.StorageRetryAttempts,
		RetryDelay:    cfg.StorageRetryDelay,
	})
	if err != nil {
		catalog.Close()
		return nil, err
	}

	archiveMetrics := metrics.Init(prometheus.DefaultRegisterer)

	archiveService := managers.NewArchiveManager(managers.ArchiveManagerDependencies{
		NamespaceStore: catalog,
		ContentStore:   contentStore,
		AccessPolicy: policy.NewStaticAccessPolicy(policy.StaticAccessPolicyDependencies{
			AdminIDs: cfg.AdminIDs,
		}),
		Metrics:              archiveMetrics,
		MaxFileSize:          cfg.MaxFileSize,
		CatalogRetryAttempts: cfg.CatalogRetryAttempts,
		CatalogRetryDelay:    cfg.CatalogRetryDelay,
	})

	archiveController := controllers.NewArchiveController(controllers.ArchiveControllerDependencies{
		ArchiveService: archiveService,
		Metrics:        archiveMetrics,
	})

	return &AppDependencies{
		Catalog:           catalog,
		ContentStore:      contentStore,
		ArchiveService:    archiveService,
		ArchiveController: archiveController,
	}, nil
}

func openCatalog(ctx context.Context, cfg *config.Config) (domain.NamespaceStore, error) {
	switch cfg.CatalogBackend {
	case "sqlite":
		return catalogsqlite.New(cfg.SQLitePath)
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		return catalogmongo.New(client.Database(cfg.MongoDatabase)), nil
	case "memory":
		return catalogmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend: %s", cfg.CatalogBackend)
	}
}

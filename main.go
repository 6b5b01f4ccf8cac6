package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/adapters/datasource"
	"github.com/BodieCoding/databridge/pkg/adapters/datasource/mssql"
	"github.com/BodieCoding/databridge/pkg/adapters/datasource/postgres"
	"github.com/BodieCoding/databridge/pkg/apperrors"
	"github.com/BodieCoding/databridge/pkg/config"
	"github.com/BodieCoding/databridge/pkg/export"
	"github.com/BodieCoding/databridge/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

// filterFlags collects repeated -filter table.column=value arguments.
type filterFlags map[string]any

func (f filterFlags) String() string { return fmt.Sprintf("%v", map[string]any(f)) }

func (f filterFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("filter %q is not of the form table.column=value", value)
	}
	f[key] = val
	return nil
}

func main() {
	filters := filterFlags{}
	flag.Var(filters, "filter", "filter as table.column=value (repeatable)")
	showReport := flag.Bool("report", false, "print the index optimization report")
	exportPath := flag.String("export-schema", "", "write the discovered schema to a .json, .yaml, or .xml file")
	flag.Parse()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting databridge",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", cfg.Database.Database),
		zap.String("schema", cfg.Database.Schema))

	db, extractor, discoverer, err := openAdapters(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open database adapters", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Database.ExtractTimeoutSeconds)*time.Second)
	defer cancel()

	schema, err := services.NewSchemaBuilder(discoverer, logger).Build(ctx, cfg.Database.Database)
	if err != nil {
		logger.Fatal("schema discovery failed", zap.Error(err))
	}

	relMgr := services.NewRelationshipManager(schema, logger)
	if cfg.RelationshipsCSV != "" {
		if err := relMgr.LoadCSVFile(cfg.RelationshipsCSV); err != nil {
			logger.Fatal("failed to load curated relationships", zap.Error(err))
		}
	}
	if err := relMgr.Validate(); err != nil {
		logger.Fatal("relationship validation failed", zap.Error(err))
	}

	records, err := extractor.ExtractIndexStats(ctx, cfg.Database.Schema)
	if err != nil {
		logger.Fatal("index extraction failed", zap.Error(err))
	}
	services.PopulateIndexes(schema, records)

	// The cache extracts on first use; planning below warms it.
	cache := services.NewStatsCache(extractor,
		time.Duration(cfg.Statistics.CacheTTLHours)*time.Hour, logger)

	if *exportPath != "" {
		if err := export.WriteSchemaFile(*exportPath, schema); err != nil {
			logger.Fatal("schema export failed", zap.Error(err))
		}
		logger.Info("exported schema", zap.String("path", *exportPath))
	}

	if *showReport {
		report, err := services.NewReporter(cache, logger).Report(ctx, cfg.Database.Schema, false)
		if err != nil {
			logger.Fatal("report generation failed", zap.Error(err))
		}
		fmt.Print(report.Render())
	}

	filter, err := services.NewFilterSpecFromValues(filters)
	if err != nil {
		logger.Fatal("invalid filter", zap.Error(err))
	}

	planner := services.NewPlanner(cache, nil, cfg.Optimizer, logger)
	builder := services.NewQueryBuilder(schema, cfg.Database.Schema, planner, logger)

	result, err := builder.GenerateOptimizedSelect(ctx, filter)
	if err != nil {
		logger.Fatal("query generation failed", zap.Error(err))
	}

	fmt.Println(result.SQL)
	if len(result.Args) > 0 {
		fmt.Printf("-- args: %v\n", result.Args)
	}
	if result.Visualization != "" {
		fmt.Println()
		fmt.Print(result.Visualization)
	}
}

// openAdapters opens the configured database and returns the
// driver-specific extractor and discoverer over the shared connection.
func openAdapters(cfg *config.Config, logger *zap.Logger) (*sql.DB, datasource.IndexStatsExtractor, datasource.SchemaDiscoverer, error) {
	connStr := cfg.Database.ConnectionString()

	switch cfg.Database.Driver {
	case config.DriverSQLServer:
		db, err := mssql.Open(connStr)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, mssql.NewStatsExtractor(db, logger), mssql.NewSchemaDiscoverer(db, cfg.Database.Schema, logger), nil
	case config.DriverPostgres:
		db, err := postgres.Open(connStr)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, postgres.NewStatsExtractor(db, logger), postgres.NewSchemaDiscoverer(db, cfg.Database.Schema, logger), nil
	default:
		return nil, nil, nil, fmt.Errorf("driver %q: %w", cfg.Database.Driver, apperrors.ErrUnsupportedDriver)
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

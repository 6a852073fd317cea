package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"order-consolidation/internal/adapters/cache"
	"order-consolidation/internal/adapters/distance"
	"order-consolidation/internal/adapters/edge"
	"order-consolidation/internal/adapters/ors"
	"order-consolidation/internal/adapters/repositories"
	"order-consolidation/internal/adapters/sink"
	"order-consolidation/internal/adapters/solver"
	"order-consolidation/internal/config"
	"order-consolidation/internal/platform/db"
	"order-consolidation/internal/ports"
	"strings"
)

// resources tracks everything opened for a command so it can be closed in
// reverse order.
type resources struct {
	cfg     *config.Config
	closers []io.Closer

	cacheDB      *sql.DB
	cacheDialect db.Dialect
	orsClient    *ors.Client
}

func newResources(cfg *config.Config) *resources {
	return &resources{cfg: cfg}
}

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			log.Printf("warning: close: %v", err)
		}
	}
}

func (r *resources) open(dsn string) (*sql.DB, db.Dialect, error) {
	conn, dialect, err := db.Open(dsn)
	if err != nil {
		return nil, 0, err
	}
	r.closers = append(r.closers, conn)
	return conn, dialect, nil
}

// database returns the DATABASE_URL connection used for caches and results,
// or nil when none is configured. The schema is created on first use.
func (r *resources) database(ctx context.Context) (*sql.DB, db.Dialect, error) {
	if r.cacheDB != nil || r.cfg.DatabaseURL == "" {
		return r.cacheDB, r.cacheDialect, nil
	}
	conn, dialect, err := r.open(r.cfg.DatabaseURL)
	if err != nil {
		return nil, 0, err
	}
	if err := repositories.InitSchema(ctx, conn, dialect); err != nil {
		return nil, 0, err
	}
	r.cacheDB, r.cacheDialect = conn, dialect
	return conn, dialect, nil
}

// orsService returns the shared ORS client, or nil when no API key is configured.
func (r *resources) orsService() (*ors.Client, error) {
	if r.orsClient != nil || r.cfg.ORS.APIKey == "" {
		return r.orsClient, nil
	}
	c, err := ors.NewClient(r.cfg.ORS.APIKey, r.cfg.ORS.BaseURL, r.cfg.ORS.Profile, r.cfg.ORS.RatePerSecond)
	if err != nil {
		return nil, err
	}
	r.orsClient = c
	return c, nil
}

func (r *resources) orderRepository(ctx context.Context, source string) (ports.OrderRepository, error) {
	if db.IsDSN(source) {
		conn, dialect, err := r.open(source)
		if err != nil {
			return nil, err
		}
		return repositories.NewSQLOrderRepository(conn, dialect), nil
	}

	client, err := r.orsService()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return repositories.NewFileOrderRepository(source, nil), nil
	}

	conn, dialect, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	var geocodeCache *cache.SQLGeocodeCache
	if conn != nil {
		geocodeCache = cache.NewSQLGeocodeCache(conn, dialect)
	}
	geocoder, err := ors.NewGeocoder(client, geocodeCache, r.cfg.ORS.Country)
	if err != nil {
		return nil, err
	}
	return repositories.NewFileOrderRepository(source, geocoder), nil
}

func (r *resources) edgeLookup(network string) (ports.NearestEdgeLookup, error) {
	if dsn, ok := strings.CutPrefix(network, "postgis:"); ok {
		conn, _, err := r.open(dsn)
		if err != nil {
			return nil, err
		}
		pg := r.cfg.PostGIS
		return edge.NewPostGISLookup(conn, pg.Table, pg.IDColumn, pg.GeomColumn, r.cfg.MaxMatchMeters)
	}
	return edge.LoadNetwork(network, r.cfg.MaxMatchMeters)
}

func (r *resources) routeSolver(ctx context.Context, name string) (ports.RouteSolver, error) {
	switch name {
	case "local":
		provider, err := r.distanceProvider(ctx)
		if err != nil {
			return nil, err
		}
		return solver.NewLocalSolver(provider, r.cfg.LocalIterations)
	case "ors":
		client, err := r.orsService()
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("solver ors: ORS_API_KEY is required")
		}
		return ors.NewSolver(client)
	case "nextmv":
		return solver.NewNextmvSolver(r.cfg.SpeedKPH, r.cfg.NextmvLimit)
	}
	return nil, fmt.Errorf("%w: unknown solver %q (want local, ors or nextmv)", errUsage, name)
}

// distanceProvider prefers ORS road durations when a key is configured and
// falls back to straight-line travel at the configured speed.
func (r *resources) distanceProvider(ctx context.Context) (ports.DistanceProvider, error) {
	client, err := r.orsService()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return distance.NewHaversineProvider(r.cfg.SpeedKPH)
	}

	conn, dialect, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	var distanceCache *cache.SQLDistanceCache
	if conn != nil {
		distanceCache = cache.NewSQLDistanceCache(conn, dialect)
	}
	return ors.NewMatrixProvider(client, distanceCache)
}

// routeSink always writes files to outDir and adds the SQL and Redis sinks
// when they are configured.
func (r *resources) routeSink(ctx context.Context, outDir, runID, solverName string) (ports.RouteSink, error) {
	fileSink, err := sink.NewFileSink(outDir, runID)
	if err != nil {
		return nil, err
	}
	fileSink.Reserve(ordersFile)
	sinks := sink.MultiSink{fileSink}

	conn, dialect, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		sqlSink, err := sink.NewSQLSink(ctx, conn, dialect, runID, solverName)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sqlSink)
	}

	if r.cfg.RedisURL != "" {
		redisSink, err := sink.NewRedisSink(r.cfg.RedisURL, runID, r.cfg.RedisTTL)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, redisSink)
		sinks = append(sinks, redisSink)
	}
	return sinks, nil
}

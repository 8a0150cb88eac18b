// Package postgis stores cadastre polygons in PostGIS and loads them back as
// polygon sets, as an alternative to downloading the Etalab files each run.
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/1F47E/parcel-finder/pkg/cadastre"
	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/lib/pq"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	ParcelTable    string
	BuildingTable  string
	MaxConnections int
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// Table returns the table holding category
func (c Config) Table(category models.Category) string {
	if category == models.Buildings {
		if c.BuildingTable != "" {
			return c.BuildingTable
		}
		return "batiments"
	}
	if c.ParcelTable != "" {
		return c.ParcelTable
	}
	return "parcelles"
}

// Store is a polygon source backed by one table per category. Rows carry the
// INSEE code of their commune, so cities resolve through the same INSEE table
// as the file source.
type Store struct {
	db       *sql.DB
	cfg      Config
	resolver *cadastre.Resolver
}

// NewStore opens and pings the database
func NewStore(cfg Config, resolver *cadastre.Resolver) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conns := cfg.MaxConnections
	if conns <= 0 {
		conns = 25
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, cfg: cfg, resolver: resolver}, nil
}

// schemaQueries creates the table of one category with its GIST index
func schemaQueries(table string) []string {
	t := pq.QuoteIdentifier(table)
	idx := pq.QuoteIdentifier("idx_" + table + "_geom")
	return []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			commune TEXT NOT NULL,
			geom GEOMETRY(POLYGON, 4326) NOT NULL
		);`, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIST(geom);`, idx, t),
	}
}

// InitSchema creates both category tables if missing
func (s *Store) InitSchema(ctx context.Context) error {
	for _, category := range []models.Category{models.Parcels, models.Buildings} {
		for _, query := range schemaQueries(s.cfg.Table(category)) {
			if _, err := s.db.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("failed to execute query '%s': %w", query, err)
			}
		}
	}
	return nil
}

func insertQuery(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (commune, geom) VALUES ($1, ST_SetSRID(ST_GeomFromGeoJSON($2), 4326))`,
		pq.QuoteIdentifier(table))
}

// Import replaces the rows of commune in the category table with set, in a
// single transaction
func (s *Store) Import(ctx context.Context, commune string, set *geo.PolygonSet) error {
	table := s.cfg.Table(set.Category())
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE commune = $1`, pq.QuoteIdentifier(table)), commune); err != nil {
		return fmt.Errorf("failed to clear commune %s: %w", commune, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertQuery(table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, p := range set.All() {
		data, err := geojson.NewGeometry(p.Polygon()).MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode polygon %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, commune, string(data)); err != nil {
			return fmt.Errorf("failed to insert polygon %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Info().
		Str("table", table).
		Str("commune", commune).
		Int("rows", set.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Imported polygons")
	return nil
}

// selectQuery returns the query loading every polygon of a list of communes,
// in commune then insertion order
func selectQuery(table string) string {
	return fmt.Sprintf(`SELECT ST_AsGeoJSON(geom) FROM %s WHERE commune = ANY($1) ORDER BY commune, id`,
		pq.QuoteIdentifier(table))
}

// Load returns the polygons of city in the given category
func (s *Store) Load(ctx context.Context, city string, category models.Category) (*geo.PolygonSet, error) {
	codes, err := s.resolver.Codes(city)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectQuery(s.cfg.Table(category)), pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	set := geo.NewPolygonSet(category)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", geo.ErrMalformedGeometry, err)
		}
		polygons, err := cadastre.Polygons(g.Geometry())
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", set.Len(), err)
		}
		set.Add(polygons...)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	log.Info().
		Str("city", city).
		Str("category", string(category)).
		Strs("communes", codes).
		Int("polygons", set.Len()).
		Msg("Loaded from PostGIS")

	return set, nil
}

func countQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(table))
}

// Count returns the number of rows of category
func (s *Store) Count(ctx context.Context, category models.Category) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, countQuery(s.cfg.Table(category))).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

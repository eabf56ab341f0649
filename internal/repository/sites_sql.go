package repository

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required

	"culturehub-api/internal/geo"
	"culturehub-api/internal/model"
)

// Dialect names a SQL database flavor supported by SQLSiteRepository.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

const siteColumns = "id, name, category, description, lon, lat, properties"

// SQLSiteRepository implements SiteRepository on a relational database.
// Radius queries prefilter with a lat/lon bounding box the index can serve
// and then keep only rows within the exact great-circle radius.
type SQLSiteRepository struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLSiteRepository opens the database, configures the pool for the
// dialect and creates the sites table if needed.
func OpenSQLSiteRepository(ctx context.Context, dialect Dialect, dsn string, logger *zap.Logger) (*SQLSiteRepository, error) {
	driver := string(dialect)
	if dialect == DialectSQLite {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}

	switch dialect {
	case DialectSQLite:
		db.SetMaxOpenConns(1) // SQLite only supports 1 writer
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	r := NewSQLSiteRepository(db, dialect)
	if err := r.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("site catalog initialized", zap.String("dialect", string(dialect)))
	return r, nil
}

// NewSQLSiteRepository wraps an open database.
func NewSQLSiteRepository(db *sql.DB, dialect Dialect) *SQLSiteRepository {
	return &SQLSiteRepository{db: db, dialect: dialect}
}

// CreateSchema creates the sites table and its indexes.
func (r *SQLSiteRepository) CreateSchema(ctx context.Context) error {
	var stmts []string
	switch r.dialect {
	case DialectPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS sites (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				category TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				lon DOUBLE PRECISION NOT NULL,
				lat DOUBLE PRECISION NOT NULL,
				properties JSONB
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sites_lat_lon ON sites(lat, lon)`,
			`CREATE INDEX IF NOT EXISTS idx_sites_category ON sites(category)`,
		}
	case DialectMySQL:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS sites (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				category VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				lon DOUBLE NOT NULL,
				lat DOUBLE NOT NULL,
				properties JSON,
				INDEX idx_sites_lat_lon (lat, lon),
				INDEX idx_sites_category (category)
			)`,
		}
	default:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS sites (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				category TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				lon REAL NOT NULL,
				lat REAL NOT NULL,
				properties TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sites_lat_lon ON sites(lat, lon)`,
			`CREATE INDEX IF NOT EXISTS idx_sites_category ON sites(category)`,
		}
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// bind returns the n-th (1-based) placeholder for the dialect.
func (r *SQLSiteRepository) bind(n int) string {
	if r.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (r *SQLSiteRepository) FindWithinRadius(ctx context.Context, center model.Point, radius float64) ([]model.Site, error) {
	box := geo.Bound(center, radius)
	query := fmt.Sprintf(`SELECT %s FROM sites WHERE lat BETWEEN %s AND %s AND lon BETWEEN %s AND %s`,
		siteColumns, r.bind(1), r.bind(2), r.bind(3), r.bind(4))

	candidates, err := r.query(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites within radius: %w", err)
	}

	type hit struct {
		site model.Site
		dist float64
	}
	hits := make([]hit, 0, len(candidates))
	for _, s := range candidates {
		if d := geo.Distance(center, s.Location); d <= radius {
			hits = append(hits, hit{s, d})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.site.ID, b.site.ID)
	})

	out := make([]model.Site, len(hits))
	for i, h := range hits {
		out[i] = h.site
	}
	return out, nil
}

func (r *SQLSiteRepository) FindByID(ctx context.Context, id string) (*model.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM sites WHERE id = %s`, siteColumns, r.bind(1))
	sites, err := r.query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("site %s: %w", id, model.ErrNotFound)
	}
	return &sites[0], nil
}

func (r *SQLSiteRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Site, error) {
	if len(ids) == 0 {
		return []model.Site{}, nil
	}

	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = r.bind(i + 1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM sites WHERE id IN (%s)`, siteColumns, strings.Join(marks, ", "))

	sites, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get sites: %w", err)
	}
	return orderByIDs(sites, ids), nil
}

func (r *SQLSiteRepository) List(ctx context.Context, filter SiteFilter) ([]model.Site, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	offset := max(filter.Offset, 0)

	var (
		query string
		args  []interface{}
	)
	if filter.Category != "" {
		query = fmt.Sprintf(`SELECT %s FROM sites WHERE LOWER(category) = LOWER(%s) ORDER BY name, id LIMIT %s OFFSET %s`,
			siteColumns, r.bind(1), r.bind(2), r.bind(3))
		args = []interface{}{filter.Category, limit, offset}
	} else {
		query = fmt.Sprintf(`SELECT %s FROM sites ORDER BY name, id LIMIT %s OFFSET %s`,
			siteColumns, r.bind(1), r.bind(2))
		args = []interface{}{limit, offset}
	}

	sites, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

// UpsertMany inserts new sites in one transaction; rows whose id already
// exists are ignored.
func (r *SQLSiteRepository) UpsertMany(ctx context.Context, sites []model.Site) (int, error) {
	if len(sites) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.insertQuery())
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, s := range sites {
		props, err := encodeProperties(s.Properties)
		if err != nil {
			return 0, fmt.Errorf("site %s: %w", s.ID, err)
		}
		res, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Category, s.Description, s.Location.Lon, s.Location.Lat, props)
		if err != nil {
			return 0, fmt.Errorf("failed to insert site %s: %w", s.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

func (r *SQLSiteRepository) insertQuery() string {
	switch r.dialect {
	case DialectPostgres:
		return `INSERT INTO sites (` + siteColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`
	case DialectMySQL:
		return `INSERT IGNORE INTO sites (` + siteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	default:
		return `INSERT INTO sites (` + siteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`
	}
}

func (r *SQLSiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return n, nil
}

// Ping checks database connectivity.
func (r *SQLSiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLSiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLSiteRepository) query(ctx context.Context, query string, args ...interface{}) ([]model.Site, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlErr(err)
	}
	defer rows.Close()

	sites := []model.Site{}
	for rows.Next() {
		var (
			s     model.Site
			props sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.Description, &s.Location.Lon, &s.Location.Lat, &props); err != nil {
			return nil, err
		}
		if props.Valid && props.String != "" {
			if err := json.Unmarshal([]byte(props.String), &s.Properties); err != nil {
				return nil, fmt.Errorf("site %s: bad properties: %w", s.ID, err)
			}
		}
		sites = append(sites, s)
	}
	return sites, sqlErr(rows.Err())
}

func encodeProperties(props map[string]interface{}) (sql.NullString, error) {
	if len(props) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// sqlErr marks connection-level failures as transient.
func sqlErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	default:
		return err
	}
}

// Ensure SQLSiteRepository implements SiteRepository
var _ SiteRepository = (*SQLSiteRepository)(nil)

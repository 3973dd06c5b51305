package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentmatch/internal/model"
	"rentmatch/internal/utils"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound is returned when a listing does not exist
var ErrNotFound = errors.New("not found")

// EmbeddingDimensions is the width of the listing embedding column
const EmbeddingDimensions = 1536

const listingColumns = `
	id, title, address, city, state, rent, bedrooms, bathrooms,
	size_description, availability, is_network_verified, amenities,
	latitude, longitude, created_at, updated_at`

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS listings (
	id                  TEXT PRIMARY KEY,
	title               TEXT NOT NULL DEFAULT '',
	address             TEXT NOT NULL DEFAULT '',
	city                TEXT NOT NULL DEFAULT '',
	state               TEXT NOT NULL DEFAULT '',
	rent                TEXT NOT NULL DEFAULT '',
	rent_amount         NUMERIC,
	bedrooms            INTEGER,
	bathrooms           INTEGER,
	size_description    TEXT NOT NULL DEFAULT '',
	availability        TEXT NOT NULL DEFAULT '',
	is_network_verified BOOLEAN NOT NULL DEFAULT FALSE,
	amenities           JSONB,
	latitude            DOUBLE PRECISION,
	longitude           DOUBLE PRECISION,
	embedding           vector(1536),
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS saved_properties (
	user_id     TEXT NOT NULL,
	property_id TEXT NOT NULL,
	saved_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, property_id)
);

CREATE TABLE IF NOT EXISTS search_logs (
	search_id            TEXT PRIMARY KEY,
	query                TEXT NOT NULL,
	is_location          BOOLEAN NOT NULL DEFAULT FALSE,
	result_count         INTEGER NOT NULL DEFAULT 0,
	returned_listing_ids TEXT[],
	response_time_ms     INTEGER,
	clicked_listing_id   TEXT,
	action               TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EnsureSchema creates the tables when they are missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// buildListingFilters turns structured filters into a WHERE clause
func buildListingFilters(filters *model.SearchFilters) (string, []interface{}, int) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filters != nil {
		if filters.RentMin != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("rent_amount >= $%d", argIndex))
			args = append(args, *filters.RentMin)
			argIndex++
		}
		if filters.RentMax != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("rent_amount <= $%d", argIndex))
			args = append(args, *filters.RentMax)
			argIndex++
		}
		if filters.Bedrooms != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("bedrooms = $%d", argIndex))
			args = append(args, *filters.Bedrooms)
			argIndex++
		}
		if filters.BedroomsMin != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("bedrooms >= $%d", argIndex))
			args = append(args, *filters.BedroomsMin)
			argIndex++
		}
		if filters.Bathrooms != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("bathrooms = $%d", argIndex))
			args = append(args, *filters.Bathrooms)
			argIndex++
		}
		if filters.Location != nil && *filters.Location != "" {
			whereClauses = append(whereClauses, fmt.Sprintf(
				"(address || ' ' || city || ' ' || state) ILIKE $%d", argIndex))
			args = append(args, "%"+*filters.Location+"%")
			argIndex++
		}
		if filters.TitleContains != nil && *filters.TitleContains != "" {
			whereClauses = append(whereClauses, fmt.Sprintf("title ILIKE $%d", argIndex))
			args = append(args, "%"+*filters.TitleContains+"%")
			argIndex++
		}
		if filters.NetworkOnly {
			whereClauses = append(whereClauses, "is_network_verified = true")
		}
		// JSONB amenities, fuzzy matched through the alias table
		if len(filters.Amenities) > 0 {
			amenityConds, amenityParams, newIndex := utils.BuildFuzzyAmenityQuery(filters.Amenities, argIndex)
			whereClauses = append(whereClauses, amenityConds...)
			args = append(args, amenityParams...)
			argIndex = newIndex
		}
	}

	return strings.Join(whereClauses, " AND "), args, argIndex
}

// SearchWithFilters returns one page of listings matching filters, verified
// listings first, and the total match count
func (r *PostgresRepository) SearchWithFilters(
	ctx context.Context,
	filters *model.SearchFilters,
	limit, offset int,
) ([]model.Listing, int, error) {
	whereClause, args, argIndex := buildListingFilters(filters)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count results: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM listings
		WHERE %s
		ORDER BY is_network_verified DESC, updated_at DESC
		LIMIT $%d OFFSET $%d
	`, listingColumns, whereClause, argIndex, argIndex+1)
	args = append(args, limit, offset)

	var listings []model.Listing
	if err := r.db.SelectContext(ctx, &listings, selectQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}

	return listings, total, nil
}

// ListListings returns up to limit listings in catalog order
func (r *PostgresRepository) ListListings(ctx context.Context, limit int) ([]model.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings ORDER BY created_at, id LIMIT $1`, listingColumns)
	var listings []model.Listing
	if err := r.db.SelectContext(ctx, &listings, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// GetListingByID retrieves a single listing by its ID
func (r *PostgresRepository) GetListingByID(ctx context.Context, id string) (*model.Listing, error) {
	var listing model.Listing
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns)
	if err := r.db.GetContext(ctx, &listing, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// rentAmount is the numeric rent filtered on by rent_min/rent_max, or NULL
// when the display string carries no amount
func rentAmount(rent model.Rent) interface{} {
	if v, ok := utils.ParseMoney(string(rent)); ok {
		return v
	}
	return nil
}

// UpsertListing inserts or replaces a listing. rent_amount is derived from rent.
func (r *PostgresRepository) UpsertListing(ctx context.Context, l *model.Listing) error {
	query := `
		INSERT INTO listings (
			id, title, address, city, state, rent, rent_amount, bedrooms, bathrooms,
			size_description, availability, is_network_verified, amenities, latitude, longitude
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			rent = EXCLUDED.rent,
			rent_amount = EXCLUDED.rent_amount,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			size_description = EXCLUDED.size_description,
			availability = EXCLUDED.availability,
			is_network_verified = EXCLUDED.is_network_verified,
			amenities = EXCLUDED.amenities,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.Title, l.Address, l.City, l.State, string(l.Rent), rentAmount(l.Rent), l.Bedrooms, l.Bathrooms,
		l.SizeDescription, l.Availability, l.IsNetworkVerified, l.Amenities, l.Latitude, l.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert listing %s: %w", l.ID, err)
	}
	return nil
}

// BatchUpdateEmbeddings updates embeddings for multiple listings in one transaction
func (r *PostgresRepository) BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	success := 0
	var errs []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errs
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `UPDATE listings SET embedding = $1, updated_at = NOW() WHERE id = $2`)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errs
	}
	defer stmt.Close()

	for _, item := range items {
		vec := pgvector.NewVector(item.Embedding)
		res, err := stmt.ExecContext(ctx, vec, item.ListingID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("listing %s: %v", item.ListingID, err))
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errs = append(errs, fmt.Sprintf("listing %s: not found", item.ListingID))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errs = append(errs, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errs
	}

	return success, errs
}

// SimilarListings returns the nearest listings to id by embedding cosine distance
func (r *PostgresRepository) SimilarListings(ctx context.Context, id string, limit int) ([]model.Listing, error) {
	var embedding pgvector.Vector
	err := r.db.GetContext(ctx, &embedding, `SELECT embedding FROM listings WHERE id = $1 AND embedding IS NOT NULL`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load embedding: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM listings
		WHERE id <> $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`, listingColumns)
	var listings []model.Listing
	if err := r.db.SelectContext(ctx, &listings, query, id, embedding, limit); err != nil {
		return nil, fmt.Errorf("failed to find similar listings: %w", err)
	}
	return listings, nil
}

// SaveProperty records a bookmark; saving twice keeps the first timestamp
func (r *PostgresRepository) SaveProperty(ctx context.Context, userID, propertyID string) error {
	query := `
		INSERT INTO saved_properties (user_id, property_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, property_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, propertyID); err != nil {
		return fmt.Errorf("failed to save property: %w", err)
	}
	return nil
}

// UnsaveProperty removes a bookmark; removing a missing one is not an error
func (r *PostgresRepository) UnsaveProperty(ctx context.Context, userID, propertyID string) error {
	query := `DELETE FROM saved_properties WHERE user_id = $1 AND property_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, propertyID); err != nil {
		return fmt.Errorf("failed to unsave property: %w", err)
	}
	return nil
}

// IsSaved checks a bookmark
func (r *PostgresRepository) IsSaved(ctx context.Context, userID, propertyID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM saved_properties WHERE user_id = $1 AND property_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, userID, propertyID); err != nil {
		return false, fmt.Errorf("failed to check saved property: %w", err)
	}
	return exists, nil
}

// ListSaved returns a user's bookmarks, newest first
func (r *PostgresRepository) ListSaved(ctx context.Context, userID string) ([]model.SavedProperty, error) {
	var saved []model.SavedProperty
	query := `
		SELECT user_id, property_id, saved_at
		FROM saved_properties
		WHERE user_id = $1
		ORDER BY saved_at DESC
	`
	if err := r.db.SelectContext(ctx, &saved, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list saved properties: %w", err)
	}
	return saved, nil
}

// LogSearch logs a search query
func (r *PostgresRepository) LogSearch(ctx context.Context, searchID, query string, isLocation bool, resultCount int, listingIDs []string, responseTimeMs int) error {
	logQuery := `
		INSERT INTO search_logs (search_id, query, is_location, result_count, returned_listing_ids, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, logQuery, searchID, query, isLocation, resultCount, pq.Array(listingIDs), responseTimeMs)
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// LogFeedback logs user feedback/action
func (r *PostgresRepository) LogFeedback(ctx context.Context, searchID, listingID, action string) error {
	query := `
		UPDATE search_logs
		SET clicked_listing_id = $2, action = $3
		WHERE search_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, searchID, listingID, action)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

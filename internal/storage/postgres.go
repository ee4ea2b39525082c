package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekenbil/vehicle-sync/internal/domain"
)

// VehicleStore persists vehicles in PostgreSQL, keyed by the natural uid
// (the relative URL path of the source detail page).
type VehicleStore struct {
	db     *pgxpool.Pool
	images *ImageFetcher
	logger *zap.Logger
}

func NewVehicleStore(connStr string, logger *zap.Logger) (*VehicleStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &VehicleStore{db: db, logger: logger}, nil
}

// WithImageFetcher enables image sideloading during upserts. Image failures
// are logged and skipped, never failing the vehicle itself.
func (s *VehicleStore) WithImageFetcher(f *ImageFetcher) *VehicleStore {
	s.images = f
	return s
}

func (s *VehicleStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *VehicleStore) Close() {
	s.db.Close()
}

// InitSchema creates the tables when they do not exist yet.
func (s *VehicleStore) InitSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vehicles (
			id          BIGSERIAL PRIMARY KEY,
			uid         TEXT NOT NULL UNIQUE,
			title       TEXT NOT NULL DEFAULT '',
			price       TEXT NOT NULL DEFAULT '',
			carfax_url  TEXT NOT NULL DEFAULT '',
			condition   TEXT NOT NULL DEFAULT 'Begagnad',
			color       TEXT NOT NULL DEFAULT '',
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS vehicle_details (
			vehicle_id  BIGINT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
			field_id    TEXT NOT NULL,
			value       TEXT NOT NULL DEFAULT '',
			kind        TEXT NOT NULL,
			PRIMARY KEY (vehicle_id, field_id)
		);
		CREATE TABLE IF NOT EXISTS vehicle_features (
			vehicle_id  BIGINT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
			position    INT NOT NULL,
			feature     TEXT NOT NULL,
			PRIMARY KEY (vehicle_id, position)
		);
		CREATE TABLE IF NOT EXISTS vehicle_additional (
			vehicle_id  BIGINT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
			position    INT NOT NULL,
			attr_key    TEXT NOT NULL,
			attr_value  TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (vehicle_id, position)
		);
		CREATE TABLE IF NOT EXISTS vehicle_images (
			vehicle_id  BIGINT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
			position    INT NOT NULL,
			url         TEXT NOT NULL,
			data        BYTEA,
			is_primary  BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (vehicle_id, position)
		);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// IsDuplicate returns the storage id for uid, or 0 when no record exists.
func (s *VehicleStore) IsDuplicate(ctx context.Context, uid string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT id FROM vehicles WHERE uid = $1`, uid).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("duplicate lookup for %s: %w", uid, err)
	}
	return id, nil
}

// CreateOrUpdate upserts the vehicle and replaces all its child rows within
// a single transaction.
func (s *VehicleStore) CreateOrUpdate(ctx context.Context, v *domain.Vehicle) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO vehicles (uid, title, price, carfax_url, color)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (uid) DO UPDATE SET
		   title = EXCLUDED.title, price = EXCLUDED.price,
		   carfax_url = EXCLUDED.carfax_url, color = EXCLUDED.color,
		   updated_at = NOW()
		 RETURNING id`,
		v.UID, v.Title, v.Price, v.CarfaxURL, colorOf(v),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert vehicle %s: %w", v.UID, err)
	}

	// Child rows are replaced wholesale; the source page is authoritative.
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM vehicle_details WHERE vehicle_id = $1`, id)
	batch.Queue(`DELETE FROM vehicle_features WHERE vehicle_id = $1`, id)
	batch.Queue(`DELETE FROM vehicle_additional WHERE vehicle_id = $1`, id)

	for fieldID, fv := range v.Details {
		batch.Queue(`INSERT INTO vehicle_details (vehicle_id, field_id, value, kind) VALUES ($1, $2, $3, $4)`,
			id, fieldID, fv.Value, string(fv.Kind))
	}
	for i, feature := range v.Features {
		batch.Queue(`INSERT INTO vehicle_features (vehicle_id, position, feature) VALUES ($1, $2, $3)`,
			id, i, feature)
	}
	for i, kv := range v.Additional {
		batch.Queue(`INSERT INTO vehicle_additional (vehicle_id, position, attr_key, attr_value) VALUES ($1, $2, $3, $4)`,
			id, i, kv.Key, kv.Value)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("write child rows for %s: %w", v.UID, err)
	}

	if err := s.saveImages(ctx, tx, id, v); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *VehicleStore) saveImages(ctx context.Context, tx pgx.Tx, id int64, v *domain.Vehicle) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM vehicle_images WHERE vehicle_id = $1`, id)
	for i, url := range v.Images {
		var data []byte
		if s.images != nil {
			var err error
			data, err = s.images.Fetch(ctx, url)
			if err != nil {
				s.logger.Warn("failed to download image",
					zap.String("uid", v.UID),
					zap.String("url", url),
					zap.Error(err))
			}
		}
		batch.Queue(`INSERT INTO vehicle_images (vehicle_id, position, url, data, is_primary) VALUES ($1, $2, $3, $4, $5)`,
			id, i, url, data, i == 0)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write images for %s: %w", v.UID, err)
	}
	return nil
}

// DeleteNotIn removes every vehicle whose id is absent from ids and returns
// the number removed. An empty set deletes nothing: a run that produced no
// valid ids is treated as a failed run, not an empty inventory.
func (s *VehicleStore) DeleteNotIn(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM vehicles WHERE NOT (id = ANY($1))`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete outdated vehicles: %w", err)
	}
	return tag.RowsAffected(), nil
}

func colorOf(v *domain.Vehicle) string {
	for _, kv := range v.Additional {
		if kv.Key == "Färg" {
			return kv.Value
		}
	}
	return ""
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gt06gateway/internal/core/model"
)

// PositionRepository is the append-only location history
type PositionRepository interface {
	Append(ctx context.Context, position *model.Position) error
	// FindLatestByDeviceID returns nil when the device has no stored position
	FindLatestByDeviceID(ctx context.Context, deviceID string) (*model.Position, error)
}

const locationsSchema = `
CREATE TABLE IF NOT EXISTS locations (
    id          TEXT PRIMARY KEY,
    device_id   TEXT NOT NULL,
    protocol    TEXT NOT NULL,
    timestamp   TIMESTAMPTZ NOT NULL,
    location    POINT NOT NULL,
    altitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
    speed       DOUBLE PRECISION NOT NULL DEFAULT 0,
    course      DOUBLE PRECISION NOT NULL DEFAULT 0,
    valid       BOOLEAN NOT NULL DEFAULT FALSE,
    satellites  INTEGER NOT NULL DEFAULT 0,
    ignition    BOOLEAN NOT NULL DEFAULT FALSE,
    battery     DOUBLE PRECISION NOT NULL DEFAULT 0,
    power       DOUBLE PRECISION NOT NULL DEFAULT 0,
    rssi        INTEGER NOT NULL DEFAULT 0,
    alarms      TEXT[] NOT NULL DEFAULT '{}',
    attributes  JSONB NOT NULL DEFAULT '{}',
    cell_towers JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_locations_device_time ON locations (device_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_locations_location ON locations USING GIST (location);
`

// PostgresPositionRepository stores positions in the locations table
type PostgresPositionRepository struct {
	db *sql.DB
}

func NewPostgresPositionRepository(db *sql.DB) *PostgresPositionRepository {
	return &PostgresPositionRepository{db: db}
}

// OpenPostgres opens and pings the location database
func OpenPostgres(ctx context.Context, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the locations table and its indexes when missing
func (r *PostgresPositionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, locationsSchema); err != nil {
		return fmt.Errorf("create locations schema: %w", err)
	}
	return nil
}

func (r *PostgresPositionRepository) Append(ctx context.Context, position *model.Position) error {
	attributes, err := json.Marshal(position.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	towers := []byte("[]")
	if len(position.CellTowers) > 0 {
		if towers, err = json.Marshal(position.CellTowers); err != nil {
			return fmt.Errorf("encode cell towers: %w", err)
		}
	}
	alarms := position.Alarms
	if alarms == nil {
		alarms = []string{}
	}

	query := `
        INSERT INTO locations (
            id, device_id, protocol, timestamp, location, altitude, speed, course,
            valid, satellites, ignition, battery, power, rssi, alarms, attributes, cell_towers
        ) VALUES ($1, $2, $3, $4, point($5, $6), $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.ExecContext(ctx, query,
		position.ID, position.DeviceID, position.Protocol, position.Timestamp,
		position.Longitude, position.Latitude, position.Altitude, position.Speed, position.Course,
		position.Valid, position.Satellites, position.Ignition, position.Battery, position.Power,
		position.RSSI, pq.Array(alarms), attributes, towers,
	)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

func (r *PostgresPositionRepository) FindLatestByDeviceID(ctx context.Context, deviceID string) (*model.Position, error) {
	query := `
        SELECT id, device_id, protocol, timestamp, location[1], location[0], altitude, speed, course,
               valid, satellites, ignition, battery, power, rssi, alarms, attributes, cell_towers
        FROM locations
        WHERE device_id = $1
        ORDER BY timestamp DESC
        LIMIT 1`

	var (
		p          model.Position
		alarms     []string
		attributes []byte
		towers     []byte
	)
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&p.ID, &p.DeviceID, &p.Protocol, &p.Timestamp, &p.Latitude, &p.Longitude,
		&p.Altitude, &p.Speed, &p.Course, &p.Valid, &p.Satellites, &p.Ignition,
		&p.Battery, &p.Power, &p.RSSI, pq.Array(&alarms), &attributes, &towers,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest location: %w", err)
	}

	if len(alarms) > 0 {
		p.Alarms = alarms
	}
	p.Attributes = make(map[string]interface{})
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &p.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	if len(towers) > 0 {
		if err := json.Unmarshal(towers, &p.CellTowers); err != nil {
			return nil, fmt.Errorf("decode cell towers: %w", err)
		}
	}
	return &p, nil
}

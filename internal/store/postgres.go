package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/pkg/models"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connURL and runs migrations.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("PostgreSQL store initialized")
	return s, nil
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS telemetry_readings (
		id          TEXT PRIMARY KEY,
		payload     JSONB NOT NULL,
		session_id  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_telemetry_created ON telemetry_readings (created_at DESC);

	CREATE TABLE IF NOT EXISTS predictions (
		id          TEXT PRIMARY KEY,
		input       JSONB NOT NULL,
		result      JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions (created_at DESC);

	CREATE TABLE IF NOT EXISTS routes (
		route_id        TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		origin          TEXT NOT NULL,
		destination     TEXT NOT NULL,
		eta             INT NOT NULL,
		survival_margin INT NOT NULL,
		distance        DOUBLE PRECISION NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		road_condition  TEXT NOT NULL DEFAULT 'Clear'
	);

	CREATE TABLE IF NOT EXISTS facilities (
		name             TEXT PRIMARY KEY,
		temperature      DOUBLE PRECISION NOT NULL,
		humidity         DOUBLE PRECISION NOT NULL,
		power_status     TEXT NOT NULL,
		storage_capacity INT NOT NULL,
		current_load     INT NOT NULL,
		last_updated     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS trip_logs (
		trip_id         TEXT PRIMARY KEY,
		date            TEXT NOT NULL,
		route           TEXT NOT NULL,
		cargo           TEXT NOT NULL,
		duration        TEXT NOT NULL,
		temp_range      TEXT NOT NULL,
		status          TEXT NOT NULL,
		shelf_life_used INT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS rescue_points (
		name            TEXT PRIMARY KEY,
		distance        DOUBLE PRECISION NOT NULL,
		recovery_chance INT NOT NULL,
		type            TEXT NOT NULL,
		available       BOOLEAN NOT NULL DEFAULT TRUE,
		eta             INT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recommendations (
		rec_id      TEXT PRIMARY KEY,
		type        TEXT NOT NULL,
		severity    TEXT NOT NULL,
		message     TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_recommendations_created ON recommendations (created_at DESC);

	CREATE TABLE IF NOT EXISTS conversation_turns (
		seq        BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_session ON conversation_turns (session_id, seq);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// ── Telemetry ───────────────────────────────────────────────

func (s *PostgresStore) InsertTelemetry(ctx context.Context, rec *models.TelemetryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rec.TelemetrySnapshot)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO telemetry_readings (id, payload, session_id, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, payload, rec.SessionID, rec.CreatedAt)
	return err
}

func (s *PostgresStore) LatestTelemetry(ctx context.Context, limit int) ([]models.TelemetryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, payload, created_at FROM telemetry_readings ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest telemetry: %w", err)
	}
	defer rows.Close()

	var out []models.TelemetryRecord
	for rows.Next() {
		var rec models.TelemetryRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.TelemetrySnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal telemetry %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ── Predictions ─────────────────────────────────────────────

func (s *PostgresStore) InsertPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("marshal prediction input: %w", err)
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal prediction result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO predictions (id, input, result, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, input, result, rec.CreatedAt)
	return err
}

func (s *PostgresStore) ListPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, input, result, created_at FROM predictions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var out []models.PredictionRecord
	for rows.Next() {
		var rec models.PredictionRecord
		var input, result []byte
		if err := rows.Scan(&rec.ID, &input, &result, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if err := json.Unmarshal(input, &rec.Input); err != nil {
			return nil, fmt.Errorf("unmarshal prediction input %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(result, &rec.Result); err != nil {
			return nil, fmt.Errorf("unmarshal prediction result %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ── Routes ──────────────────────────────────────────────────

func (s *PostgresStore) ListRoutes(ctx context.Context) ([]models.Route, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT route_id, name, origin, destination, eta, survival_margin, distance, status, road_condition
		 FROM routes ORDER BY route_id`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var out []models.Route
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.RouteID, &r.Name, &r.Origin, &r.Destination,
			&r.ETA, &r.SurvivalMargin, &r.Distance, &r.Status, &r.RoadCondition); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	var r models.Route
	err := s.pool.QueryRow(ctx,
		`SELECT route_id, name, origin, destination, eta, survival_margin, distance, status, road_condition
		 FROM routes WHERE route_id = $1`, routeID).
		Scan(&r.RouteID, &r.Name, &r.Origin, &r.Destination,
			&r.ETA, &r.SurvivalMargin, &r.Distance, &r.Status, &r.RoadCondition)
	if err == pgx.ErrNoRows {
		return nil, &ErrNotFound{Entity: "route", Key: routeID}
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) UpsertRoute(ctx context.Context, route *models.Route) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO routes (route_id, name, origin, destination, eta, survival_margin, distance, status, road_condition)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (route_id) DO UPDATE SET
			name = EXCLUDED.name, origin = EXCLUDED.origin, destination = EXCLUDED.destination,
			eta = EXCLUDED.eta, survival_margin = EXCLUDED.survival_margin,
			distance = EXCLUDED.distance, status = EXCLUDED.status, road_condition = EXCLUDED.road_condition`,
		route.RouteID, route.Name, route.Origin, route.Destination,
		route.ETA, route.SurvivalMargin, route.Distance, route.Status, route.RoadCondition)
	return err
}

// ── Facilities ──────────────────────────────────────────────

func (s *PostgresStore) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, temperature, humidity, power_status, storage_capacity, current_load, last_updated
		 FROM facilities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	var out []models.Facility
	for rows.Next() {
		var f models.Facility
		if err := rows.Scan(&f.Name, &f.Temperature, &f.Humidity, &f.PowerStatus,
			&f.StorageCapacity, &f.CurrentLoad, &f.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateFacility(ctx context.Context, name string, updates models.FacilityUpdate) (*models.Facility, error) {
	var f models.Facility
	err := s.pool.QueryRow(ctx,
		`UPDATE facilities SET
			temperature  = COALESCE($2, temperature),
			humidity     = COALESCE($3, humidity),
			power_status = COALESCE($4, power_status),
			current_load = COALESCE($5, current_load),
			last_updated = NOW()
		 WHERE name = $1
		 RETURNING name, temperature, humidity, power_status, storage_capacity, current_load, last_updated`,
		name, updates.Temperature, updates.Humidity, updates.PowerStatus, updates.CurrentLoad).
		Scan(&f.Name, &f.Temperature, &f.Humidity, &f.PowerStatus,
			&f.StorageCapacity, &f.CurrentLoad, &f.LastUpdated)
	if err == pgx.ErrNoRows {
		return nil, &ErrNotFound{Entity: "facility", Key: name}
	}
	if err != nil {
		return nil, fmt.Errorf("update facility: %w", err)
	}
	return &f, nil
}

// ── Trip Logs ───────────────────────────────────────────────

func (s *PostgresStore) ListTripLogs(ctx context.Context, limit int) ([]models.TripLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT trip_id, date, route, cargo, duration, temp_range, status, shelf_life_used
		 FROM trip_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list trip logs: %w", err)
	}
	defer rows.Close()

	var out []models.TripLog
	for rows.Next() {
		var t models.TripLog
		if err := rows.Scan(&t.TripID, &t.Date, &t.Route, &t.Cargo,
			&t.Duration, &t.TempRange, &t.Status, &t.ShelfLifeUsed); err != nil {
			return nil, fmt.Errorf("scan trip log: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertTripLog(ctx context.Context, trip *models.TripLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trip_logs (trip_id, date, route, cargo, duration, temp_range, status, shelf_life_used)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (trip_id) DO NOTHING`,
		trip.TripID, trip.Date, trip.Route, trip.Cargo,
		trip.Duration, trip.TempRange, trip.Status, trip.ShelfLifeUsed)
	return err
}

// ── Rescue Points ───────────────────────────────────────────

func (s *PostgresStore) ListRescuePoints(ctx context.Context, availableOnly bool) ([]models.RescuePoint, error) {
	query := `SELECT name, distance, recovery_chance, type, available, eta FROM rescue_points`
	if availableOnly {
		query += ` WHERE available`
	}
	query += ` ORDER BY recovery_chance DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rescue points: %w", err)
	}
	defer rows.Close()

	var out []models.RescuePoint
	for rows.Next() {
		var p models.RescuePoint
		if err := rows.Scan(&p.Name, &p.Distance, &p.RecoveryChance, &p.Type, &p.Available, &p.ETA); err != nil {
			return nil, fmt.Errorf("scan rescue point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ── Recommendations ─────────────────────────────────────────

func (s *PostgresStore) InsertRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recommendations (rec_id, type, severity, message, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.RecID, rec.Type, rec.Severity, rec.Message, rec.Status, rec.CreatedAt)
	return err
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, limit int) ([]models.Recommendation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT rec_id, type, severity, message, status, created_at, resolved_at
		 FROM recommendations ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []models.Recommendation
	for rows.Next() {
		var r models.Recommendation
		if err := rows.Scan(&r.RecID, &r.Type, &r.Severity, &r.Message,
			&r.Status, &r.CreatedAt, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateRecommendationStatus(ctx context.Context, recID string, status models.RecommendationStatus) (*models.Recommendation, error) {
	var r models.Recommendation
	err := s.pool.QueryRow(ctx,
		`UPDATE recommendations SET status = $2, resolved_at = NOW()
		 WHERE rec_id = $1
		 RETURNING rec_id, type, severity, message, status, created_at, resolved_at`,
		recID, status).
		Scan(&r.RecID, &r.Type, &r.Severity, &r.Message, &r.Status, &r.CreatedAt, &r.ResolvedAt)
	if err == pgx.ErrNoRows {
		return nil, &ErrNotFound{Entity: "recommendation", Key: recID}
	}
	if err != nil {
		return nil, fmt.Errorf("update recommendation: %w", err)
	}
	return &r, nil
}

// ── Conversations ───────────────────────────────────────────

func (s *PostgresStore) AppendConversationTurn(ctx context.Context, sessionID, role, content string) error {
	// The BIGSERIAL seq column serializes turn order per session.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (session_id, role, content) VALUES ($1, $2, $3)`,
		sessionID, role, content)
	return err
}

func (s *PostgresStore) ConversationHistory(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, role, content, created_at
		 FROM conversation_turns WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation history: %w", err)
	}
	defer rows.Close()

	var out []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.SessionID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ── Retention ───────────────────────────────────────────────

func (s *PostgresStore) PruneTelemetry(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM telemetry_readings WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune telemetry: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) PrunePredictions(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM predictions WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune predictions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ── Lifecycle ───────────────────────────────────────────────

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

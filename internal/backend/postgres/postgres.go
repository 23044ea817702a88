// Package postgres implements backend.BusinessBackend for deployments
// where the booking platform's client table is directly readable.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/salonflow/salonflow-sessions/internal/backend"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a backend over an existing connection pool.
func NewWithDB(db *sql.DB) backend.BusinessBackend { return &pgBackend{db: db} }

type pgBackend struct{ db *sql.DB }

func (b *pgBackend) FetchClient(ctx context.Context, tenantID int64, phone string) (*model.ClientRecord, error) {
	const q = `
SELECT id, name, phone, visit_count, favorite_service_id, favorite_staff_id, comment
FROM clients
WHERE company_id = $1 AND phone = $2`

	var (
		rec        model.ClientRecord
		favService sql.NullInt64
		favStaff   sql.NullInt64
		comment    sql.NullString
	)
	err := b.db.QueryRowContext(ctx, q, tenantID, phone).Scan(
		&rec.ClientID, &rec.Name, &rec.Phone, &rec.VisitCount,
		&favService, &favStaff, &comment,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("backend query client: %w", err)
	}
	if favService.Valid {
		rec.FavoriteServiceID = &favService.Int64
	}
	if favStaff.Valid {
		rec.FavoriteStaffID = &favStaff.Int64
	}
	if comment.Valid {
		rec.Comment = &comment.String
	}
	return &rec, nil
}

// Ping implements health.Pinger.
func (b *pgBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/dkeye/studyroom/internal/domain"
)

const defaultListLimit = 100

// Schema creates the study_rooms table used by PostgresRoomRepo.
const Schema = `
CREATE TABLE IF NOT EXISTS study_rooms (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	topic             TEXT NOT NULL DEFAULT '',
	capacity          INTEGER NOT NULL,
	is_private        BOOLEAN NOT NULL DEFAULT FALSE,
	host_id           TEXT NOT NULL,
	participant_count INTEGER NOT NULL DEFAULT 0,
	count_seq         BIGINT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS study_rooms_created_at_idx ON study_rooms (created_at DESC);
`

const uniqueViolation = "23505"

type PostgresRoomRepo struct {
	db *sql.DB
}

func NewPostgresRoomRepo(db *sql.DB) *PostgresRoomRepo {
	return &PostgresRoomRepo{db: db}
}

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (p *PostgresRoomRepo) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

func (p *PostgresRoomRepo) CreateRoom(ctx context.Context, room domain.Room) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO study_rooms (id, name, topic, capacity, is_private, host_id, participant_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(room.ID), room.Name, room.Topic, room.Capacity, room.IsPrivate, room.HostID,
		room.ParticipantCount, room.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrRoomExists
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(s rowScanner) (domain.Room, error) {
	var r domain.Room
	var id string
	err := s.Scan(&id, &r.Name, &r.Topic, &r.Capacity, &r.IsPrivate, &r.HostID, &r.ParticipantCount, &r.CreatedAt)
	r.ID = domain.RoomID(id)
	return r, err
}

func (p *PostgresRoomRepo) GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, topic, capacity, is_private, host_id, participant_count, created_at
		FROM study_rooms WHERE id = $1`, string(id))
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return r, nil
}

func (p *PostgresRoomRepo) ListRooms(ctx context.Context, limit int) ([]domain.Room, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, topic, capacity, is_private, host_id, participant_count, created_at
		FROM study_rooms ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresRoomRepo) UpdateRoom(ctx context.Context, room domain.Room) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE study_rooms SET name = $2, topic = $3, capacity = $4, is_private = $5
		WHERE id = $1`,
		string(room.ID), room.Name, room.Topic, room.Capacity, room.IsPrivate,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresRoomRepo) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM study_rooms WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresRoomRepo) SetParticipantCount(ctx context.Context, id domain.RoomID, count int, seq uint64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE study_rooms SET participant_count = $2, count_seq = $3
		WHERE id = $1 AND count_seq < $3`,
		string(id), count, int64(seq),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM study_rooms WHERE id = $1)`, string(id),
	).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrRoomNotFound
	}
	return false, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

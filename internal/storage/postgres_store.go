package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-companion/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveRide(r *models.Ride) error {
	_, err := p.db.Exec(`INSERT INTO rides(id, group_id, name, status, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`,
		r.ID, r.GroupID, r.Name, r.Status, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateRide(r *models.Ride) error {
	r.UpdatedAt = time.Now()
	_, err := p.db.Exec(`UPDATE rides SET status=$1, updated_at=$2 WHERE id=$3`, r.Status, r.UpdatedAt, r.ID)
	return err
}

func (p *PostgresStore) GetRide(id string) (*models.Ride, bool, error) {
	row := p.db.QueryRow(`SELECT id, group_id, name, status, created_at, updated_at FROM rides WHERE id=$1`, id)
	var r models.Ride
	if err := row.Scan(&r.ID, &r.GroupID, &r.Name, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &r, true, nil
}

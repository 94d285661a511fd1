package db

import (
	"database/sql"
	"time"
)

type Operator struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// TouchOperator records that an operator connected, keeping the previous
// display name when the new one is empty.
func (db *DB) TouchOperator(id, displayName string) (*Operator, error) {
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO operators (id, display_name, created_at, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE operators.display_name END,
			last_seen_at = excluded.last_seen_at
	`, id, displayName, now, now)
	if err != nil {
		return nil, err
	}
	return db.GetOperator(id)
}

func (db *DB) GetOperator(id string) (*Operator, error) {
	o := &Operator{}
	err := db.QueryRow(`
		SELECT id, display_name, created_at, last_seen_at
		FROM operators WHERE id = ?
	`, id).Scan(&o.ID, &o.DisplayName, &o.CreatedAt, &o.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

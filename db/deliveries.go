package db

import (
	"time"

	"github.com/nicebartender/chatrelay/chat"
)

// Delivery is one chat message handed to the agent and what came back.
type Delivery struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Message     string     `json:"message"`
	ReceivedAt  time.Time  `json:"receivedAt"`
	DeliveredAt time.Time  `json:"deliveredAt"`
	Reply       *string    `json:"reply,omitempty"`
	Error       *string    `json:"error,omitempty"`
	RepliedAt   *time.Time `json:"repliedAt,omitempty"`
}

func (db *DB) InsertDelivery(msg chat.Message, deliveredAt time.Time) (*Delivery, error) {
	d := &Delivery{
		ID:          msg.ID.String(),
		Username:    msg.Username,
		Message:     msg.Message,
		ReceivedAt:  msg.Timestamp.UTC(),
		DeliveredAt: deliveredAt.UTC(),
	}
	_, err := db.Exec(`
		INSERT INTO deliveries (id, username, message, received_at, delivered_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.Username, d.Message, d.ReceivedAt, d.DeliveredAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (db *DB) SetReply(id, reply string) error {
	_, err := db.Exec(`
		UPDATE deliveries SET reply = ?, error = NULL, replied_at = ? WHERE id = ?
	`, reply, time.Now().UTC(), id)
	return err
}

func (db *DB) SetError(id, errMsg string) error {
	_, err := db.Exec(`
		UPDATE deliveries SET error = ?, replied_at = ? WHERE id = ?
	`, errMsg, time.Now().UTC(), id)
	return err
}

func (db *DB) GetDelivery(id string) (*Delivery, error) {
	d := &Delivery{}
	err := db.QueryRow(`
		SELECT id, username, message, received_at, delivered_at, reply, error, replied_at
		FROM deliveries WHERE id = ?
	`, id).Scan(&d.ID, &d.Username, &d.Message, &d.ReceivedAt, &d.DeliveredAt, &d.Reply, &d.Error, &d.RepliedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// RecentDeliveries returns up to limit deliveries, oldest first.
func (db *DB) RecentDeliveries(limit int) ([]Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, username, message, received_at, delivered_at, reply, error, replied_at
		FROM deliveries ORDER BY delivered_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.Username, &d.Message, &d.ReceivedAt, &d.DeliveredAt, &d.Reply, &d.Error, &d.RepliedAt); err != nil {
			continue
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(deliveries)-1; i < j; i, j = i+1, j-1 {
		deliveries[i], deliveries[j] = deliveries[j], deliveries[i]
	}
	return deliveries, nil
}

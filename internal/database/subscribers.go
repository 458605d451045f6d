package database

import (
	"context"
	"fmt"
	"strconv"
)

// Subscriber is a broadcast recipient.
type Subscriber struct {
	ChatID   int64
	Username string
	IsActive bool
}

// SubscriberRepository backs the broadcast user directory.
type SubscriberRepository struct {
	db *DB
}

func NewSubscriberRepository(db *DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) Upsert(ctx context.Context, sub Subscriber) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO subscribers (chat_id, username, is_active)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (chat_id) DO UPDATE SET username = EXCLUDED.username, is_active = EXCLUDED.is_active`,
		sub.ChatID, sub.Username, sub.IsActive,
	)
	if err != nil {
		return fmt.Errorf("error upserting subscriber %d: %w", sub.ChatID, err)
	}
	return nil
}

func (r *SubscriberRepository) Deactivate(ctx context.Context, chatID int64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE subscribers SET is_active = FALSE WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("error deactivating subscriber %d: %w", chatID, err)
	}
	return nil
}

// ActiveRecipients returns the chat IDs of active subscribers as recipient
// strings. This is the UserDirectory snapshot used by broadcast mode.
func (r *SubscriberRepository) ActiveRecipients(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT chat_id FROM subscribers WHERE is_active ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("error querying subscribers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning subscriber row: %w", err)
		}
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out, rows.Err()
}

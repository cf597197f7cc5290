package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

type postgresTicketStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketStore keeps the file store's whole-state overwrite
// semantics on Postgres: Save replaces every row inside one
// transaction, so claim's read-modify-write stays last-writer-wins at
// the single-writer level rather than silently becoming a partial
// update.
func NewPostgresTicketStore(pool *pgxpool.Pool) TicketStore {
	return &postgresTicketStore{pool: pool}
}

func (s *postgresTicketStore) Load(ctx context.Context) (map[string]domain.Ticket, error) {
	const query = `
        SELECT ticket_number, channel_id, guild_id, requester_id, subject, service, amount,
               status, claimed_by, created_at, closed_by, closed_at, close_reason
        FROM tickets`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	defer rows.Close()

	tickets := map[string]domain.Ticket{}
	for rows.Next() {
		var t domain.Ticket
		var reason *string
		if err := rows.Scan(
			&t.TicketNumber,
			&t.ChannelID,
			&t.GuildID,
			&t.RequesterID,
			&t.Subject,
			&t.Service,
			&t.Amount,
			&t.Status,
			&t.ClaimedBy,
			&t.CreatedAt,
			&t.ClosedBy,
			&t.ClosedAt,
			&reason,
		); err != nil {
			return nil, err
		}
		if reason != nil {
			t.CloseReason = *reason
		}
		tickets[t.ChannelID] = t
	}
	return tickets, rows.Err()
}

func (s *postgresTicketStore) Save(ctx context.Context, tickets map[string]domain.Ticket) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM tickets`); err != nil {
		return fmt.Errorf("clear tickets: %w", err)
	}

	const insert = `
        INSERT INTO tickets (ticket_number, channel_id, guild_id, requester_id, subject, service, amount,
                             status, claimed_by, created_at, closed_by, closed_at, close_reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	for _, t := range tickets {
		var reason *string
		if t.CloseReason != "" {
			reason = &t.CloseReason
		}
		if _, err := tx.Exec(ctx, insert,
			t.TicketNumber,
			t.ChannelID,
			t.GuildID,
			t.RequesterID,
			t.Subject,
			t.Service,
			t.Amount,
			t.Status,
			t.ClaimedBy,
			t.CreatedAt,
			t.ClosedBy,
			t.ClosedAt,
			reason,
		); err != nil {
			return fmt.Errorf("insert ticket #%d: %w", t.TicketNumber, err)
		}
	}

	return tx.Commit(ctx)
}

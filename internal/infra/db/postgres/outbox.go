package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/infra/outbox"
)

// Outbox stores events in app_outbox inside the caller's transaction and
// serves them to the relay worker.
type Outbox struct {
	pool *pgxpool.Pool
	Now  func() time.Time
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	_, err = conn(ctx, o.pool).Exec(ctx, `INSERT INTO app_outbox
		(id, name, payload, occurred_at, aggregate, headers, state, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		record.ID, record.Name, record.Payload, record.OccurredAt.UTC(), record.Aggregate, headers,
		outbox.StateNew, o.now())
	return err
}

func (o *Outbox) Flush(context.Context) error {
	return nil
}

// Claim locks the oldest due row with SKIP LOCKED so concurrent workers never
// pick the same message.
func (o *Outbox) Claim(ctx context.Context, workerID string) (*outbox.Message, error) {
	now := o.now()
	row := o.pool.QueryRow(ctx, `UPDATE app_outbox SET state = $1, claimed_by = $2, claimed_at = $3
		WHERE id = (
			SELECT id FROM app_outbox
			WHERE (state IN ($4, $5) AND next_attempt_at <= $3)
			   OR (state = $1 AND claimed_at <= $6)
			ORDER BY next_attempt_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload, occurred_at, aggregate, headers, state, attempts, next_attempt_at`,
		outbox.StateClaimed, workerID, now, outbox.StateNew, outbox.StateFailed, now.Add(-outbox.ClaimLease))
	var (
		msg     outbox.Message
		headers []byte
	)
	err := row.Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &headers,
		&msg.State, &msg.Attempts, &msg.NextAttempt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &msg.Headers); err != nil {
			return nil, err
		}
	}
	msg.ClaimedBy = workerID
	msg.ClaimedAt = now
	return &msg, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	_, err := o.pool.Exec(ctx, `UPDATE app_outbox SET state = $2, sent_at = $3 WHERE id = $1`, id, outbox.StateSent, o.now())
	return err
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := o.pool.Exec(ctx, `UPDATE app_outbox SET state = $2, next_attempt_at = $3, last_error = $4,
		attempts = attempts + 1 WHERE id = $1`, id, outbox.StateFailed, next.UTC(), errMsg)
	return err
}

func (o *Outbox) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

var (
	_ appoutbox.Outbox = (*Outbox)(nil)
	_ outbox.Queue     = (*Outbox)(nil)
)

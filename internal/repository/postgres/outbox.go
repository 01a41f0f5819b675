package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

type outboxRepository struct {
	db   *sql.DB
	opts options
}

// NewOutboxRepository creates an OutboxRepository over the catalog database.
func NewOutboxRepository(db *sql.DB, opts ...Option) repository.OutboxRepository {
	return &outboxRepository{db: db, opts: buildOptions(opts)}
}

func (r *outboxRepository) InsertWithEvent(ctx context.Context, in entity.ProductInput, topic string, encode repository.EncodeFunc) (entity.Product, error) {
	now := r.opts.timestamp()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO products (name, description, price, stock, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5) RETURNING id",
		in.Name, in.Description, in.Price, in.Stock, now,
	).Scan(&id)
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}

	product := entity.NewProduct(in).WithIdentity(id, now)
	payload, err := encode(product)
	if err != nil {
		return entity.Product{}, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO outbox_events (id, topic, aggregate_id, payload, created_at) VALUES ($1, $2, $3, $4, $5)",
		uuid.NewString(), topic, id, payload, now,
	)
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return entity.Product{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return product, nil
}

func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]entity.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, topic, aggregate_id, payload, created_at, attempts, last_error FROM outbox_events WHERE published_at IS NULL ORDER BY seq LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []entity.OutboxEvent
	for rows.Next() {
		var e entity.OutboxEvent
		if err := rows.Scan(&e.ID, &e.Topic, &e.AggregateID, &e.Payload, &e.CreatedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE outbox_events SET published_at = $2 WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %s published: %w", id, err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE outbox_events SET attempts = attempts + 1, last_error = $2 WHERE id = $1",
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %s failed: %w", id, err)
	}
	return nil
}

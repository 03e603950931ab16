package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"herald/internal/constants"
	"herald/pkg/metrics"
)

const entryColumns = `id, channel_id, rule_id, event_type, status, message_title,
	message_content, error_message, sent_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, entry *Entry) (err error) {
	defer observeQuery("postgres", "insert_history", time.Now(), &err)

	query := `
		INSERT INTO notification_history (` + entryColumns + `)
		VALUES (:id, :channel_id, :rule_id, :event_type, :status, :message_title,
			:message_content, :error_message, :sent_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Query(ctx context.Context, filter Filter) (_ []Entry, err error) {
	defer observeQuery("postgres", "query_history", time.Now(), &err)

	where, args := whereClause(filter)
	query := r.db.Rebind(`SELECT ` + entryColumns + ` FROM notification_history` + where +
		` ORDER BY sent_at DESC, id DESC LIMIT ? OFFSET ?`)
	args = append(args, filter.Limit, filter.Offset)

	entries := []Entry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entries, nil
}

func (r *PostgresRepository) Count(ctx context.Context, filter Filter) (_ int, err error) {
	defer observeQuery("postgres", "count_history", time.Now(), &err)

	where, args := whereClause(filter)
	query := r.db.Rebind(`SELECT COUNT(*) FROM notification_history` + where)

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return total, nil
}

func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.StartDate != nil {
		conds = append(conds, "sent_at >= ?")
		args = append(args, *f.StartDate)
	}
	if f.EndDate != nil {
		conds = append(conds, "sent_at <= ?")
		args = append(args, *f.EndDate)
	}
	if f.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.ChannelID != "" {
		conds = append(conds, "channel_id = ?")
		args = append(args, f.ChannelID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func observeQuery(database, operation string, start time.Time, errp *error) {
	status := "success"
	if *errp != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(constants.ServiceName, database, operation, status)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceName, database, operation, time.Since(start))
}

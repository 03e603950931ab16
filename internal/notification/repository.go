package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"herald/internal/constants"
	"herald/pkg/metrics"
)

const pqForeignKeyViolation = "23503"

const ruleColumns = `id, name, description, event_type, enabled, priority,
	message_title, message_template, condition_expr, created_at, updated_at`

const channelColumns = `id, name, server_url, token, priority, status,
	last_error, last_checked_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// PostgresRepository stores rules, their filters and channel associations, and
// channels in PostgreSQL. It implements Repository and ChannelRepository.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *Rule) (err error) {
	defer observeQuery("create_rule", time.Now(), &err)

	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO notification_rules (` + ruleColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.ExecContext(ctx, query,
			rule.ID, rule.Name, nullString(rule.Description), rule.EventType,
			rule.Enabled, rule.Priority, nullString(rule.MessageTitle),
			nullString(rule.MessageTemplate), nullString(rule.Condition),
			rule.CreatedAt, rule.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}

		if err := insertRuleChannels(ctx, tx, rule.ID, rule.ChannelIDs); err != nil {
			return err
		}
		return insertRuleFilters(ctx, tx, rule.ID, rule.Filters)
	})
}

func (r *PostgresRepository) GetRule(ctx context.Context, id string) (_ *Rule, err error) {
	defer observeQuery("get_rule", time.Now(), &err)

	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	rules := []Rule{*rule}
	if err := r.hydrate(ctx, rules); err != nil {
		return nil, err
	}
	return &rules[0], nil
}

func (r *PostgresRepository) ListRules(ctx context.Context) (_ []Rule, err error) {
	defer observeQuery("list_rules", time.Now(), &err)

	query := `
		SELECT ` + ruleColumns + `
		FROM notification_rules
		ORDER BY created_at DESC, id DESC
	`
	return r.queryRules(ctx, query)
}

func (r *PostgresRepository) GetMatchingRules(ctx context.Context, eventType string) (_ []Rule, err error) {
	defer observeQuery("matching_rules", time.Now(), &err)

	query := `
		SELECT ` + ruleColumns + `
		FROM notification_rules
		WHERE event_type = $1 AND enabled = TRUE
		ORDER BY priority DESC, created_at ASC, id ASC
	`
	return r.queryRules(ctx, query, eventType)
}

func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *Rule, replaceChannels, replaceFilters bool) (err error) {
	defer observeQuery("update_rule", time.Now(), &err)

	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE notification_rules
			SET name = $1, description = $2, event_type = $3, enabled = $4, priority = $5,
				message_title = $6, message_template = $7, condition_expr = $8, updated_at = $9
			WHERE id = $10
		`
		res, err := tx.ExecContext(ctx, query,
			rule.Name, nullString(rule.Description), rule.EventType, rule.Enabled,
			rule.Priority, nullString(rule.MessageTitle), nullString(rule.MessageTemplate),
			nullString(rule.Condition), rule.UpdatedAt, rule.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		if err := expectRow(res, ErrRuleNotFound); err != nil {
			return err
		}

		if replaceChannels {
			if _, err := tx.ExecContext(ctx, `DELETE FROM notification_rule_channels WHERE rule_id = $1`, rule.ID); err != nil {
				return fmt.Errorf("failed to clear rule channels: %w", err)
			}
			if err := insertRuleChannels(ctx, tx, rule.ID, rule.ChannelIDs); err != nil {
				return err
			}
		}

		if replaceFilters {
			if _, err := tx.ExecContext(ctx, `DELETE FROM notification_rule_filters WHERE rule_id = $1`, rule.ID); err != nil {
				return fmt.Errorf("failed to clear rule filters: %w", err)
			}
			if err := insertRuleFilters(ctx, tx, rule.ID, rule.Filters); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, id string) (err error) {
	defer observeQuery("delete_rule", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return expectRow(res, ErrRuleNotFound)
}

func (r *PostgresRepository) CreateChannel(ctx context.Context, channel *Channel) (err error) {
	defer observeQuery("create_channel", time.Now(), &err)

	if channel.Status == "" {
		channel.Status = ChannelStatusDisconnected
	}
	now := time.Now().UTC()
	if channel.CreatedAt.IsZero() {
		channel.CreatedAt = now
	}
	if channel.UpdatedAt.IsZero() {
		channel.UpdatedAt = now
	}

	query := `
		INSERT INTO notification_channels (` + channelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		channel.ID, channel.Name, channel.ServerURL, channel.Token, channel.Priority,
		string(channel.Status), nullString(channel.LastError), channel.LastCheckedAt,
		channel.CreatedAt, channel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetChannel(ctx context.Context, id string) (_ *Channel, err error) {
	defer observeQuery("get_channel", time.Now(), &err)

	query := `SELECT ` + channelColumns + ` FROM notification_channels WHERE id = $1`

	channel, err := scanChannel(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return channel, nil
}

func (r *PostgresRepository) ListChannels(ctx context.Context) (_ []Channel, err error) {
	defer observeQuery("list_channels", time.Now(), &err)

	query := `
		SELECT ` + channelColumns + `
		FROM notification_channels
		ORDER BY priority DESC, name ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	channels := []Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, *channel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate channels: %w", err)
	}
	return channels, nil
}

func (r *PostgresRepository) MissingChannelIDs(ctx context.Context, ids []string) (_ []string, err error) {
	defer observeQuery("missing_channels", time.Now(), &err)

	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id FROM notification_channels WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to look up channels: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan channel id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate channel ids: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *PostgresRepository) UpdateChannelStatus(ctx context.Context, id string, status ChannelStatus, lastError string, checkedAt time.Time) (err error) {
	defer observeQuery("update_channel_status", time.Now(), &err)

	query := `
		UPDATE notification_channels
		SET status = $1, last_error = $2, last_checked_at = $3, updated_at = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, string(status), nullString(lastError), checkedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update channel status: %w", err)
	}
	return expectRow(res, ErrChannelNotFound)
}

func (r *PostgresRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := []Rule{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	if err := r.hydrate(ctx, rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// hydrate loads channels and filters for every rule with one query each.
func (r *PostgresRepository) hydrate(ctx context.Context, rules []Rule) error {
	if len(rules) == 0 {
		return nil
	}

	ids := make([]string, len(rules))
	index := make(map[string]int, len(rules))
	for i := range rules {
		ids[i] = rules[i].ID
		index[rules[i].ID] = i
		rules[i].ChannelIDs = []string{}
		rules[i].Channels = []Channel{}
		rules[i].Filters = []Filter{}
	}

	channelQuery := `
		SELECT rc.rule_id, c.id, c.name, c.server_url, c.token, c.priority, c.status,
			c.last_error, c.last_checked_at, c.created_at, c.updated_at
		FROM notification_rule_channels rc
		JOIN notification_channels c ON c.id = rc.channel_id
		WHERE rc.rule_id = ANY($1)
		ORDER BY rc.rule_id, rc.position
	`
	rows, err := r.db.QueryContext(ctx, channelQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load rule channels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ruleID string
		var c Channel
		var status string
		var lastError sql.NullString
		var lastChecked sql.NullTime
		if err := rows.Scan(&ruleID, &c.ID, &c.Name, &c.ServerURL, &c.Token, &c.Priority, &status,
			&lastError, &lastChecked, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan rule channel: %w", err)
		}
		fillChannel(&c, status, lastError, lastChecked)

		i := index[ruleID]
		rules[i].ChannelIDs = append(rules[i].ChannelIDs, c.ID)
		rules[i].Channels = append(rules[i].Channels, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate rule channels: %w", err)
	}

	filterQuery := `
		SELECT rule_id, filter_type, filter_value
		FROM notification_rule_filters
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, position, id
	`
	filterRows, err := r.db.QueryContext(ctx, filterQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load rule filters: %w", err)
	}
	defer filterRows.Close()

	for filterRows.Next() {
		var ruleID string
		var f Filter
		if err := filterRows.Scan(&ruleID, &f.FilterType, &f.FilterValue); err != nil {
			return fmt.Errorf("failed to scan rule filter: %w", err)
		}
		i := index[ruleID]
		rules[i].Filters = append(rules[i].Filters, f)
	}
	if err := filterRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate rule filters: %w", err)
	}
	return nil
}

func (r *PostgresRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapPQError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertRuleChannels(ctx context.Context, tx *sql.Tx, ruleID string, channelIDs []string) error {
	query := `
		INSERT INTO notification_rule_channels (rule_id, channel_id, position)
		VALUES ($1, $2, $3)
	`
	for i, channelID := range channelIDs {
		if _, err := tx.ExecContext(ctx, query, ruleID, channelID, i); err != nil {
			return fmt.Errorf("failed to attach channel %s: %w", channelID, err)
		}
	}
	return nil
}

func insertRuleFilters(ctx context.Context, tx *sql.Tx, ruleID string, filters []Filter) error {
	query := `
		INSERT INTO notification_rule_filters (rule_id, filter_type, filter_value, position)
		VALUES ($1, $2, $3, $4)
	`
	for i, f := range filters {
		if _, err := tx.ExecContext(ctx, query, ruleID, f.FilterType, f.FilterValue, i); err != nil {
			return fmt.Errorf("failed to insert filter: %w", err)
		}
	}
	return nil
}

func scanRule(row rowScanner) (*Rule, error) {
	var rule Rule
	var description, title, template, condition sql.NullString
	err := row.Scan(
		&rule.ID, &rule.Name, &description, &rule.EventType, &rule.Enabled, &rule.Priority,
		&title, &template, &condition, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.Description = description.String
	rule.MessageTitle = title.String
	rule.MessageTemplate = template.String
	rule.Condition = condition.String
	return &rule, nil
}

func scanChannel(row rowScanner) (*Channel, error) {
	var c Channel
	var status string
	var lastError sql.NullString
	var lastChecked sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.ServerURL, &c.Token, &c.Priority, &status,
		&lastError, &lastChecked, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	fillChannel(&c, status, lastError, lastChecked)
	return &c, nil
}

func fillChannel(c *Channel, status string, lastError sql.NullString, lastChecked sql.NullTime) {
	c.Status = ChannelStatus(status)
	c.LastError = lastError.String
	if lastChecked.Valid {
		checked := lastChecked.Time
		c.LastCheckedAt = &checked
	}
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// mapPQError turns a foreign key violation on a channel reference into
// ErrChannelNotFound. The channel may have been deleted after validation.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, pqErr.Detail)
	}
	return err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func observeQuery(operation string, start time.Time, errp *error) {
	status := "success"
	if *errp != nil && !errors.Is(*errp, ErrRuleNotFound) && !errors.Is(*errp, ErrChannelNotFound) {
		status = "error"
	}
	metrics.IncDatabaseQuery(constants.ServiceName, "postgres", operation, status)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceName, "postgres", operation, time.Since(start))
}

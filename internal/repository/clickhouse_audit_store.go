package repository

import (
	"context"
	"fmt"
	"time"

	"EduPulse/internal/domain/models"
	domrepo "EduPulse/internal/domain/repository"
	pkgch "EduPulse/pkg/clickhouse"
	applogger "EduPulse/pkg/logger"
)

// AuditTable is the ClickHouse table holding audit entries.
const AuditTable = "audit_logs"

// AuditSchema returns the idempotent DDL for the audit table in database.
func AuditSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            ts DateTime64(3, 'UTC'),
            request_id String,
            action LowCardinality(String),
            table_name LowCardinality(String),
            user_id String,
            ip_address String
        ) ENGINE = MergeTree
        ORDER BY (user_id, ts)
        TTL toDateTime(ts) + INTERVAL 180 DAY`, database, AuditTable),
	}
}

// ClickHouseAuditStore implements AuditStore backed by ClickHouse.
type ClickHouseAuditStore struct {
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
}

func NewClickHouseAuditStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseAuditStore {
	return &ClickHouseAuditStore{
		ch:    ch,
		table: ch.Database() + "." + AuditTable,
		l:     l,
	}
}

var _ domrepo.AuditStore = (*ClickHouseAuditStore)(nil)

func (s *ClickHouseAuditStore) Log(ctx context.Context, entry models.AuditEntry) error {
	return s.StoreBatch(ctx, []models.AuditEntry{entry})
}

// StoreBatch inserts entries in one block. Entries without a user or action are skipped.
func (s *ClickHouseAuditStore) StoreBatch(ctx context.Context, entries []models.AuditEntry) error {
	rows := auditRows(entries)
	if len(rows) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("INSERT INTO %s (ts, request_id, action, table_name, user_id, ip_address)", s.table)
	if err := s.ch.InsertBatch(ctx, stmt, rows); err != nil {
		s.l.Error("clickhouse audit insert error",
			applogger.String("table", s.table),
			applogger.Int("rows", len(rows)),
			applogger.Error(err),
		)
		return fmt.Errorf("store audit batch: %w", err)
	}
	return nil
}

// Recent lists the latest entries of userID, newest first.
func (s *ClickHouseAuditStore) Recent(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`
        SELECT ts, request_id, action, table_name, user_id, ip_address
        FROM %s
        WHERE user_id = ?
        ORDER BY ts DESC
        LIMIT ?`, s.table)
	rows, err := s.ch.DB().QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent audit: %w", err)
	}
	defer rows.Close()

	out := make([]models.AuditEntry, 0, limit)
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.Timestamp, &e.RequestID, &e.Action, &e.Table, &e.UserID, &e.IPAddress); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func auditRows(entries []models.AuditEntry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		if e.UserID == "" || e.Action == "" {
			continue
		}
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		rows = append(rows, []any{ts.UTC(), e.RequestID, e.Action, e.Table, e.UserID, e.IPAddress})
	}
	return rows
}

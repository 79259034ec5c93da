// ABOUTME: Audit log entity and store methods for tracking administrative actions
// ABOUTME: Records who did what to which account or content row

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditChangeRole      AuditAction = "change_role"
	AuditDeleteAccount   AuditAction = "delete_account"
	AuditResetCredential AuditAction = "reset_credential"
	AuditBanAccount      AuditAction = "ban_account"
	AuditUnbanAccount    AuditAction = "unban_account"
	AuditCreateNews      AuditAction = "create_news"
	AuditUpdateNews      AuditAction = "update_news"
	AuditDeleteNews      AuditAction = "delete_news"
	AuditHideComment     AuditAction = "hide_comment"
	AuditUnhideComment   AuditAction = "unhide_comment"
	AuditSeedAdmin       AuditAction = "seed_admin"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string         // UUID v4
	ActorID    string         // account that performed the action, "system" for bootstrap
	Action     AuditAction    // what action was performed
	TargetType string         // "account", "news", "comment"
	TargetID   string         // ID or username of the affected row
	Timestamp  time.Time      // when it happened
	Detail     map[string]any // additional context
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since      *time.Time   // entries after this time
	ActorID    *string      // filter by actor
	Action     *AuditAction // filter by action type
	TargetType *string      // filter by target type
	Limit      int          // max results (default 100, max 1000)
}

// AuditStore defines the audit log persistence methods.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// prepareAuditEntry generates ID and Timestamp if not set.
func prepareAuditEntry(e *AuditEntry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	prepareAuditEntry(e)

	var detailJSON any
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		detailJSON = string(data)
	}

	_, err := s.exec(ctx, `
		INSERT INTO audit_log (audit_id, actor_id, action, target_type, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.ActorID,
		string(e.Action),
		e.TargetType,
		e.TargetID,
		formatTime(e.Timestamp),
		detailJSON,
	)
	if err != nil {
		return classify("inserting audit entry", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.ActorID,
		"action", e.Action,
		"target", e.TargetType+"/"+e.TargetID,
	)
	return nil
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner rowScanner) (AuditEntry, error) {
	var e AuditEntry
	var actionStr, tsStr string
	var detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.ActorID,
		&actionStr,
		&e.TargetType,
		&e.TargetID,
		&tsStr,
		&detailJSON,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(actionStr)
	var err error
	e.Timestamp, err = parseTime(tsStr)
	if err != nil {
		return e, err
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	query := `
		SELECT audit_id, actor_id, action, target_type, target_id, ts, detail_json
		FROM audit_log
		WHERE 1 = 1`
	var args []any
	if f.Since != nil {
		query += ` AND ts >= ?`
		args = append(args, formatTime(*f.Since))
	}
	if f.ActorID != nil {
		query += ` AND actor_id = ?`
		args = append(args, *f.ActorID)
	}
	if f.Action != nil {
		query += ` AND action = ?`
		args = append(args, string(*f.Action))
	}
	if f.TargetType != nil {
		query += ` AND target_type = ?`
		args = append(args, *f.TargetType)
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, normalizeLimit(f.Limit))

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, classify("querying audit log", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []AuditEntry{}
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating audit entries", err)
	}
	return entries, nil
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Enqueue inserts one phase for a parent's chain. The first phase of a chain
// (no dependency) is created ready; every other phase starts queued until its
// dependency completes.
func (s *Store) Enqueue(ctx context.Context, np NewPhase) (*Phase, error) {
	if strings.TrimSpace(np.ParentID) == "" {
		return nil, errors.New("parent id is required")
	}
	if np.PhaseNumber < 1 {
		return nil, fmt.Errorf("phase number must be >= 1, got %d", np.PhaseNumber)
	}
	if np.DependsOnPhase != nil {
		dep := *np.DependsOnPhase
		if dep < 1 || dep >= np.PhaseNumber {
			return nil, fmt.Errorf("depends_on_phase %d must name an earlier phase than %d", dep, np.PhaseNumber)
		}
	}

	status := StatusQueued
	if np.DependsOnPhase == nil {
		status = StatusReady
	}
	priority := np.Priority
	if priority == 0 {
		priority = DefaultPriority
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO phases (
            parent_id, phase_number, status, depends_on_phase, payload_json,
            priority, queue_position, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?,
            (SELECT COALESCE(MAX(queue_position), 0) + 1 FROM phases), ?, ?)`,
		np.ParentID,
		np.PhaseNumber,
		status,
		nullableInt(np.DependsOnPhase),
		nullableString(string(np.Payload)),
		priority,
		timestamp,
		timestamp,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: parent %s phase %d", ErrDuplicatePhase, np.ParentID, np.PhaseNumber)
		}
		return nil, fmt.Errorf("insert phase: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a phase by queue identifier. Missing rows return nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Phase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+phaseColumns+` FROM phases WHERE id = ?`, id)
	phase, err := scanPhase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get phase: %w", err)
	}
	return phase, nil
}

// ByParent returns a parent's phases in chain order.
func (s *Store) ByParent(ctx context.Context, parentID string) ([]*Phase, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE parent_id = ? ORDER BY phase_number`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query by parent: %w", err)
	}
	defer rows.Close()
	return collectPhases(rows)
}

// Ready returns runnable phases ordered by priority, then insertion order.
func (s *Store) Ready(ctx context.Context) ([]*Phase, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE status = ?
         ORDER BY priority DESC, queue_position ASC`,
		StatusReady,
	)
	if err != nil {
		return nil, fmt.Errorf("query ready phases: %w", err)
	}
	defer rows.Close()
	return collectPhases(rows)
}

// Running returns every phase currently marked running, oldest first.
func (s *Store) Running(ctx context.Context) ([]*Phase, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE status = ? ORDER BY queue_position`,
		StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("query running phases: %w", err)
	}
	defer rows.Close()
	return collectPhases(rows)
}

// List returns phases filtered by status set (or all phases when no status is
// provided), grouped by parent in chain order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Phase, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + phaseColumns + ` FROM phases`
	orderClause := ` ORDER BY parent_id, phase_number`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()
	return collectPhases(rows)
}

// UpdateStatus transitions a phase, persisting the error message for failed
// and blocked outcomes. Re-applying the current status is a no-op; any other
// move the state machine forbids returns ErrInvalidTransition.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, errorMessage string) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}

	var current Status
	err := s.db.QueryRowContext(ctx, `SELECT status FROM phases WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(id)
	}
	if err != nil {
		return fmt.Errorf("read phase status: %w", err)
	}

	if current == status {
		return nil
	}
	if !CanTransition(current, status) {
		return invalidTransition(current, status)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE phases SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status,
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		current,
	)
	if err != nil {
		return fmt.Errorf("update phase status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// The row moved under us; re-read so the caller sees the real conflict.
		return s.UpdateStatus(ctx, id, status, errorMessage)
	}
	return nil
}

// AssignExternalRef records the external work item created for a phase.
func (s *Store) AssignExternalRef(ctx context.Context, id int64, externalRef string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE phases SET external_ref = ?, updated_at = ? WHERE id = ?`,
		nullableString(externalRef),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("assign external ref: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

// Remove deletes a phase by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM phases WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete phase: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all phases from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM phases`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed phases from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM phases WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of phases grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM phases GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// HealthSummary describes aggregated phase counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Queued    int
	Ready     int
	Running   int
	Completed int
	Failed    int
	Blocked   int
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusReady:
			health.Ready += count
		case StatusRunning:
			health.Running += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusBlocked:
			health.Blocked += count
		}
	}
	return health, nil
}

const phaseColumns = "id, parent_id, phase_number, external_ref, status, depends_on_phase, payload_json, priority, queue_position, error_message, created_at, updated_at"

func collectPhases(rows *sql.Rows) ([]*Phase, error) {
	var phases []*Phase
	for rows.Next() {
		phase, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		phases = append(phases, phase)
	}
	return phases, rows.Err()
}

func scanPhase(scanner interface{ Scan(dest ...any) error }) (*Phase, error) {
	var (
		id            int64
		parentID      string
		phaseNumber   int
		externalRef   sql.NullString
		statusStr     string
		dependsOn     sql.NullInt64
		payload       sql.NullString
		priority      int
		queuePosition int64
		errorMessage  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&parentID,
		&phaseNumber,
		&externalRef,
		&statusStr,
		&dependsOn,
		&payload,
		&priority,
		&queuePosition,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	phase := &Phase{
		ID:            id,
		ParentID:      parentID,
		PhaseNumber:   phaseNumber,
		ExternalRef:   externalRef.String,
		Status:        Status(statusStr),
		PayloadJSON:   payload.String,
		Priority:      priority,
		QueuePosition: queuePosition,
		ErrorMessage:  errorMessage.String,
	}
	if dependsOn.Valid {
		dep := int(dependsOn.Int64)
		phase.DependsOnPhase = &dep
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		phase.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		phase.UpdatedAt = updated
	}
	return phase, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bmir-radx/harmonization-framework/internal/rule"
)

// ErrNotFound is returned when no stored rule matches a lookup.
var ErrNotFound = errors.New("rule not found in library")

// StoredRule is one version of a rule in the library.
type StoredRule struct {
	ID          string
	ProjectID   string
	Version     int
	Fingerprint string
	CreatedAt   time.Time
	Rule        *rule.Rule
}

// Pair returns the stored rule's column pair.
func (r StoredRule) Pair() rule.Pair {
	return r.Rule.Pair()
}

const selectColumns = `r.id, r.project_id, r.version, r.body, r.fingerprint, r.created_at`

// pairOrder ranks each pair of a project by the first row saved for it.
const pairOrder = `
	SELECT source, target, MIN(rowid) AS first_row, MAX(version) AS latest
	FROM rules
	WHERE project_id = ?
	GROUP BY source, target
`

// SaveRule stores r as the next version of its pair in project. When the
// latest stored version has the same fingerprint nothing is written and the
// existing version is returned with created=false.
func (s *Store) SaveRule(ctx context.Context, project string, r *rule.Rule) (StoredRule, bool, error) {
	if project == "" {
		return StoredRule{}, false, fmt.Errorf("project is required")
	}
	fingerprint, err := rule.Fingerprint(r)
	if err != nil {
		return StoredRule{}, false, err
	}
	body, err := r.MarshalJSON()
	if err != nil {
		return StoredRule{}, false, fmt.Errorf("encode rule %s: %w", r.Pair(), err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return StoredRule{}, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	latest, err := scanRule(tx.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM rules r
		WHERE r.project_id = ? AND r.source = ? AND r.target = ?
		ORDER BY r.version DESC
		LIMIT 1
	`, project, r.Source, r.Target))
	switch {
	case err == nil && latest.Fingerprint == fingerprint:
		return latest, false, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return StoredRule{}, false, err
	}

	stored := StoredRule{
		ID:          s.ids(),
		ProjectID:   project,
		Version:     latest.Version + 1,
		Fingerprint: fingerprint,
		CreatedAt:   s.now().UTC(),
		Rule:        r,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rules (id, project_id, source, target, version, body, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, stored.ID, project, r.Source, r.Target, stored.Version, string(body), fingerprint,
		stored.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return StoredRule{}, false, fmt.Errorf("insert rule %s: %w", r.Pair(), err)
	}
	if err := tx.Commit(); err != nil {
		return StoredRule{}, false, fmt.Errorf("commit: %w", err)
	}
	return stored, true, nil
}

// GetRule returns one version of a pair's rule. Version 0 means latest.
func (s *Store) GetRule(ctx context.Context, project, source, target string, version int) (StoredRule, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM rules r
		WHERE r.project_id = ? AND r.source = ? AND r.target = ?`
	args := []any{project, source, target}
	if version > 0 {
		query += ` AND r.version = ?`
		args = append(args, version)
	}
	query += ` ORDER BY r.version DESC LIMIT 1`

	stored, err := scanRule(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return StoredRule{}, fmt.Errorf("%s -> %s (project %s): %w", source, target, project, err)
	}
	return stored, nil
}

// LatestRules returns the latest version of every pair in project, pairs in
// the order they were first saved.
func (s *Store) LatestRules(ctx context.Context, project string) ([]StoredRule, error) {
	return s.queryRules(ctx, `
		SELECT `+selectColumns+`
		FROM rules r
		JOIN (`+pairOrder+`) p
			ON r.source = p.source AND r.target = p.target AND r.version = p.latest
		WHERE r.project_id = ?
		ORDER BY p.first_row
	`, project, project)
}

// ListRules returns every stored version in project, grouped by pair in
// first-saved order, then by version.
func (s *Store) ListRules(ctx context.Context, project string) ([]StoredRule, error) {
	return s.queryRules(ctx, `
		SELECT `+selectColumns+`
		FROM rules r
		JOIN (`+pairOrder+`) p
			ON r.source = p.source AND r.target = p.target
		WHERE r.project_id = ?
		ORDER BY p.first_row, r.version
	`, project, project)
}

// History returns every version of one pair, oldest first.
func (s *Store) History(ctx context.Context, project, source, target string) ([]StoredRule, error) {
	rules, err := s.queryRules(ctx, `
		SELECT `+selectColumns+`
		FROM rules r
		WHERE r.project_id = ? AND r.source = ? AND r.target = ?
		ORDER BY r.version
	`, project, source, target)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%s -> %s (project %s): %w", source, target, project, ErrNotFound)
	}
	return rules, nil
}

// DeleteRule removes every version of a pair and returns how many rows were
// deleted.
func (s *Store) DeleteRule(ctx context.Context, project, source, target string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rules
		WHERE project_id = ? AND source = ? AND target = ?
	`, project, source, target)
	if err != nil {
		return 0, fmt.Errorf("delete %s -> %s: %w", source, target, err)
	}
	return res.RowsAffected()
}

// Projects returns every project with at least one stored rule.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT project_id FROM rules ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ImportRegistry saves every rule in reg into project and returns how many
// new versions were created.
func (s *Store) ImportRegistry(ctx context.Context, project string, reg *rule.Registry) (int, error) {
	created := 0
	for _, r := range reg.Rules() {
		_, ok, err := s.SaveRule(ctx, project, r)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ExportRegistry builds a registry from the latest version of every pair in
// project.
func (s *Store) ExportRegistry(ctx context.Context, project string) (*rule.Registry, error) {
	latest, err := s.LatestRules(ctx, project)
	if err != nil {
		return nil, err
	}
	reg := rule.NewRegistry()
	for _, stored := range latest {
		reg.AddRule(stored.Rule)
	}
	return reg, nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]StoredRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []StoredRule
	for rows.Next() {
		stored, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (StoredRule, error) {
	var (
		stored    StoredRule
		body      string
		createdAt string
	)
	err := row.Scan(&stored.ID, &stored.ProjectID, &stored.Version, &body, &stored.Fingerprint, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRule{}, ErrNotFound
	}
	if err != nil {
		return StoredRule{}, fmt.Errorf("scan rule: %w", err)
	}
	stored.Rule, err = rule.Decode([]byte(body))
	if err != nil {
		return StoredRule{}, fmt.Errorf("decode stored rule %s: %w", stored.ID, err)
	}
	stored.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return StoredRule{}, fmt.Errorf("parse created_at for %s: %w", stored.ID, err)
	}
	return stored, nil
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/royglick/laboneq/pkg/workflow"
)

// PostgresStore is a RunStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver. The caller is
// responsible for importing the driver for its side effects, e.g.:
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
//
// and providing a DSN via sql.Open.
type PostgresStore struct {
	db *sql.DB
}

var _ RunStore = (*PostgresStore)(nil)

// NewPostgresStore initializes the required schema in the given database and
// returns a new PostgresStore.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow TEXT NOT NULL,
			status TEXT NOT NULL,
			input BYTEA,
			output BYTEA,
			tasks BYTEA,
			error TEXT
		);
	`)
	return err
}

func (s *PostgresStore) SaveRun(run *workflow.Run) error {
	input, output, tasks, errStr, err := encodeRun(run)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, workflow, status, input, output, tasks, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		run.ID,
		run.Workflow,
		string(run.Status),
		input,
		output,
		tasks,
		errStr,
	)
	return err
}

func (s *PostgresStore) UpdateRun(run *workflow.Run) error {
	input, output, tasks, errStr, err := encodeRun(run)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE runs
		SET workflow = $1,
		    status   = $2,
		    input    = $3,
		    output   = $4,
		    tasks    = $5,
		    error    = $6
		WHERE id = $7
	`,
		run.Workflow,
		string(run.Status),
		input,
		output,
		tasks,
		errStr,
		run.ID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *PostgresStore) GetRun(id string) (*workflow.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, workflow, status, input, output, tasks, error
		FROM runs
		WHERE id = $1
	`,
		id,
	)

	run, err := scanRun(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(filter RunFilter) ([]*workflow.Run, error) {
	query := `
		SELECT id, workflow, status, input, output, tasks, error
		FROM runs`
	var args []any
	var clauses []string

	if filter.Workflow != "" {
		clauses = append(clauses, fmt.Sprintf("workflow = $%d", len(args)+1))
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*workflow.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

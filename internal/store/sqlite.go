package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/royglick/laboneq/pkg/workflow"
)

// SQLiteStore is a RunStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow TEXT NOT NULL,
			status TEXT NOT NULL,
			input BLOB,
			output BLOB,
			tasks BLOB,
			error TEXT
		);`,
	)
	return err
}

func (s *SQLiteStore) SaveRun(run *workflow.Run) error {
	input, output, tasks, errStr, err := encodeRun(run)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, workflow, status, input, output, tasks, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
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

func (s *SQLiteStore) UpdateRun(run *workflow.Run) error {
	input, output, tasks, errStr, err := encodeRun(run)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE runs
		SET workflow = ?, status = ?, input = ?, output = ?, tasks = ?, error = ?
		WHERE id = ?`,
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

func (s *SQLiteStore) GetRun(id string) (*workflow.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, workflow, status, input, output, tasks, error
		FROM runs
		WHERE id = ?`,
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

func (s *SQLiteStore) ListRuns(filter RunFilter) ([]*workflow.Run, error) {
	query := `
		SELECT id, workflow, status, input, output, tasks, error
		FROM runs`
	var args []any
	var clauses []string

	if filter.Workflow != "" {
		clauses = append(clauses, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
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

// encodeRun flattens a run into its column values.
func encodeRun(run *workflow.Run) (input, output, tasks []byte, errStr string, err error) {
	if input, err = encodeInput(run.Input); err != nil {
		return
	}
	if output, err = encodeValue(run.Output); err != nil {
		return
	}
	if tasks, err = encodeTasks(run.Tasks); err != nil {
		return
	}
	if run.Err != nil {
		errStr = run.Err.Error()
	}
	return
}

// scanRun reads one row via the given Scan function.
func scanRun(scan func(dest ...any) error) (*workflow.Run, error) {
	var run workflow.Run
	var statusStr string
	var input, output, tasks []byte
	var errStr sql.NullString

	if err := scan(&run.ID, &run.Workflow, &statusStr, &input, &output, &tasks, &errStr); err != nil {
		return nil, err
	}

	run.Status = workflow.Status(statusStr)

	inVal, err := decodeInput(input)
	if err != nil {
		return nil, err
	}
	run.Input = inVal

	outVal, err := decodeValue(output)
	if err != nil {
		return nil, err
	}
	run.Output = outVal

	taskVal, err := decodeTasks(tasks)
	if err != nil {
		return nil, err
	}
	run.Tasks = taskVal

	if errStr.Valid && errStr.String != "" {
		run.Err = errors.New(errStr.String)
	}
	return &run, nil
}

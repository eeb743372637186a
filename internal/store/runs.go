package store

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/virtwho-qe/harness/internal/models"
)

// RunRecord is one persisted harness run, kept for flake triage and
// reporting.
type RunRecord struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Mode         models.Mode
	Register     models.Register
	Launch       string
	Send         int
	ErrorCount   int
	WarningCount int
	LoopCount    int
	Result       models.AnalysisResult
}

// NewRunRecord builds a record from a finished run.
func NewRunRecord(runCtx models.RunContext, launch string, result models.AnalysisResult) RunRecord {
	return RunRecord{
		ID:           uuid.New(),
		CreatedAt:    time.Now().UTC(),
		Mode:         runCtx.Mode,
		Register:     runCtx.Register,
		Launch:       launch,
		Send:         result.Send,
		ErrorCount:   result.ErrorCount,
		WarningCount: result.WarningCount,
		LoopCount:    result.LoopCount,
		Result:       result,
	}
}

// RunStore persists run records.
type RunStore struct {
	db QueryInterceptor
}

func NewRunStore(db QueryInterceptor) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Save(ctx context.Context, record RunRecord) error {
	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return err
	}

	query, args, err := sq.Insert("runs").
		Columns("id", "created_at", "mode", "register", "launch",
			"send", "error_count", "warning_count", "loop_count", "result").
		Values(record.ID, record.CreatedAt, string(record.Mode), string(record.Register), record.Launch,
			record.Send, record.ErrorCount, record.WarningCount, record.LoopCount, string(resultJSON)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// List returns all records, newest first.
func (s *RunStore) List(ctx context.Context) ([]RunRecord, error) {
	query, args, err := sq.Select("id", "created_at", "mode", "register", "launch",
		"send", "error_count", "warning_count", "loop_count", "result").
		From("runs").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			record    RunRecord
			mode      string
			register  string
			resultRaw any
		)
		if err := rows.Scan(&record.ID, &record.CreatedAt, &mode, &register, &record.Launch,
			&record.Send, &record.ErrorCount, &record.WarningCount, &record.LoopCount, &resultRaw); err != nil {
			return nil, err
		}
		record.Mode = models.Mode(mode)
		record.Register = models.Register(register)
		// The duckdb driver returns JSON columns as already-decoded values,
		// not as text, so normalize back to bytes before unmarshalling.
		var resultJSON []byte
		switch v := resultRaw.(type) {
		case string:
			resultJSON = []byte(v)
		case []byte:
			resultJSON = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			resultJSON = b
		}
		if err := json.Unmarshal(resultJSON, &record.Result); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/mindloop/models"
)

func TestPostgresGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	pg := &Postgres{DB: db}
	mock.ExpectQuery(`SELECT value FROM mindloop_state WHERE key = \$1`).
		WithArgs(DataKey).
		WillReturnError(sql.ErrNoRows)

	if _, err := pg.Get(context.Background(), DataKey); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresSaveWritesBlobsAndMirrorsCycles(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := models.NewCycle("c1", 4, "tides", start)
	c.Status = models.StatusCompleted
	c.EndTime = start.Add(time.Minute)

	mock.ExpectExec(`INSERT INTO mindloop_state`).
		WithArgs(DataKey, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO mindloop_state`).
		WithArgs(APIKeyKey, []byte(`"sk-9"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mindloop_cycles`).
		WithArgs("c1", 4, "tides", "completed", 1, 0, start, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewBlobStore(&Postgres{DB: db})
	if err := s.Save(context.Background(), State{APIKey: "sk-9", CycleHistory: []*models.Cycle{c}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT value FROM mindloop_state WHERE key = \$1`).
		WithArgs(DataKey).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"api_key":"sk-2","inter_agent_delay_ms":3000}`)))

	st, ok, err := NewBlobStore(&Postgres{DB: db}).Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if st.APIKey != "sk-2" || st.InterAgentDelayMs != 3000 {
		t.Fatalf("unexpected state %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

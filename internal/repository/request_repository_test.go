package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/institutoberea/enrollment-api/internal/models"
)

func TestRequestRepositoryCreateDefaultsToPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("INSERT INTO enrollment_requests").
		WithArgs(sqlmock.AnyArg(), "learner-1", "sec-1", string(models.RequestStatusPending), nil, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.EnrollmentRequest{LearnerID: "learner-1", SectionID: "sec-1"}
	require.NoError(t, repo.Create(context.Background(), request))
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatusStampsDecision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	note := "cupo completo"
	mock.ExpectExec("UPDATE enrollment_requests").
		WithArgs("req-1", string(models.RequestStatusRejected), note, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "req-1", models.RequestStatusRejected, &note))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListByLearnerAndSections(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "learner_id", "section_id", "status", "note", "created_at", "decided_at"}).
		AddRow("req-1", "learner-1", "sec-1", "PENDING", nil, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`section_id IN ($2,$3) AND status IN ($4,$5)`)).
		WithArgs("learner-1", "sec-1", "sec-2", string(models.RequestStatusPending), string(models.RequestStatusAccepted)).
		WillReturnRows(rows)

	requests, err := repo.ListByLearnerAndSections(context.Background(), "learner-1",
		[]string{"sec-1", "sec-2"},
		[]models.RequestStatus{models.RequestStatusPending, models.RequestStatusAccepted})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListByLearnerAndSectionsEmptyInput(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	requests, err := repo.ListByLearnerAndSections(context.Background(), "learner-1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestRequestRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "learner_id", "section_id", "status", "note", "created_at", "decided_at"}).
		AddRow("req-1", "learner-1", "sec-1", "PENDING", nil, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("learner-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollment_requests WHERE learner_id = $1")).
		WithArgs("learner-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	requests, total, err := repo.List(context.Background(), models.RequestFilter{LearnerID: "learner-1"})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

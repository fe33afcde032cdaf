package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/institutoberea/enrollment-api/internal/models"
)

func TestSectionRepositoryListDetailsByCycle(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "course_id", "cycle_id", "name", "capacity", "created_at", "course_name", "course_level_id", "level_name"}).
		AddRow("sec-1", "greek-1", "cycle-1", "A", 20, now, "Griego I", "level-1", "Nivel 1").
		AddRow("sec-2", "workshop", "cycle-1", "A", 40, now, "Taller", nil, nil)
	mock.ExpectQuery("LEFT JOIN levels l ON l.id = c.level_id").
		WithArgs("cycle-1").
		WillReturnRows(rows)

	sections, err := repo.ListDetailsByCycle(context.Background(), "cycle-1")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Griego I", sections[0].CourseName)
	require.NotNil(t, sections[0].CourseLevelID)
	assert.Equal(t, "level-1", *sections[0].CourseLevelID)
	assert.Nil(t, sections[1].CourseLevelID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCountConfirmedBySection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	rows := sqlmock.NewRows([]string{"section_id", "count"}).
		AddRow("sec-1", 3).
		AddRow("sec-2", 1)
	mock.ExpectQuery("GROUP BY rm.section_id").
		WithArgs("cycle-1", string(models.MembershipStatusEnrolled)).
		WillReturnRows(rows)

	counts, err := repo.CountConfirmedBySection(context.Background(), "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"sec-1": 3, "sec-2": 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryFindOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "enrollment_open", "start_date", "created_at"}).
		AddRow("cycle-2", "2026-A", true, now, now).
		AddRow("cycle-1", "2025-B", true, now.AddDate(0, -6, 0), now)
	mock.ExpectQuery("WHERE enrollment_open = TRUE ORDER BY start_date DESC").
		WillReturnRows(rows)

	cycles, err := repo.FindOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "cycle-2", cycles[0].ID)
	assert.True(t, cycles[0].EnrollmentOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

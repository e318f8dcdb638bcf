package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

var pointsColumns = []string{"student_id", "total_points", "experience_points", "monthly_points", "level", "updated_at"}

func TestGamificationRepositoryCreateStudentBadgeConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGamificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, badge_id) DO NOTHING")).
		WithArgs("s-1", "b-1", sqlmock.AnyArg(), sqlmock.AnyArg(), true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateStudentBadge(context.Background(), &models.StudentBadge{StudentID: "s-1", BadgeID: "b-1", IsDisplayed: true})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGamificationRepositoryAddStudentPointsRejectsNegative(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGamificationRepository(db)

	_, err := repo.AddStudentPoints(context.Background(), "s-1", -5)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGamificationRepositoryGetStudentPointsDefaultsToLevelOne(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGamificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_points WHERE student_id = $1")).
		WithArgs("s-1").
		WillReturnError(sql.ErrNoRows)

	points, err := repo.GetStudentPoints(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0, points.TotalPoints)
	assert.Equal(t, 1, points.Level)
}

func TestGamificationRepositoryWithTxCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGamificationRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_badges").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO student_points").
		WithArgs("s-1", 500, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(pointsColumns).AddRow("s-1", 500, 500, 500, 1, now))
	mock.ExpectExec("INSERT INTO achievement_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.WithTx(context.Background(), func(w GamificationWriter) error {
		created, err := w.CreateStudentBadge(context.Background(), &models.StudentBadge{StudentID: "s-1", BadgeID: "b-1"})
		if err != nil || !created {
			return errors.New("badge not created")
		}
		points, err := w.AddStudentPoints(context.Background(), "s-1", 500)
		if err != nil {
			return err
		}
		assert.Equal(t, 500, points.TotalPoints)
		return w.CreateAchievementHistory(context.Background(), &models.AchievementHistory{StudentID: "s-1", Action: models.ActionBadgeEarned, Description: "Earned", Points: 500})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGamificationRepositoryWithTxRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGamificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_badges").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO student_points").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.WithTx(context.Background(), func(w GamificationWriter) error {
		if _, err := w.CreateStudentBadge(context.Background(), &models.StudentBadge{StudentID: "s-1", BadgeID: "b-1"}); err != nil {
			return err
		}
		_, err := w.AddStudentPoints(context.Background(), "s-1", 500)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGamificationRepositoryUpdateLevelNeverLowers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGamificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_points SET level = $2, updated_at = $3 WHERE student_id = $1 AND level < $2")).
		WithArgs("s-1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStudentLevel(context.Background(), "s-1", 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGamificationRepositoryLeaderboardRanks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGamificationRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name", "total_points", "level", "badge_count"}).
		AddRow("s-2", "Ravi", 1800, 2, 3).
		AddRow("s-1", "Asha", 900, 1, 1)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sp.total_points DESC, s.name ASC")).
		WithArgs(5).
		WillReturnRows(rows)

	entries, err := repo.Leaderboard(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "Asha", entries[1].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

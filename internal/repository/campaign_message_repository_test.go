package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

var messageRowColumns = []string{"id", "campaign_id", "recipient", "student_id", "occurrence_key", "message_content", "status", "external_id", "error_message",
	"sent_at", "delivered_at", "read_at", "created_at", "updated_at"}

func TestCampaignMessageRepositoryCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCampaignMessageRepository(db)

	studentID := "s-1"
	mock.ExpectExec("INSERT INTO campaign_messages").
		WithArgs(sqlmock.AnyArg(), "c-1", "+911", studentID, "pay-1", "Hi Asha", models.MessagePending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	msg := &models.CampaignMessage{CampaignID: "c-1", Recipient: "+911", StudentID: &studentID, OccurrenceKey: "pay-1", MessageContent: "Hi Asha"}
	require.NoError(t, repo.Create(context.Background(), msg))
	assert.Equal(t, models.MessagePending, msg.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignMessageRepositoryListPaginates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCampaignMessageRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM campaign_messages WHERE campaign_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("c-1", models.MessageFailed).
		WillReturnRows(sqlmock.NewRows(messageRowColumns).AddRow("m-1", "c-1", "+911", "s-1", "s-1", "Hi", "failed", nil, "timeout", nil, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM campaign_messages WHERE campaign_id = $1 AND status = $2")).
		WithArgs("c-1", models.MessageFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	messages, total, err := repo.List(context.Background(), MessageFilter{CampaignID: "c-1", Status: models.MessageFailed, Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.NotNil(t, messages[0].ErrorMessage)
	assert.Equal(t, "timeout", *messages[0].ErrorMessage)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignMessageRepositoryHasSentSince(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCampaignMessageRepository(db)

	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM campaign_messages WHERE campaign_id = $1 AND student_id = $2 AND occurrence_key = $3")).
		WithArgs("c-1", "s-1", "pay-1", models.MessageSent, since).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("c-1", "s-1", "pay-2", models.MessageSent, since).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	sent, err := repo.HasSentSince(context.Background(), "c-1", "s-1", "pay-1", since)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = repo.HasSentSince(context.Background(), "c-1", "s-1", "pay-2", since)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

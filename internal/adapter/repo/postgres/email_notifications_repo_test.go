package postgres_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func TestEmailNotificationRepo_Enqueue(t *testing.T) {
	var got []any
	pool := &poolStub{exec: func(_ string, args []any) (pgconn.CommandTag, error) {
		got = args
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}}
	repo := postgres.NewEmailNotificationRepo(pool)

	id, err := repo.Enqueue(context.Background(), domain.EmailNotification{
		TenantID:  "tenant-1",
		JobID:     "job-1",
		Kind:      domain.EmailKindAnalysisCompleted,
		Recipient: "ops@acme.test",
		Subject:   "Analysis completed",
		Body:      "Candidate cand-1 is ready for review.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, got, 10)
	assert.Equal(t, id, got[0])
	assert.Equal(t, "tenant-1", got[1])
	require.NotNil(t, got[2])
	assert.Equal(t, "job-1", *(got[2].(*string)))
	assert.Nil(t, got[3]) // no candidate id yet
	assert.Equal(t, domain.EmailStatusPending, got[8])
}

func TestEmailNotificationRepo_Enqueue_Error(t *testing.T) {
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, assert.AnError
	}}
	repo := postgres.NewEmailNotificationRepo(pool)

	_, err := repo.Enqueue(context.Background(), domain.EmailNotification{TenantID: "tenant-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=email_notification.enqueue")
}

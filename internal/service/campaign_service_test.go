package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sports-academy-api/internal/models"
	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
)

func newTestCampaignService(campaigns ...models.Campaign) (*CampaignService, *fakeCampaigns, *fakeMessages, *fakeAutomation) {
	store := newFakeCampaigns(campaigns...)
	messages := &fakeMessages{}
	automation := &fakeAutomation{}
	svc := NewCampaignService(store, messages, automation, nil, nil)
	svc.now = func() time.Time { return evalNow }
	return svc, store, messages, automation
}

func welcomeRequest() CampaignRequest {
	return CampaignRequest{
		Name:            "New joiners",
		Type:            models.CampaignWelcome,
		Status:          models.CampaignActive,
		Trigger:         models.TriggerAutomated,
		MessageTemplate: models.MessageTemplate{Text: "Welcome {studentName}", Variables: []string{"studentName"}},
		AutomationRules: &models.AutomationRules{Type: models.RuleWelcomeMessage},
	}
}

func TestCampaignServiceCreateRestartsAutomation(t *testing.T) {
	svc, store, _, automation := newTestCampaignService()

	campaign, err := svc.Create(context.Background(), welcomeRequest(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{campaign.ID}, automation.restarted)
	require.NotNil(t, campaign.CreatedBy)
	assert.Equal(t, "admin-1", *campaign.CreatedBy)

	stored, err := store.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RuleWelcomeMessage, stored.AutomationRules.Type)
}

func TestCampaignServiceCreateDefaultsToDraft(t *testing.T) {
	svc, _, _, _ := newTestCampaignService()
	req := welcomeRequest()
	req.Status = ""
	req.Trigger = models.TriggerManual
	req.AutomationRules = nil

	campaign, err := svc.Create(context.Background(), req, "")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignDraft, campaign.Status)
	assert.Nil(t, campaign.CreatedBy)
}

func TestCampaignServiceCreateValidates(t *testing.T) {
	svc, _, _, automation := newTestCampaignService()

	missingText := welcomeRequest()
	missingText.MessageTemplate.Text = ""
	_, err := svc.Create(context.Background(), missingText, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	badType := welcomeRequest()
	badType.Type = "flyer"
	_, err = svc.Create(context.Background(), badType, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	noRule := welcomeRequest()
	noRule.AutomationRules = &models.AutomationRules{Type: "lunar_phase"}
	_, err = svc.Create(context.Background(), noRule, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Empty(t, automation.restarted)
}

func TestCampaignServiceCreateSurvivesRestartFailure(t *testing.T) {
	svc, _, _, automation := newTestCampaignService()
	automation.err = errors.New("scheduler busy")

	_, err := svc.Create(context.Background(), welcomeRequest(), "")
	require.NoError(t, err)
}

func TestCampaignServiceUpdate(t *testing.T) {
	existing := automatedCampaign("c-1", models.RuleWelcomeMessage, "Hi")
	svc, store, _, automation := newTestCampaignService(existing)

	req := welcomeRequest()
	req.Status = models.CampaignPaused
	updated, err := svc.Update(context.Background(), "c-1", req)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignPaused, updated.Status)
	assert.Equal(t, []string{"c-1"}, automation.restarted)

	stored, _ := store.FindByID(context.Background(), "c-1")
	assert.Equal(t, "Welcome {studentName}", stored.MessageTemplate.Text)

	_, err = svc.Update(context.Background(), "missing", welcomeRequest())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCampaignServiceDeleteStopsAutomation(t *testing.T) {
	svc, _, _, automation := newTestCampaignService(automatedCampaign("c-1", models.RuleWelcomeMessage, "Hi"))

	require.NoError(t, svc.Delete(context.Background(), "c-1"))
	assert.Equal(t, []string{"c-1"}, automation.stopped)

	err := svc.Delete(context.Background(), "c-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCampaignServiceListMessagesPaginates(t *testing.T) {
	svc, _, messages, _ := newTestCampaignService(automatedCampaign("c-1", models.RuleWelcomeMessage, "Hi"))
	for i := 0; i < 5; i++ {
		require.NoError(t, messages.Create(context.Background(), &models.CampaignMessage{CampaignID: "c-1", Recipient: "+1", Status: models.MessageSent}))
	}

	page, pagination, err := svc.ListMessages(context.Background(), "c-1", "", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 2, TotalCount: 5}, pagination)

	_, _, err = svc.ListMessages(context.Background(), "missing", "", 1, 20)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCampaignServiceExportMessages(t *testing.T) {
	svc, _, messages, _ := newTestCampaignService(automatedCampaign("c-1", models.RuleWelcomeMessage, "Hi"))
	sid := "s-1"
	reason := "provider rejected"
	require.NoError(t, messages.Create(context.Background(), &models.CampaignMessage{CampaignID: "c-1", Recipient: "+1", StudentID: &sid, MessageContent: "Hi Asha", Status: models.MessageFailed, ErrorMessage: &reason}))

	csv, err := svc.ExportMessages(context.Background(), "c-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", csv.ContentType)
	assert.Equal(t, "campaign-c-1-20240620.csv", csv.Filename)
	lines := strings.Split(strings.TrimSpace(string(csv.Body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Recipient,Student,Status,Sent At,Error,Message", lines[0])
	assert.Equal(t, "+1,s-1,failed,,provider rejected,Hi Asha", lines[1])

	pdf, err := svc.ExportMessages(context.Background(), "c-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, strings.HasPrefix(string(pdf.Body), "%PDF"))

	_, err = svc.ExportMessages(context.Background(), "c-1", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sports-academy-api/internal/models"
	"github.com/noah-isme/sports-academy-api/internal/repository"
	"github.com/noah-isme/sports-academy-api/pkg/whatsapp"
)

type fakeCampaigns struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	seq       int
	listErr   error
}

func newFakeCampaigns(campaigns ...models.Campaign) *fakeCampaigns {
	f := &fakeCampaigns{campaigns: map[string]*models.Campaign{}}
	for i := range campaigns {
		c := campaigns[i]
		f.campaigns[c.ID] = &c
	}
	return f
}

func (f *fakeCampaigns) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Campaign
	for _, c := range f.campaigns {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Trigger != "" && c.Trigger != filter.Trigger {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCampaigns) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("find campaign %s: %w", id, sql.ErrNoRows)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) Create(ctx context.Context, campaign *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	campaign.ID = fmt.Sprintf("c-%d", f.seq)
	cp := *campaign
	f.campaigns[campaign.ID] = &cp
	return nil
}

func (f *fakeCampaigns) Update(ctx context.Context, campaign *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.campaigns[campaign.ID]; !ok {
		return fmt.Errorf("update campaign %s: %w", campaign.ID, sql.ErrNoRows)
	}
	cp := *campaign
	f.campaigns[campaign.ID] = &cp
	return nil
}

func (f *fakeCampaigns) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.campaigns[id]; !ok {
		return fmt.Errorf("delete campaign %s: %w", id, sql.ErrNoRows)
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeCampaigns) RecordSent(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Sent++
	c.LastRunAt = &at
	return nil
}

func (f *fakeCampaigns) RecordFailed(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Failed++
	return nil
}

func (f *fakeCampaigns) analytics(id string) models.CampaignAnalytics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.campaigns[id].CampaignAnalytics
}

type fakeMessages struct {
	mu        sync.Mutex
	messages  []models.CampaignMessage
	createErr error
}

func (f *fakeMessages) Create(ctx context.Context, msg *models.CampaignMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	msg.ID = fmt.Sprintf("m-%d", len(f.messages)+1)
	msg.CreatedAt = time.Now().UTC()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessages) UpdateStatus(ctx context.Context, msg *models.CampaignMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == msg.ID {
			f.messages[i] = *msg
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeMessages) List(ctx context.Context, filter repository.MessageFilter) ([]models.CampaignMessage, int, error) {
	all, _ := f.ListAll(ctx, filter.CampaignID)
	var matched []models.CampaignMessage
	for _, m := range all {
		if filter.Status == "" || m.Status == filter.Status {
			matched = append(matched, m)
		}
	}
	start := (filter.Page - 1) * filter.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (f *fakeMessages) ListAll(ctx context.Context, campaignID string) ([]models.CampaignMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CampaignMessage
	for _, m := range f.messages {
		if m.CampaignID == campaignID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) HasSentSince(ctx context.Context, campaignID, studentID, occurrence string, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.CampaignID == campaignID && m.StudentID != nil && *m.StudentID == studentID && m.OccurrenceKey == occurrence &&
			m.Status == models.MessageSent && m.SentAt != nil && !m.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessages) byStatus(status models.MessageStatus) []models.CampaignMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CampaignMessage
	for _, m := range f.messages {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeNotifier fails every message addressed to a phone in failFor.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []whatsapp.Message
	failFor map[string]bool
}

func (n *fakeNotifier) Send(ctx context.Context, msg whatsapp.Message) (*whatsapp.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	if n.failFor[msg.To] {
		return nil, errors.New("provider rejected recipient")
	}
	return &whatsapp.Result{Success: true, MessageID: fmt.Sprintf("wa-%d", len(n.sent))}, nil
}

func (n *fakeNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeClaimer struct {
	mu     sync.Mutex
	keys   map[string]bool
	err    error
	absent bool
}

func newFakeClaimer() *fakeClaimer {
	return &fakeClaimer{keys: map[string]bool{}}
}

func (c *fakeClaimer) Available() bool { return !c.absent }

func (c *fakeClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *fakeClaimer) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

type fakeAutomation struct {
	restarted []string
	stopped   []string
	err       error
}

func (a *fakeAutomation) Restart(ctx context.Context, campaignID string) error {
	a.restarted = append(a.restarted, campaignID)
	return a.err
}

func (a *fakeAutomation) Stop(campaignID string) bool {
	a.stopped = append(a.stopped, campaignID)
	return true
}

func studentWithPhone(id, name, phone string) models.Student {
	return models.Student{ID: id, Name: name, Phone: phone, JoiningDate: evalNow.Add(-2 * time.Hour), IsActive: true}
}

func automatedCampaign(id, rule, text string) models.Campaign {
	return models.Campaign{
		ID:              id,
		Name:            "campaign " + id,
		Type:            models.CampaignCustom,
		Status:          models.CampaignActive,
		Trigger:         models.TriggerAutomated,
		MessageTemplate: models.MessageTemplate{Text: text},
		AutomationRules: models.AutomationRules{Type: rule},
	}
}

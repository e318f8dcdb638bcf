package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

// campaignTimer is one installed automation loop.
type campaignTimer struct {
	campaign    models.Campaign
	interval    time.Duration
	installedAt time.Time
	cancel      context.CancelFunc
	done        chan struct{}

	mu       sync.Mutex
	lastTick *time.Time
}

func (t *campaignTimer) markTick(at time.Time) {
	t.mu.Lock()
	t.lastTick = &at
	t.mu.Unlock()
}

func (t *campaignTimer) status() models.AutomationStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	var last *time.Time
	if t.lastTick != nil {
		at := *t.lastTick
		last = &at
	}
	return models.AutomationStatus{
		CampaignID:  t.campaign.ID,
		RuleType:    t.campaign.AutomationRules.Type,
		Interval:    t.interval,
		InstalledAt: t.installedAt,
		LastTickAt:  last,
	}
}

// AutomationRegistry maps campaign ids to their running timers. Installing
// over an existing id cancels the previous timer first.
type AutomationRegistry struct {
	mu     sync.Mutex
	timers map[string]*campaignTimer
}

// NewAutomationRegistry returns an empty registry.
func NewAutomationRegistry() *AutomationRegistry {
	return &AutomationRegistry{timers: make(map[string]*campaignTimer)}
}

func (r *AutomationRegistry) put(t *campaignTimer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.timers[t.campaign.ID]; ok {
		prev.cancel()
	}
	r.timers[t.campaign.ID] = t
}

func (r *AutomationRegistry) remove(campaignID string) *campaignTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[campaignID]
	if !ok {
		return nil
	}
	t.cancel()
	delete(r.timers, campaignID)
	return t
}

func (r *AutomationRegistry) removeAll() []*campaignTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*campaignTimer, 0, len(r.timers))
	for id, t := range r.timers {
		t.cancel()
		out = append(out, t)
		delete(r.timers, id)
	}
	return out
}

// Len returns the number of installed timers.
func (r *AutomationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Has reports whether campaignID has a running timer.
func (r *AutomationRegistry) Has(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[campaignID]
	return ok
}

// Snapshot lists installed timers ordered by campaign id.
func (r *AutomationRegistry) Snapshot() []models.AutomationStatus {
	r.mu.Lock()
	timers := make([]*campaignTimer, 0, len(r.timers))
	for _, t := range r.timers {
		timers = append(timers, t)
	}
	r.mu.Unlock()

	out := make([]models.AutomationStatus, 0, len(timers))
	for _, t := range timers {
		out = append(out, t.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out
}

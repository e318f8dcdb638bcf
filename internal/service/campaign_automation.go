package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sports-academy-api/internal/models"
	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
	"github.com/noah-isme/sports-academy-api/pkg/jobs"
)

// JobCampaignRun is the queue job type for manual campaign runs.
const JobCampaignRun = "campaign.run"

type automationCampaignStore interface {
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error)
	FindByID(ctx context.Context, id string) (*models.Campaign, error)
}

type recipientSelector interface {
	Interval(ruleType string) (time.Duration, bool)
	Candidates(ctx context.Context, campaign models.Campaign, now time.Time) ([]Recipient, error)
}

type campaignSender interface {
	Send(ctx context.Context, campaign models.Campaign, recipient Recipient) (*models.CampaignMessage, error)
}

type jobEnqueuer interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) (string, error)
}

// AutomationConfig toggles the scheduler.
type AutomationConfig struct {
	Enabled      bool
	RunOnInstall bool
}

// TickReport summarises one rule execution.
type TickReport struct {
	CampaignID string        `json:"campaign_id"`
	RuleType   string        `json:"rule_type"`
	Matched    int           `json:"matched"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// CampaignAutomation installs one periodic loop per active automated
// campaign and runs its rule on every tick.
type CampaignAutomation struct {
	campaigns automationCampaignStore
	rules     recipientSelector
	sender    campaignSender
	dedupe    *DedupeGuard
	queue     jobEnqueuer
	registry  *AutomationRegistry
	metrics   *MetricsService
	cfg       AutomationConfig
	logger    *zap.Logger
	now       func() time.Time

	opMu       sync.Mutex
	closed     bool
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewCampaignAutomation wires the scheduler and registers the manual run
// handler on queue when one is given.
func NewCampaignAutomation(
	campaigns automationCampaignStore,
	rules recipientSelector,
	sender campaignSender,
	dedupe *DedupeGuard,
	queue jobEnqueuer,
	metrics *MetricsService,
	cfg AutomationConfig,
	logger *zap.Logger,
) *CampaignAutomation {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &CampaignAutomation{
		campaigns:  campaigns,
		rules:      rules,
		sender:     sender,
		dedupe:     dedupe,
		queue:      queue,
		registry:   NewAutomationRegistry(),
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	if queue != nil {
		queue.Register(JobCampaignRun, a.handleRunJob)
	}
	return a
}

// InitializeAutomation installs a timer for every active automated campaign.
func (a *CampaignAutomation) InitializeAutomation(ctx context.Context) error {
	if !a.cfg.Enabled {
		a.logger.Sugar().Infow("campaign automation disabled")
		return nil
	}
	campaigns, err := a.campaigns.List(ctx, models.CampaignFilter{Status: models.CampaignActive})
	if err != nil {
		return appErrors.Internal(err, "failed to load active campaigns")
	}

	a.opMu.Lock()
	defer a.opMu.Unlock()
	if a.closed {
		return nil
	}
	installed := 0
	for _, campaign := range campaigns {
		if !campaign.Automated() {
			continue
		}
		if err := a.install(campaign); err != nil {
			a.logger.Sugar().Warnw("skip campaign automation", "campaign_id", campaign.ID, "rule", campaign.AutomationRules.Type, "error", err)
			continue
		}
		installed++
	}
	a.logger.Sugar().Infow("campaign automation initialized", "active", len(campaigns), "installed", installed)
	return nil
}

// Stop cancels the campaign's timer. It reports false when none was running.
// A tick already in flight runs to completion.
func (a *CampaignAutomation) Stop(campaignID string) bool {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	return a.stopLocked(campaignID)
}

func (a *CampaignAutomation) stopLocked(campaignID string) bool {
	t := a.registry.remove(campaignID)
	a.metrics.SetActiveTimers(a.registry.Len())
	if t == nil {
		return false
	}
	a.logger.Sugar().Infow("campaign automation stopped", "campaign_id", campaignID)
	return true
}

// Restart stops the campaign's timer, reloads it and reinstalls it when it
// is still active and automated. A deleted campaign is only stopped.
func (a *CampaignAutomation) Restart(ctx context.Context, campaignID string) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	a.stopLocked(campaignID)
	if !a.cfg.Enabled || a.closed {
		return nil
	}
	campaign, err := a.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Internal(err, "failed to reload campaign")
	}
	if !campaign.Automated() {
		return nil
	}
	if err := a.install(*campaign); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "campaign automation rule is not supported")
	}
	return nil
}

// RunOnce queues an immediate run of the campaign's rule and returns the
// job id. Without a queue the run happens inline and the id is empty.
func (a *CampaignAutomation) RunOnce(ctx context.Context, campaignID string) (string, error) {
	campaign, err := a.load(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if a.queue == nil {
		_, err := a.runTick(ctx, *campaign)
		return "", err
	}
	id, err := a.queue.Enqueue(jobs.Job{Type: JobCampaignRun, Payload: map[string]string{"campaign_id": campaignID}})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to queue campaign run")
	}
	a.logger.Sugar().Infow("campaign run queued", "campaign_id", campaignID, "job_id", id)
	return id, nil
}

// Execute runs the campaign's rule once and waits for the result.
func (a *CampaignAutomation) Execute(ctx context.Context, campaignID string) (*TickReport, error) {
	campaign, err := a.load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return a.runTick(ctx, *campaign)
}

// Status lists the installed timers.
func (a *CampaignAutomation) Status() []models.AutomationStatus {
	return a.registry.Snapshot()
}

// Shutdown stops every timer and waits for in-flight ticks until ctx ends.
// No timer is installed after Shutdown returns.
func (a *CampaignAutomation) Shutdown(ctx context.Context) error {
	a.opMu.Lock()
	a.closed = true
	timers := a.registry.removeAll()
	a.baseCancel()
	a.opMu.Unlock()
	a.metrics.SetActiveTimers(0)

	for _, t := range timers {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.logger.Sugar().Infow("campaign automation shut down", "timers", len(timers))
	return nil
}

func (a *CampaignAutomation) load(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := a.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Internal(err, "failed to load campaign")
	}
	if _, ok := a.rules.Interval(campaign.AutomationRules.Type); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "campaign has no supported automation rule")
	}
	return campaign, nil
}

func (a *CampaignAutomation) handleRunJob(ctx context.Context, job jobs.Job) error {
	campaignID := job.Payload["campaign_id"]
	report, err := a.Execute(ctx, campaignID)
	if err != nil {
		if appErrors.FromError(err).Status < 500 {
			a.logger.Sugar().Warnw("campaign run dropped", "campaign_id", campaignID, "job_id", job.ID, "error", err)
			return nil
		}
		return err
	}
	a.logger.Sugar().Infow("campaign run finished", "campaign_id", campaignID, "job_id", job.ID, "sent", report.Sent, "failed", report.Failed)
	return nil
}

// install starts the loop for campaign. Callers hold opMu. It does nothing
// once the scheduler is shut down.
func (a *CampaignAutomation) install(campaign models.Campaign) error {
	interval, ok := a.rules.Interval(campaign.AutomationRules.Type)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedRule, campaign.AutomationRules.Type)
	}
	if a.closed {
		return nil
	}
	ctx, cancel := context.WithCancel(a.baseCtx)
	t := &campaignTimer{
		campaign:    campaign,
		interval:    interval,
		installedAt: a.now().UTC(),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	a.registry.put(t)
	a.metrics.SetActiveTimers(a.registry.Len())
	go a.loop(ctx, t)

	a.logger.Sugar().Infow("campaign automation installed", "campaign_id", campaign.ID, "rule", campaign.AutomationRules.Type, "interval", interval.String())
	return nil
}

func (a *CampaignAutomation) loop(ctx context.Context, t *campaignTimer) {
	defer close(t.done)

	tick := func() {
		if _, err := a.runTick(context.WithoutCancel(ctx), t.campaign); err != nil {
			a.logger.Sugar().Errorw("campaign tick failed", "campaign_id", t.campaign.ID, "error", err)
		}
		t.markTick(a.now().UTC())
	}

	if a.cfg.RunOnInstall {
		tick()
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

func (a *CampaignAutomation) runTick(ctx context.Context, campaign models.Campaign) (*TickReport, error) {
	start := a.now()
	rule := campaign.AutomationRules.Type
	report := &TickReport{CampaignID: campaign.ID, RuleType: rule}
	defer func() {
		report.Duration = a.now().Sub(start)
		a.metrics.ObserveTick(rule, report.Duration)
	}()

	recipients, err := a.rules.Candidates(ctx, campaign, start)
	if err != nil {
		return report, err
	}
	report.Matched = len(recipients)

	for _, recipient := range recipients {
		key, ok, err := a.dedupe.Acquire(ctx, campaign.ID, recipient, start)
		if err != nil {
			a.logger.Sugar().Warnw("dedupe check failed", "campaign_id", campaign.ID, "student_id", recipient.Student.ID, "error", err)
			report.Skipped++
			continue
		}
		if !ok {
			report.Skipped++
			continue
		}
		if _, err := a.sender.Send(ctx, campaign, recipient); err != nil {
			a.dedupe.Release(ctx, key)
			a.logger.Sugar().Warnw("campaign dispatch failed", "campaign_id", campaign.ID, "student_id", recipient.Student.ID, "error", err)
			report.Failed++
			continue
		}
		report.Sent++
	}

	a.logger.Sugar().Infow("campaign tick complete",
		"campaign_id", campaign.ID,
		"rule", rule,
		"matched", report.Matched,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

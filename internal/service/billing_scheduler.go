// FILE: internal/service/billing_scheduler.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"subscription-billing-be/internal/config"
	"subscription-billing-be/internal/constant"
	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/gateway"
	"subscription-billing-be/internal/pkg/logger"
	"subscription-billing-be/internal/repository/unitofwork"
	"subscription-billing-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"
)

// JobReport summarizes one scheduler run for logging and tests.
type JobReport struct {
	Job        string
	Candidates int
	Processed  int
	Succeeded  int
	Failed     int
	Skipped    int
	Errors     int
}

type ISchedulerService interface {
	// Start registers the periodic jobs and starts the cron loop.
	Start() error
	// Stop stops the cron loop; the returned context is done once in-flight
	// jobs finish.
	Stop() context.Context

	RunDailyBilling(ctx context.Context) (*JobReport, error)
	RunPaymentRetries(ctx context.Context) (*JobReport, error)
	RunGraceSweep(ctx context.Context) (*JobReport, error)
}

type schedulerService struct {
	cron           *cron.Cron
	redisClient    *redis.Client
	processor      IBillingProcessor
	uowFactory     unitofwork.RepositoryFactory
	billingGateway gateway.BillingGateway
	eventPublisher events.Publisher
	dunning        message.Publisher
	log            logger.ILogger
	jobsCfg        config.JobsConfig
	instanceId     string

	mu      sync.Mutex
	running map[string]bool
}

func NewSchedulerService(
	redisClient *redis.Client,
	processor IBillingProcessor,
	uowFactory unitofwork.RepositoryFactory,
	billingGateway gateway.BillingGateway,
	eventPublisher events.Publisher,
	dunning message.Publisher,
	log logger.ILogger,
	jobsCfg config.JobsConfig,
) ISchedulerService {
	return &schedulerService{
		cron:           cron.New(),
		redisClient:    redisClient,
		processor:      processor,
		uowFactory:     uowFactory,
		billingGateway: billingGateway,
		eventPublisher: eventPublisher,
		dunning:        dunning,
		log:            log,
		jobsCfg:        jobsCfg,
		instanceId:     uuid.NewString(),
		running:        make(map[string]bool),
	}
}

func (s *schedulerService) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (*JobReport, error)
	}{
		{constant.JobDailyBilling, s.jobsCfg.DailyBillingSpec, s.RunDailyBilling},
		{constant.JobRetryPayments, s.jobsCfg.RetrySpec, s.RunPaymentRetries},
		{constant.JobGraceSweep, s.jobsCfg.GraceSweepSpec, s.RunGraceSweep},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.trigger(job.name, job.run) }); err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.log.Info("Scheduler", "Billing scheduler started", map[string]interface{}{
		"instance_id": s.instanceId,
	})
	return nil
}

func (s *schedulerService) Stop() context.Context {
	return s.cron.Stop()
}

// trigger runs one job under the run budget. A trigger that fires while the
// previous run of the same job is still going is dropped, not queued; the
// next cron tick picks up the leftover work.
func (s *schedulerService) trigger(name string, run func(context.Context) (*JobReport, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.jobsCfg.RunBudgetSeconds)*time.Second)
	defer cancel()

	report, err := run(ctx)
	if err != nil {
		if errors.Is(err, errJobAlreadyRunning) || errors.Is(err, errJobLockHeld) {
			s.log.Info("Scheduler", "Skipping overlapping trigger", map[string]interface{}{
				"job": name,
			})
			return
		}
		s.log.Error("Scheduler", "Job run failed", map[string]interface{}{
			"job":   name,
			"error": err.Error(),
		})
		return
	}

	s.log.Info("Scheduler", "Job run finished", map[string]interface{}{
		"job":        report.Job,
		"candidates": report.Candidates,
		"processed":  report.Processed,
		"succeeded":  report.Succeeded,
		"failed":     report.Failed,
		"skipped":    report.Skipped,
		"errors":     report.Errors,
	})
}

var (
	errJobAlreadyRunning = errors.New("job already running in this instance")
	errJobLockHeld       = errors.New("job lock held by another instance")
)

// acquire takes the in-process guard and the cross-instance redis lock.
// The lock TTL equals the run budget, so a crashed holder frees the job for
// the next trigger at worst one budget later.
func (s *schedulerService) acquire(ctx context.Context, name string) (func(), error) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		return nil, errJobAlreadyRunning
	}
	s.running[name] = true
	s.mu.Unlock()

	releaseLocal := func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}

	if s.redisClient == nil {
		return releaseLocal, nil
	}

	lockKey := "billing:job-lock:" + name
	ttl := time.Duration(s.jobsCfg.RunBudgetSeconds) * time.Second
	ok, err := s.redisClient.SetNX(ctx, lockKey, s.instanceId, ttl).Result()
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !ok {
		releaseLocal()
		return nil, errJobLockHeld
	}

	return func() {
		// Release only our own lock; if the TTL already expired and another
		// instance took it, leave it alone.
		holder, err := s.redisClient.Get(context.Background(), lockKey).Result()
		if err == nil && holder == s.instanceId {
			s.redisClient.Del(context.Background(), lockKey)
		}
		releaseLocal()
	}, nil
}

func (s *schedulerService) RunDailyBilling(ctx context.Context) (*JobReport, error) {
	release, err := s.acquire(ctx, constant.JobDailyBilling)
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now().UTC()
	uow := s.uowFactory.NewUnitOfWork(ctx)
	due, err := uow.SubscriptionRepository().FindDueForBilling(ctx, now)
	if err != nil {
		return nil, err
	}

	report := s.processBatch(ctx, constant.JobDailyBilling, due, now)
	return report, nil
}

func (s *schedulerService) RunPaymentRetries(ctx context.Context) (*JobReport, error) {
	release, err := s.acquire(ctx, constant.JobRetryPayments)
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now().UTC()
	uow := s.uowFactory.NewUnitOfWork(ctx)
	candidates, err := uow.SubscriptionRepository().FindPastDueInGrace(ctx, now)
	if err != nil {
		return nil, err
	}

	report := s.processBatch(ctx, constant.JobRetryPayments, candidates, now)
	return report, nil
}

// processBatch charges every candidate through the worker pool. A panic or
// error on one subscription is isolated; the rest of the batch continues.
func (s *schedulerService) processBatch(ctx context.Context, job string, subs []*entity.Subscription, asOf time.Time) *JobReport {
	report := &JobReport{Job: job, Candidates: len(subs)}

	poolSize := int64(s.jobsCfg.WorkerPoolSize)
	if poolSize < 1 {
		poolSize = 1
	}
	sem := semaphore.NewWeighted(poolSize)

	var wg sync.WaitGroup
	var processed, succeeded, failed, skipped, errs int64

	for _, sub := range subs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Budget exhausted; remaining candidates wait for the next run.
			break
		}

		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					atomic.AddInt64(&errs, 1)
					s.log.Error("Scheduler", "Panic while processing subscription", map[string]interface{}{
						"job":             job,
						"subscription_id": id.String(),
						"panic":           fmt.Sprint(r),
					})
				}
			}()

			outcome, err := s.processor.ProcessSubscriptionBilling(ctx, id, asOf)
			if err != nil {
				atomic.AddInt64(&errs, 1)
				s.log.Error("Scheduler", "Failed to process subscription", map[string]interface{}{
					"job":             job,
					"subscription_id": id.String(),
					"error":           err.Error(),
				})
				return
			}
			if !outcome.Processed {
				atomic.AddInt64(&skipped, 1)
				return
			}
			atomic.AddInt64(&processed, 1)
			if outcome.Success {
				atomic.AddInt64(&succeeded, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
		}(sub.Id)
	}

	wg.Wait()

	report.Processed = int(processed)
	report.Succeeded = int(succeeded)
	report.Failed = int(failed)
	report.Skipped = int(skipped)
	report.Errors = int(errs)
	return report
}

// RunGraceSweep cancels past-due subscriptions whose grace window has closed
// and expires subscriptions whose end date has passed. Sweeps are sequential;
// the candidate sets are small compared to the billing batches.
func (s *schedulerService) RunGraceSweep(ctx context.Context) (*JobReport, error) {
	release, err := s.acquire(ctx, constant.JobGraceSweep)
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now().UTC()
	report := &JobReport{Job: constant.JobGraceSweep}
	uow := s.uowFactory.NewUnitOfWork(ctx)

	expired, err := uow.SubscriptionRepository().FindPastDueGraceExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	report.Candidates += len(expired)

	for _, sub := range expired {
		if ctx.Err() != nil {
			break
		}
		if !sub.ExpireGracePeriod(now) {
			report.Skipped++
			continue
		}
		if err := s.persistSweepChange(ctx, uow, sub, report); err != nil {
			continue
		}
		s.publish(ctx, events.NewSubscriptionCancelled(sub, constant.CancelReasonGraceExpired))
		s.disableSchedule(ctx, sub)
		s.notifyCancellation(sub, constant.CancelReasonGraceExpired)
		report.Processed++
	}

	ended, err := uow.SubscriptionRepository().FindEndedBy(ctx, now)
	if err != nil {
		return report, err
	}
	report.Candidates += len(ended)

	for _, sub := range ended {
		if ctx.Err() != nil {
			break
		}
		if !sub.Expire(now) {
			report.Skipped++
			continue
		}
		if err := s.persistSweepChange(ctx, uow, sub, report); err != nil {
			continue
		}
		s.publish(ctx, events.NewSubscriptionExpired(sub))
		s.disableSchedule(ctx, sub)
		report.Processed++
	}

	return report, nil
}

func (s *schedulerService) persistSweepChange(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.Subscription, report *JobReport) error {
	err := uow.SubscriptionRepository().Update(ctx, sub)
	if err == nil {
		return nil
	}
	if errors.Is(err, entity.ErrVersionConflict) {
		report.Skipped++
	} else {
		report.Errors++
		s.log.Error("Scheduler", "Failed to persist sweep change", map[string]interface{}{
			"subscription_id": sub.Id.String(),
			"error":           err.Error(),
		})
	}
	return err
}

func (s *schedulerService) disableSchedule(ctx context.Context, sub *entity.Subscription) {
	if s.billingGateway == nil || sub.GatewayScheduleId == "" {
		return
	}
	if err := s.billingGateway.DisableBilling(ctx, sub.Id, sub.GatewayScheduleId); err != nil {
		s.log.Warn("Scheduler", "Failed to disable provider schedule", map[string]interface{}{
			"subscription_id": sub.Id.String(),
			"error":           err.Error(),
		})
	}
}

func (s *schedulerService) notifyCancellation(sub *entity.Subscription, reason string) {
	if s.dunning == nil {
		return
	}
	raw, err := json.Marshal(dto.DunningMessage{
		SubscriptionId: sub.Id,
		CustomerEmail:  sub.CustomerEmail,
		PlanId:         sub.PlanId,
		Kind:           dto.DunningKindCancelled,
		CancelReason:   reason,
	})
	if err != nil {
		return
	}
	if err := s.dunning.Publish(constant.DunningTopicName, message.NewMessage(watermill.NewUUID(), raw)); err != nil {
		s.log.Warn("Scheduler", "Failed to enqueue cancellation notification", map[string]interface{}{
			"subscription_id": sub.Id.String(),
			"error":           err.Error(),
		})
	}
}

func (s *schedulerService) publish(ctx context.Context, evt events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.PublishWithRetry(ctx, evt, 3); err != nil {
		s.log.Warn("Scheduler", "Failed to publish event", map[string]interface{}{
			"event_type": evt.EventType(),
			"aggregate":  evt.AggregateId(),
			"error":      err.Error(),
		})
	}
}

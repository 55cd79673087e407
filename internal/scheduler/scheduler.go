// Package scheduler runs the league's periodic jobs on a gocron singleton.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	service     *Service
	serviceOnce sync.Once
	serviceErr  error
)

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
)

// Task is one run of a job. ctx is cancelled when the run times out or the
// scheduler stops, and carries a logger tagged with the job name.
type Task func(ctx context.Context) error

// Service owns the gocron scheduler. A job never overlaps with its own
// previous run.
type Service struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
	stopErr   error
}

// Init creates the singleton. Later calls return the first result.
func Init() error {
	serviceOnce.Do(func() {
		sched, err := gocron.NewScheduler(
			gocron.WithGlobalJobOptions(
				gocron.WithSingletonMode(gocron.LimitModeReschedule),
				gocron.WithEventListeners(
					gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
						log.Error().
							Str("job_id", jobID.String()).
							Str("job_name", jobName).
							Interface("panic", recoverData).
							Msg("Scheduler job panicked")
					}),
				),
			),
		)
		if err != nil {
			serviceErr = fmt.Errorf("create scheduler: %w", err)
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		service = &Service{scheduler: sched, ctx: ctx, cancel: cancel}
	})
	return serviceErr
}

func ServiceInstance() (*Service, error) {
	if service == nil && serviceErr == nil {
		return nil, ErrNotInitialized
	}
	return service, serviceErr
}

func Start() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	svc.Start()
	return nil
}

func Stop() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	return svc.Stop()
}

// AddJob registers task on the singleton. See Service.AddJob.
func AddJob(name, cronExpr string, timeout time.Duration, task Task) (gocron.Job, error) {
	svc, err := ServiceInstance()
	if err != nil {
		return nil, err
	}
	return svc.AddJob(name, cronExpr, timeout, task)
}

func (s *Service) Start() {
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop cancels running tasks and waits for them to return.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.cancel()
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// AddJob runs task on a standard five-field cron schedule. Each run gets
// its own context bounded by timeout; errors are logged, not retried.
func (s *Service) AddJob(name, cronExpr string, timeout time.Duration, task Task) (gocron.Job, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyJobName
	}
	if strings.TrimSpace(cronExpr) == "" {
		return nil, ErrEmptyCronExpr
	}

	logger := log.With().Str("component", "scheduler").Str("job_name", name).Logger()
	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() { s.run(name, timeout, task) }),
		gocron.WithName(name),
	)
	if err != nil {
		return nil, fmt.Errorf("register job %s: %w", name, err)
	}
	logger.Info().Str("cron", cronExpr).Msg("Scheduler job registered")
	return job, nil
}

func (s *Service) run(name string, timeout time.Duration, task Task) error {
	logger := log.With().Str("component", "scheduler").Str("job_name", name).Logger()
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	started := time.Now()
	err := task(logger.WithContext(ctx))
	elapsed := time.Since(started)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("Scheduler job failed")
		return err
	}
	logger.Debug().Dur("elapsed", elapsed).Msg("Scheduler job completed")
	return nil
}

package tickets

import (
	"context"
	"time"

	"ferrylink/pkg/logger"
)

// RepairJob periodically regenerates tickets that a failed post-commit issuance left missing
type RepairJob struct {
	issuer   Issuer
	config   *JobConfig
	log      *logger.Logger
	done     chan struct{}
	finished chan struct{}
}

// JobConfig contains configuration for the repair sweep
type JobConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		Interval:  5 * time.Minute,
		BatchSize: 50,
	}
}

func NewRepairJob(issuer Issuer, config *JobConfig, log *logger.Logger) *RepairJob {
	if config == nil {
		config = DefaultJobConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &RepairJob{
		issuer:   issuer,
		config:   config,
		log:      log.WithFields(map[string]interface{}{"job": "ticket_repair"}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called
func (j *RepairJob) Run(ctx context.Context) error {
	defer close(j.finished)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.log.InfoWithContext(ctx, "Started ticket repair job", j.GetJobStatus())

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// RunOnce performs a single sweep
func (j *RepairJob) RunOnce(ctx context.Context) int {
	repaired, err := j.issuer.RepairMissing(ctx, j.config.BatchSize)
	if err != nil {
		j.log.ErrorWithContext(ctx, "Ticket repair sweep failed", err, nil)
		return 0
	}
	if repaired > 0 {
		j.log.InfoWithContext(ctx, "Repaired missing tickets", map[string]interface{}{"bookings": repaired})
	}
	return repaired
}

// Stop ends Run and waits for it to return
func (j *RepairJob) Stop() {
	select {
	case <-j.done:
	default:
		close(j.done)
	}
	<-j.finished
}

// GetJobStatus returns the status of the background job
func (j *RepairJob) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{
		"interval":   j.config.Interval.String(),
		"batch_size": j.config.BatchSize,
	}
}

package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/schema"
	"github.com/kylinctl/kylinctl/internal/service"
)

// Service is the part of a Kylin service a Controller needs.
type Service interface {
	Version() string
	JobDesc(ctx context.Context, id string) (*schema.JobDesc, error)
	MaintainJob(ctx context.Context, id, action string) (*schema.JobDesc, error)
	DropJob(ctx context.Context, id string) error
}

// Controller drives one job. KE4 servers only allow reading a job.
type Controller struct {
	svc    Service
	id     string
	logger *slog.Logger
}

// NewController returns a controller for job id.
func NewController(svc Service, id string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{svc: svc, id: id, logger: logger}
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) maintain(ctx context.Context, action string) (*Job, error) {
	if c.svc.Version() == config.VersionKE4 {
		return nil, service.UnsupportedJobAction(action)
	}
	desc, err := c.svc.MaintainJob(ctx, c.id, action)
	if err != nil {
		return nil, err
	}
	c.logger.Info("job action", "job", c.id, "action", action, "status", desc.Status)
	return FromDesc(desc), nil
}

func (c *Controller) Resume(ctx context.Context) (*Job, error) {
	return c.maintain(ctx, service.JobResume)
}

func (c *Controller) Cancel(ctx context.Context) (*Job, error) {
	return c.maintain(ctx, service.JobCancel)
}

func (c *Controller) Pause(ctx context.Context) (*Job, error) {
	return c.maintain(ctx, service.JobPause)
}

// Drop removes the job from the server.
func (c *Controller) Drop(ctx context.Context) error {
	if c.svc.Version() == config.VersionKE4 {
		return service.UnsupportedJobAction("drop")
	}
	if err := c.svc.DropJob(ctx, c.id); err != nil {
		return err
	}
	c.logger.Info("job dropped", "job", c.id)
	return nil
}

// Describe fetches the current job snapshot.
func (c *Controller) Describe(ctx context.Context) (*Job, error) {
	desc, err := c.svc.JobDesc(ctx, c.id)
	if err != nil {
		return nil, err
	}
	return FromDesc(desc), nil
}

// Status returns the job status.
func (c *Controller) Status(ctx context.Context) (string, error) {
	j, err := c.Describe(ctx)
	if err != nil {
		return "", err
	}
	return j.Status, nil
}

// Wait polls the job every interval until it is done or ctx ends.
func (c *Controller) Wait(ctx context.Context, interval time.Duration) (*Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		j, err := c.Describe(ctx)
		if err != nil {
			return nil, err
		}
		if j.Done() {
			return j, nil
		}
		c.logger.Debug("waiting for job", "job", c.id, "status", j.Status, "progress", j.Progress)

		select {
		case <-ctx.Done():
			return j, fmt.Errorf("waiting for job %s: %w", c.id, ctx.Err())
		case <-ticker.C:
		}
	}
}

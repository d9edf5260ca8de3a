// Package kylin is the entry point for talking to a Kylin project: it
// connects a service adapter for the configured version and turns its
// metadata into datasources.
package kylin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kylinctl/kylinctl/internal/client"
	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/job"
	"github.com/kylinctl/kylinctl/internal/schema"
	"github.com/kylinctl/kylinctl/internal/service"
)

// Project is a connection to one project on a Kylin server. Every call
// fetches fresh metadata; nothing is cached between calls.
type Project struct {
	svc      service.Service
	pushdown bool
	logger   *slog.Logger
}

type options struct {
	logger     *slog.Logger
	clientOpts []client.Option
	pushdown   *bool
}

// Option configures a Project.
type Option func(*options)

// WithLogger sets the logger used by the project and its HTTP client.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClientOptions passes options through to the HTTP client.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// WithPushdown makes table names come from the Hive catalog rather than
// the query catalog.
func WithPushdown(on bool) Option {
	return func(o *options) { o.pushdown = &on }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Connect parses a kylin:// DSN and connects to its project.
func Connect(dsn string, opts ...Option) (*Project, error) {
	sc, err := config.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return New(*sc, opts...)
}

// New connects to the project described by sc. Secret references in sc
// are resolved first.
func New(sc config.ServerConfig, opts ...Option) (*Project, error) {
	o := buildOptions(opts)

	if err := sc.ResolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}
	sc.ApplyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	c := client.New(&sc, append([]client.Option{client.WithLogger(o.logger)}, o.clientOpts...)...)
	svc, err := service.New(c, sc.Project, sc.APIVersion)
	if err != nil {
		return nil, err
	}

	p := &Project{svc: svc, pushdown: sc.IsPushdown, logger: o.logger}
	if o.pushdown != nil {
		p.pushdown = *o.pushdown
	}
	o.logger.Debug("connected", "url", c.BaseURL(), "project", sc.Project, "version", sc.APIVersion)
	return p, nil
}

// FromService wraps an existing service.
func FromService(svc service.Service, opts ...Option) *Project {
	o := buildOptions(opts)
	p := &Project{svc: svc, logger: o.logger}
	if o.pushdown != nil {
		p.pushdown = *o.pushdown
	}
	return p
}

// Service returns the underlying service adapter.
func (p *Project) Service() service.Service { return p.svc }

// Name returns the project name.
func (p *Project) Name() string { return p.svc.Project() }

// Version returns the service version tag.
func (p *Project) Version() string { return p.svc.Version() }

// Projects lists the project names on the server, sorted.
func (p *Project) Projects(ctx context.Context) ([]string, error) {
	projects, err := p.svc.Projects(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(projects))
	for _, pr := range projects {
		names = append(names, pr.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Authenticate checks the credentials and returns the user.
func (p *Project) Authenticate(ctx context.Context) (*schema.UserDetails, error) {
	return p.svc.Authentication(ctx)
}

// Jobs lists the project's jobs.
func (p *Project) Jobs(ctx context.Context, f service.JobFilter) ([]*job.Job, error) {
	descs, err := p.svc.Jobs(ctx, f)
	if err != nil {
		return nil, err
	}
	return job.FromDescs(descs), nil
}

// Job returns a controller for job id.
func (p *Project) Job(id string) *job.Controller {
	return job.NewController(p.svc, id, p.logger)
}

package job

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kylinctl/kylinctl/internal/schema"
)

// Job statuses reported by the server.
const (
	StatusNew       = "NEW"
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusStopped   = "STOPPED"
	StatusFinished  = "FINISHED"
	StatusError     = "ERROR"
	StatusDiscarded = "DISCARDED"
	StatusSuicidal  = "SUICIDAL"
)

// Job is a snapshot of a build job.
type Job struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Type            string           `json:"type" yaml:"type"`
	Duration        time.Duration    `json:"duration" yaml:"duration"`
	ProjectName     string           `json:"project" yaml:"project"`
	DisplayCubeName string           `json:"display_cube_name" yaml:"display_cube_name"`
	RelatedCube     string           `json:"related_cube" yaml:"related_cube"`
	Status          string           `json:"status" yaml:"status"`
	Submitter       string           `json:"submitter" yaml:"submitter"`
	Progress        float64          `json:"progress" yaml:"progress"`
	Info            map[string]any   `json:"info,omitempty" yaml:"info,omitempty"`
	Steps           []schema.JobStep `json:"steps,omitempty" yaml:"steps,omitempty"`
	LastModified    time.Time        `json:"last_modified" yaml:"last_modified"`
}

// FromDesc converts a service job description. Duration is reported in
// seconds, timestamps in epoch ms.
func FromDesc(d *schema.JobDesc) *Job {
	j := &Job{
		ID:              d.UUID,
		Name:            d.Name,
		Type:            d.Type,
		Duration:        time.Duration(d.Duration) * time.Second,
		ProjectName:     d.ProjectName,
		DisplayCubeName: d.DisplayCubeName,
		RelatedCube:     d.RelatedCube,
		Status:          d.Status,
		Submitter:       d.Submitter,
		Progress:        d.Progress,
		Info:            d.Info,
		Steps:           d.Steps,
	}
	if d.LastModified > 0 {
		j.LastModified = time.UnixMilli(d.LastModified)
	}
	return j
}

// FromDescs converts a job listing.
func FromDescs(descs []schema.JobDesc) []*Job {
	jobs := make([]*Job, 0, len(descs))
	for i := range descs {
		jobs = append(jobs, FromDesc(&descs[i]))
	}
	return jobs
}

// Output returns the step with the given id.
func (j *Job) Output(stepID string) (schema.JobStep, bool) {
	for _, s := range j.Steps {
		if s.ID == stepID {
			return s, true
		}
	}
	return schema.JobStep{}, false
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	switch j.Status {
	case StatusFinished, StatusError, StatusDiscarded, StatusSuicidal:
		return true
	}
	return false
}

// Summary is a one-line description for terminal output.
func (j *Job) Summary() string {
	s := fmt.Sprintf("%s %s %s %.0f%%", j.ID, j.Name, j.Status, j.Progress)
	if !j.LastModified.IsZero() {
		s += " (" + humanize.Time(j.LastModified) + ")"
	}
	return s
}

func (j *Job) String() string {
	return fmt.Sprintf("<Job %s type: %s>", j.Name, j.Type)
}

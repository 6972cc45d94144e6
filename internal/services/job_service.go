package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/notify"
	"github.com/isdelr/alumni-portal-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// JobServiceProvider defines the interface for job posting services.
type JobServiceProvider interface {
	Create(ctx context.Context, p auth.Principal, in JobInput) (models.JobPosting, error)
	List(ctx context.Context) ([]models.JobPosting, error)
	Get(ctx context.Context, id string) (models.JobPosting, error)
	ListMine(ctx context.Context, p auth.Principal) ([]models.JobPosting, error)
	Stats(ctx context.Context, p auth.Principal) ([]models.JobStats, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
}

// JobInput is the client-supplied part of a job posting.
type JobInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Company      string `json:"company"`
	Location     string `json:"location"`
	Requirements string `json:"requirements"`
}

// JobService provides business logic for job postings.
type JobService struct {
	jobs         database.Collection
	applications database.Collection
	notifier     Dispatcher
	events       EventServiceProvider
	now          func() time.Time
}

// NewJobService creates a new JobService.
func NewJobService(store *database.Store, notifier Dispatcher, events EventServiceProvider) *JobService {
	if notifier == nil {
		notifier = discardDispatcher{}
	}
	return &JobService{
		jobs:         store.Collection(JobsCollection),
		applications: store.Collection(ApplicationsCollection),
		notifier:     notifier,
		events:       events,
		now:          time.Now,
	}
}

// Create stores a posting owned by the calling employer.
func (s *JobService) Create(ctx context.Context, p auth.Principal, in JobInput) (models.JobPosting, error) {
	if err := auth.Require(p, models.RoleEmployer); err != nil {
		return models.JobPosting{}, err
	}
	job := models.JobPosting{
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Company:       strings.TrimSpace(in.Company),
		Location:      strings.TrimSpace(in.Location),
		Requirements:  in.Requirements,
		EmployerEmail: p.Email,
		CreatedAt:     s.now().UTC(),
	}
	if job.Title == "" {
		return models.JobPosting{}, apperr.New(apperr.CodeInvalidArgument, "title is required")
	}
	id, err := s.jobs.InsertOne(ctx, job)
	if err != nil {
		return models.JobPosting{}, storeError("insert job", err)
	}
	job.ID = id
	log.Info().Str("job_id", id).Str("employer", p.Email).Msg("Job posting created")
	s.notifier.Dispatch(notify.Notification{Action: websocket.ActionJobCreated, Payload: job})
	return job, nil
}

// List returns every posting. It is public.
func (s *JobService) List(ctx context.Context) ([]models.JobPosting, error) {
	return s.find(ctx, nil)
}

// Get returns a single posting. It is public.
func (s *JobService) Get(ctx context.Context, id string) (models.JobPosting, error) {
	var job models.JobPosting
	if err := s.jobs.FindOne(ctx, database.Filter{"id": id}, &job); err != nil {
		if isNotFound(err) {
			return models.JobPosting{}, apperr.New(apperr.CodeNotFound, "Job not found")
		}
		return models.JobPosting{}, storeError("look up job", err)
	}
	return job, nil
}

// ListMine returns the calling employer's postings.
func (s *JobService) ListMine(ctx context.Context, p auth.Principal) ([]models.JobPosting, error) {
	if err := auth.Require(p, models.RoleEmployer); err != nil {
		return nil, err
	}
	return s.find(ctx, database.Filter{"employer_email": p.Email})
}

// Stats returns the number of applications per posting of the calling employer.
func (s *JobService) Stats(ctx context.Context, p auth.Principal) ([]models.JobStats, error) {
	jobs, err := s.ListMine(ctx, p)
	if err != nil {
		return nil, err
	}
	stats := make([]models.JobStats, 0, len(jobs))
	for _, job := range jobs {
		n, err := s.applications.Count(ctx, database.Filter{"job_id": job.ID})
		if err != nil {
			return nil, storeError("count applications", err)
		}
		stats = append(stats, models.JobStats{
			JobID:             job.ID,
			Title:             job.Title,
			Company:           job.Company,
			Location:          job.Location,
			ApplicationsCount: int(n),
		})
	}
	return stats, nil
}

// Delete removes a posting. Admin only.
func (s *JobService) Delete(ctx context.Context, p auth.Principal, id string) error {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return err
	}
	n, err := s.jobs.DeleteOne(ctx, database.Filter{"id": id})
	if err != nil {
		return storeError("delete job", err)
	}
	if n == 0 {
		return apperr.New(apperr.CodeNotFound, "Job not found")
	}
	if s.events != nil {
		if err := s.events.Record(ctx, "job.delete", "warn", fmt.Sprintf("Job %s deleted", id), p.Email); err != nil {
			log.Warn().Err(err).Str("job_id", id).Msg("Failed to record event")
		}
	}
	return nil
}

func (s *JobService) find(ctx context.Context, filter database.Filter) ([]models.JobPosting, error) {
	jobs := []models.JobPosting{}
	if err := s.jobs.FindMany(ctx, filter, &jobs); err != nil {
		return nil, storeError("list jobs", err)
	}
	return jobs, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/notify"
	"github.com/isdelr/alumni-portal-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// ApplicationServiceProvider defines the interface for job application services.
type ApplicationServiceProvider interface {
	Apply(ctx context.Context, p auth.Principal, in ApplyInput) (models.Application, error)
	ListMine(ctx context.Context, p auth.Principal) ([]models.Application, error)
	ListForJob(ctx context.Context, p auth.Principal, jobID string) ([]models.Application, error)
	UpdateStatus(ctx context.Context, p auth.Principal, applicationID string, status models.ApplicationStatus) (models.Application, error)
}

// ApplyInput is the client-supplied part of an application. Any applicant
// email in the request body is ignored.
type ApplyInput struct {
	JobID       string `json:"job_id"`
	CoverLetter string `json:"cover_letter"`
}

// ApplicationService provides business logic for job applications.
type ApplicationService struct {
	applications database.Collection
	jobs         database.Collection
	notifier     Dispatcher
	events       EventServiceProvider
	now          func() time.Time
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(store *database.Store, notifier Dispatcher, events EventServiceProvider) *ApplicationService {
	if notifier == nil {
		notifier = discardDispatcher{}
	}
	return &ApplicationService{
		applications: store.Collection(ApplicationsCollection),
		jobs:         store.Collection(JobsCollection),
		notifier:     notifier,
		events:       events,
		now:          time.Now,
	}
}

// Apply records the calling user's application to a job.
func (s *ApplicationService) Apply(ctx context.Context, p auth.Principal, in ApplyInput) (models.Application, error) {
	if err := auth.Require(p, models.RoleUser); err != nil {
		return models.Application{}, err
	}
	if in.JobID == "" {
		return models.Application{}, apperr.New(apperr.CodeInvalidArgument, "job_id is required")
	}
	if _, err := s.job(ctx, in.JobID); err != nil {
		return models.Application{}, err
	}

	var existing models.Application
	err := s.applications.FindOne(ctx, database.Filter{"job_id": in.JobID, "applicant_email": p.Email}, &existing)
	if err == nil {
		return models.Application{}, apperr.New(apperr.CodeConflict, "You have already applied to this job")
	}
	if !isNotFound(err) {
		return models.Application{}, storeError("look up application", err)
	}

	now := s.now().UTC()
	app := models.Application{
		JobID:          in.JobID,
		ApplicantEmail: p.Email,
		CoverLetter:    in.CoverLetter,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	id, err := s.applications.InsertOne(ctx, app)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			return models.Application{}, apperr.New(apperr.CodeConflict, "You have already applied to this job")
		}
		return models.Application{}, storeError("insert application", err)
	}
	app.ID = id
	return app, nil
}

// ListMine returns the calling user's applications.
func (s *ApplicationService) ListMine(ctx context.Context, p auth.Principal) ([]models.Application, error) {
	if err := auth.Require(p, models.RoleUser); err != nil {
		return nil, err
	}
	return s.find(ctx, database.Filter{"applicant_email": p.Email})
}

// ListForJob returns the applications to a job owned by the calling employer.
func (s *ApplicationService) ListForJob(ctx context.Context, p auth.Principal, jobID string) ([]models.Application, error) {
	if err := auth.Require(p, models.RoleEmployer); err != nil {
		return nil, err
	}
	job, err := s.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.EmployerEmail != p.Email {
		return nil, apperr.New(apperr.CodeForbidden, "You do not own this job posting")
	}
	return s.find(ctx, database.Filter{"job_id": jobID})
}

// UpdateStatus records the owning employer's decision on a pending
// application and notifies the applicant.
func (s *ApplicationService) UpdateStatus(ctx context.Context, p auth.Principal, applicationID string, status models.ApplicationStatus) (models.Application, error) {
	if err := auth.Require(p, models.RoleEmployer); err != nil {
		return models.Application{}, err
	}
	if !status.IsDecision() {
		return models.Application{}, apperr.New(apperr.CodeInvalidArgument, "Invalid status. Must be 'accepted' or 'declined'")
	}

	var app models.Application
	if err := s.applications.FindOne(ctx, database.Filter{"id": applicationID}, &app); err != nil {
		if isNotFound(err) {
			return models.Application{}, apperr.New(apperr.CodeNotFound, "Application not found")
		}
		return models.Application{}, storeError("look up application", err)
	}
	job, err := s.job(ctx, app.JobID)
	if err != nil {
		return models.Application{}, err
	}
	if job.EmployerEmail != p.Email {
		return models.Application{}, apperr.New(apperr.CodeForbidden, "You do not own this job posting")
	}
	if app.Status != models.StatusPending {
		return models.Application{}, apperr.New(apperr.CodeConflict, fmt.Sprintf("Application already %s", app.Status))
	}

	now := s.now().UTC()
	// Matching on status keeps the transition single-shot under concurrent updates.
	n, err := s.applications.UpdateOne(ctx,
		database.Filter{"id": applicationID, "status": string(models.StatusPending)},
		map[string]any{"status": status, "updated_at": now})
	if err != nil {
		return models.Application{}, storeError("update application", err)
	}
	if n == 0 {
		return models.Application{}, apperr.New(apperr.CodeConflict, "Application already decided")
	}
	app.Status = status
	app.UpdatedAt = now

	s.notifier.Dispatch(notify.Notification{
		Recipient: app.ApplicantEmail,
		Subject:   "Application Status Update",
		Body:      fmt.Sprintf("Your application for %q at %s has been %s.", job.Title, job.Company, status),
		Action:    websocket.ActionApplicationStatus,
		Payload:   app,
	})
	if s.events != nil {
		msg := fmt.Sprintf("Application %s for job %s %s", app.ID, job.ID, status)
		if err := s.events.Record(ctx, "application.status", "info", msg, p.Email); err != nil {
			log.Warn().Err(err).Str("application_id", app.ID).Msg("Failed to record event")
		}
	}
	return app, nil
}

func (s *ApplicationService) job(ctx context.Context, id string) (models.JobPosting, error) {
	var job models.JobPosting
	if err := s.jobs.FindOne(ctx, database.Filter{"id": id}, &job); err != nil {
		if isNotFound(err) {
			return models.JobPosting{}, apperr.New(apperr.CodeNotFound, "Job not found")
		}
		return models.JobPosting{}, storeError("look up job", err)
	}
	return job, nil
}

func (s *ApplicationService) find(ctx context.Context, filter database.Filter) ([]models.Application, error) {
	apps := []models.Application{}
	if err := s.applications.FindMany(ctx, filter, &apps); err != nil {
		return nil, storeError("list applications", err)
	}
	return apps, nil
}

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/models"
)

// ProfileServiceProvider defines the interface for student profile services.
type ProfileServiceProvider interface {
	Get(ctx context.Context, p auth.Principal) (models.Profile, error)
	Upsert(ctx context.Context, p auth.Principal, in ProfileInput) (models.Profile, error)
}

// ProfileInput holds the editable profile fields. The email always comes
// from the caller's identity.
type ProfileInput struct {
	Name      string `json:"name"`
	Skills    string `json:"skills"`
	ResumeURL string `json:"resume_url"`
	Bio       string `json:"bio"`
}

// ProfileService provides business logic for student profiles.
type ProfileService struct {
	profiles database.Collection
	accounts database.Collection
	now      func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store *database.Store) *ProfileService {
	return &ProfileService{
		profiles: store.Collection(ProfilesCollection),
		accounts: store.Collection(AccountsCollection),
		now:      time.Now,
	}
}

// Get returns the calling user's profile.
func (s *ProfileService) Get(ctx context.Context, p auth.Principal) (models.Profile, error) {
	if err := auth.Require(p, models.RoleUser); err != nil {
		return models.Profile{}, err
	}
	var profile models.Profile
	if err := s.profiles.FindOne(ctx, database.Filter{"email": p.Email}, &profile); err != nil {
		if isNotFound(err) {
			return models.Profile{}, apperr.New(apperr.CodeNotFound, "Profile not found")
		}
		return models.Profile{}, storeError("look up profile", err)
	}
	return profile, nil
}

// Upsert creates or replaces the calling user's profile.
func (s *ProfileService) Upsert(ctx context.Context, p auth.Principal, in ProfileInput) (models.Profile, error) {
	if err := auth.Require(p, models.RoleUser); err != nil {
		return models.Profile{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		var account models.AccountRecord
		if err := s.accounts.FindOne(ctx, database.Filter{"email": p.Email}, &account); err != nil && !isNotFound(err) {
			return models.Profile{}, storeError("look up account", err)
		}
		name = account.Name
	}
	profile := models.Profile{
		Name:      name,
		Email:     p.Email,
		Skills:    strings.TrimSpace(in.Skills),
		ResumeURL: strings.TrimSpace(in.ResumeURL),
		Bio:       in.Bio,
		UpdatedAt: s.now().UTC(),
	}

	var existing models.Profile
	err := s.profiles.FindOne(ctx, database.Filter{"email": p.Email}, &existing)
	switch {
	case err == nil:
		set := map[string]any{
			"name":       profile.Name,
			"skills":     profile.Skills,
			"resume_url": profile.ResumeURL,
			"bio":        profile.Bio,
			"updated_at": profile.UpdatedAt,
		}
		if _, err := s.profiles.UpdateOne(ctx, database.Filter{"id": existing.ID}, set); err != nil {
			return models.Profile{}, storeError("update profile", err)
		}
		profile.ID = existing.ID
	case isNotFound(err):
		id, err := s.profiles.InsertOne(ctx, profile)
		if err != nil {
			if errors.Is(err, database.ErrDuplicateKey) {
				return models.Profile{}, apperr.New(apperr.CodeConflict, "Profile was created concurrently, retry")
			}
			return models.Profile{}, storeError("insert profile", err)
		}
		profile.ID = id
	default:
		return models.Profile{}, storeError("look up profile", err)
	}
	return profile, nil
}

package services

import (
	"context"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/models"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	Record(ctx context.Context, eventType, level, message, actorEmail string) error
	Recent(ctx context.Context, p auth.Principal, limit int) ([]models.Event, error)
}

// EventService keeps the audit trail of privileged actions.
type EventService struct {
	events database.Collection
	now    func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(store *database.Store) *EventService {
	return &EventService{events: store.Collection(EventsCollection), now: time.Now}
}

// Record logs a new event to the store.
func (s *EventService) Record(ctx context.Context, eventType, level, message, actorEmail string) error {
	event := models.Event{
		Type:       eventType,
		Level:      level,
		Message:    message,
		ActorEmail: actorEmail,
		CreatedAt:  s.now().UTC(),
	}
	if _, err := s.events.InsertOne(ctx, event); err != nil {
		return storeError("record event", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. Admin only.
func (s *EventService) Recent(ctx context.Context, p auth.Principal, limit int) ([]models.Event, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	events := []models.Event{}
	if err := s.events.FindLatest(ctx, nil, limit, &events); err != nil {
		return nil, storeError("list events", err)
	}
	return events, nil
}

// repository/repository.go
package repository

import (
	"context"
	"time"

	"weddingflow-backend/models"

	"github.com/google/uuid"
)

// AutomationRepository persists automations. Every state-changing method is a
// conditional write so concurrent callers cannot skip a transition.
type AutomationRepository interface {
	Create(ctx context.Context, a *models.Automation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Automation, error)
	ListByWedding(ctx context.Context, weddingID uuid.UUID) ([]models.Automation, error)
	// ListReady returns active pending automations scheduled at or before now.
	ListReady(ctx context.Context, now time.Time) ([]models.Automation, error)

	// UpdatePending applies patch only while the automation is pending.
	UpdatePending(ctx context.Context, id uuid.UUID, patch models.AutomationPatch) (*models.Automation, error)
	// Activate sets isActive only when template and schedule are both present.
	Activate(ctx context.Context, id uuid.UUID) (*models.Automation, error)
	// Deactivate clears isActive only while the automation is pending.
	Deactivate(ctx context.Context, id uuid.UUID) (*models.Automation, error)
	// ClaimForDispatch moves a ready automation to inProgress. Exactly one of
	// several concurrent callers succeeds; the rest get ErrConcurrentClaimLost.
	ClaimForDispatch(ctx context.Context, id uuid.UUID, now time.Time) (*models.Automation, error)
	// Finish moves an inProgress automation to a terminal status.
	Finish(ctx context.Context, id uuid.UUID, status models.AutomationStatus, stats models.CompletionStats, sentMessageIDs []string) (*models.Automation, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, t *models.Template) error
	GetBySid(ctx context.Context, sid string) (*models.Template, error)
	// List returns shared templates plus the ones owned by weddingID.
	List(ctx context.Context, weddingID uuid.UUID) ([]models.Template, error)
	ListByApprovalStatus(ctx context.Context, statuses ...models.ApprovalStatus) ([]models.Template, error)
	UpdateApprovalStatus(ctx context.Context, sid string, status models.ApprovalStatus) error
}

type SentMessageRepository interface {
	Create(ctx context.Context, m *models.SentMessage) error
	ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.SentMessage, error)
	// ListUnsettled returns provider-accepted messages whose status may still change.
	ListUnsettled(ctx context.Context, limit int) ([]models.SentMessage, error)
	UpdateStatus(ctx context.Context, sid, status string, errorCode *int, errorMessage *string) error
}

type GuestRepository interface {
	Create(ctx context.Context, g *models.Guest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Guest, error)
	FindAudience(ctx context.Context, weddingID uuid.UUID, filter models.AudienceFilter) ([]models.Guest, error)
}

type WeddingRepository interface {
	Create(ctx context.Context, w *models.Wedding) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error)
}

// Store groups the repositories one backend provides.
type Store struct {
	Automations  AutomationRepository
	Templates    TemplateRepository
	SentMessages SentMessageRepository
	Guests       GuestRepository
	Weddings     WeddingRepository
}

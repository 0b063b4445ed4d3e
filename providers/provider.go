// providers/provider.go
package providers

import (
	"context"
	"time"

	"weddingflow-backend/models"
)

// SendRequest is one templated message to one recipient. Variables holds the
// provider's positional content variables; Body is the locally rendered text
// used when no TemplateSid is set.
type SendRequest struct {
	To          string
	Channel     models.Channel
	From        string
	TemplateSid string
	Variables   map[string]string
	Body        string
}

type SendReceipt struct {
	Sid         string
	Status      string
	DateCreated time.Time
}

type MessageStatus struct {
	Sid          string
	Status       string
	ErrorCode    *int
	ErrorMessage *string
}

type TemplateApproval struct {
	Sid    string
	Status models.ApprovalStatus
}

// Client is the outbound messaging provider. Implementations validate every
// payload they return and raise apperrors.ExternalContractViolation when a
// required field is missing or unknown.
type Client interface {
	Send(ctx context.Context, req SendRequest) (*SendReceipt, error)
	GetMessageStatus(ctx context.Context, sid string) (*MessageStatus, error)
	GetTemplateApprovalStatus(ctx context.Context, sid string) (*TemplateApproval, error)
}

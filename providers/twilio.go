// providers/twilio.go
package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	contentV1 "github.com/twilio/twilio-go/rest/content/v1"
)

// messagesAPI is the part of the Twilio v2010 API used here.
type messagesAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	FetchMessage(sid string, params *twilioApi.FetchMessageParams) (*twilioApi.ApiV2010Message, error)
}

type contentAPI interface {
	FetchApprovalFetch(sid string) (*contentV1.ContentV1ApprovalFetch, error)
}

type TwilioConfig struct {
	AccountSID          string
	AuthToken           string
	WhatsAppNumber      string
	PhoneNumber         string
	MessagingServiceSID string
	RetryMax            int
}

type twilioClient struct {
	messages messagesAPI
	content  contentAPI
	cfg      TwilioConfig
	logger   logrus.FieldLogger
}

// NewTwilioClient builds a Client on top of twilio-go. HTTP calls go through
// a retryablehttp client.
func NewTwilioClient(cfg TwilioConfig, logger logrus.FieldLogger) Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.Logger = logger
	rc.CheckRetry = retryPolicy

	tc := &client.Client{
		Credentials: client.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  rc.StandardClient(),
	}
	tc.SetAccountSid(cfg.AccountSID)
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Client: tc})

	return newTwilioClient(rest.Api, rest.ContentV1, cfg, logger)
}

func newTwilioClient(messages messagesAPI, content contentAPI, cfg TwilioConfig, logger logrus.FieldLogger) *twilioClient {
	return &twilioClient{
		messages: messages,
		content:  content,
		cfg:      cfg,
		logger:   logger.WithField("provider", "twilio"),
	}
}

// retryPolicy retries reads and throttled requests. A POST that got any
// other response may already have created a message.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.Request != nil && resp.Request.Method == http.MethodPost &&
		resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (t *twilioClient) Send(ctx context.Context, req SendRequest) (*SendReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.TemplateSid == "" && req.Body == "" {
		return nil, &apperrors.ExternalSendError{To: req.To, Err: errors.New("neither template nor body set")}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(t.address(req.Channel, req.To))
	switch {
	case req.From != "":
		params.SetFrom(t.address(req.Channel, req.From))
	case req.Channel == models.ChannelWhatsApp && t.cfg.WhatsAppNumber != "":
		params.SetFrom(t.address(req.Channel, t.cfg.WhatsAppNumber))
	case t.cfg.MessagingServiceSID != "":
		params.SetMessagingServiceSid(t.cfg.MessagingServiceSID)
	default:
		params.SetFrom(t.cfg.PhoneNumber)
	}

	if req.TemplateSid != "" {
		params.SetContentSid(req.TemplateSid)
		if len(req.Variables) > 0 {
			vars, err := json.Marshal(req.Variables)
			if err != nil {
				return nil, errors.Wrap(err, "encode content variables")
			}
			params.SetContentVariables(string(vars))
		}
	} else {
		params.SetBody(req.Body)
	}

	resp, err := t.messages.CreateMessage(params)
	if err != nil {
		t.logger.WithError(err).WithField("to", req.To).Warn("message create failed")
		return nil, &apperrors.ExternalSendError{To: req.To, Err: err}
	}
	if resp == nil || resp.Sid == nil || *resp.Sid == "" {
		return nil, apperrors.NewContractViolation("send", "sid", "missing")
	}
	status, err := messageStatus("send", resp.Status)
	if err != nil {
		return nil, err
	}

	receipt := &SendReceipt{Sid: *resp.Sid, Status: status, DateCreated: time.Now().UTC()}
	if resp.DateCreated != nil {
		if created, err := time.Parse(time.RFC1123Z, *resp.DateCreated); err == nil {
			receipt.DateCreated = created.UTC()
		}
	}
	t.logger.WithFields(logrus.Fields{"to": req.To, "sid": receipt.Sid}).Debug("message accepted")
	return receipt, nil
}

func (t *twilioClient) GetMessageStatus(ctx context.Context, sid string) (*MessageStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := t.messages.FetchMessage(sid, &twilioApi.FetchMessageParams{})
	if err != nil {
		return nil, &apperrors.ExternalPollError{Kind: "message", Ref: sid, Err: err}
	}
	if resp == nil {
		return nil, apperrors.NewContractViolation("fetch message", "body", "empty")
	}
	status, err := messageStatus("fetch message", resp.Status)
	if err != nil {
		return nil, err
	}

	out := &MessageStatus{Sid: sid, Status: status}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		code := *resp.ErrorCode
		out.ErrorCode = &code
	}
	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		msg := *resp.ErrorMessage
		out.ErrorMessage = &msg
	}
	return out, nil
}

func (t *twilioClient) GetTemplateApprovalStatus(ctx context.Context, sid string) (*TemplateApproval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := t.content.FetchApprovalFetch(sid)
	if err != nil {
		return nil, &apperrors.ExternalPollError{Kind: "template", Ref: sid, Err: err}
	}
	if resp == nil || resp.Whatsapp == nil {
		return nil, apperrors.NewContractViolation("fetch approval", "whatsapp", "missing")
	}

	whatsapp := *resp.Whatsapp
	raw, ok := whatsapp["status"].(string)
	if !ok || raw == "" {
		return nil, apperrors.NewContractViolation("fetch approval", "whatsapp.status", "missing")
	}
	status, ok := approvalStatuses[strings.ToLower(raw)]
	if !ok {
		return nil, apperrors.NewContractViolation("fetch approval", "whatsapp.status", "unknown value "+raw)
	}
	return &TemplateApproval{Sid: sid, Status: status}, nil
}

func (t *twilioClient) address(channel models.Channel, number string) string {
	if channel == models.ChannelWhatsApp && !strings.HasPrefix(number, "whatsapp:") {
		return "whatsapp:" + number
	}
	return number
}

var approvalStatuses = map[string]models.ApprovalStatus{
	"unsubmitted": models.ApprovalPending,
	"pending":     models.ApprovalPending,
	"submitted":   models.ApprovalSubmitted,
	"received":    models.ApprovalReceived,
	"approved":    models.ApprovalApproved,
	"rejected":    models.ApprovalRejected,
	"paused":      models.ApprovalPaused,
	"disabled":    models.ApprovalDisabled,
}

var knownMessageStatuses = map[string]bool{
	models.MessageQueued:      true,
	models.MessageAccepted:    true,
	models.MessageScheduled:   true,
	models.MessageSending:     true,
	models.MessageSent:        true,
	models.MessageDelivered:   true,
	models.MessageRead:        true,
	models.MessageUndelivered: true,
	models.MessageFailed:      true,
	models.MessageCanceled:    true,
	"receiving":               true,
	"received":                true,
	"partially_delivered":     true,
}

func messageStatus(operation string, status *string) (string, error) {
	if status == nil || *status == "" {
		return "", apperrors.NewContractViolation(operation, "status", "missing")
	}
	if !knownMessageStatuses[*status] {
		return "", apperrors.NewContractViolation(operation, "status", "unknown value "+*status)
	}
	return *status, nil
}

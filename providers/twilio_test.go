// providers/twilio_test.go
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	contentV1 "github.com/twilio/twilio-go/rest/content/v1"
)

type fakeMessages struct {
	created *twilioApi.CreateMessageParams
	reply   *twilioApi.ApiV2010Message
	err     error
}

func (f *fakeMessages) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.created = params
	return f.reply, f.err
}

func (f *fakeMessages) FetchMessage(sid string, params *twilioApi.FetchMessageParams) (*twilioApi.ApiV2010Message, error) {
	return f.reply, f.err
}

type fakeContent struct {
	reply *contentV1.ContentV1ApprovalFetch
	err   error
}

func (f *fakeContent) FetchApprovalFetch(sid string) (*contentV1.ContentV1ApprovalFetch, error) {
	return f.reply, f.err
}

func strPtr(s string) *string { return &s }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSendWhatsAppTemplate(t *testing.T) {
	messages := &fakeMessages{reply: &twilioApi.ApiV2010Message{
		Sid:         strPtr("SM123"),
		Status:      strPtr("queued"),
		DateCreated: strPtr("Fri, 01 May 2026 09:00:00 +0000"),
	}}
	c := newTwilioClient(messages, &fakeContent{}, TwilioConfig{WhatsAppNumber: "+15550000"}, quietLogger())

	receipt, err := c.Send(context.Background(), SendRequest{
		To:          "+15551234",
		Channel:     models.ChannelWhatsApp,
		TemplateSid: "HX1",
		Variables:   map[string]string{"1": "Dana"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SM123", receipt.Sid)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, 2026, receipt.DateCreated.Year())

	require.NotNil(t, messages.created)
	assert.Equal(t, "whatsapp:+15551234", *messages.created.To)
	assert.Equal(t, "whatsapp:+15550000", *messages.created.From)
	assert.Equal(t, "HX1", *messages.created.ContentSid)

	var vars map[string]string
	require.NoError(t, json.Unmarshal([]byte(*messages.created.ContentVariables), &vars))
	assert.Equal(t, "Dana", vars["1"])
}

func TestSendSMSUsesMessagingService(t *testing.T) {
	messages := &fakeMessages{reply: &twilioApi.ApiV2010Message{Sid: strPtr("SM1"), Status: strPtr("accepted")}}
	c := newTwilioClient(messages, &fakeContent{}, TwilioConfig{MessagingServiceSID: "MG1"}, quietLogger())

	_, err := c.Send(context.Background(), SendRequest{To: "+15551234", Channel: models.ChannelSMS, Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "+15551234", *messages.created.To)
	assert.Equal(t, "MG1", *messages.created.MessagingServiceSid)
	assert.Equal(t, "hello", *messages.created.Body)
	assert.Nil(t, messages.created.From)
}

func TestSendErrors(t *testing.T) {
	ctx := context.Background()
	req := SendRequest{To: "+15551234", Channel: models.ChannelSMS, Body: "hi"}

	failing := newTwilioClient(&fakeMessages{err: errors.New("boom")}, &fakeContent{}, TwilioConfig{}, quietLogger())
	_, err := failing.Send(ctx, req)
	var sendErr *apperrors.ExternalSendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "+15551234", sendErr.To)

	noSid := newTwilioClient(&fakeMessages{reply: &twilioApi.ApiV2010Message{Status: strPtr("queued")}}, &fakeContent{}, TwilioConfig{}, quietLogger())
	_, err = noSid.Send(ctx, req)
	assert.True(t, apperrors.IsContractViolation(err))

	badStatus := newTwilioClient(&fakeMessages{reply: &twilioApi.ApiV2010Message{Sid: strPtr("SM1"), Status: strPtr("teleported")}}, &fakeContent{}, TwilioConfig{}, quietLogger())
	_, err = badStatus.Send(ctx, req)
	assert.True(t, apperrors.IsContractViolation(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = failing.Send(cancelled, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetMessageStatus(t *testing.T) {
	code := 30008
	messages := &fakeMessages{reply: &twilioApi.ApiV2010Message{
		Sid:          strPtr("SM1"),
		Status:       strPtr("undelivered"),
		ErrorCode:    &code,
		ErrorMessage: strPtr("Unknown error"),
	}}
	c := newTwilioClient(messages, &fakeContent{}, TwilioConfig{}, quietLogger())

	status, err := c.GetMessageStatus(context.Background(), "SM1")
	require.NoError(t, err)
	assert.Equal(t, "undelivered", status.Status)
	require.NotNil(t, status.ErrorCode)
	assert.Equal(t, 30008, *status.ErrorCode)

	pollFail := newTwilioClient(&fakeMessages{err: errors.New("timeout")}, &fakeContent{}, TwilioConfig{}, quietLogger())
	_, err = pollFail.GetMessageStatus(context.Background(), "SM1")
	var pollErr *apperrors.ExternalPollError
	require.ErrorAs(t, err, &pollErr)
	assert.Equal(t, "SM1", pollErr.Ref)
}

func TestGetTemplateApprovalStatus(t *testing.T) {
	approval := func(payload map[string]interface{}) *contentV1.ContentV1ApprovalFetch {
		return &contentV1.ContentV1ApprovalFetch{Sid: strPtr("HX1"), Whatsapp: &payload}
	}

	c := newTwilioClient(&fakeMessages{}, &fakeContent{reply: approval(map[string]interface{}{"status": "Approved"})}, TwilioConfig{}, quietLogger())
	got, err := c.GetTemplateApprovalStatus(context.Background(), "HX1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, got.Status)

	unknown := newTwilioClient(&fakeMessages{}, &fakeContent{reply: approval(map[string]interface{}{"status": "limbo"})}, TwilioConfig{}, quietLogger())
	_, err = unknown.GetTemplateApprovalStatus(context.Background(), "HX1")
	assert.True(t, apperrors.IsContractViolation(err))

	missing := newTwilioClient(&fakeMessages{}, &fakeContent{reply: &contentV1.ContentV1ApprovalFetch{Sid: strPtr("HX1")}}, TwilioConfig{}, quietLogger())
	_, err = missing.GetTemplateApprovalStatus(context.Background(), "HX1")
	assert.True(t, apperrors.IsContractViolation(err))

	noStatus := newTwilioClient(&fakeMessages{}, &fakeContent{reply: approval(map[string]interface{}{"name": "invite"})}, TwilioConfig{}, quietLogger())
	_, err = noStatus.GetTemplateApprovalStatus(context.Background(), "HX1")
	assert.True(t, apperrors.IsContractViolation(err))
}

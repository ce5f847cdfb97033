package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "book@example.com"}, nil))

	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "book@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "Clinic Booking", sender.fromName)

	sender = NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "book@example.com", FromName: "Glow"}, nil)
	assert.Equal(t, "Glow", sender.fromName)
}

func TestSendGridSenderNilClient(t *testing.T) {
	var sender *SendGridSender
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "a@example.com"}))
}

func TestBuildSendGridMessage(t *testing.T) {
	msg := buildSendGridMessage("Glow", "book@glow.example", EmailMessage{
		To:      "jane@example.com",
		ToName:  "Jane",
		ReplyTo: "front@glow.example",
		Subject: "Booked",
		Body:    "See you soon",
		Tag:     "booking.created",
	})

	assert.Equal(t, "book@glow.example", msg.From.Address)
	assert.Equal(t, "Booked", msg.Subject)
	require.NotNil(t, msg.ReplyTo)
	assert.Equal(t, "front@glow.example", msg.ReplyTo.Address)
	assert.Equal(t, []string{"booking.created"}, msg.Categories)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, "See you soon", msg.Content[1].Value, "html falls back to the text body")
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSenderSend(t *testing.T) {
	api := &fakeSES{}
	sender := newSESSender(api, SESConfig{FromEmail: "book@glow.example"}, nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "jane@example.com",
		ReplyTo: "front@glow.example",
		Subject: "Booked",
		Body:    "text",
		HTML:    "<p>text</p>",
		Tag:     "booking.created",
	})
	require.NoError(t, err)

	in := api.input
	require.NotNil(t, in)
	assert.Equal(t, "Clinic Booking <book@glow.example>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"jane@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, []string{"front@glow.example"}, in.ReplyToAddresses)
	assert.Equal(t, "text", aws.ToString(in.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>text</p>", aws.ToString(in.Content.Simple.Body.Html.Data))
	require.Len(t, in.EmailTags, 1)
	assert.Equal(t, "booking_created", aws.ToString(in.EmailTags[0].Value))
}

func TestSESSenderError(t *testing.T) {
	sender := newSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{FromEmail: "a@b.example"}, nil)
	err := sender.Send(context.Background(), EmailMessage{To: "x@example.com", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

func TestStubEmailSender(t *testing.T) {
	assert.NoError(t, NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "a@example.com"}))
}

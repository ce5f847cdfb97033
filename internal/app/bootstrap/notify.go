package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/clinic-booking-widget/internal/config"
	"github.com/wolfman30/clinic-booking-widget/internal/notify"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

// BuildEmailSender picks the email provider named by EMAIL_PROVIDER and falls
// back to the logging stub when the provider is not configured. The second
// return value names the provider in use.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub"
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, "sendgrid"
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub email sender")
	case "ses":
		if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
			client := sesv2.NewFromConfig(*awsCfg)
			return notify.NewSESSender(client, notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SESFromName,
			}, logger), "ses"
		}
		logger.Warn("ses selected but aws config or SES_FROM_EMAIL missing; using stub email sender")
	case "", "stub":
	default:
		logger.Warn("unknown email provider; using stub email sender", "provider", cfg.EmailProvider)
	}
	return notify.NewStubEmailSender(logger), "stub"
}

// BuildSMSSender returns the Twilio sender when credentials are present.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) (notify.SMSSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg != nil {
		if sender := notify.NewTwilioSender(notify.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		}, logger); sender != nil {
			return sender, "twilio"
		}
	}
	return notify.NewStubSMSSender(logger), "stub"
}

// BuildNotifyQueue returns the in-process queue or the SQS queue at
// NOTIFY_QUEUE_URL.
func BuildNotifyQueue(cfg *appconfig.Config, awsCfg *aws.Config) (notify.Queue, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if cfg.UseMemoryQueue {
		return notify.NewMemoryQueue(0), "memory", nil
	}
	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		return nil, "", fmt.Errorf("bootstrap: NOTIFY_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	if awsCfg == nil {
		return nil, "", fmt.Errorf("bootstrap: aws config is required for the sqs queue")
	}
	return notify.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.NotifyQueueURL), "sqs", nil
}

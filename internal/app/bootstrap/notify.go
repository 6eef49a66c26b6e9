package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/edgareichner01-sys/bot-rdv/internal/config"
	"github.com/edgareichner01-sys/bot-rdv/internal/notify"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

// BuildBookingNotifier picks the e-mail provider named by EMAIL_PROVIDER.
// SES is only considered when an AWS config is available.
func BuildBookingNotifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *notify.BookingNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewBookingNotifier(nil, logger)
	}

	sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)

	var ses *notify.SESSender
	if awsCfg != nil && cfg.SESFromEmail != "" {
		ses = notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	}

	sender := notify.SelectSender(cfg.EmailProvider, sg, ses, logger)
	return notify.NewBookingNotifier(sender, logger)
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

// SESDispatcher delivers notifications as plain-text email through AWS SES.
type SESDispatcher struct {
	client *ses.SES
	from   string
	logger zerolog.Logger
}

// NewSESDispatcher builds the SES-backed dispatcher for the given region and
// sender identity.
func NewSESDispatcher(region, from string, logger zerolog.Logger) (*SESDispatcher, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("ses session: %w", err)
	}
	return &SESDispatcher{client: ses.New(sess), from: from, logger: logger}, nil
}

func (d *SESDispatcher) SendUsageThresholdNotice(ctx context.Context, user *domain.User, client *domain.Client, thresholdPct int) error {
	subject := fmt.Sprintf("API usage at %d%%", thresholdPct)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour API client %q has used %d of %d requests this cycle (%d%%).\nYour quota resets on %s.\n",
		user.Name, client.Name, client.UsageCount, client.UsageQuota, thresholdPct,
		client.ResetDate.Format("January 2, 2006"),
	)
	return d.send(ctx, user.Email, subject, body)
}

func (d *SESDispatcher) SendQuotaExceededNotice(ctx context.Context, user *domain.User, client *domain.Client) error {
	subject := "API usage quota exceeded"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour API client %q has exhausted its quota of %d requests.\nRequests will be rejected until the quota resets on %s.\n",
		user.Name, client.Name, client.UsageQuota,
		client.ResetDate.Format("January 2, 2006"),
	)
	return d.send(ctx, user.Email, subject, body)
}

func (d *SESDispatcher) SendMonthlySummary(ctx context.Context, user *domain.User, client *domain.Client, summary MonthlySummary) error {
	subject := "Monthly API usage summary"
	body := fmt.Sprintf(
		"Hi %s,\n\nLast cycle your API client %q made %d requests (%d%% of quota).\nYour usage counter has been reset; the next reset is %s.\n",
		user.Name, client.Name, summary.PreviousUsage, summary.UsagePercent,
		summary.NextResetDate.Format("January 2, 2006"),
	)
	return d.send(ctx, user.Email, subject, body)
}

func (d *SESDispatcher) SendAccountClosureNotice(ctx context.Context, user *domain.User, notice ClosureNotice) error {
	var subject, body string
	switch notice.Kind {
	case "requested":
		subject = "Account closure requested"
		scheduled := "the end of the grace period"
		if notice.ScheduledFor != nil {
			scheduled = notice.ScheduledFor.Format("January 2, 2006")
		}
		body = fmt.Sprintf(
			"Hi %s,\n\nWe received your account closure request. Your data will be permanently deleted on %s.\nYou can cancel within %d days of your request.\n",
			user.Name, scheduled, notice.GracePeriodDays,
		)
	case "cancelled":
		subject = "Account closure cancelled"
		body = fmt.Sprintf("Hi %s,\n\nYour account closure request has been cancelled. Your account is active again.\n", user.Name)
	case "purged":
		subject = "Account deleted"
		body = fmt.Sprintf("Hi %s,\n\nYour account and all associated data have been permanently deleted.\n", user.Name)
	default:
		return fmt.Errorf("unknown closure notice kind %q", notice.Kind)
	}
	return d.send(ctx, user.Email, subject, body)
}

func (d *SESDispatcher) SendInactivityWarning(ctx context.Context, user *domain.User, graceDays int) error {
	subject := "We miss you, and your data has a deadline"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour account has been inactive for a while. If you stay inactive for another %d days it will be scheduled for deletion under our data retention policy.\nSigning in resets the clock.\n",
		user.Name, graceDays,
	)
	return d.send(ctx, user.Email, subject, body)
}

func (d *SESDispatcher) send(ctx context.Context, to, subject, body string) error {
	start := time.Now()
	_, err := d.client.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Source: aws.String(d.from),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(to)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(subject)},
			Body: &ses.Body{
				Text: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	d.logger.Debug().Str("to", to).Str("subject", subject).Dur("took", time.Since(start)).Msg("email sent")
	return nil
}

var _ Dispatcher = (*SESDispatcher)(nil)

package notify

import (
	"context"
	"fmt"
	"time"

	"casewatch/api_outliers/internal/cases"
	"casewatch/api_outliers/internal/render"
	"casewatch/pkg/email"
	"casewatch/pkg/logging"
)

type EmailSender interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

type WebhookPoster interface {
	Post(ctx context.Context, payload any) (int, string, error)
}

// ChannelResult is the outcome of the single batch email.
type ChannelResult struct {
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message" yaml:"message"`
}

// NotificationResult is the outcome of one case's webhook call.
type NotificationResult struct {
	CaseID  string `json:"case_id" yaml:"case_id"`
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message" yaml:"message"`
}

// Report collects every channel outcome of one dispatch. Email is nil when
// the email channel did not run.
type Report struct {
	Email   *ChannelResult       `json:"email,omitempty" yaml:"email,omitempty"`
	Webhook []NotificationResult `json:"webhook" yaml:"webhook"`
}

// Failures counts failed outcomes across channels.
func (r Report) Failures() int {
	n := 0
	if r.Email != nil && !r.Email.Success {
		n++
	}
	for _, res := range r.Webhook {
		if !res.Success {
			n++
		}
	}
	return n
}

type Dispatcher struct {
	email   *EmailNotifier
	webhook *WebhookNotifier
	logger  logging.Logger
}

type DispatcherConfig struct {
	EmailNotifier   *EmailNotifier
	WebhookNotifier *WebhookNotifier
	Logger          logging.Logger
}

// NewDispatcher wires the channels. A nil notifier disables that channel.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		email:   cfg.EmailNotifier,
		webhook: cfg.WebhookNotifier,
		logger:  cfg.Logger,
	}
}

// Dispatch sends the batch email and then one webhook call per record.
// Nothing is sent for an empty record set.
func (d *Dispatcher) Dispatch(ctx context.Context, records []cases.CaseRecord) Report {
	report := Report{Webhook: []NotificationResult{}}
	if len(records) == 0 {
		return report
	}

	if d.email != nil {
		result := d.email.Notify(ctx, records)
		report.Email = &result
	}
	if d.webhook != nil {
		report.Webhook = d.webhook.NotifyAll(ctx, records)
	}

	d.logger.WithFields(logging.Fields{
		"cases":    len(records),
		"failures": report.Failures(),
	}).Info("Outlier notifications dispatched")
	return report
}

const emailSendTimeout = 30 * time.Second

type EmailNotifier struct {
	sender     EmailSender
	from       string
	recipients []string
	logger     logging.Logger
	metrics    *Metrics
}

func NewEmailNotifier(sender EmailSender, from string, recipients []string, logger logging.Logger, metrics *Metrics) *EmailNotifier {
	return &EmailNotifier{
		sender:     sender,
		from:       from,
		recipients: recipients,
		logger:     logger,
		metrics:    metrics,
	}
}

// Notify sends one email covering every record. Failures are reported in the
// result, never returned.
func (n *EmailNotifier) Notify(ctx context.Context, records []cases.CaseRecord) ChannelResult {
	htmlBody, err := render.HTML(records)
	if err != nil {
		return n.fail(err)
	}
	textBody, err := render.Text(records)
	if err != nil {
		return n.fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, emailSendTimeout)
	defer cancel()

	messageID, err := n.sender.Send(ctx, email.Message{
		From:    n.from,
		To:      n.recipients,
		Subject: render.Subject,
		HTML:    htmlBody,
		Text:    textBody,
	})
	if err != nil {
		return n.fail(err)
	}

	n.metrics.IncNotification(channelEmail, statusSuccess)
	n.logger.WithFields(logging.Fields{
		"message_id": messageID,
		"recipients": len(n.recipients),
		"cases":      len(records),
	}).Info("Outlier alert email sent")

	return ChannelResult{
		Success: true,
		Message: "Email sent successfully. MessageId: " + messageID,
	}
}

func (n *EmailNotifier) fail(err error) ChannelResult {
	n.metrics.IncNotification(channelEmail, statusFailure)
	n.logger.WithFields(logging.Fields{
		"error": err.Error(),
	}).Error("Failed to send outlier alert email")
	return ChannelResult{Message: "Failed to send email: " + err.Error()}
}

type WebhookNotifier struct {
	poster  WebhookPoster
	domain  string
	logger  logging.Logger
	metrics *Metrics
}

func NewWebhookNotifier(poster WebhookPoster, agentDomain string, logger logging.Logger, metrics *Metrics) *WebhookNotifier {
	return &WebhookNotifier{
		poster:  poster,
		domain:  agentDomain,
		logger:  logger,
		metrics: metrics,
	}
}

// NotifyAll posts one payload per record, in order. The result at index i
// belongs to records[i].
func (n *WebhookNotifier) NotifyAll(ctx context.Context, records []cases.CaseRecord) []NotificationResult {
	results := make([]NotificationResult, 0, len(records))
	for _, record := range records {
		results = append(results, n.notify(ctx, record))
	}
	return results
}

func (n *WebhookNotifier) notify(ctx context.Context, record cases.CaseRecord) NotificationResult {
	payload := render.Payload(record, n.domain)
	result := NotificationResult{CaseID: record.CaseID}

	status, body, err := n.poster.Post(ctx, payload)
	switch {
	case err != nil:
		result.Message = "Failed to send webhook notification: " + err.Error()
	case status < 200 || status > 299:
		result.Message = fmt.Sprintf("Failed to send webhook notification: request returned an error %d, the response is: %s", status, body)
	default:
		result.Success = true
		result.Message = "Webhook notification sent to " + payload.User
	}

	if result.Success {
		n.metrics.IncNotification(channelWebhook, statusSuccess)
		n.logger.WithField("case_id", record.CaseID).Debug("Webhook notification sent")
	} else {
		n.metrics.IncNotification(channelWebhook, statusFailure)
		n.logger.WithFields(logging.Fields{
			"case_id": record.CaseID,
			"status":  status,
			"error":   result.Message,
		}).Warn("Webhook notification failed")
	}
	return result
}

package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"casewatch/pkg/clients"
	"casewatch/pkg/clients/webhook"
	"casewatch/pkg/config"
	"casewatch/pkg/email"
	"casewatch/pkg/logging"
)

const (
	ProviderSMTP = "smtp"
	ProviderSES  = "ses"
)

type Config struct {
	Provider   string `validate:"omitempty,oneof=smtp ses"`
	SMTP       email.Config
	AWSRegion  string
	Recipients []string `validate:"dive,email"`

	WebhookURL     string `validate:"omitempty,url"`
	WebhookTimeout time.Duration
	// AgentDomain is appended to agent logins to form the webhook "user" handle.
	AgentDomain string `validate:"omitempty,fqdn"`

	EmailEnabled   bool
	WebhookEnabled bool
}

func LoadConfig() Config {
	return Config{
		Provider: strings.ToLower(config.GetEnv("EMAIL_PROVIDER", ProviderSMTP)),
		SMTP: email.Config{
			Host:     config.GetEnv("SMTP_HOST", ""),
			Port:     config.GetEnv("SMTP_PORT", "587"),
			User:     config.GetEnv("SMTP_USER", ""),
			Password: config.GetEnv("SMTP_PASSWORD", ""),
			From:     config.GetEnv("FROM_EMAIL", "noreply@casewatch.local"),
			FromName: config.GetEnv("FROM_NAME", ""),
		},
		AWSRegion:      config.GetEnv("AWS_REGION", ""),
		Recipients:     config.GetEnvList("TO_EMAILS", nil),
		WebhookURL:     config.GetEnv("WEBHOOK_URL", ""),
		WebhookTimeout: config.GetEnvDuration("WEBHOOK_TIMEOUT", clients.DefaultCallTimeout),
		AgentDomain:    config.GetEnv("AGENT_EMAIL_DOMAIN", "amazon.com"),
		EmailEnabled:   config.GetEnvBool("NOTIFY_EMAIL", true),
		WebhookEnabled: config.GetEnvBool("NOTIFY_WEBHOOK", true),
	}
}

// Validate checks the format of the configured addresses and endpoint.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("notification config validation failed: %w", err)
	}
	return nil
}

// RequiredSettings lists the settings each enabled channel needs, for health reporting.
func (c Config) RequiredSettings() map[string]string {
	settings := map[string]string{}
	if c.EmailEnabled {
		settings["TO_EMAILS"] = strings.Join(c.Recipients, ",")
		settings["FROM_EMAIL"] = c.SMTP.From
		if c.Provider == ProviderSMTP {
			settings["SMTP_HOST"] = c.SMTP.Host
		}
	}
	if c.WebhookEnabled {
		settings["WEBHOOK_URL"] = c.WebhookURL
	}
	return settings
}

// NewEmailSender builds the transport selected by Provider.
func NewEmailSender(ctx context.Context, cfg Config) (EmailSender, error) {
	switch cfg.Provider {
	case ProviderSMTP, "":
		return email.NewSender(cfg.SMTP), nil
	case ProviderSES:
		sender, err := email.NewSESSenderFromDefaultConfig(ctx, cfg.AWSRegion, cfg.SMTP.From)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q (want %s or %s)", cfg.Provider, ProviderSMTP, ProviderSES)
	}
}

// NewWebhookPoster builds the JSON client for the configured endpoint.
func NewWebhookPoster(cfg Config) (*webhook.Client, error) {
	return webhook.NewClient(cfg.WebhookURL, webhook.WithTimeout(cfg.WebhookTimeout))
}

// NewDispatcherFromConfig builds a dispatcher with every enabled channel.
// An enabled webhook channel without a URL is skipped; an invalid URL is an error.
func NewDispatcherFromConfig(ctx context.Context, cfg Config, logger logging.Logger, metrics *Metrics) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dispatcherConfig := DispatcherConfig{Logger: logger}

	if cfg.EmailEnabled {
		sender, err := NewEmailSender(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if c, ok := sender.(interface{ IsConfigured() bool }); ok && !c.IsConfigured() {
			logger.Warn("Email sender is missing SMTP_HOST or FROM_EMAIL, sends will fail")
		}
		dispatcherConfig.EmailNotifier = NewEmailNotifier(sender, cfg.SMTP.From, cfg.Recipients, logger, metrics)
		logger.WithFields(logging.Fields{
			"provider":   cfg.Provider,
			"recipients": len(cfg.Recipients),
		}).Info("Email notifications enabled")
	}

	switch {
	case cfg.WebhookEnabled && cfg.WebhookURL == "":
		logger.Warn("Webhook notifications enabled but WEBHOOK_URL is not set, skipping")
	case cfg.WebhookEnabled:
		client, err := NewWebhookPoster(cfg)
		if err != nil {
			return nil, err
		}
		dispatcherConfig.WebhookNotifier = NewWebhookNotifier(client, cfg.AgentDomain, logger, metrics)
		logger.WithFields(logging.Fields{
			"url":     client.RedactedURL(),
			"timeout": cfg.WebhookTimeout.String(),
		}).Info("Webhook notifications enabled")
	}

	return NewDispatcher(dispatcherConfig), nil
}

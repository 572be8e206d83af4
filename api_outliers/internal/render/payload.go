package render

import (
	"fmt"
	"strings"

	"casewatch/api_outliers/internal/cases"
)

// WebhookPayload is the per-case document posted to the chat workflow.
// Field names are fixed by the workflow's input schema.
type WebhookPayload struct {
	Message     string `json:"message"`
	CaseDetails string `json:"Case_details"`
	TotalTime   string `json:"Total_time"`
	User        string `json:"user"`
}

// Payload builds the webhook document for one case. The agent's contact
// handle is the login at domain.
func Payload(record cases.CaseRecord, domain string) WebhookPayload {
	return WebhookPayload{
		Message: fmt.Sprintf("Quick Actions Needed:\n"+
			"• Review case: [Case Link]%s\n"+
			"• Update any related tickets\n"+
			"• Drive next steps\n", record.CaseURL),
		CaseDetails: fmt.Sprintf("Case Details:\n• Status: %s\n", record.StatusCode),
		TotalTime:   FormatDuration(record.TotalTime),
		User:        AgentHandle(record.AgentLogin, domain),
	}
}

// AgentHandle returns login@domain.
func AgentHandle(login, domain string) string {
	return login + "@" + strings.TrimPrefix(domain, "@")
}

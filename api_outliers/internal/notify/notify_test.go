package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casewatch/api_outliers/internal/cases"
	"casewatch/api_outliers/internal/render"
	"casewatch/pkg/clients/webhook"
	"casewatch/pkg/email"
)

type emailSenderStub struct {
	calls []email.Message
	id    string
	err   error
}

func (s *emailSenderStub) Send(ctx context.Context, msg email.Message) (string, error) {
	s.calls = append(s.calls, msg)
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

type webhookResponse struct {
	status int
	body   string
	err    error
}

// webhookPosterStub answers by case user handle; unknown users get 200.
type webhookPosterStub struct {
	responses map[string]webhookResponse
	payloads  []render.WebhookPayload
}

func (s *webhookPosterStub) Post(ctx context.Context, payload any) (int, string, error) {
	p := payload.(render.WebhookPayload)
	s.payloads = append(s.payloads, p)
	if resp, ok := s.responses[p.User]; ok {
		return resp.status, resp.body, resp.err
	}
	return http.StatusOK, "ok", nil
}

func testRecords() []cases.CaseRecord {
	return []cases.CaseRecord{
		{CaseID: "C-1", CaseURL: "https://cc.example.com/C-1", AgentLogin: "alice", OpsSite: "SEA", TotalTime: 4.0, StatusCode: "WIP"},
		{CaseID: "C-2", CaseURL: "https://cc.example.com/C-2", AgentLogin: "bob", OpsSite: "DUB", TotalTime: 5.26, StatusCode: "PMA"},
		{CaseID: "C-3", CaseURL: "https://cc.example.com/C-3", AgentLogin: "carol", OpsSite: "IAD", TotalTime: 9.9, StatusCode: "RES"},
	}
}

func newTestMetrics() *Metrics {
	return &Metrics{
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_notifications_total",
			Help: "test",
		}, []string{"channel", "status"}),
	}
}

func TestEmailNotifierSendsOneBatch(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sender := &emailSenderStub{id: "<abc@example.com>"}
	metrics := newTestMetrics()
	notifier := NewEmailNotifier(sender, "alerts@example.com", []string{"ops@example.com", "lead@example.com"}, logger, metrics)

	result := notifier.Notify(context.Background(), testRecords())

	assert.True(t, result.Success)
	assert.Equal(t, "Email sent successfully. MessageId: <abc@example.com>", result.Message)
	require.Len(t, sender.calls, 1)
	msg := sender.calls[0]
	assert.Equal(t, render.Subject, msg.Subject)
	assert.Equal(t, "alerts@example.com", msg.From)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, msg.To)
	assert.Contains(t, msg.HTML, ">C-3</a>")
	assert.Contains(t, msg.Text, "Case ID: C-2 - https://cc.example.com/C-2")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("email", "success")))
}

func TestEmailNotifierConvertsTransportFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sender := &emailSenderStub{err: errors.New("dial smtp: connection refused")}
	metrics := newTestMetrics()
	notifier := NewEmailNotifier(sender, "alerts@example.com", []string{"ops@example.com"}, logger, metrics)

	result := notifier.Notify(context.Background(), testRecords())

	assert.False(t, result.Success)
	assert.Equal(t, "Failed to send email: dial smtp: connection refused", result.Message)
	assert.Len(t, sender.calls, 1, "no retry")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("email", "failure")))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Failed to send outlier alert email", hook.LastEntry().Message)
}

func TestWebhookNotifierResultsFollowInputOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	poster := &webhookPosterStub{}
	notifier := NewWebhookNotifier(poster, "example.com", logger, nil)

	results := notifier.NotifyAll(context.Background(), testRecords())

	require.Len(t, results, 3)
	for i, rec := range testRecords() {
		assert.Equal(t, rec.CaseID, results[i].CaseID)
		assert.True(t, results[i].Success)
	}
	assert.Equal(t, "Webhook notification sent to alice@example.com", results[0].Message)
	require.Len(t, poster.payloads, 3)
	assert.Equal(t, "5.3", poster.payloads[1].TotalTime)
}

func TestWebhookNotifierIsolatesFailures(t *testing.T) {
	logger, _ := test.NewNullLogger()
	poster := &webhookPosterStub{responses: map[string]webhookResponse{
		"alice@example.com": {err: errors.New("post webhook: connection reset")},
		"bob@example.com":   {status: http.StatusBadRequest, body: `{"error":"invalid_payload"}`},
	}}
	metrics := newTestMetrics()
	notifier := NewWebhookNotifier(poster, "example.com", logger, metrics)

	results := notifier.NotifyAll(context.Background(), testRecords())

	require.Len(t, results, 3)
	assert.Equal(t, NotificationResult{
		CaseID:  "C-1",
		Message: "Failed to send webhook notification: post webhook: connection reset",
	}, results[0])
	assert.Equal(t, NotificationResult{
		CaseID:  "C-2",
		Message: `Failed to send webhook notification: request returned an error 400, the response is: {"error":"invalid_payload"}`,
	}, results[1])
	assert.Equal(t, NotificationResult{
		CaseID:  "C-3",
		Success: true,
		Message: "Webhook notification sent to carol@example.com",
	}, results[2])
	assert.Len(t, poster.payloads, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("webhook", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("webhook", "success")))
}

func TestWebhookNotifierTreatsNon2xxAsFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	for _, status := range []int{http.StatusMovedPermanently, http.StatusNotFound, http.StatusServiceUnavailable} {
		poster := &webhookPosterStub{responses: map[string]webhookResponse{
			"alice@example.com": {status: status, body: "nope"},
		}}
		results := NewWebhookNotifier(poster, "example.com", logger, nil).NotifyAll(context.Background(), testRecords()[:1])
		require.Len(t, results, 1)
		assert.False(t, results[0].Success, "status %d", status)
	}

	poster := &webhookPosterStub{responses: map[string]webhookResponse{
		"alice@example.com": {status: http.StatusNoContent},
	}}
	results := NewWebhookNotifier(poster, "example.com", logger, nil).NotifyAll(context.Background(), testRecords()[:1])
	assert.True(t, results[0].Success)
}

func TestWebhookNotifierAgainstHTTPEndpoint(t *testing.T) {
	var mu sync.Mutex
	var users []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]string
		_ = json.Unmarshal(raw, &payload)

		mu.Lock()
		users = append(users, payload["user"])
		mu.Unlock()

		if payload["user"] == "bob@example.com" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal error"))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, err := webhook.NewClient(server.URL)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	results := NewWebhookNotifier(client, "example.com", logger, nil).NotifyAll(context.Background(), testRecords())

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Message, "500")
	assert.Contains(t, results[1].Message, "internal error")
	assert.True(t, results[2].Success)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com", "carol@example.com"}, users)
}

func TestDispatcherSkipsEmptySet(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sender := &emailSenderStub{}
	poster := &webhookPosterStub{}
	dispatcher := NewDispatcher(DispatcherConfig{
		EmailNotifier:   NewEmailNotifier(sender, "a@example.com", []string{"b@example.com"}, logger, nil),
		WebhookNotifier: NewWebhookNotifier(poster, "example.com", logger, nil),
		Logger:          logger,
	})

	report := dispatcher.Dispatch(context.Background(), nil)

	assert.Nil(t, report.Email)
	assert.NotNil(t, report.Webhook)
	assert.Empty(t, report.Webhook)
	assert.Empty(t, sender.calls)
	assert.Empty(t, poster.payloads)
}

func TestDispatcherEmailFailureDoesNotBlockWebhooks(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sender := &emailSenderStub{err: errors.New("ses send email: throttled")}
	poster := &webhookPosterStub{}
	dispatcher := NewDispatcher(DispatcherConfig{
		EmailNotifier:   NewEmailNotifier(sender, "a@example.com", []string{"b@example.com"}, logger, nil),
		WebhookNotifier: NewWebhookNotifier(poster, "example.com", logger, nil),
		Logger:          logger,
	})

	report := dispatcher.Dispatch(context.Background(), testRecords())

	require.NotNil(t, report.Email)
	assert.False(t, report.Email.Success)
	assert.NotEmpty(t, report.Email.Message)
	require.Len(t, report.Webhook, 3)
	for _, res := range report.Webhook {
		assert.True(t, res.Success)
	}
	assert.Equal(t, 1, report.Failures())
}

func TestDispatcherDisabledChannels(t *testing.T) {
	logger, _ := test.NewNullLogger()
	poster := &webhookPosterStub{}
	dispatcher := NewDispatcher(DispatcherConfig{
		WebhookNotifier: NewWebhookNotifier(poster, "example.com", logger, nil),
		Logger:          logger,
	})

	report := dispatcher.Dispatch(context.Background(), testRecords())
	assert.Nil(t, report.Email)
	assert.Len(t, report.Webhook, 3)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), `"email"`))
	assert.Contains(t, string(raw), `"case_id":"C-1"`)
}

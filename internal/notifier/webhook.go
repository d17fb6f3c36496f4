package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// WebhookNotifier POSTs each event as JSON to a configured endpoint,
// typically the realtime gateway that fans updates out to operator consoles.
// Failures are logged and dropped; the roster mutation has already happened.
type WebhookNotifier struct {
	url        string
	token      string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewWebhookNotifier(url, token string, log *logrus.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

func (n *WebhookNotifier) Publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.log.WithError(err).Warn("notifier: marshal event")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		n.log.WithError(err).Warn("notifier: create request")
		return
	}
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.WithError(err).WithField("type", ev.Type).Warn("notifier: post event")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.log.WithFields(logrus.Fields{
			"type":   ev.Type,
			"status": resp.StatusCode,
		}).Warn("notifier: event rejected")
	}
}

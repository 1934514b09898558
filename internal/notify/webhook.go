package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// webhookTimeout bounds a single delivery attempt.
const webhookTimeout = 5 * time.Second

// WebhookClient posts events as JSON to an HTTP endpoint. Deliveries
// happen on background goroutines and failures are logged, not
// returned; a dead endpoint must never affect a switch.
type WebhookClient struct {
	url    string
	client *http.Client
	log    *zap.Logger
	wg     sync.WaitGroup
}

// NewWebhookClient creates a client for the given endpoint URL.
func NewWebhookClient(url string, log *zap.Logger) *WebhookClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookClient{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		log:    log,
	}
}

// Post delivers the event asynchronously.
func (c *WebhookClient) Post(ev Event) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.deliver(ev)
	}()
}

// Flush waits for in-flight deliveries. Intended for shutdown paths.
func (c *WebhookClient) Flush() {
	c.wg.Wait()
}

func (c *WebhookClient) deliver(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.log.Warn("marshal webhook event", zap.Error(err))
		return
	}

	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		c.log.Warn("post webhook event", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.log.Warn("webhook rejected event",
			zap.Int("status", resp.StatusCode),
			zap.String("run_id", ev.RunID))
	}
}

package core

// ConfirmationCallback posts a JSON notification to the configured
// callback_address/callback_port/callback_target whenever a block confirms
// (spec §6). This is the one ambient piece deliberately built on
// net/http rather than a pack dependency: it is a single best-effort
// fire-and-forget POST with no retry, streaming, or connection-pooling
// need beyond what http.Client already gives for free, so none of the
// pack's HTTP or RPC libraries earn their weight here.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// callbackPayload is the JSON body posted per confirmed block.
type callbackPayload struct {
	Account     string `json:"account"`
	Hash        string `json:"hash"`
	Amount      string `json:"amount"`
	IsSend      bool   `json:"is_send"`
	Representative string `json:"representative,omitempty"`
}

// CallbackNotifier posts confirmation notifications to a fixed endpoint.
type CallbackNotifier struct {
	client  *http.Client
	url     string
	log     *logrus.Logger
}

// NewCallbackNotifier builds a notifier posting to
// http://address:port/target. A zero-value address disables it (Notify
// becomes a no-op).
func NewCallbackNotifier(address string, port int, target string, log *logrus.Logger) *CallbackNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var url string
	if address != "" {
		url = fmt.Sprintf("http://%s:%d%s", address, port, target)
	}
	return &CallbackNotifier{
		client: &http.Client{Timeout: 5 * time.Second},
		url:    url,
		log:    log,
	}
}

// Notify fires a best-effort POST describing a confirmed block. Errors are
// logged, not returned: a down or slow callback target must never block
// ledger processing.
func (c *CallbackNotifier) Notify(account Account, hash U256, amount U128, isSend bool, representative Account) {
	if c.url == "" {
		return
	}
	payload := callbackPayload{
		Account: EncodeAccount("btcb", account),
		Hash:    hash.Hex(),
		Amount:  amount.DecimalString(),
		IsSend:  isSend,
	}
	if !representative.IsZero() {
		payload.Representative = EncodeAccount("btcb", representative)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.log.WithError(err).Error("callback: marshal failed")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			c.log.WithError(err).Error("callback: request build failed")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.client.Do(req)
		if err != nil {
			c.log.WithError(err).Warn("callback: post failed")
			return
		}
		resp.Body.Close()
	}()
}

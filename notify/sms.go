package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
)

const defaultSMSTimeout = 15 * time.Second

// HTTPSMSNotifier posts SMS messages as JSON to a gateway endpoint:
//
//	{"route":"otp","numbers":"15550100","message":"...","sender":"..."}
//
// The API key travels in the Authorization header. Any non-200 answer is a
// failed delivery.
type HTTPSMSNotifier struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

var _ goVerify.Notifier = (*HTTPSMSNotifier)(nil)

func NewHTTPSMSNotifier(apiKey, baseURL, sender string) *HTTPSMSNotifier {
	return &HTTPSMSNotifier{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultSMSTimeout},
	}
}

type smsRequest struct {
	Route   string `json:"route"`
	Numbers string `json:"numbers"`
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

func (n *HTTPSMSNotifier) Send(ctx context.Context, msg goVerify.Message) error {
	if msg.Channel != goVerify.ChannelSMS {
		return goVerify.ErrNotifierUnavailable
	}
	if n.APIKey == "" || n.BaseURL == "" {
		return goVerify.ErrNotifierUnavailable
	}

	raw, err := json.Marshal(smsRequest{
		Route:   "otp",
		Numbers: strings.TrimPrefix(msg.Destination, "+"),
		Message: msg.Body,
		Sender:  n.Sender,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", n.APIKey)

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms: %w: status=%d", errGatewayRejected, resp.StatusCode)
	}
	return nil
}

var errGatewayRejected = errors.New("gateway rejected message")

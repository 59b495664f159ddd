// Package ciba delivers the tokens of backchannel authentications to clients
// registered with the push token delivery mode.
package ciba

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/luikyv/go-authorize/pkg/goidc"
)

var _ goidc.PushDeliverer = (*HTTPPushDeliverer)(nil)

// HTTPPushDeliverer posts the notification to the client notification
// endpoint authenticating with the client notification token.
type HTTPPushDeliverer struct {
	client *http.Client
}

// NewHTTPPushDeliverer returns a deliverer using client. When client is nil,
// http.DefaultClient is used.
func NewHTTPPushDeliverer(client *http.Client) *HTTPPushDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPushDeliverer{client: client}
}

func (d *HTTPPushDeliverer) Deliver(ctx context.Context, notification goidc.PushNotification) error {
	if notification.Endpoint == "" {
		return errors.New("the client has no notification endpoint")
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("could not encode the notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notification.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not build the notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+notification.ClientNotificationToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if !slices.Contains([]int{http.StatusNoContent, http.StatusOK}, resp.StatusCode) {
		return fmt.Errorf("sending notification resulted in status %d", resp.StatusCode)
	}

	return nil
}

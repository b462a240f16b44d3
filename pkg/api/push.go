package api

import (
	"context"
	"net/http"
)

const pushSubscribePath = "/account/api/push/subscribe/"

// PushSubscriptionKeys are the browser-generated encryption keys of a
// push subscription.
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is the payload registered with the server so it can
// address push messages to this client.
type PushSubscription struct {
	Endpoint   string               `json:"endpoint"`
	Keys       PushSubscriptionKeys `json:"keys"`
	DeviceName string               `json:"device_name"`
}

// RegisterPushSubscription registers a push subscription.
func (c *Client) RegisterPushSubscription(ctx context.Context, sub PushSubscription) error {
	if sub.DeviceName == "" {
		sub.DeviceName = "Unknown Device"
	}
	_, err := c.mutate(ctx, http.MethodPost, pushSubscribePath, sub)
	return err
}

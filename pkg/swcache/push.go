package swcache

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// DefaultPushTitle is shown when a push payload carries no title.
const DefaultPushTitle = "WiniMarket"

// PushPayload is the optional JSON body of a push message.
// All fields are optional; ParsePushPayload applies the fallbacks.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// ParsePushPayload decodes a push message body. A missing or malformed
// payload is not an error: the notification falls back to the default
// title, an empty body, and the root URL.
func ParsePushPayload(data []byte) PushPayload {
	payload := PushPayload{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Debug().Err(err).Msg("Malformed push payload, using defaults")
			payload = PushPayload{}
		}
	}

	if payload.Title == "" {
		payload.Title = DefaultPushTitle
	}
	if payload.URL == "" {
		payload.URL = "/"
	}

	return payload
}

// Notifier displays a system notification for a push message.
type Notifier interface {
	Show(ctx context.Context, title, body, url string) error
	Dismiss(ctx context.Context, url string) error
}

// WindowOpener focuses an existing window at a URL or opens a new one.
type WindowOpener interface {
	FocusOrOpen(ctx context.Context, url string) error
}

// NoopNotifier discards notifications (for headless operation and tests).
type NoopNotifier struct{}

func (NoopNotifier) Show(context.Context, string, string, string) error { return nil }
func (NoopNotifier) Dismiss(context.Context, string) error              { return nil }

// HandlePush parses an incoming push message and displays a notification.
// Side effect only; the engine owns no push state.
func (e *Engine) HandlePush(ctx context.Context, data []byte, notifier Notifier) error {
	payload := ParsePushPayload(data)

	e.logger.Debug().
		Str("title", payload.Title).
		Str("url", payload.URL).
		Msg("Push message received")

	return notifier.Show(ctx, payload.Title, payload.Body, payload.URL)
}

// HandleNotificationClick focuses or opens a window at the notification's
// URL and dismisses the notification.
func (e *Engine) HandleNotificationClick(ctx context.Context, url string, opener WindowOpener, notifier Notifier) error {
	if url == "" {
		url = "/"
	}

	if err := opener.FocusOrOpen(ctx, url); err != nil {
		return err
	}

	return notifier.Dismiss(ctx, url)
}

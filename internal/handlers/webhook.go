package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

// webhookProcessTimeout bounds one inbound message's processing, including
// pacing delays and downstream calls.
const webhookProcessTimeout = 60 * time.Second

// WebhookPayload is the Cloud API notification envelope
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Metadata         struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []IncomingMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// VerifyWhatsAppWebhook answers Meta's GET verification handshake
func (a *App) VerifyWhatsAppWebhook(r *fastglue.Request) error {
	args := r.RequestCtx.QueryArgs()
	mode := string(args.Peek("hub.mode"))
	token := string(args.Peek("hub.verify_token"))
	challenge := args.Peek("hub.challenge")

	if mode == "subscribe" && token == a.Config.WhatsApp.WebhookVerifyToken {
		r.RequestCtx.SetStatusCode(fasthttp.StatusOK)
		r.RequestCtx.SetBody(challenge)
		return nil
	}

	a.Log.Warn("Webhook verification failed", "mode", mode)
	r.RequestCtx.SetStatusCode(fasthttp.StatusForbidden)
	return nil
}

// ReceiveWhatsAppWebhook accepts a Cloud API notification. The provider
// redelivers on anything but a fast 200, so processing is detached and the
// response never depends on the pipeline outcome.
func (a *App) ReceiveWhatsAppWebhook(r *fastglue.Request) error {
	var payload WebhookPayload
	if err := json.Unmarshal(r.RequestCtx.PostBody(), &payload); err != nil {
		a.Log.Warn("Failed to decode webhook payload", "error", err)
		return r.SendEnvelope(map[string]string{"status": "ignored"})
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			phoneID := change.Value.Metadata.PhoneNumberID

			profileName := ""
			if len(change.Value.Contacts) > 0 {
				profileName = change.Value.Contacts[0].Profile.Name
			}

			for _, msg := range change.Value.Messages {
				if msg.Type != "interactive" {
					a.Log.Debug("Ignoring non-interactive message", "type", msg.Type, "from", msg.From)
					continue
				}

				go func(phoneID string, msg IncomingMessage, profileName string) {
					ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
					defer cancel()

					result := a.HandleInteractiveMessage(ctx, phoneID, msg, profileName)
					if !result.Success {
						a.Log.Warn("Interactive message processing failed",
							"message", result.Message,
							"from", msg.From,
							"message_id", msg.ID,
						)
					}
				}(phoneID, msg, profileName)
			}
		}
	}

	return r.SendEnvelope(map[string]string{"status": "received"})
}

package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Account holds the per-channel credentials for the Cloud API
type Account struct {
	PhoneID     string
	BusinessID  string
	APIVersion  string
	AccessToken string
}

// Button is one interactive reply button
type Button struct {
	ID    string
	Title string
}

// ListRow is one selectable row of an interactive list message
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows under an optional section title
type ListSection struct {
	Title string
	Rows  []ListRow
}

// MetaAPIResponse represents a successful messages API response
type MetaAPIResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MetaAPIError represents an error response from the Meta API
type MetaAPIError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		ErrorUserMsg string `json:"error_user_msg"`
		ErrorData    struct {
			Details string `json:"details"`
		} `json:"error_data"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// Meta's interactive message limits
const (
	maxReplyButtons   = 3
	maxListRows       = 10
	maxButtonTitleLen = 20
	maxRowTitleLen    = 24
)

// truncate shortens s to at most n characters without splitting a rune.
// Translated titles are often multi-byte.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// postMessage sends a payload to the messages endpoint and returns the
// provider message ID.
func (c *Client) postMessage(ctx context.Context, account *Account, payload map[string]interface{}) (string, error) {
	url := c.buildMessagesURL(account)

	respBody, err := c.doRequest(ctx, http.MethodPost, url, payload, account.AccessToken)
	if err != nil {
		return "", err
	}

	var resp MetaAPIResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Messages) == 0 {
		return "", fmt.Errorf("no message ID in response")
	}

	return resp.Messages[0].ID, nil
}

// SendTextMessage sends a plain text message
func (c *Client) SendTextMessage(ctx context.Context, account *Account, phoneNumber, text string) (string, error) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                phoneNumber,
		"type":              "text",
		"text": map[string]interface{}{
			"body": text,
		},
	}

	c.Log.Debug("Sending text message", "phone", phoneNumber)

	messageID, err := c.postMessage(ctx, account, payload)
	if err != nil {
		return "", fmt.Errorf("failed to send text message: %w", err)
	}

	c.Log.Info("Text message sent", "message_id", messageID, "phone", phoneNumber)
	return messageID, nil
}

// SendImageByLink sends an image message referencing a public URL
func (c *Client) SendImageByLink(ctx context.Context, account *Account, phoneNumber, imageURL, caption string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("image URL is required")
	}

	image := map[string]interface{}{
		"link": imageURL,
	}
	if caption != "" {
		image["caption"] = caption
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                phoneNumber,
		"type":              "image",
		"image":             image,
	}

	c.Log.Debug("Sending image message", "phone", phoneNumber, "url", imageURL)

	messageID, err := c.postMessage(ctx, account, payload)
	if err != nil {
		return "", fmt.Errorf("failed to send image message: %w", err)
	}

	c.Log.Info("Image message sent", "message_id", messageID, "phone", phoneNumber)
	return messageID, nil
}

// SendInteractiveButtons sends an interactive message with reply buttons.
// Up to 3 buttons use the native button format; 4-10 fall back to a list
// message since the platform caps reply buttons at 3.
func (c *Client) SendInteractiveButtons(ctx context.Context, account *Account, phoneNumber, bodyText string, buttons []Button) (string, error) {
	if len(buttons) == 0 {
		return "", fmt.Errorf("at least one button is required")
	}
	if len(buttons) > maxListRows {
		return "", fmt.Errorf("maximum 10 buttons allowed, got %d", len(buttons))
	}

	if len(buttons) > maxReplyButtons {
		rows := make([]ListRow, len(buttons))
		for i, b := range buttons {
			rows[i] = ListRow{ID: b.ID, Title: b.Title}
		}
		sections := []ListSection{{Rows: rows}}
		return c.SendInteractiveList(ctx, account, phoneNumber, bodyText, "", "Options", sections)
	}

	buttonList := make([]map[string]interface{}, len(buttons))
	for i, b := range buttons {
		buttonList[i] = map[string]interface{}{
			"type": "reply",
			"reply": map[string]interface{}{
				"id":    b.ID,
				"title": truncate(b.Title, maxButtonTitleLen),
			},
		}
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                phoneNumber,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type": "button",
			"body": map[string]interface{}{
				"text": bodyText,
			},
			"action": map[string]interface{}{
				"buttons": buttonList,
			},
		},
	}

	c.Log.Debug("Sending interactive buttons", "phone", phoneNumber, "buttons", len(buttons))

	messageID, err := c.postMessage(ctx, account, payload)
	if err != nil {
		return "", fmt.Errorf("failed to send interactive buttons: %w", err)
	}

	c.Log.Info("Interactive buttons sent", "message_id", messageID, "phone", phoneNumber)
	return messageID, nil
}

// SendInteractiveList sends an interactive list message. Rows are capped at
// 10 across all sections by the platform.
func (c *Client) SendInteractiveList(ctx context.Context, account *Account, phoneNumber, bodyText, footerText, buttonLabel string, sections []ListSection) (string, error) {
	if len(sections) == 0 {
		return "", fmt.Errorf("at least one section is required")
	}

	totalRows := 0
	sectionList := make([]map[string]interface{}, len(sections))
	for i, s := range sections {
		rows := make([]map[string]interface{}, len(s.Rows))
		for j, row := range s.Rows {
			r := map[string]interface{}{
				"id":    row.ID,
				"title": truncate(row.Title, maxRowTitleLen),
			}
			if row.Description != "" {
				r["description"] = row.Description
			}
			rows[j] = r
		}
		totalRows += len(s.Rows)

		section := map[string]interface{}{
			"rows": rows,
		}
		if s.Title != "" {
			section["title"] = truncate(s.Title, maxRowTitleLen)
		}
		sectionList[i] = section
	}

	if totalRows == 0 {
		return "", fmt.Errorf("at least one row is required")
	}
	if totalRows > maxListRows {
		return "", fmt.Errorf("maximum 10 rows allowed, got %d", totalRows)
	}

	if buttonLabel == "" {
		buttonLabel = "Select"
	}

	interactive := map[string]interface{}{
		"type": "list",
		"body": map[string]interface{}{
			"text": bodyText,
		},
		"action": map[string]interface{}{
			"button":   truncate(buttonLabel, maxButtonTitleLen),
			"sections": sectionList,
		},
	}
	if footerText != "" {
		interactive["footer"] = map[string]interface{}{
			"text": footerText,
		}
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                phoneNumber,
		"type":              "interactive",
		"interactive":       interactive,
	}

	c.Log.Debug("Sending interactive list", "phone", phoneNumber, "rows", totalRows)

	messageID, err := c.postMessage(ctx, account, payload)
	if err != nil {
		return "", fmt.Errorf("failed to send interactive list: %w", err)
	}

	c.Log.Info("Interactive list sent", "message_id", messageID, "phone", phoneNumber)
	return messageID, nil
}

// SendCTAURLButton sends an interactive message with a single URL button
func (c *Client) SendCTAURLButton(ctx context.Context, account *Account, phoneNumber, bodyText, buttonText, url string) (string, error) {
	if buttonText == "" || url == "" {
		return "", fmt.Errorf("button text and URL are required")
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                phoneNumber,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type": "cta_url",
			"body": map[string]interface{}{
				"text": bodyText,
			},
			"action": map[string]interface{}{
				"name": "cta_url",
				"parameters": map[string]interface{}{
					"display_text": truncate(buttonText, maxButtonTitleLen),
					"url":          url,
				},
			},
		},
	}

	c.Log.Debug("Sending CTA URL button", "phone", phoneNumber, "url", url)

	messageID, err := c.postMessage(ctx, account, payload)
	if err != nil {
		return "", fmt.Errorf("failed to send CTA URL button: %w", err)
	}

	c.Log.Info("CTA URL button sent", "message_id", messageID, "phone", phoneNumber)
	return messageID, nil
}

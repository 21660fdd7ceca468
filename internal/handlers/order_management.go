package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/sagarjadhav/tablemate/pkg/menuservice"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
)

// handleOrderManagement routes a tapped ordering button to its sub-flow.
// Every button carries the table name and action slug, so each tap is
// self-contained and survives restarts and re-scans.
func (a *App) handleOrderManagement(ctx context.Context, channel *models.Channel, conv *models.Conversation, buttonID string) Result {
	ba, err := ParseButtonAction(buttonID)
	if err != nil {
		a.Log.Warn("Malformed order button ID", "error", err, "button_id", buttonID)
		if _, sendErr := a.sendAndSaveTextMessage(ctx, channel, conv,
			"Sorry, we ran into a technical issue. Please scan the QR code at your table again."); sendErr != nil {
			a.Log.Error("Failed to send rescan message", "error", sendErr, "conversation_id", conv.ID)
		}
		return Result{Success: false, Message: "malformed order button ID"}
	}

	conv.SetMeta(models.MetaTableName, ba.Table)
	conv.SetMeta(models.MetaOrderActionID, ba.ActionID)
	if err := a.saveConversationMeta(conv); err != nil {
		a.Log.Error("Failed to persist order context", "error", err, "conversation_id", conv.ID)
	}

	action, err := a.getOrderActionCached(ctx, ba.ActionID)
	if err != nil {
		a.Log.Error("Order action lookup failed", "error", err, "slug", ba.ActionID)
		return Result{Success: false, Message: "order action lookup failed"}
	}
	if action == nil {
		// The action is the source of truth for menu data. Without it
		// there is nothing sensible to tell the customer.
		a.Log.Warn("Order action not found", "slug", ba.ActionID)
		return Result{Success: false, Message: "order action not found"}
	}

	switch ba.Kind {
	case KindCategory:
		return a.handleCategoryBrowse(ctx, channel, conv, action, ba)
	case KindMenu:
		return a.handleMenuDetail(ctx, channel, conv, action, ba)
	case KindAddToCart:
		return a.handleAddToCart(ctx, channel, conv, action, ba)
	case KindConfirm:
		return a.processOrderManagementWithAI(ctx, channel, conv, action, ba, "The customer wants to confirm their order.")
	case KindBack:
		return a.handleBackToCategories(ctx, channel, conv, action, ba)
	}

	return Result{Success: false, Message: fmt.Sprintf("unknown order button kind: %q", ba.Kind)}
}

// handleCategoryBrowse lists the menu items of a category. The menu
// service answers with either a structured list message or plain text.
func (a *App) handleCategoryBrowse(ctx context.Context, channel *models.Channel, conv *models.Conversation, action *models.OrderAction, ba *ButtonAction) Result {
	resp, err := a.Menu.GetMenus(ctx, channel.ChatbotID.String(), ba.ItemID)
	if err != nil {
		a.Log.Error("Menu fetch failed", "error", err, "category_id", ba.ItemID)
		return Result{Success: false, Message: "menu fetch failed"}
	}

	if resp.List == nil {
		if resp.Text == "" {
			return Result{Success: false, Message: "empty menu response"}
		}
		if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, resp.Text); err != nil {
			return Result{Success: false, Message: "failed to send menu text"}
		}
		return Result{Success: true, Message: "menu text sent"}
	}

	return a.sendCategoryList(ctx, channel, conv, action, ba, resp.List)
}

// sendCategoryList re-templates and sends a list message from the menu
// service. Labels are translated for non-English actions; row titles only
// when the operator opted in.
func (a *App) sendCategoryList(ctx context.Context, channel *models.Channel, conv *models.Conversation, action *models.OrderAction, ba *ButtonAction, list *menuservice.ListMessage) Result {
	lang := conv.MetaString(models.MetaLanguage)
	if lang == "" {
		lang = action.Language
	}

	body := a.maybeTranslate(ctx, list.Body, lang)
	footer := a.maybeTranslate(ctx, list.Footer, lang)
	buttonLabel := a.maybeTranslate(ctx, list.Button, lang)

	sections := make([]whatsapp.ListSection, 0, len(list.Sections))
	for _, src := range list.Sections {
		section := whatsapp.ListSection{
			Title: a.maybeTranslate(ctx, src.Title, lang),
		}
		for _, row := range src.Rows {
			title := row.Title
			description := row.Description
			if a.Config.Chatbot.TranslateMenuRows {
				title = a.maybeTranslate(ctx, title, lang)
				description = a.maybeTranslate(ctx, description, lang)
			}
			section.Rows = append(section.Rows, whatsapp.ListRow{
				ID:          FillButtonTemplate(row.ID, ba.Table, ba.ActionID),
				Title:       title,
				Description: description,
			})
		}
		sections = append(sections, section)
	}

	if _, err := a.sendAndSaveInteractiveList(ctx, channel, conv, body, footer, buttonLabel, sections); err != nil {
		a.Log.Error("Failed to send category list", "error", err, "conversation_id", conv.ID)
		return Result{Success: false, Message: "failed to send category list"}
	}
	return Result{Success: true, Message: "category list sent"}
}

// handleMenuDetail shows one item from the action's cached menu: formatted
// text, then the item image, then order/back buttons.
func (a *App) handleMenuDetail(ctx context.Context, channel *models.Channel, conv *models.Conversation, action *models.OrderAction, ba *ButtonAction) Result {
	item := action.FindMenuItem(ba.ItemID)
	if item == nil {
		// Not in the action's cached menu. The backend may still know it,
		// so try a live lookup before apologizing.
		fetched, err := a.Menu.GetMenuItem(ctx, channel.ChatbotID.String(), ba.ItemID, "")
		if err != nil {
			a.Log.Error("Menu item lookup failed", "error", err, "item_id", ba.ItemID)
		}
		if fetched != nil {
			item = &models.MenuItem{
				ID:          fetched.ID,
				Name:        fetched.Name,
				Description: fetched.Description,
				Price:       fetched.Price,
				Image:       fetched.ImageURL,
			}
		}
	}
	if item == nil {
		a.Log.Warn("Menu item not found", "item_id", ba.ItemID, "slug", action.Slug)
		if _, err := a.sendAndSaveTextMessage(ctx, channel, conv,
			"Sorry, that item is no longer on the menu."); err != nil {
			a.Log.Error("Failed to send missing item message", "error", err, "conversation_id", conv.ID)
		}
		return Result{Success: false, Message: "menu item not found"}
	}

	lang := conv.MetaString(models.MetaLanguage)
	if lang == "" {
		lang = action.Language
	}
	symbol := CurrencySymbol(a.conversationCurrency(conv, action))

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", item.Name)
	if item.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", a.maybeTranslate(ctx, item.Description, lang))
	}
	fmt.Fprintf(&b, "\n\nPrice: %s%.2f", symbol, item.Price)

	if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, b.String()); err != nil {
		a.Log.Error("Failed to send item detail", "error", err, "item_id", item.ID)
		return Result{Success: false, Message: "failed to send item detail"}
	}

	if item.Image != "" {
		if _, err := a.sendAndSaveImageMessage(ctx, channel, conv, item.Image, ""); err != nil {
			a.Log.Error("Failed to send item image", "error", err, "item_id", item.ID)
		} else {
			a.sleep(ctx, time.Duration(a.Config.Chatbot.MenuImageDelaySecs)*time.Second)
		}
	}

	qty := 1
	if raw := conv.MetaString(models.MetaCartQuantity); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			qty = n
		}
	}

	buttons := []whatsapp.Button{
		{
			ID:    ButtonAction{Kind: KindAddToCart, Table: ba.Table, ActionID: ba.ActionID, ItemID: item.ID, Quantity: qty}.Encode(),
			Title: a.maybeTranslate(ctx, "Order", lang),
		},
		{
			ID:    ButtonAction{Kind: KindBack, Table: ba.Table, ActionID: ba.ActionID}.Encode(),
			Title: a.maybeTranslate(ctx, "Back", lang),
		},
	}

	prompt := a.maybeTranslate(ctx, "What would you like to do?", lang)
	if _, err := a.sendAndSaveInteractiveButtons(ctx, channel, conv, prompt, buttons); err != nil {
		// The detail text already went out. Degrade to a typed fallback
		// instead of failing the whole request.
		a.Log.Error("Failed to send item buttons, degrading to text", "error", err, "item_id", item.ID)
		fallback := fmt.Sprintf("To order, reply 'order %s'.", item.Name)
		if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, fallback); err != nil {
			a.Log.Error("Failed to send fallback instruction", "error", err, "conversation_id", conv.ID)
		}
	}

	return Result{Success: true, Message: "item detail sent"}
}

// handleAddToCart adds an item and shows the cart. Quantity and pricing
// math belongs to the menu service, this side only formats.
func (a *App) handleAddToCart(ctx context.Context, channel *models.Channel, conv *models.Conversation, action *models.OrderAction, ba *ButtonAction) Result {
	resp, err := a.Menu.AddToCart(ctx, channel.ChatbotID.String(), ba.ItemID, ba.Quantity)
	if err != nil {
		a.Log.Error("Add to cart failed", "error", err, "item_id", ba.ItemID)
		a.sendPipelineError(ctx, channel, conv, err)
		return Result{Success: false, Message: "add to cart failed"}
	}

	conv.SetMeta(models.MetaCartQuantity, strconv.Itoa(ba.Quantity))
	if err := a.saveConversationMeta(conv); err != nil {
		a.Log.Error("Failed to persist cart quantity", "error", err, "conversation_id", conv.ID)
	}

	if resp.Cart == nil {
		if resp.Text != "" {
			if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, resp.Text); err != nil {
				return Result{Success: false, Message: "failed to send cart text"}
			}
			return Result{Success: true, Message: "cart text sent"}
		}
		// No structured cart and no text. Let the tool-calling path work
		// out what to tell the customer.
		return a.processOrderManagementWithAI(ctx, channel, conv, action, ba, "The customer added an item to their cart.")
	}

	symbol := CurrencySymbol(a.conversationCurrency(conv, action))
	cartText := formatCartSummary(resp.Cart, symbol)

	if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, cartText); err != nil {
		a.Log.Error("Failed to send cart summary", "error", err, "conversation_id", conv.ID)
		return Result{Success: false, Message: "failed to send cart summary"}
	}

	if len(resp.Buttons) == 0 {
		return a.processOrderManagementWithAI(ctx, channel, conv, action, ba, "The customer added an item to their cart.")
	}

	buttons := make([]whatsapp.Button, 0, len(resp.Buttons))
	for _, btn := range resp.Buttons {
		buttons = append(buttons, whatsapp.Button{
			ID:    FillButtonTemplate(btn.ID, ba.Table, ba.ActionID),
			Title: btn.Title,
		})
	}

	if _, err := a.sendAndSaveInteractiveButtons(ctx, channel, conv, "What's next?", buttons); err != nil {
		// The cart summary already reached the customer, keep the partial
		// success and only report the failing step.
		a.Log.Error("Failed to send cart buttons", "error", err, "conversation_id", conv.ID)
		return Result{Success: true, Message: "cart sent, buttons failed"}
	}

	return Result{Success: true, Message: "cart sent"}
}

// handleBackToCategories rebuilds the category list from the action's
// cached categories.
func (a *App) handleBackToCategories(ctx context.Context, channel *models.Channel, conv *models.Conversation, action *models.OrderAction, ba *ButtonAction) Result {
	if len(action.Categories) == 0 {
		a.Log.Warn("Order action has no categories", "slug", action.Slug)
		return Result{Success: false, Message: "no categories configured"}
	}

	lang := conv.MetaString(models.MetaLanguage)
	if lang == "" {
		lang = action.Language
	}

	section := whatsapp.ListSection{
		Title: a.maybeTranslate(ctx, "Categories", lang),
	}
	for _, cat := range action.Categories {
		section.Rows = append(section.Rows, whatsapp.ListRow{
			ID:    ButtonAction{Kind: KindCategory, Table: ba.Table, ActionID: ba.ActionID, ItemID: cat.ID}.Encode(),
			Title: cat.Name,
		})
	}

	body := a.maybeTranslate(ctx, "What would you like to browse?", lang)
	buttonLabel := a.maybeTranslate(ctx, "View menu", lang)

	if _, err := a.sendAndSaveInteractiveList(ctx, channel, conv, body, "", buttonLabel, []whatsapp.ListSection{section}); err != nil {
		a.Log.Error("Failed to send category list", "error", err, "conversation_id", conv.ID)
		return Result{Success: false, Message: "failed to send category list"}
	}

	return Result{Success: true, Message: "category list sent"}
}

// conversationCurrency prefers a currency pinned on the conversation over
// the action default.
func (a *App) conversationCurrency(conv *models.Conversation, action *models.OrderAction) string {
	if c := conv.MetaString(models.MetaCurrency); c != "" {
		return c
	}
	return action.Currency
}

// formatCartSummary renders itemized cart lines and the total
func formatCartSummary(cart *menuservice.Cart, symbol string) string {
	var b strings.Builder
	b.WriteString("Here's your cart:\n\n")
	for _, item := range cart.Items {
		fmt.Fprintf(&b, "%d x %s - %s%.2f\n", item.Qty, item.Name, symbol, item.Price*float64(item.Qty))
	}
	fmt.Fprintf(&b, "\n*Total: %s%.2f*", symbol, cart.Total)
	return b.String()
}

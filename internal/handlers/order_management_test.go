package handlers_test

import (
	"context"
	"testing"

	"github.com/sagarjadhav/tablemate/internal/handlers"
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/sagarjadhav/tablemate/pkg/menuservice"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
	fixtures "github.com/sagarjadhav/tablemate/test/fixtures/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderManagement_MalformedButtonAsksForRescan(t *testing.T) {
	env := newPipelineEnv(t)
	phone := uniquePhone()

	res := env.tapButton(t, phone, "om-category-lunch", "Pizza")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "malformed order button ID")

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, "text", sent[0].Type)
	assert.Contains(t, sent[0].Content, "scan the QR code")
}

func TestOrderManagement_UnknownActionSendsNothing(t *testing.T) {
	env := newPipelineEnv(t)
	phone := uniquePhone()

	res := env.tapButton(t, phone, "om-menu-t1-nosuchslug-item1", "Margherita")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "order action not found")
	assert.Equal(t, 0, env.wa.MessageCount())
}

func TestOrderManagement_InactiveActionIsNotFound(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) {
		b.WithSlug("retired").Inactive()
	})
	phone := uniquePhone()

	res := env.tapButton(t, phone, "om-menu-t1-retired-item1", "Margherita")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "order action not found")
}

func TestOrderManagement_PersistsTableContext(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch") })
	phone := uniquePhone()

	env.tapButton(t, phone, "om-menu-dining-room-5-lunch-item1", "Margherita")

	conv := env.loadConversation(t, phone)
	assert.Equal(t, "dining-room-5", conv.MetaString(models.MetaTableName))
	assert.Equal(t, "lunch", conv.MetaString(models.MetaOrderActionID))
}

func TestMenuDetail_SendsTextImageButtons(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch") })
	phone := uniquePhone()

	buttonID := handlers.ButtonAction{
		Kind: handlers.KindMenu, Table: "dining-room-5", ActionID: "lunch", ItemID: "item1",
	}.Encode()

	res := env.tapButton(t, phone, buttonID, "Margherita")
	require.True(t, res.Success)

	assert.Equal(t, []string{"text", "image", "buttons"}, env.wa.MessageTypes())

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 3)

	detail := sent[0].Content.(string)
	assert.Contains(t, detail, "*Margherita*")
	assert.Contains(t, detail, "Tomato, mozzarella, basil")
	assert.Contains(t, detail, "Price: $9.50")

	image := sent[1].Content.(map[string]interface{})
	assert.Equal(t, "https://cdn.example.com/margherita.jpg", image["image_url"])

	buttons := sent[2].Content.(map[string]interface{})["buttons"].([]whatsapp.Button)
	require.Len(t, buttons, 2)
	assert.Equal(t, "om-add-to-cart-dining-room-5-lunch-item1-1", buttons[0].ID)
	assert.Equal(t, "Order", buttons[0].Title)
	assert.Equal(t, "om-back-dining-room-5-lunch", buttons[1].ID)
	assert.Equal(t, "Back", buttons[1].Title)
}

func TestMenuDetail_ItemWithoutImageSkipsImageMessage(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch2") })
	phone := uniquePhone()

	// item2 (Cola) has no image and no description in the fixture menu
	res := env.tapButton(t, phone, "om-menu-t1-lunch2-item2", "Cola")
	require.True(t, res.Success)
	assert.Equal(t, []string{"text", "buttons"}, env.wa.MessageTypes())

	detail := env.wa.GetMessagesSentTo(phone)[0].Content.(string)
	assert.Contains(t, detail, "*Cola*")
	assert.Contains(t, detail, "Price: $2.50")
}

func TestMenuDetail_UsesActionCurrency(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) {
		b.WithSlug("euromenu").WithCurrency("EUR")
	})
	phone := uniquePhone()

	env.tapButton(t, phone, "om-menu-t1-euromenu-item1", "Margherita")

	detail := env.wa.GetMessagesSentTo(phone)[0].Content.(string)
	assert.Contains(t, detail, "Price: €9.50")
}

func TestMenuDetail_FallsBackToLiveLookup(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch3") })
	phone := uniquePhone()

	// item9 is not in the action's cached menu but the backend knows it
	env.menu.GetMenuItemFunc = func(_ context.Context, _, menuID, _ string) (*menuservice.MenuItem, error) {
		if menuID != "item9" {
			return nil, nil
		}
		return &menuservice.MenuItem{ID: "item9", Name: "Calzone", Price: 11.00}, nil
	}

	res := env.tapButton(t, phone, "om-menu-t1-lunch3-item9", "Calzone")
	require.True(t, res.Success)

	detail := env.wa.GetMessagesSentTo(phone)[0].Content.(string)
	assert.Contains(t, detail, "*Calzone*")
	assert.Contains(t, detail, "Price: $11.00")
}

func TestMenuDetail_MissingItemApologizes(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch4") })
	phone := uniquePhone()

	res := env.tapButton(t, phone, "om-menu-t1-lunch4-item9", "Gone dish")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "menu item not found")

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "no longer on the menu")
}

func TestAddToCart_SendsItemizedSummary(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch5") })
	phone := uniquePhone()

	env.menu.AddToCartFunc = func(_ context.Context, _, menuID string, qty int) (*menuservice.CartResponse, error) {
		return &menuservice.CartResponse{
			Cart: &menuservice.Cart{
				Items: []menuservice.CartItem{{ID: menuID, Name: "Pizza", Qty: qty, Price: 9.50}},
				Total: 19.00,
			},
			Buttons: []menuservice.ButtonSpec{
				{ID: "om-confirm-{tableName}-{actionId}-cart", Title: "Confirm order"},
				{ID: "om-back-{tableName}-{actionId}", Title: "Keep browsing"},
			},
		}, nil
	}

	res := env.tapButton(t, phone, "om-add-to-cart-table-7-lunch5-item1-2", "Order")
	require.True(t, res.Success)

	require.Len(t, env.menu.AddToCartCalls, 1)
	assert.Equal(t, "item1", env.menu.AddToCartCalls[0].MenuID)
	assert.Equal(t, 2, env.menu.AddToCartCalls[0].Qty)

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 2)

	summary := sent[0].Content.(string)
	assert.Contains(t, summary, "2 x Pizza - $19.00")
	assert.Contains(t, summary, "*Total: $19.00*")

	// Suggested button IDs come back with the table and action filled in
	buttons := sent[1].Content.(map[string]interface{})["buttons"].([]whatsapp.Button)
	require.Len(t, buttons, 2)
	assert.Equal(t, "om-confirm-table-7-lunch5-cart", buttons[0].ID)
	assert.Equal(t, "om-back-table-7-lunch5", buttons[1].ID)

	conv := env.loadConversation(t, phone)
	assert.Equal(t, "2", conv.MetaString(models.MetaCartQuantity))
}

func TestAddToCart_TextOnlyResponse(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch6") })
	phone := uniquePhone()

	// The default mock answers with plain text and no structured cart
	res := env.tapButton(t, phone, "om-add-to-cart-t1-lunch6-item1-1", "Order")
	require.True(t, res.Success)

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, "Added to cart", sent[0].Content)
}

func TestAddToCart_BackendErrorTellsCustomer(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch7") })
	phone := uniquePhone()

	env.menu.AddToCartFunc = func(_ context.Context, _, _ string, _ int) (*menuservice.CartResponse, error) {
		return nil, &menuservice.APIError{Message: "cart service down", Code: 500}
	}

	res := env.tapButton(t, phone, "om-add-to-cart-t1-lunch7-item1-1", "Order")
	assert.False(t, res.Success)

	// Generic visibility: the customer hears something went wrong but
	// never the internal detail.
	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "something went wrong")
	assert.NotContains(t, sent[0].Content, "cart service down")
}

func TestAddToCart_NoButtonsHandsOffToOrderAI(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch8") })
	phone := uniquePhone()

	env.menu.AddToCartFunc = func(_ context.Context, _, menuID string, qty int) (*menuservice.CartResponse, error) {
		return &menuservice.CartResponse{
			Cart: &menuservice.Cart{
				Items: []menuservice.CartItem{{ID: menuID, Name: "Pizza", Qty: qty, Price: 9.50}},
				Total: 9.50,
			},
		}, nil
	}

	// No follow-up buttons means the tool-calling AI takes over. With no
	// provider configured it fails, after the cart summary went out.
	res := env.tapButton(t, phone, "om-add-to-cart-t1-lunch8-item1-1", "Order")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "AI tool call failed")

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "*Total: $9.50*")
}

func TestConfirm_HandsOffToOrderAI(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch9") })
	phone := uniquePhone()

	res := env.tapButton(t, phone, "om-confirm-table-7-lunch9-cart", "Confirm order")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "AI tool call failed")
}

func TestBack_RebuildsCategoryList(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch10") })
	phone := uniquePhone()

	res := env.tapButton(t, phone, "om-back-table-7-lunch10", "Back")
	require.True(t, res.Success)

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, "list", sent[0].Type)

	sections := sent[0].Content.(map[string]interface{})["sections"].([]whatsapp.ListSection)
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Rows, 2)
	assert.Equal(t, "om-category-table-7-lunch10-cat1", sections[0].Rows[0].ID)
	assert.Equal(t, "Pizza", sections[0].Rows[0].Title)
	assert.Equal(t, "om-category-table-7-lunch10-cat2", sections[0].Rows[1].ID)
	assert.Equal(t, "Drinks", sections[0].Rows[1].Title)
}

func TestCategoryBrowse_TemplatesRowIDs(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch11") })
	phone := uniquePhone()

	env.menu.GetMenusFunc = func(_ context.Context, _, categoryID string) (*menuservice.MenusResponse, error) {
		return &menuservice.MenusResponse{
			List: &menuservice.ListMessage{
				Body:   "Our pizzas",
				Button: "View items",
				Sections: []menuservice.ListSection{{
					Title: "Pizza",
					Rows: []menuservice.ListRow{
						{ID: "om-menu-{tableName}-{actionId}-item1", Title: "Margherita", Description: "$9.50"},
					},
				}},
			},
		}, nil
	}

	res := env.tapButton(t, phone, "om-category-dining-room-5-lunch11-cat1", "Pizza")
	require.True(t, res.Success)

	require.Len(t, env.menu.GetMenusCalls, 1)
	assert.Equal(t, "cat1", env.menu.GetMenusCalls[0])

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, "list", sent[0].Type)

	content := sent[0].Content.(map[string]interface{})
	assert.Equal(t, "Our pizzas", content["body"])

	sections := content["sections"].([]whatsapp.ListSection)
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Rows, 1)
	assert.Equal(t, "om-menu-dining-room-5-lunch11-item1", sections[0].Rows[0].ID)
}

func TestCategoryBrowse_TextResponse(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch12") })
	phone := uniquePhone()

	// The default mock answers with plain text and no list
	res := env.tapButton(t, phone, "om-category-t1-lunch12-cat1", "Pizza")
	require.True(t, res.Success)

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, "No menu configured", sent[0].Content)
}

func TestOrderManagement_ConversationCurrencyOverridesAction(t *testing.T) {
	env := newPipelineEnv(t)
	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("lunch13") })
	phone := uniquePhone()
	env.createConversation(t, phone, func(b *fixtures.ConversationBuilder) {
		b.WithMeta(models.MetaCurrency, "INR")
	})

	env.tapButton(t, phone, "om-menu-t1-lunch13-item1", "Margherita")

	detail := env.wa.GetMessagesSentTo(phone)[0].Content.(string)
	assert.Contains(t, detail, "Price: ₹9.50")
}

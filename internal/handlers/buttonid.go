package handlers

import (
	"fmt"
	"strconv"
	"strings"
)

// Button-ID grammar. Every ordering button carries its full context in the
// ID string, so a tapped button is self-describing and no server-side
// session is needed between messages:
//
//	om-category-{table}-{actionId}-{categoryId}
//	om-menu-{table}-{actionId}-{menuId}
//	om-confirm-{table}-{actionId}-{menuId}
//	om-add-to-cart-{table}-{actionId}-{menuId}-{qty}
//	om-back-{table}-{actionId}
//
// Table names are operator-entered and may contain hyphens. Action IDs,
// item IDs and quantities never do, so parsing pops the fixed-count suffix
// tokens off the right and the remainder is the table name.
//
// Question-flow replies use {nodeId}-option-{index}.

const (
	orderPrefix   = "om-"
	flowOptionSep = "-option-"

	// Placeholders the menu service leaves in suggested button IDs
	tableNamePlaceholder = "{tableName}"
	actionIDPlaceholder  = "{actionId}"
)

// ButtonKind identifies an order-management sub-flow
type ButtonKind string

const (
	KindCategory  ButtonKind = "category"
	KindMenu      ButtonKind = "menu"
	KindConfirm   ButtonKind = "confirm"
	KindAddToCart ButtonKind = "add-to-cart"
	KindBack      ButtonKind = "back"
)

// ButtonAction is the decoded form of an order-management button ID
type ButtonAction struct {
	Kind     ButtonKind
	Table    string
	ActionID string
	ItemID   string // category ID for Kind=category, menu item ID otherwise
	Quantity int    // Kind=add-to-cart only
}

// suffixTokens returns how many fixed tokens follow the table name
func (k ButtonKind) suffixTokens() int {
	switch k {
	case KindBack:
		return 1 // actionId
	case KindCategory, KindMenu, KindConfirm:
		return 2 // actionId, itemId
	case KindAddToCart:
		return 3 // actionId, itemId, quantity
	}
	return -1
}

// Encode renders the action back into its wire form
func (a ButtonAction) Encode() string {
	var b strings.Builder
	b.WriteString(orderPrefix)
	b.WriteString(string(a.Kind))
	b.WriteByte('-')
	b.WriteString(a.Table)
	b.WriteByte('-')
	b.WriteString(a.ActionID)

	switch a.Kind {
	case KindCategory, KindMenu, KindConfirm:
		b.WriteByte('-')
		b.WriteString(a.ItemID)
	case KindAddToCart:
		qty := a.Quantity
		if qty < 1 {
			qty = 1
		}
		b.WriteByte('-')
		b.WriteString(a.ItemID)
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(qty))
	}

	return b.String()
}

// IsOrderManagementID reports whether a button ID belongs to the ordering
// namespace.
func IsOrderManagementID(id string) bool {
	return strings.HasPrefix(id, orderPrefix)
}

// ParseButtonAction decodes an order-management button ID. The kind prefix
// is matched longest-first so "add-to-cart" is never split as kind "add".
func ParseButtonAction(id string) (*ButtonAction, error) {
	kinds := []ButtonKind{KindAddToCart, KindCategory, KindConfirm, KindMenu, KindBack}

	var kind ButtonKind
	var rest string
	for _, k := range kinds {
		prefix := orderPrefix + string(k) + "-"
		if strings.HasPrefix(id, prefix) {
			kind = k
			rest = strings.TrimPrefix(id, prefix)
			break
		}
	}
	if kind == "" {
		return nil, fmt.Errorf("unknown order button prefix: %q", id)
	}

	tokens := strings.Split(rest, "-")
	suffix := kind.suffixTokens()
	if len(tokens) < suffix+1 {
		return nil, fmt.Errorf("malformed order button ID %q: expected at least %d tokens", id, suffix+1)
	}

	action := &ButtonAction{Kind: kind}

	// Pop fixed suffix tokens right-to-left; the remainder is the table
	// name, hyphens and all.
	switch kind {
	case KindAddToCart:
		qty, err := strconv.Atoi(tokens[len(tokens)-1])
		if err != nil || qty < 1 {
			return nil, fmt.Errorf("malformed order button ID %q: invalid quantity", id)
		}
		action.Quantity = qty
		action.ItemID = tokens[len(tokens)-2]
		action.ActionID = tokens[len(tokens)-3]
		tokens = tokens[:len(tokens)-3]
	case KindCategory, KindMenu, KindConfirm:
		action.ItemID = tokens[len(tokens)-1]
		action.ActionID = tokens[len(tokens)-2]
		tokens = tokens[:len(tokens)-2]
	case KindBack:
		action.ActionID = tokens[len(tokens)-1]
		tokens = tokens[:len(tokens)-1]
	}

	action.Table = strings.Join(tokens, "-")
	if action.Table == "" || action.ActionID == "" {
		return nil, fmt.Errorf("malformed order button ID %q: empty table or action", id)
	}

	return action, nil
}

// FillButtonTemplate substitutes the current table/action context into a
// button ID suggested by the menu service.
func FillButtonTemplate(id, table, actionID string) string {
	id = strings.ReplaceAll(id, tableNamePlaceholder, table)
	return strings.ReplaceAll(id, actionIDPlaceholder, actionID)
}

// FlowReplyID builds a question-flow reply button ID
func FlowReplyID(nodeID string, optionIndex int) string {
	return fmt.Sprintf("%s%s%d", nodeID, flowOptionSep, optionIndex)
}

// ParseFlowReplyID decodes a question-flow reply button ID. The separator is
// matched from the right so node IDs containing hyphens parse correctly.
func ParseFlowReplyID(id string) (string, int, error) {
	idx := strings.LastIndex(id, flowOptionSep)
	if idx <= 0 {
		return "", 0, fmt.Errorf("malformed flow reply ID: %q", id)
	}

	nodeID := id[:idx]
	optionIndex, err := strconv.Atoi(id[idx+len(flowOptionSep):])
	if err != nil || optionIndex < 0 {
		return "", 0, fmt.Errorf("malformed flow reply ID %q: invalid option index", id)
	}

	return nodeID, optionIndex, nil
}

package models_test

import (
	"testing"

	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONB_Value(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    models.JSONB
		wantJSON string
		wantNil  bool
	}{
		{
			name:    "nil JSONB returns nil",
			input:   nil,
			wantNil: true,
		},
		{
			name:     "empty JSONB returns empty object",
			input:    models.JSONB{},
			wantJSON: "{}",
		},
		{
			name: "JSONB with values",
			input: models.JSONB{
				"key1": "value1",
				"key2": 123,
				"key3": true,
			},
			wantJSON: `{"key1":"value1","key2":123,"key3":true}`,
		},
		{
			name: "nested JSONB",
			input: models.JSONB{
				"outer": map[string]interface{}{
					"inner": "value",
				},
			},
			wantJSON: `{"outer":{"inner":"value"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			val, err := tt.input.Value()
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, val)
				return
			}

			// Value returns []byte from json.Marshal
			bytes, ok := val.([]byte)
			require.True(t, ok, "expected []byte, got %T", val)
			assert.JSONEq(t, tt.wantJSON, string(bytes))
		})
	}
}

func TestJSONB_Scan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   interface{}
		want    models.JSONB
		wantErr bool
	}{
		{
			name:  "nil input",
			input: nil,
			want:  nil,
		},
		{
			name:  "empty object bytes",
			input: []byte("{}"),
			want:  models.JSONB{},
		},
		{
			name:  "object with values",
			input: []byte(`{"key":"value","num":42}`),
			want: models.JSONB{
				"key": "value",
				"num": float64(42), // JSON numbers decode as float64
			},
		},
		{
			name:    "invalid type",
			input:   "not bytes",
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			input:   []byte("not json"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var j models.JSONB
			err := j.Scan(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, j)
		})
	}
}

func TestStringArray_Value(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    models.StringArray
		wantJSON string
		wantNil  bool
	}{
		{
			name:    "nil StringArray returns nil",
			input:   nil,
			wantNil: true,
		},
		{
			name:     "empty StringArray returns empty array",
			input:    models.StringArray{},
			wantJSON: "[]",
		},
		{
			name:     "StringArray with values",
			input:    models.StringArray{"message.incoming", "order.confirmed"},
			wantJSON: `["message.incoming","order.confirmed"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			val, err := tt.input.Value()
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, val)
				return
			}

			bytes, ok := val.([]byte)
			require.True(t, ok, "expected []byte, got %T", val)
			assert.JSONEq(t, tt.wantJSON, string(bytes))
		})
	}
}

func TestStringArray_Scan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   interface{}
		want    models.StringArray
		wantErr bool
	}{
		{
			name:  "nil input",
			input: nil,
			want:  nil,
		},
		{
			name:  "empty array bytes",
			input: []byte("[]"),
			want:  models.StringArray{},
		},
		{
			name:  "array with values",
			input: []byte(`["one","two","three"]`),
			want:  models.StringArray{"one", "two", "three"},
		},
		{
			name:    "invalid type",
			input:   123,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var s models.StringArray
			err := s.Scan(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestFlowNodeMap_RoundTrip(t *testing.T) {
	t.Parallel()

	nodes := models.FlowNodeMap{
		"welcome": {
			Message:  "Welcome!",
			Image:    "https://cdn.example.com/hero.jpg",
			Question: "What would you like?",
			Options: []models.FlowOption{
				{Label: "Hours", NextNodeID: "hours"},
				{Label: "Bye"},
			},
		},
		"hours": {
			Message: "Open 9-5.",
		},
	}

	val, err := nodes.Value()
	require.NoError(t, err)

	var scanned models.FlowNodeMap
	require.NoError(t, scanned.Scan(val))

	assert.Equal(t, nodes, scanned)
	assert.Equal(t, "hours", scanned["welcome"].Options[0].NextNodeID)
	assert.Empty(t, scanned["welcome"].Options[1].NextNodeID)
}

func TestFlowNodeMap_Scan_Nil(t *testing.T) {
	t.Parallel()

	var m models.FlowNodeMap
	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
}

func TestMenuItemList_RoundTrip(t *testing.T) {
	t.Parallel()

	items := models.MenuItemList{
		{ID: "item1", Name: "Margherita", Category: "cat1", Price: 9.50, Description: "Classic"},
		{ID: "item2", Name: "Cola", Category: "cat2", Price: 2.50},
	}

	val, err := items.Value()
	require.NoError(t, err)

	var scanned models.MenuItemList
	require.NoError(t, scanned.Scan(val))

	assert.Equal(t, items, scanned)
}

func TestOrderAction_FindMenuItem(t *testing.T) {
	t.Parallel()

	action := models.OrderAction{
		MenuItems: models.MenuItemList{
			{ID: "item1", Name: "Margherita", Price: 9.50},
			{ID: "item2", Name: "Cola", Price: 2.50},
		},
	}

	item := action.FindMenuItem("item2")
	require.NotNil(t, item)
	assert.Equal(t, "Cola", item.Name)

	assert.Nil(t, action.FindMenuItem("missing"))
	assert.Nil(t, action.FindMenuItem(""))
}

func TestConversation_MetadataHelpers(t *testing.T) {
	t.Parallel()

	conv := models.Conversation{}

	// Reads against a nil bag are safe
	assert.Empty(t, conv.MetaString(models.MetaTableName))

	conv.SetMeta(models.MetaTableName, "dining-room-5")
	conv.SetMeta(models.MetaCurrentNodeID, "welcome")
	assert.Equal(t, "dining-room-5", conv.MetaString(models.MetaTableName))
	assert.Equal(t, "welcome", conv.MetaString(models.MetaCurrentNodeID))

	conv.ClearMeta(models.MetaCurrentNodeID)
	assert.Empty(t, conv.MetaString(models.MetaCurrentNodeID))
	assert.Equal(t, "dining-room-5", conv.MetaString(models.MetaTableName))

	// Non-string values read as empty rather than panicking
	conv.SetMeta("counter", 3)
	assert.Empty(t, conv.MetaString("counter"))
}

package handlers_test

import (
	"testing"

	"github.com/sagarjadhav/tablemate/internal/handlers"
	"github.com/stretchr/testify/assert"
)

func TestCurrencySymbol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want string
	}{
		{code: "USD", want: "$"},
		{code: "EUR", want: "€"},
		{code: "GBP", want: "£"},
		{code: "INR", want: "₹"},
		{code: "inr", want: "₹"}, // case-insensitive
		{code: "SGD", want: "S$"},
		{code: "AED", want: "AED"},
		{code: "XXX", want: "$"}, // unknown falls back to dollar
		{code: "", want: "$"},
	}

	for _, tt := range tests {
		t.Run("code_"+tt.code, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, handlers.CurrencySymbol(tt.code))
		})
	}
}

package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload RegisterRequest
		valid   bool
	}{
		{name: "valid", payload: RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"}, valid: true},
		{name: "short name", payload: RegisterRequest{Name: "A", Email: "alice@example.com", Password: "secret1"}},
		{name: "bad email", payload: RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "secret1"}},
		{name: "short password", payload: RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "12345"}},
		{name: "empty", payload: RegisterRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoginRequestValidate(t *testing.T) {
	assert.NoError(t, LoginRequest{Email: "alice@example.com", Password: "x"}.Validate())
	assert.Error(t, LoginRequest{Email: "nope", Password: "x"}.Validate())
	assert.Error(t, LoginRequest{Email: "alice@example.com"}.Validate())
}

func TestCreateOrderRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload CreateOrderRequest
		valid   bool
	}{
		{name: "valid", payload: CreateOrderRequest{ProductName: "Widget", Amount: 9.99}, valid: true},
		{name: "zero amount", payload: CreateOrderRequest{ProductName: "Widget", Amount: 0}},
		{name: "negative amount", payload: CreateOrderRequest{ProductName: "Widget", Amount: -1}},
		{name: "missing product name", payload: CreateOrderRequest{Amount: 9.99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

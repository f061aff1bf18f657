package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/domain/orders"
)

func TestDefaultPolicy(t *testing.T) {
	tests := []struct {
		from, to orders.Status
		want     orders.Action
	}{
		{orders.StatusPending, orders.StatusConfirmed, orders.ActionAddStock},
		{orders.StatusShipped, orders.StatusConfirmed, orders.ActionAddStock},
		{orders.StatusCancelled, orders.StatusConfirmed, orders.ActionAddStock},
		{orders.StatusConfirmed, orders.StatusCancelled, orders.ActionRemoveStock},
		{orders.StatusConfirmed, orders.StatusPending, orders.ActionRemoveStock},
		{orders.StatusConfirmed, orders.StatusShipped, orders.ActionNone},
		{orders.StatusConfirmed, orders.StatusReceived, orders.ActionNone},
		{orders.StatusConfirmed, orders.StatusConfirmed, orders.ActionNone},
		{orders.StatusPending, orders.StatusReceived, orders.ActionNone},
		{orders.StatusShipped, orders.StatusCancelled, orders.ActionNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, err := DefaultPolicy{}.Decide(tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELPolicy_MatchesDefault(t *testing.T) {
	p, err := NewCELPolicy("", "")
	require.NoError(t, err)

	for _, from := range orders.Statuses {
		for _, to := range orders.Statuses {
			want, err := DefaultPolicy{}.Decide(from, to)
			require.NoError(t, err)
			got, err := p.Decide(from, to)
			require.NoError(t, err)
			assert.Equal(t, want, got, "%s -> %s", from, to)
		}
	}
}

func TestCELPolicy_CustomRules(t *testing.T) {
	// Stock arrives on shipment instead of confirmation.
	p, err := NewCELPolicy(
		`new == "SHIPPED" && old != "SHIPPED"`,
		`old == "SHIPPED" && new == "CANCELLED"`,
	)
	require.NoError(t, err)

	got, err := p.Decide(orders.StatusConfirmed, orders.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, orders.ActionAddStock, got)

	got, err = p.Decide(orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, orders.ActionNone, got)

	got, err = p.Decide(orders.StatusShipped, orders.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, orders.ActionRemoveStock, got)
}

func TestCELPolicy_Errors(t *testing.T) {
	tests := []struct {
		name        string
		add, remove string
	}{
		{"syntax", `old ==`, ""},
		{"not bool", `old + new`, ""},
		{"unknown variable", "", `status == "X"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCELPolicy(tt.add, tt.remove)
			assert.Error(t, err)
		})
	}

	p, err := NewCELPolicy("true", "true")
	require.NoError(t, err)
	_, err = p.Decide(orders.StatusPending, orders.StatusConfirmed)
	assert.Error(t, err)
}

package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name   string
		filter ListFilter
		want   []int
	}{
		{"no limit", ListFilter{}, []int{1, 2, 3, 4, 5}},
		{"limit", ListFilter{Limit: 2}, []int{1, 2}},
		{"offset", ListFilter{Offset: 3}, []int{4, 5}},
		{"window", ListFilter{Limit: 2, Offset: 1}, []int{2, 3}},
		{"offset past end", ListFilter{Offset: 9}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Page(append([]int(nil), items...), tt.filter))
		})
	}
}

func TestHookRegistry_StopsOnFirstError(t *testing.T) {
	r := NewHookRegistry[*string]()
	var calls []string
	r.On(BeforeCreate, func(ctx context.Context, s *string) error {
		calls = append(calls, "first")
		return errors.New("rejected")
	})
	r.On(BeforeCreate, func(ctx context.Context, s *string) error {
		calls = append(calls, "second")
		return nil
	})

	v := "x"
	err := r.Run(context.Background(), BeforeCreate, &v)

	assert.EqualError(t, err, "rejected")
	assert.Equal(t, []string{"first"}, calls)
	assert.NoError(t, r.Run(context.Background(), BeforeDelete, &v))
}

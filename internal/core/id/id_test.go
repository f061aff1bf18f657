package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TimeOrdered(t *testing.T) {
	a, b := New(), New()
	assert.Equal(t, 7, int(a.Version()))
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a.String()[:8], b.String()[:8])
}

func TestParse(t *testing.T) {
	const raw = "6f1c2a57-0c1e-4d4e-9a7b-2f0c1f3f5d11"

	v, err := Parse("  " + raw + "\n")
	require.NoError(t, err)
	assert.Equal(t, raw, v.String())

	_, err = Parse("00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNilID)

	_, err = Parse("not-a-uuid")
	assert.Error(t, err)
}

func TestSerialFromJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{`7`, 7, false},
		{`"7"`, 7, false},
		{`" 7 "`, 7, false},
		{` 12 `, 12, false},
		{`"seven"`, 0, true},
		{`7.5`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SerialFromJSON([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

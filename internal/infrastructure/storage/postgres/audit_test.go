package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditTrail_Compression(t *testing.T) {
	a, err := NewAuditTrail(nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		size     int
		wantAlgo CompressionAlgo
	}{
		{"small payload stays plain", 64, CompressionNone},
		{"large payload is compressed", DefaultCompressThreshold * 2, CompressionZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, err := json.Marshal(map[string]string{"notes": strings.Repeat("x", tt.size)})
			require.NoError(t, err)

			entry := AuditEntry{Changes: changes}
			a.compress(&entry)
			assert.Equal(t, tt.wantAlgo, entry.CompressionAlgo)

			if tt.wantAlgo == CompressionZstd {
				assert.Nil(t, entry.Changes)
				assert.Less(t, len(entry.ChangesCompressed), len(changes))
			}

			require.NoError(t, a.decompress(&entry))
			assert.JSONEq(t, string(changes), string(entry.Changes))
		})
	}
}

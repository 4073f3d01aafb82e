package dedupe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "empty driver defaults to memory",
			cfg:  Config{},
		},
		{
			name: "memory",
			cfg:  Config{Driver: "memory"},
		},
		{
			name: "file",
			cfg:  Config{Driver: "file", Path: "seen.jsonl"},
		},
		{
			name: "sqlite",
			cfg:  Config{Driver: "sqlite", Path: "seen.db"},
		},
		{
			name:    "file without path",
			cfg:     Config{Driver: "file"},
			wantErr: "path is required",
		},
		{
			name:    "unknown driver",
			cfg:     Config{Driver: "redis"},
			wantErr: `unknown dedupe driver "redis"`,
		},
		{
			name:    "negative ttl",
			cfg:     Config{Driver: "memory", TTL: -time.Second},
			wantErr: "ttl must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			if cfg.Path != "" {
				cfg.Path = filepath.Join(t.TempDir(), cfg.Path)
			}

			store, err := Open(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, store)
			t.Cleanup(func() { _ = store.Close() })

			ctx := context.Background()
			isNew, err := store.IsNew(ctx, "44210")
			require.NoError(t, err)
			assert.True(t, isNew)

			require.NoError(t, store.MarkSeen(ctx, "44210"))

			isNew, err = store.IsNew(ctx, "44210")
			require.NoError(t, err)
			assert.False(t, isNew)
		})
	}
}

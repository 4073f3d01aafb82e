package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			yaml: `
searches:
  - query: nike jacket
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				require.Len(t, cfg.Searches, 1)
				assert.Equal(t, "nike jacket", cfg.Searches[0].Query)
				assert.Equal(t, "search-1", cfg.Searches[0].Name)
			},
		},
		{
			name: "defaults applied for optional fields",
			yaml: `
searches:
  - query: vintage fleece
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, "https://www.vinted.co.uk", cfg.Vinted.BaseURL)
				assert.Equal(t, time.Hour, cfg.Vinted.SessionTTL)
				assert.Equal(t, 2.0, cfg.Vinted.RateLimit.PerSecond)
				assert.Equal(t, 4, cfg.Vinted.RateLimit.Burst)
				assert.Equal(t, int64(5000), cfg.Vinted.RateLimit.DailyLimit)
				assert.Equal(t, 10*time.Second, cfg.Enrich.Timeout)
				assert.Equal(t, "GBP", cfg.Searches[0].Currency)
				assert.Equal(t, 20, cfg.Searches[0].PerPage)
				assert.Equal(t, 3, cfg.Searches[0].MaxPages)
				assert.Equal(t, 10*time.Second, cfg.Schedule.PollInterval)
				assert.Equal(t, time.Second, cfg.Schedule.DispatchStagger)
				assert.Equal(t, time.Minute, cfg.Schedule.RefreshInterval)
				assert.Equal(t, time.Hour, cfg.Schedule.RefreshWindow)
				assert.Equal(t, "channels.yaml", cfg.Channels.Path)
				assert.Equal(t, "memory", cfg.Dedupe.Driver)
				assert.Equal(t, 10*time.Second, cfg.Discord.Timeout)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name: "env var substitution",
			yaml: `
searches:
  - query: rains coat
enrich:
  enabled: true
  base_url: https://enrich.example.com
  api_key: "${TEST_ENRICH_KEY}"
`,
			envVars: map[string]string{
				"TEST_ENRICH_KEY": "secret123",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "secret123", cfg.Enrich.APIKey)
			},
		},
		{
			name:    "missing searches",
			yaml:    `logging: {level: debug}`,
			wantErr: "at least one search is required",
		},
		{
			name: "search missing query",
			yaml: `
searches:
  - name: broken
`,
			wantErr: "searches[0].query is required",
		},
		{
			name: "negative price cap",
			yaml: `
searches:
  - query: jacket
    price_max: -5
`,
			wantErr: "searches[0].price_max must not be negative",
		},
		{
			name: "invalid dedupe driver",
			yaml: `
searches:
  - query: jacket
dedupe:
  driver: redis
`,
			wantErr: `dedupe.driver must be one of: memory, file, sqlite (got "redis")`,
		},
		{
			name: "file driver missing path",
			yaml: `
searches:
  - query: jacket
dedupe:
  driver: file
`,
			wantErr: "dedupe.path is required when driver is file",
		},
		{
			name: "sqlite driver missing path",
			yaml: `
searches:
  - query: jacket
dedupe:
  driver: sqlite
`,
			wantErr: "dedupe.path is required when driver is sqlite",
		},
		{
			name: "enrich enabled missing api key",
			yaml: `
searches:
  - query: jacket
enrich:
  enabled: true
  base_url: https://enrich.example.com
`,
			wantErr: "enrich.api_key is required when enrich is enabled",
		},
		{
			name: "enrich enabled missing base url",
			yaml: `
searches:
  - query: jacket
enrich:
  enabled: true
  api_key: k
`,
			wantErr: "enrich.base_url is required when enrich is enabled",
		},
		{
			name:    "invalid YAML",
			yaml:    `{{{not valid yaml`,
			wantErr: "parsing config YAML",
		},
		{
			name: "full config with overrides",
			yaml: `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 60s
  write_timeout: 60s
vinted:
  base_url: https://www.vinted.fr
  user_agent: test-agent
  session_ttl: 30m
  rate_limit:
    per_second: 1.5
    burst: 2
    daily_limit: 1000
enrich:
  enabled: true
  base_url: https://enrich.example.com
  api_key: k
  timeout: 5s
searches:
  - name: outerwear
    query: patagonia jacket
    price_max: 200
    currency: GBP
    per_page: 40
    max_pages: 5
    skip_child_sizes: true
  - query: salomon
schedule:
  poll_interval: 30s
  dispatch_stagger: 2s
  refresh_interval: 90s
  refresh_window: 2h
channels:
  path: /etc/vintbot/channels.yaml
dedupe:
  driver: sqlite
  path: /var/lib/vintbot/seen.db
  ttl: 168h
discord:
  enabled: true
  username: VintBot
  timeout: 15s
logging:
  level: debug
  format: json
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "https://www.vinted.fr", cfg.Vinted.BaseURL)
				assert.Equal(t, "test-agent", cfg.Vinted.UserAgent)
				assert.Equal(t, 30*time.Minute, cfg.Vinted.SessionTTL)
				assert.Equal(t, 1.5, cfg.Vinted.RateLimit.PerSecond)
				assert.True(t, cfg.Enrich.Enabled)
				assert.Equal(t, 5*time.Second, cfg.Enrich.Timeout)
				require.Len(t, cfg.Searches, 2)
				assert.Equal(t, "outerwear", cfg.Searches[0].Name)
				assert.Equal(t, 200.0, cfg.Searches[0].PriceMax)
				assert.Equal(t, 40, cfg.Searches[0].PerPage)
				assert.True(t, cfg.Searches[0].SkipChildSizes)
				assert.Equal(t, "search-2", cfg.Searches[1].Name)
				assert.Equal(t, 30*time.Second, cfg.Schedule.PollInterval)
				assert.Equal(t, "/etc/vintbot/channels.yaml", cfg.Channels.Path)
				assert.Equal(t, "sqlite", cfg.Dedupe.Driver)
				assert.Equal(t, 7*24*time.Hour, cfg.Dedupe.TTL)
				assert.True(t, cfg.Discord.Enabled)
				assert.Equal(t, "VintBot", cfg.Discord.Username)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Only parallelize tests that don't modify env vars.
			if len(tt.envVars) == 0 {
				t.Parallel()
			}

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestServerConfig_Address(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{
			name: "default listen address",
			cfg:  ServerConfig{Host: "0.0.0.0", Port: 8080},
			want: "0.0.0.0:8080",
		},
		{
			name: "loopback",
			cfg:  ServerConfig{Host: "127.0.0.1", Port: 9090},
			want: "127.0.0.1:9090",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.Address())
		})
	}
}

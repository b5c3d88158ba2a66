package news

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testProvidersYAML = `
providers:
  finnhub:
    type: finnhub
    api_key: ${TEST_FINNHUB_KEY}
    daily_request_limit: 86400
    articles_per_request: 100
    timeout: ${TEST_FINNHUB_TIMEOUT}
  newsapi:
    type: newsapi
    api_key: ${TEST_NEWSAPI_KEY}
    daily_request_limit: 100
    articles_per_request: 100
  fmp:
    type: fmp
    api_key: fixed-key
    daily_request_limit: 250
    articles_per_request: 50
    enabled: false
`

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv("TEST_FINNHUB_KEY", "fh-key")
	t.Setenv("TEST_FINNHUB_TIMEOUT", "12s")
	t.Setenv("TEST_NEWSAPI_KEY", "")

	cfg, err := LoadConfigFromReader(strings.NewReader(testProvidersYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 3)

	fh := cfg.Providers["finnhub"]
	require.Equal(t, "fh-key", fh.APIKey)
	require.Equal(t, 12*time.Second, fh.Timeout)
	require.True(t, fh.Enabled)

	na := cfg.Providers["newsapi"]
	require.Empty(t, na.APIKey)
	require.Equal(t, defaultFetchTimeout, na.Timeout)

	require.False(t, cfg.Providers["fmp"].Enabled)
	require.Equal(t, []string{"finnhub", "fmp", "newsapi"}, cfg.ProviderNames())
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		_, err := LoadConfigFromReader(strings.NewReader(`
providers:
  mystery:
    type: telegraph
    api_key: k
    daily_request_limit: 10
    articles_per_request: 10
`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown type")
	})

	t.Run("missing limits", func(t *testing.T) {
		_, err := LoadConfigFromReader(strings.NewReader(`
providers:
  finnhub:
    type: finnhub
    api_key: k
`))
		require.Error(t, err)
	})

	t.Run("negative timeout", func(t *testing.T) {
		_, err := LoadConfigFromReader(strings.NewReader(`
providers:
  finnhub:
    type: finnhub
    api_key: k
    daily_request_limit: 10
    articles_per_request: 10
    timeout: -3s
`))
		require.Error(t, err)
	})
}

func TestBuildProviders(t *testing.T) {
	t.Setenv("TEST_FINNHUB_KEY", "fh-key")
	t.Setenv("TEST_FINNHUB_TIMEOUT", "5s")
	t.Setenv("TEST_NEWSAPI_KEY", "")

	cfg, err := LoadConfigFromReader(strings.NewReader(testProvidersYAML))
	require.NoError(t, err)

	providers, err := cfg.BuildProviders()
	require.NoError(t, err)

	// newsapi has no credential and fmp is disabled; only finnhub builds.
	require.Len(t, providers, 1)
	require.Contains(t, providers, "finnhub")
	require.Equal(t, "finnhub", providers["finnhub"].Name())

	// The credential-less provider is flagged disabled for quota bookkeeping.
	require.False(t, cfg.Providers["newsapi"].Enabled)
}

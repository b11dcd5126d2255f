package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"solswap/pkg/jupiter"
)

func TestEnvSourceDefaults(t *testing.T) {
	s := EnvSource{Lookup: MapLookup(map[string]string{})}.Settings()
	require.False(t, s.HasPrivateKey())
	require.Equal(t, DefaultRPCURL, s.RPCURL)

	s = EnvSource{Lookup: MapLookup(map[string]string{
		PrivateKeyEnv: "secret",
		RPCURLEnv:     "  http://127.0.0.1:8899  ",
	})}.Settings()
	require.True(t, s.HasPrivateKey())
	require.Equal(t, "http://127.0.0.1:8899", s.RPCURL)

	s = EnvSource{Lookup: MapLookup(map[string]string{PrivateKeyEnv: "  ", RPCURLEnv: ""})}.Settings()
	require.False(t, s.HasPrivateKey())
	require.Equal(t, DefaultRPCURL, s.RPCURL)
}

func TestStaticSourceFillsRPCURL(t *testing.T) {
	require.Equal(t, DefaultRPCURL, StaticSource{PrivateKey: "k"}.Settings().RPCURL)
	require.Equal(t, "http://x", StaticSource{RPCURL: "http://x"}.Settings().RPCURL)
}

func TestLoadEnvMissingFileIsFine(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SOLSWAP_TEST_A=from-file\nSOLSWAP_TEST_B=from-file\n"), 0o600))
	t.Setenv("SOLSWAP_TEST_A", "from-env")
	t.Setenv("SOLSWAP_TEST_B", "")
	os.Unsetenv("SOLSWAP_TEST_B")

	require.NoError(t, LoadEnv(path))
	require.Equal(t, "from-env", os.Getenv("SOLSWAP_TEST_A"))
	require.Equal(t, "from-file", os.Getenv("SOLSWAP_TEST_B"))
}

func TestLoadServiceDefaults(t *testing.T) {
	svc, err := LoadService("")
	require.NoError(t, err)
	require.Equal(t, DefaultService(), svc)
	require.Equal(t, 15*time.Second, svc.Jupiter.QuoteTimeout)
	require.Equal(t, 20*time.Second, svc.Jupiter.SwapTimeout)
	require.Equal(t, jupiter.DefaultBaseURL, svc.Jupiter.BaseURL)

	svc, err = LoadService(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultService(), svc)
}

func TestLoadServiceYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
jupiter:
  base_url: "https://lite-api.jup.ag"
  rate_limit: 5
submit:
  via: jito
  commitment: finalized
  timeout: 10s
`), 0o600))

	svc, err := LoadService(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", svc.ListenAddr)
	require.Equal(t, "https://lite-api.jup.ag", svc.Jupiter.BaseURL)
	require.Equal(t, 15*time.Second, svc.Jupiter.QuoteTimeout)
	require.EqualValues(t, 5, svc.Jupiter.RateLimit)
	require.Equal(t, SubmitViaJito, svc.Submit.Via)
	require.Equal(t, DefaultJitoURL, svc.Submit.JitoURL)
	require.Equal(t, "finalized", svc.Submit.Commitment)
	require.Equal(t, 10*time.Second, svc.Submit.Timeout)
}

func TestLoadServiceRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("submit:\n  via: carrier-pigeon\n"), 0o600))
	_, err := LoadService(path)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	svc := DefaultService()
	require.NoError(t, svc.ApplyEnv(MapLookup(map[string]string{
		"JUPITER_BASE_URL":   "http://127.0.0.1:3000",
		"SUBMIT_VIA":         "jito",
		"SOLANA_COMMITMENT":  "processed",
		"JUPITER_RATE_LIMIT": "2.5",
		"LOG_LEVEL":          "debug",
	})))
	require.Equal(t, "http://127.0.0.1:3000", svc.Jupiter.BaseURL)
	require.Equal(t, SubmitViaJito, svc.Submit.Via)
	require.Equal(t, "processed", svc.Submit.Commitment)
	require.Equal(t, 2.5, svc.Jupiter.RateLimit)
	require.Equal(t, "debug", svc.LogLevel)

	svc = DefaultService()
	require.Error(t, svc.ApplyEnv(MapLookup(map[string]string{"JUPITER_RATE_LIMIT": "fast"})))

	svc = DefaultService()
	require.Error(t, svc.ApplyEnv(MapLookup(map[string]string{"SOLANA_COMMITMENT": "eventually"})))
}

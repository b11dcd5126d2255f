package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	PrivateKeyEnv = "PRIVATE_KEY"
	RPCURLEnv     = "SOLANA_RPC_URL"

	// DefaultRPCURL is used when SOLANA_RPC_URL is unset.
	DefaultRPCURL = "https://api.mainnet-beta.solana.com"
)

// LoadEnv loads environment variables from .env file if it exists.
// Variables already present in the process environment win.
func LoadEnv(filename string) error {
	err := godotenv.Load(filename)
	if errors.Is(err, fs.ErrNotExist) {
		// .env file is optional
		return nil
	}
	return err
}

// Settings is the per-invocation configuration handed to the swap executor.
type Settings struct {
	PrivateKey string
	RPCURL     string
}

// HasPrivateKey reports whether a signing secret is configured.
func (s Settings) HasPrivateKey() bool {
	return strings.TrimSpace(s.PrivateKey) != ""
}

// Source resolves Settings. It is consulted once per invocation so a rotated
// secret is picked up without a restart.
type Source interface {
	Settings() Settings
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvSource reads Settings from the process environment.
type EnvSource struct {
	Lookup LookupFunc
}

// NewEnvSource returns a Source backed by os.LookupEnv.
func NewEnvSource() EnvSource {
	return EnvSource{Lookup: os.LookupEnv}
}

func (s EnvSource) Settings() Settings {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	settings := Settings{RPCURL: DefaultRPCURL}
	if v, ok := lookup(PrivateKeyEnv); ok {
		settings.PrivateKey = v
	}
	if v, ok := lookup(RPCURLEnv); ok && strings.TrimSpace(v) != "" {
		settings.RPCURL = strings.TrimSpace(v)
	}
	return settings
}

// StaticSource always returns the same Settings.
type StaticSource Settings

func (s StaticSource) Settings() Settings {
	settings := Settings(s)
	if settings.RPCURL == "" {
		settings.RPCURL = DefaultRPCURL
	}
	return settings
}

// MapLookup adapts a map to a LookupFunc.
func MapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

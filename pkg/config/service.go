package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"solswap/pkg/jupiter"
)

const (
	SubmitViaRPC  = "rpc"
	SubmitViaJito = "jito"

	DefaultJupiterBaseURL = jupiter.DefaultBaseURL
	DefaultJitoURL        = "https://mainnet.block-engine.jito.wtf/api/v1"
)

// Service holds process-wide settings for the HTTP service and the CLI.
// Nothing here is secret; the signing key only ever comes from Settings.
type Service struct {
	ListenAddr string  `yaml:"listen_addr"`
	LogLevel   string  `yaml:"log_level"`
	Jupiter    Jupiter `yaml:"jupiter"`
	Submit     Submit  `yaml:"submit"`
}

// Jupiter configures the aggregator client.
type Jupiter struct {
	BaseURL      string        `yaml:"base_url"`
	QuoteTimeout time.Duration `yaml:"quote_timeout"`
	SwapTimeout  time.Duration `yaml:"swap_timeout"`
	// RateLimit is requests per second across quote and swap calls; 0 disables it.
	RateLimit float64 `yaml:"rate_limit"`
}

// Submit configures transaction submission.
type Submit struct {
	Via        string        `yaml:"via"` // rpc|jito
	JitoURL    string        `yaml:"jito_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Commitment string        `yaml:"commitment"` // processed|confirmed|finalized
}

// DefaultService returns the settings used when no file or env override is given.
func DefaultService() Service {
	return Service{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Jupiter: Jupiter{
			BaseURL:      DefaultJupiterBaseURL,
			QuoteTimeout: 15 * time.Second,
			SwapTimeout:  20 * time.Second,
		},
		Submit: Submit{
			Via:        SubmitViaRPC,
			JitoURL:    DefaultJitoURL,
			Timeout:    30 * time.Second,
			Commitment: "confirmed",
		},
	}
}

// LoadService reads a YAML file over DefaultService. An empty path or a
// missing file yields the defaults.
func LoadService(path string) (Service, error) {
	svc := DefaultService()
	if path == "" {
		return svc, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return svc, nil
		}
		return svc, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&svc); err != nil {
		return svc, fmt.Errorf("decode yaml: %w", err)
	}
	return svc, svc.Validate()
}

// ApplyEnv overrides fields from environment variables.
func (s *Service) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LISTEN_ADDR", &s.ListenAddr)
	str("LOG_LEVEL", &s.LogLevel)
	str("JUPITER_BASE_URL", &s.Jupiter.BaseURL)
	str("SUBMIT_VIA", &s.Submit.Via)
	str("JITO_URL", &s.Submit.JitoURL)
	str("SOLANA_COMMITMENT", &s.Submit.Commitment)

	if v, ok := lookup("JUPITER_RATE_LIMIT"); ok && v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("JUPITER_RATE_LIMIT: %w", err)
		}
		s.Jupiter.RateLimit = limit
	}
	return s.Validate()
}

// Validate checks enumerations and bounds.
func (s Service) Validate() error {
	switch s.Submit.Via {
	case SubmitViaRPC, SubmitViaJito:
	default:
		return fmt.Errorf("submit.via must be %q or %q, got %q", SubmitViaRPC, SubmitViaJito, s.Submit.Via)
	}
	switch s.Submit.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("submit.commitment must be processed, confirmed or finalized, got %q", s.Submit.Commitment)
	}
	if s.Jupiter.BaseURL == "" {
		return fmt.Errorf("jupiter.base_url is empty")
	}
	if s.Jupiter.RateLimit < 0 {
		return fmt.Errorf("jupiter.rate_limit must not be negative")
	}
	return nil
}

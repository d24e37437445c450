package config

import (
	"encoding"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"
)

// DefaultDealbot returns the default config
func DefaultDealbot() *Dealbot {
	return &Dealbot{
		Database: DatabaseConfig{
			Path: "dealbot.db",
		},
		Dealmaking: DealmakingConfig{
			GroupSize:  10,
			EnableCDN:  false,
			EnableIpni: true,
			ChunkSize:  256 << 10,
			MaxLinks:   174,
		},
		Dataset: DatasetConfig{
			MinSize:      1 << 20,
			MaxSize:      10 << 20,
			FetchTimeout: Duration(2 * time.Minute),
		},
		PDP: PDPConfig{
			PollMin:     Duration(time.Second),
			PollMax:     Duration(10 * time.Second),
			PollTimeout: Duration(10 * time.Minute),
			HTTPTimeout: Duration(5 * time.Minute),
		},
		IpniVerification: IpniVerificationConfig{
			IndexerURL:    "https://cid.contact",
			LookupTimeout: Duration(5 * time.Second),
			PollInterval:  Duration(2500 * time.Millisecond),
			PollTimeout:   Duration(10 * time.Minute),
			SettleDelay:   Duration(30 * time.Second),
			RetryInterval: Duration(10 * time.Second),
			MaxAttempts:   5,
			PhaseTimeout:  Duration(60 * time.Minute),
		},
		Metrics: MetricsConfig{
			ListenAddress: "0.0.0.0:9100",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "dealbot",
			SampleRatio: 1,
		},
	}
}

// Validate checks the values that the dealbot can't run with
func (c *Dealbot) Validate() error {
	if c.Dealmaking.GroupSize <= 0 {
		return xerrors.Errorf("Dealmaking.GroupSize must be positive, got %d", c.Dealmaking.GroupSize)
	}
	if c.Dealmaking.ChunkSize <= 0 {
		return xerrors.Errorf("Dealmaking.ChunkSize must be positive, got %d", c.Dealmaking.ChunkSize)
	}
	if c.Dealmaking.MaxLinks <= 1 {
		return xerrors.Errorf("Dealmaking.MaxLinks must be greater than 1, got %d", c.Dealmaking.MaxLinks)
	}
	if c.Dataset.MinSize <= 0 || c.Dataset.MaxSize < c.Dataset.MinSize {
		return xerrors.Errorf("invalid Dataset size range [%d, %d]", c.Dataset.MinSize, c.Dataset.MaxSize)
	}
	if c.Dealmaking.EnableIpni && c.IpniVerification.IndexerURL == "" {
		return xerrors.Errorf("IpniVerification.IndexerURL must be set when ipni deals are enabled")
	}
	if c.IpniVerification.MaxAttempts <= 0 {
		return xerrors.Errorf("IpniVerification.MaxAttempts must be positive, got %d", c.IpniVerification.MaxAttempts)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return xerrors.Errorf("Tracing.SampleRatio must be between 0 and 1, got %g", c.Tracing.SampleRatio)
	}
	if c.Wallet.Address != "" && !common.IsHexAddress(c.Wallet.Address) {
		return xerrors.Errorf("Wallet.Address %q is not an ethereum address", c.Wallet.Address)
	}
	for i, p := range c.Providers {
		if p.Address == "" {
			return xerrors.Errorf("provider %d has no address", i)
		}
		if !common.IsHexAddress(p.Address) {
			return xerrors.Errorf("provider address %q is not an ethereum address", p.Address)
		}
		if p.ServiceURL == "" {
			return xerrors.Errorf("provider %s has no service url", p.Address)
		}
	}
	return nil
}

var _ encoding.TextMarshaler = (*Duration)(nil)
var _ encoding.TextUnmarshaler = (*Duration)(nil)

// Duration is a wrapper type for time.Duration
// for decoding and encoding from/to TOML
type Duration time.Duration

// UnmarshalText implements interface for TOML decoding
func (dur *Duration) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*dur = Duration(d)
	return err
}

func (dur Duration) MarshalText() ([]byte, error) {
	d := time.Duration(dur)
	return []byte(d.String()), nil
}

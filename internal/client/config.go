package client

import "github.com/sweeney/rpc-quality-client/internal/quality"

// Config holds the chamber quality parameter set.
type Config struct {
	PrescaleFactor      int
	RPCFolder           string
	RecHitTypeFolder    string
	SummaryFolder       string
	EnableRPCDqmClient  bool
	MinimumRPCEvents    int
	NumberOfEndcapDisks int
	UseRollInfo         bool
	OfflineDQM          bool
}

// DefaultConfig returns the parameter set defaults.
func DefaultConfig() Config {
	return Config{
		PrescaleFactor:      5,
		RPCFolder:           quality.DefaultRPCFolder,
		RecHitTypeFolder:    quality.DefaultRecHitTypeFolder,
		SummaryFolder:       quality.DefaultSummaryFolder,
		EnableRPCDqmClient:  true,
		MinimumRPCEvents:    10000,
		NumberOfEndcapDisks: 4,
		UseRollInfo:         false,
		OfflineDQM:          true,
	}
}

// Naming returns the histogram naming scheme for the configured folders.
func (c Config) Naming() quality.Naming {
	return quality.NewNaming(c.RPCFolder, c.RecHitTypeFolder, c.SummaryFolder)
}

func (c Config) prescale() int {
	if c.PrescaleFactor <= 0 {
		return 1
	}
	return c.PrescaleFactor
}

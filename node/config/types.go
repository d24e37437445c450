package config

// // NOTE: ONLY PUT STRUCT DEFINITIONS IN THIS FILE
// //
// // After making edits here, update the field docs in doc.go

// Dealbot is the dealbot config
type Dealbot struct {
	// The version of the config file (used for migrations)
	ConfigVersion int

	Database         DatabaseConfig
	Wallet           WalletConfig
	Dealmaking       DealmakingConfig
	Dataset          DatasetConfig
	PDP              PDPConfig
	IpniVerification IpniVerificationConfig
	Metrics          MetricsConfig
	Tracing          TracingConfig

	// Storage providers that are added to the provider directory on startup
	Providers []ProviderConfig
}

type DatabaseConfig struct {
	// Path to the sqlite database file. Relative paths are resolved against
	// the repo directory.
	Path string
}

type WalletConfig struct {
	// The address of the wallet that pays for deals
	Address string
}

type DealmakingConfig struct {
	// The number of providers that deals are made with concurrently
	GroupSize int
	// When enabled, deals are made with the cdn addon
	EnableCDN bool
	// When enabled, deals are made with the ipni addon and verified against
	// the indexer
	EnableIpni bool
	// The size of the chunks the payload is split into when building the
	// IPFS DAG for ipni deals
	ChunkSize int64
	// The maximum number of links per node in the IPFS DAG
	MaxLinks int
}

type DatasetConfig struct {
	// The URLs payloads are downloaded from. One is picked at random for
	// each run. When empty or when all downloads fail, random data is used.
	URLs []string
	// The minimum payload size in bytes
	MinSize int64
	// The maximum payload size in bytes
	MaxSize int64
	// The timeout for downloading a payload
	FetchTimeout Duration
}

type PDPConfig struct {
	// The address of the contract that records data sets
	RecordKeeper string
	// The minimum wait between status polls
	PollMin Duration
	// The maximum wait between status polls
	PollMax Duration
	// How long to wait for a data set creation or piece addition to be
	// confirmed on chain
	PollTimeout Duration
	// The timeout for a single request to a provider
	HTTPTimeout Duration
}

type IpniVerificationConfig struct {
	// The URL of the IPNI indexer that provider records are looked up in
	IndexerURL string
	// The timeout for a single indexer lookup
	LookupTimeout Duration
	// The interval between piece status polls
	PollInterval Duration
	// How long to poll the provider for the piece status
	PollTimeout Duration
	// The wait between the piece being retrieved and the first indexer lookup
	SettleDelay Duration
	// The wait between lookups of the root CID
	RetryInterval Duration
	// The maximum number of root CID lookups
	MaxAttempts int
	// The maximum time spent looking up CIDs in the indexer
	PhaseTimeout Duration
}

type MetricsConfig struct {
	// The address the prometheus endpoint listens on. Leave empty to disable.
	ListenAddress string
}

type TracingConfig struct {
	// When enabled, traces are exported over OTLP to the collector set in
	// the OTEL_EXPORTER_OTLP_ENDPOINT environment variable
	Enabled bool
	// The service name traces are reported under
	ServiceName string
	// The fraction of deal runs that are traced, between 0 and 1
	SampleRatio float64
}

type ProviderConfig struct {
	Address     string
	Name        string
	Description string
	// The base URL of the provider's PDP service
	ServiceURL string
}

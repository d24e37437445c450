package config

import "strings"

type DocField struct {
	Name    string
	Type    string
	Comment string
}

// Doc holds the documentation of each config field, keyed by struct name
var Doc = map[string][]DocField{
	"Dealbot": {
		{Name: "ConfigVersion", Type: "int", Comment: "The version of the config file (used for migrations)"},
		{Name: "Database", Type: "DatabaseConfig"},
		{Name: "Wallet", Type: "WalletConfig"},
		{Name: "Dealmaking", Type: "DealmakingConfig"},
		{Name: "Dataset", Type: "DatasetConfig"},
		{Name: "PDP", Type: "PDPConfig"},
		{Name: "IpniVerification", Type: "IpniVerificationConfig"},
		{Name: "Metrics", Type: "MetricsConfig"},
		{Name: "Tracing", Type: "TracingConfig"},
		{Name: "Providers", Type: "[]ProviderConfig", Comment: "Storage providers that are added to the provider directory on startup"},
	},
	"DatabaseConfig": {
		{Name: "Path", Type: "string", Comment: "Path to the sqlite database file. Relative paths are resolved against\nthe repo directory."},
	},
	"WalletConfig": {
		{Name: "Address", Type: "string", Comment: "The address of the wallet that pays for deals"},
	},
	"DealmakingConfig": {
		{Name: "GroupSize", Type: "int", Comment: "The number of providers that deals are made with concurrently"},
		{Name: "EnableCDN", Type: "bool", Comment: "When enabled, deals are made with the cdn addon"},
		{Name: "EnableIpni", Type: "bool", Comment: "When enabled, deals are made with the ipni addon and verified against\nthe indexer"},
		{Name: "ChunkSize", Type: "int64", Comment: "The size of the chunks the payload is split into when building the\nIPFS DAG for ipni deals"},
		{Name: "MaxLinks", Type: "int", Comment: "The maximum number of links per node in the IPFS DAG"},
	},
	"DatasetConfig": {
		{Name: "URLs", Type: "[]string", Comment: "The URLs payloads are downloaded from. One is picked at random for\neach run. When empty or when all downloads fail, random data is used."},
		{Name: "MinSize", Type: "int64", Comment: "The minimum payload size in bytes"},
		{Name: "MaxSize", Type: "int64", Comment: "The maximum payload size in bytes"},
		{Name: "FetchTimeout", Type: "Duration", Comment: "The timeout for downloading a payload"},
	},
	"PDPConfig": {
		{Name: "RecordKeeper", Type: "string", Comment: "The address of the contract that records data sets"},
		{Name: "PollMin", Type: "Duration", Comment: "The minimum wait between status polls"},
		{Name: "PollMax", Type: "Duration", Comment: "The maximum wait between status polls"},
		{Name: "PollTimeout", Type: "Duration", Comment: "How long to wait for a data set creation or piece addition to be\nconfirmed on chain"},
		{Name: "HTTPTimeout", Type: "Duration", Comment: "The timeout for a single request to a provider"},
	},
	"IpniVerificationConfig": {
		{Name: "IndexerURL", Type: "string", Comment: "The URL of the IPNI indexer that provider records are looked up in"},
		{Name: "LookupTimeout", Type: "Duration", Comment: "The timeout for a single indexer lookup"},
		{Name: "PollInterval", Type: "Duration", Comment: "The interval between piece status polls"},
		{Name: "PollTimeout", Type: "Duration", Comment: "How long to poll the provider for the piece status"},
		{Name: "SettleDelay", Type: "Duration", Comment: "The wait between the piece being retrieved and the first indexer lookup"},
		{Name: "RetryInterval", Type: "Duration", Comment: "The wait between lookups of the root CID"},
		{Name: "MaxAttempts", Type: "int", Comment: "The maximum number of root CID lookups"},
		{Name: "PhaseTimeout", Type: "Duration", Comment: "The maximum time spent looking up CIDs in the indexer"},
	},
	"MetricsConfig": {
		{Name: "ListenAddress", Type: "string", Comment: "The address the prometheus endpoint listens on. Leave empty to disable."},
	},
	"TracingConfig": {
		{Name: "Enabled", Type: "bool", Comment: "When enabled, traces are exported over OTLP to the collector set in\nthe OTEL_EXPORTER_OTLP_ENDPOINT environment variable"},
		{Name: "ServiceName", Type: "string", Comment: "The service name traces are reported under"},
		{Name: "SampleRatio", Type: "float64", Comment: "The fraction of deal runs that are traced, between 0 and 1"},
	},
	"ProviderConfig": {
		{Name: "Address", Type: "string"},
		{Name: "Name", Type: "string"},
		{Name: "Description", Type: "string"},
		{Name: "ServiceURL", Type: "string", Comment: "The base URL of the provider's PDP service"},
	},
}

// findDoc returns the documentation of key in the given dotted section of
// the Dealbot config, or nil if it is undocumented
func findDoc(section, key string) *DocField {
	fields := Doc["Dealbot"]
	if section != "" {
		for _, name := range strings.Split(section, ".") {
			var next []DocField
			for _, f := range fields {
				if f.Name == name {
					next = Doc[strings.TrimPrefix(f.Type, "[]")]
					break
				}
			}
			fields = next
		}
	}

	for i := range fields {
		if fields[i].Name == key {
			return &fields[i]
		}
	}
	return nil
}

package opensearch

// Config holds OpenSearch client connection parameters with environment
// variable mapping, loadable with config.Load.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES,required" envSeparator:","`
	Username     string   `env:"OPENSEARCH_USERNAME,notEmpty"`
	Password     string   `env:"OPENSEARCH_PASSWORD,notEmpty"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
}

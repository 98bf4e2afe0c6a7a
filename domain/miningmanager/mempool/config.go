package mempool

const defaultMaximumTransactionCount = 8192

// Config bounds the unconfirmed pool.
type Config struct {
	MaximumTransactionCount int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() *Config {
	return &Config{
		MaximumTransactionCount: defaultMaximumTransactionCount,
	}
}

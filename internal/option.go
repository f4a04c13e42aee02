package internal

// Option is a functional option for configuring a Run or RunMCP invocation.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig supplies the server configuration. It is required; Run and
// RunMCP fail without it.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

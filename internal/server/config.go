package server

type HttpConfig struct {
	Host string `conf:"host"`
	Port int    `conf:"port"`
	H2c  bool   `conf:"h2c"`
}

// RouterConfig describes how the api handlers are mounted.
type RouterConfig struct {
	// APIVersion is the version segment of the /api/{version} mount.
	APIVersion string `conf:"api_version"`

	// Cors is the cross-origin policy of the api.
	Cors CorsConfig `conf:",squash"`
}

type CorsConfig struct {
	// AllowedOrigins lists the origins allowed to call the api. A
	// single "*" allows every origin.
	AllowedOrigins []string `conf:"allowed_origins"`
}

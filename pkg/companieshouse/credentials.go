package companieshouse

import "os"

// Environment variables consulted for an API key, in priority order.
const (
	EnvKey      = "CompaniesHouseKey"
	EnvKeyUpper = "COMPANIES_HOUSE_KEY"
)

// Environ looks up an environment variable.
type Environ func(key string) (string, bool)

// OSEnviron reads from the process environment.
var OSEnviron Environ = os.LookupEnv

// MapEnviron adapts a map to an Environ, mostly for tests.
func MapEnviron(values map[string]string) Environ {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

// ResolveToken picks the access token for a session. An explicit token wins,
// then CompaniesHouseKey, then COMPANIES_HOUSE_KEY. Empty values are skipped
// like unset ones. The result may be empty; the token is never validated.
func ResolveToken(explicit string, env Environ) string {
	if explicit != "" {
		return explicit
	}
	if env == nil {
		env = OSEnviron
	}
	for _, key := range []string{EnvKey, EnvKeyUpper} {
		if value, ok := env(key); ok && value != "" {
			return value
		}
	}
	return ""
}

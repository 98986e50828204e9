package appconf

// Config holds the HTTP server settings.
type Config struct {
	Port          int
	Env           Environment
	ApiKeys       []string
	ExemptApiKeys []string
	Verbose       bool
	RateLimit     int // requests per second per API key
	TimeZone      string
}

// DefaultTimeZone is the zone schedule clock times are read in.
const DefaultTimeZone = "Europe/Warsaw"

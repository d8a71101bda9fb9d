// Package config parses the signalhub server's CLI flags and overlays a
// handful of operational environment variables on top of them.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// IceServer mirrors the wire IceServer message (§6): a STUN or TURN entry
// handed to clients in GetServerInfo.
type IceServer struct {
	URL        string
	Username   string
	Credential string
	Name       string
}

// stringSliceFlag implements flag.Value so --stun/--turn can repeat.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// Config holds the validated configuration for one signalhub process.
type Config struct {
	Host string
	Port int
	Name string
	MOTD string

	IceServers []IceServer

	LogLevel        string
	Development     bool
	RedisEnabled    bool
	RedisAddr       string
	RedisPassword   string
	OTLPEndpoint    string
	CleanupGrace    string
	RateLimitJoin   string
	RateLimitChat   string
	RateLimitSignal string
}

// defaultStunServer is used when the operator passes no --stun flags at all,
// matching the teacher's "sensible default ICE config" posture.
const defaultStunServer = "stun:stun.l.google.com:19302"

// Parse parses os.Args[1:] (via the standard flag package) and overlays
// environment variables for the operational knobs the CLI surface doesn't
// cover. It never calls os.Exit; flag parsing errors are returned so the
// caller can decide how to fail.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("signalhub", flag.ContinueOnError)

	host := fs.String("host", "0.0.0.0", "address to bind the signaling server to")
	port := fs.Int("port", 50051, "port to bind the signaling server to")
	name := fs.String("name", "signalhub", "server name returned by GetServerInfo")
	motd := fs.String("motd", "", "message of the day returned by GetServerInfo")

	var stunFlags stringSliceFlag
	var turnFlags stringSliceFlag
	fs.Var(&stunFlags, "stun", "STUN server URL (repeatable)")
	fs.Var(&turnFlags, "turn", `TURN server as "NAME|URL|USER|CRED" (repeatable)`)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Host: *host,
		Port: *port,
		Name: *name,
		MOTD: *motd,
	}

	if len(stunFlags) == 0 {
		cfg.IceServers = append(cfg.IceServers, IceServer{URL: defaultStunServer})
	}
	for _, u := range stunFlags {
		cfg.IceServers = append(cfg.IceServers, IceServer{URL: u})
	}
	for _, raw := range turnFlags {
		srv, err := parseTurnFlag(raw)
		if err != nil {
			// Malformed --turn values are a warning, not a fatal error (§6).
			fmt.Fprintf(os.Stderr, "warning: skipping malformed --turn value %q: %v\n", raw, err)
			continue
		}
		cfg.IceServers = append(cfg.IceServers, srv)
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.Development = os.Getenv("GO_ENV") != "production"
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.CleanupGrace = getEnvOrDefault("SESSION_CLEANUP_GRACE", "0s")
	cfg.RateLimitJoin = getEnvOrDefault("RATE_LIMIT_JOIN", "30-M")
	cfg.RateLimitChat = getEnvOrDefault("RATE_LIMIT_CHAT", "120-M")
	cfg.RateLimitSignal = getEnvOrDefault("RATE_LIMIT_SIGNAL", "600-M")

	return cfg, nil
}

// parseTurnFlag parses "NAME|URL|USER|CRED" into an IceServer. A TURN entry
// without a name is rejected; STUN entries parsed elsewhere never go through
// this path and so are allowed empty credentials.
func parseTurnFlag(raw string) (IceServer, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 4 {
		return IceServer{}, fmt.Errorf("expected 4 fields separated by '|', got %d", len(parts))
	}
	name, url, user, cred := parts[0], parts[1], parts[2], parts[3]
	if name == "" {
		return IceServer{}, fmt.Errorf("turn entry requires a non-empty name")
	}
	if url == "" {
		return IceServer{}, fmt.Errorf("turn entry requires a non-empty url")
	}
	return IceServer{Name: name, URL: url, Username: user, Credential: cred}, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

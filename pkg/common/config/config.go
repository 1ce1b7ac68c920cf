package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Storage
	StorageDriver    string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	PersonEventsTopic string
	LookupTopic       string

	// Reference data
	ReferenceDataPath string

	// Remote registry sync
	SyncEnabled        bool
	PeerServer         string
	PeerUsername       string
	PeerPassword       string
	PeerLocation       string
	PeerMachineAccount string
	SyncTimeout        time.Duration
	SyncLockTTL        time.Duration
	PeerTokenURL       string
	PeerClientID       string
	PeerClientSecret   string
	SyncLogTTL         time.Duration
	PeerRateLimit      int

	// Credentials peers must present on the peer endpoints
	PeerAuthUsernames string
	PeerAuthPasswords string
}

// SyncConfig is everything the remote registry client needs, decoupled from
// the rest of the process configuration.
type SyncConfig struct {
	SyncEnabled    bool
	PeerHost       string
	PeerPort       string
	Credentials    Credentials
	Location       []string
	MachineAccount []string
	Timeout        time.Duration
	LockTTL        time.Duration

	// Optional OAuth2 client-credentials grant for peer calls.
	TokenURL     string
	ClientID     string
	ClientSecret string
}

type Credentials struct {
	Usernames []string
	Passwords []string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		StorageDriver:    getEnv("STORAGE_DRIVER", "postgres"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "registry"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "registry"),
		PostgresDB:       getEnv("POSTGRES_DB", "registry"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "demographics-registry"),
		PersonEventsTopic: getEnv("PERSON_EVENTS_TOPIC", "registry.person-events"),
		LookupTopic:       getEnv("LOOKUP_TOPIC", "registry.lookups"),

		ReferenceDataPath: getEnv("REFERENCE_DATA_PATH", ""),

		SyncEnabled:        getBoolEnv("CREATE_FROM_REMOTE", false),
		PeerServer:         getEnv("REMOTE_SERVERS_PARENT", ""),
		PeerUsername:       getEnv("REMOTE_USERNAME", ""),
		PeerPassword:       getEnv("REMOTE_PASSWORD", ""),
		PeerLocation:       getEnv("REMOTE_LOCATION", ""),
		PeerMachineAccount: getEnv("REMOTE_MACHINE_ACCOUNT_NAME", ""),
		SyncTimeout:        getDuration("REMOTE_TIMEOUT", 10*time.Second),
		SyncLockTTL:        getDuration("REMOTE_LOCK_TTL", 30*time.Second),
		PeerTokenURL:       getEnv("REMOTE_TOKEN_URL", ""),
		PeerClientID:       getEnv("REMOTE_CLIENT_ID", ""),
		PeerClientSecret:   getEnv("REMOTE_CLIENT_SECRET", ""),
		SyncLogTTL:         getDuration("REMOTE_SYNC_LOG_TTL", 30*24*time.Hour),
		PeerRateLimit:      getIntEnv("PEER_RATE_LIMIT", 20),

		PeerAuthUsernames: getEnv("PEER_AUTH_USERNAMES", ""),
		PeerAuthPasswords: getEnv("PEER_AUTH_PASSWORDS", ""),
	}
}

// SyncConfig splits the peer "host:port" address and the comma separated
// account settings into their typed form.
func (c *Config) SyncConfig() SyncConfig {
	host, port := splitHostPort(c.PeerServer)
	return SyncConfig{
		SyncEnabled: c.SyncEnabled,
		PeerHost:    host,
		PeerPort:    port,
		Credentials: Credentials{
			Usernames: splitList(c.PeerUsername),
			Passwords: splitList(c.PeerPassword),
		},
		Location:       splitList(c.PeerLocation),
		MachineAccount: splitList(c.PeerMachineAccount),
		Timeout:        c.SyncTimeout,
		LockTTL:        c.SyncLockTTL,
		TokenURL:       c.PeerTokenURL,
		ClientID:       c.PeerClientID,
		ClientSecret:   c.PeerClientSecret,
	}
}

// PeerAuth lists the accepted peer credentials; the n-th username pairs with
// the n-th password.
func (c *Config) PeerAuth() Credentials {
	return Credentials{
		Usernames: splitList(c.PeerAuthUsernames),
		Passwords: splitList(c.PeerAuthPasswords),
	}
}

// Address is the peer's "host:port", or just "host" when no port is set.
func (s SyncConfig) Address() string {
	if s.PeerPort == "" {
		return s.PeerHost
	}
	return s.PeerHost + ":" + s.PeerPort
}

func splitHostPort(server string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(server), ":", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		out = append(out, strings.TrimSpace(item))
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return splitList(value)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

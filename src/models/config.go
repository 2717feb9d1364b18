package models

// MConfig Structure
type MConfig struct {
	Name       string           `yaml:"name"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	LogLevel   string           `yaml:"log_level"`
	PrettyLogs bool             `yaml:"pretty_logs"`
	KPI        MKPIConfig       `yaml:"kpi"`
	Hub        MHubConfig       `yaml:"hub"`
	Auth       MAuthConfig      `yaml:"auth"`
	RateLimit  MRateLimitConfig `yaml:"ratelimit"`
	Storage    MStorageConfig   `yaml:"storage"`
	Network    MNetworkConfig   `yaml:"network"`
	Markets    MMarketsConfig   `yaml:"markets"`
	Wallet     MWalletFile      `yaml:"wallet"`
}

type MKPIConfig struct {
	MaxSamples int `yaml:"max_samples"`
}

type MHubConfig struct {
	WebsocketPath      string `yaml:"websocket_path"`
	MaxBufferedBytes   int    `yaml:"max_buffered_bytes"`
	SendBufferMessages int    `yaml:"send_buffer_messages"`
	MaxClients         int    `yaml:"max_clients"`
}

type MAuthConfig struct {
	Enabled          bool       `yaml:"enabled"`
	IntrospectionURL string     `yaml:"introspection_url"`
	ClientID         string     `yaml:"client_id"`
	ClientSecret     string     `yaml:"client_secret"`
	CacheTTLSeconds  int        `yaml:"cache_ttl_seconds"`
	AnonymousSubject string     `yaml:"anonymous_subject"`
	Roles            MRoleLists `yaml:"roles"`
}

// MRoleLists maps logical permissions to the role names accepted for each.
type MRoleLists struct {
	Read  []string `yaml:"read"`
	Write []string `yaml:"write"`
	Admin []string `yaml:"admin"`
}

type MRateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	DataRetentionDays  int    `yaml:"data_retention_days"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}

type MMarketsConfig struct {
	MICs []string `yaml:"mics"`
}

type MWalletFile struct {
	ConfigPath string `yaml:"config_path"`
}

package config

// Config represents the registrar's runtime configuration
type Config struct {
	Server struct {
		UDPPort int `yaml:"udp_port"`
		TCPPort int `yaml:"tcp_port"`
	} `yaml:"server"`

	Account struct {
		Username              string `yaml:"username"`
		Domain                string `yaml:"domain"`
		AuthenticationEnabled bool   `yaml:"authentication_enabled"`
	} `yaml:"account"`

	Authentication struct {
		Realm       string `yaml:"realm"`
		NonceExpiry int    `yaml:"nonce_expiry"`
	} `yaml:"authentication"`

	Registrar struct {
		QueueCapacity     int             `yaml:"queue_capacity"`
		MinExpires        int             `yaml:"min_expires"`
		DefaultMaxExpires int             `yaml:"default_max_expires"`
		WorkerWaitSeconds int             `yaml:"worker_wait_seconds"`
		Accounts          []AccountRecord `yaml:"accounts"`
	} `yaml:"registrar"`

	UserAgentPolicy struct {
		File string `yaml:"file"`
	} `yaml:"useragent_policy"`

	StatusAPI struct {
		Port    int  `yaml:"port"`
		Enabled bool `yaml:"enabled"`
	} `yaml:"status_api"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// AccountRecord provisions one registrant's credentials statically from
// configuration, for deployments with no external account-storage
// collaborator. PasswordHash follows the SIP digest convention:
// MD5(username:realm:password).
type AccountRecord struct {
	Username     string `yaml:"username"`
	Domain       string `yaml:"domain"`
	PasswordHash string `yaml:"password_hash"`
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	Load(filename string) (*Config, error)
	Validate(config *Config) error
}

package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type MongoDBConfig struct {
	URL     string `yaml:"url"`
	DB      string `yaml:"db"`
	Modules string `yaml:"modules"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type BackendConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	LogLevel      string   `yaml:"logLevel"`
	MainLogFile   string   `yaml:"mainLogFile"`
	AccessLog     string   `yaml:"access_log"`
	AccessLogPath string   `yaml:"access_log_path"`
	AllowCORS     []string `yaml:"allow_cors"`
	SSL           bool     `yaml:"ssl"`
	SSLCert       string   `yaml:"ssl_cert"`
	SSLKey        string   `yaml:"ssl_key"`
	Debug         bool     `yaml:"debug"`
}

type RegistryConfig struct {
	PageSize             int      `yaml:"page_size"`
	CacheTTLSeconds      int      `yaml:"cache_ttl_seconds"`
	PublicAPIAllowedKeys []string `yaml:"public_api_allowed_keys"`
}

type PublisherConfig struct {
	Name      string `yaml:"name"`
	TokenHash string `yaml:"token_hash"`
}

type AuthConfig struct {
	JWTSecret          string            `yaml:"jwt_secret"`
	TokenTTLMinutes    int               `yaml:"token_ttl_minutes"`
	PublisherUserAgent string            `yaml:"publisher_user_agent"`
	Publishers         []PublisherConfig `yaml:"publishers"`
}

type UpstreamConfig struct {
	URL                 string   `yaml:"url"`
	Token               string   `yaml:"token"`
	SyncIntervalMinutes int      `yaml:"sync_interval_minutes"`
	Identifiers         []string `yaml:"identifiers"`
}

type InboxConfig struct {
	Dir string `yaml:"dir"`
}

type NotifyConfig struct {
	Webhooks       []string `yaml:"webhooks"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type Config struct {
	Proxy    string         `yaml:"proxy"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	Redis    RedisConfig    `yaml:"redis"`
	Backend  BackendConfig  `yaml:"backend"`
	Registry RegistryConfig `yaml:"registry"`
	Auth     AuthConfig     `yaml:"auth"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Inbox    InboxConfig    `yaml:"inbox"`
	Notify   NotifyConfig   `yaml:"notify"`
}

var Cfg Config

func init() {
	f, err := os.Open("ckan-registry-configs.yaml")
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&Cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxUploadMB  int64
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig describes the MinIO deployment holding originals and the
// scratch copies made while repairing the image cache.
type StorageConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	BucketOriginals string
	BucketScratch   string
	UseSSL          bool
	Region          string
}

// ArchiveConfig selects where accepted images are mirrored. Driver is
// "minio" (reuses Storage credentials) or "s3".
type ArchiveConfig struct {
	Driver     string
	Bucket     string
	S3Endpoint string
	S3Region   string
	AccessKey  string
	SecretKey  string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CollaboratorsConfig struct {
	ScorerURL   string
	NSFWURL     string
	RendererURL string
	Timeout     time.Duration
	RetryMax    int
}

type PolicyConfig struct {
	RateLimitWindow   time.Duration
	BanThreshold      int
	AutoFlagRank      int
	TopListSize       int
	HammingThreshold  int
	ScoreMin          float64
	ScoreMax          float64
	NSFWFilterEnabled bool
	NSFWFailOpen      bool
	MaxImagePixels    int64
}

type QueueConfig struct {
	Driver        string
	Capacity      int
	Stream        string
	Group         string
	Consumer      string
	MaxLen        int64
	ClaimInterval time.Duration
}

type StoreConfig struct {
	Driver string
}

type ImagesConfig struct {
	Dir string
}

type SecurityConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	AdminIDs  []int64
}

type JobsConfig struct {
	RepairSchedule string
	SweepSchedule  string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Archive          ArchiveConfig
	Kafka            KafkaConfig
	Collaborators    CollaboratorsConfig
	Policy           PolicyConfig
	Queue            QueueConfig
	Store            StoreConfig
	Images           ImagesConfig
	Security         SecurityConfig
	Jobs             JobsConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("CUTERANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings that would break pipeline invariants.
func (c *AppConfig) Validate() error {
	if c.Policy.BanThreshold < 1 {
		return fmt.Errorf("policy.banthreshold must be >= 1, got %d", c.Policy.BanThreshold)
	}
	if c.Policy.ScoreMax <= c.Policy.ScoreMin {
		return fmt.Errorf("policy.scoremax (%v) must exceed policy.scoremin (%v)", c.Policy.ScoreMax, c.Policy.ScoreMin)
	}
	if c.Policy.HammingThreshold < 0 || c.Policy.HammingThreshold > 64 {
		return fmt.Errorf("policy.hammingthreshold out of range: %d", c.Policy.HammingThreshold)
	}
	if c.Policy.MaxImagePixels < 1 {
		return fmt.Errorf("policy.maximagepixels must be >= 1, got %d", c.Policy.MaxImagePixels)
	}
	switch c.Queue.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown queue driver %q", c.Queue.Driver)
	}
	switch c.Store.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Archive.Driver {
	case "minio", "s3":
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
	return nil
}

// IsAdmin reports whether userID is one of the configured moderators.
func (c *AppConfig) IsAdmin(userID int64) bool {
	for _, id := range c.Security.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// viper only resolves env vars for keys it already knows about, and keys
// without defaults are invisible to Unmarshal.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"postgres.dsn",
		"redis.password",
		"storage.endpoint",
		"storage.accesskey",
		"storage.secretkey",
		"archive.s3endpoint",
		"archive.accesskey",
		"archive.secretkey",
		"kafka.brokers",
		"collaborators.scorerurl",
		"collaborators.nsfwurl",
		"collaborators.rendererurl",
		"security.jwtsecret",
		"security.adminids",
		"allowcorsorigins",
	} {
		_ = v.BindEnv(key)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "60s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.maxuploadmb", 20)

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketoriginals", "cuterank-originals")
	v.SetDefault("storage.bucketscratch", "cuterank-scratch")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("archive.driver", "minio")
	v.SetDefault("archive.bucket", "cuterank-archive")
	v.SetDefault("archive.s3region", "us-east-1")

	v.SetDefault("kafka.topic", "cuterank.moderation")

	v.SetDefault("collaborators.timeout", "20s")
	v.SetDefault("collaborators.retrymax", 2)

	v.SetDefault("policy.ratelimitwindow", "10s")
	v.SetDefault("policy.banthreshold", 2)
	v.SetDefault("policy.autoflagrank", 50)
	v.SetDefault("policy.toplistsize", 30)
	v.SetDefault("policy.hammingthreshold", 5)
	v.SetDefault("policy.scoremin", 0.0)
	v.SetDefault("policy.scoremax", 100.0)
	v.SetDefault("policy.nsfwfilterenabled", false)
	v.SetDefault("policy.nsfwfailopen", true)
	v.SetDefault("policy.maximagepixels", 40_000_000)

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.capacity", 1024)
	v.SetDefault("queue.stream", "cuterank:archive")
	v.SetDefault("queue.group", "archive-workers")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.maxlen", 1024)
	v.SetDefault("queue.claiminterval", "30s")

	v.SetDefault("store.driver", "postgres")

	v.SetDefault("images.dir", "images")

	v.SetDefault("security.tokenttl", "720h") // 30 days

	v.SetDefault("jobs.repairschedule", "0 */10 * * * *")
	v.SetDefault("jobs.sweepschedule", "0 0 * * * *")

	v.SetDefault("logging.level", "info")
}

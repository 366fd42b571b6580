package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	PublicURL  string `mapstructure:"PUBLIC_URL"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"`
		Insecure bool   `mapstructure:"INSECURE"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		DSN            string `mapstructure:"DSN"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Tracing        bool   `mapstructure:"TRACING"`
		Metrics        bool   `mapstructure:"METRICS"`
		AutoMigrate    bool   `mapstructure:"AUTO_MIGRATE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Auth struct {
		// JWTSecret verifies HS256 access tokens minted by the identity provider.
		JWTSecret string `mapstructure:"JWT_SECRET"`
		Issuer    string `mapstructure:"ISSUER"`
	} `mapstructure:"AUTH"`
	// Bootstrap seeds one business at startup when OwnerID and BusinessName are set.
	Bootstrap struct {
		OwnerID      string `mapstructure:"OWNER_ID"`
		BusinessName string `mapstructure:"BUSINESS_NAME"`
	} `mapstructure:"BOOTSTRAP"`
	Secrets struct {
		AmbassadorToken     string `mapstructure:"AMBASSADOR_TOKEN_SECRET"`
		PublicTokenFallback string `mapstructure:"PUBLIC_TOKEN_FALLBACK"`
		ServiceRoleKey      string `mapstructure:"SERVICE_ROLE_KEY"`
		AnonKey             string `mapstructure:"ANON_KEY"`
	} `mapstructure:"SECRETS"`
	Dispatch struct {
		Token     string        `mapstructure:"TOKEN"`
		BatchSize int           `mapstructure:"BATCH_SIZE"`
		Interval  time.Duration `mapstructure:"INTERVAL"`
		ClaimTTL  time.Duration `mapstructure:"CLAIM_TTL"`
	} `mapstructure:"CAMPAIGN_DISPATCH"`
	RateLimit struct {
		Limit  int           `mapstructure:"LIMIT"`
		Window time.Duration `mapstructure:"WINDOW"`
	} `mapstructure:"RATE_LIMIT"`
	SendGrid struct {
		APIKey    string `mapstructure:"API_KEY"`
		FromEmail string `mapstructure:"FROM_EMAIL"`
		FromName  string `mapstructure:"FROM_NAME"`
	} `mapstructure:"SENDGRID"`
	SMS struct {
		BaseURL string        `mapstructure:"BASE_URL"`
		APIKey  string        `mapstructure:"API_KEY"`
		From    string        `mapstructure:"FROM"`
		Timeout time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"SMS"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
}

// IsProduction reports whether cookies and logs should use production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func LoadConfig(p Params) *Config {
	// .env is a development convenience; real deployments set the environment directly.
	_ = godotenv.Load()

	config := viper.New()
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	setDefaults(config)
	bindLegacyEnv(config)

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	if p.Vault != nil {
		if err := overlayVault(context.Background(), p.Vault, &cfg); err != nil {
			zap.L().Error("failed get secret from vault", zap.Error(err))
			os.Exit(1)
		}
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "referral")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("GRPC_SERVER.ADDR", "9090")
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("CAMPAIGN_DISPATCH.BATCH_SIZE", 25)
	v.SetDefault("CAMPAIGN_DISPATCH.INTERVAL", time.Minute)
	v.SetDefault("CAMPAIGN_DISPATCH.CLAIM_TTL", 10*time.Minute)
	v.SetDefault("RATE_LIMIT.LIMIT", 60)
	v.SetDefault("RATE_LIMIT.WINDOW", time.Minute)
	v.SetDefault("OTEL.PROTOCOL", "http")
	v.SetDefault("SMS.TIMEOUT", 10*time.Second)
	v.SetDefault("SENDGRID.FROM_NAME", "Referral Program")
}

// bindLegacyEnv keeps the flat variable names already used by existing
// deployments working next to the nested keys.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("SECRETS.AMBASSADOR_TOKEN_SECRET", "SECRETS_AMBASSADOR_TOKEN_SECRET", "AMBASSADOR_TOKEN_SECRET")
	_ = v.BindEnv("SECRETS.PUBLIC_TOKEN_FALLBACK", "SECRETS_PUBLIC_TOKEN_FALLBACK", "PUBLIC_TOKEN_FALLBACK")
	_ = v.BindEnv("SECRETS.SERVICE_ROLE_KEY", "SECRETS_SERVICE_ROLE_KEY", "SERVICE_ROLE_KEY")
	_ = v.BindEnv("SECRETS.ANON_KEY", "SECRETS_ANON_KEY", "ANON_KEY")
	_ = v.BindEnv("CAMPAIGN_DISPATCH.TOKEN", "CAMPAIGN_DISPATCH_TOKEN")
	_ = v.BindEnv("CAMPAIGN_DISPATCH.INTERVAL", "CAMPAIGN_DISPATCH_INTERVAL", "DISPATCH_INTERVAL")
	_ = v.BindEnv("CAMPAIGN_DISPATCH.CLAIM_TTL", "CAMPAIGN_DISPATCH_CLAIM_TTL", "DISPATCH_CLAIM_TTL")
	_ = v.BindEnv("AUTH.JWT_SECRET", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("SENDGRID.API_KEY", "SENDGRID_API_KEY")
	_ = v.BindEnv("DATABASE.DSN", "DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("REDIS.ADDR", "REDIS_ADDR")
	_ = v.BindEnv("OTEL.ADDR", "OTEL_ADDR")
	_ = v.BindEnv("PYROSCOPE.ADDR", "PYROSCOPE_ADDR")
	_ = v.BindEnv("MINIO.ENDPOINT", "MINIO_ENDPOINT")
	_ = v.BindEnv("FLAGSMITH.API_KEY", "FLAGSMITH_API_KEY")
	_ = v.BindEnv("SMS.BASE_URL", "SMS_BASE_URL")
}

func overlayVault(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		return err
	}
	zap.L().Info("Success Get Secret")

	get := func(key, current string) string {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			return val
		}
		return current
	}

	cfg.Database.User = get("postgres_user", cfg.Database.User)
	cfg.Database.Password = get("postgres_password", cfg.Database.Password)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.Auth.JWTSecret = get("jwt_secret", cfg.Auth.JWTSecret)
	cfg.Secrets.AmbassadorToken = get("ambassador_token_secret", cfg.Secrets.AmbassadorToken)
	cfg.Secrets.ServiceRoleKey = get("service_role_key", cfg.Secrets.ServiceRoleKey)
	cfg.Dispatch.Token = get("campaign_dispatch_token", cfg.Dispatch.Token)
	cfg.SendGrid.APIKey = get("sendgrid_api_key", cfg.SendGrid.APIKey)
	cfg.SMS.APIKey = get("sms_api_key", cfg.SMS.APIKey)
	cfg.Flagsmith.ApiKey = get("flagsmith_api_key", cfg.Flagsmith.ApiKey)
	cfg.Minio.SecretKey = get("minio_secret_key", cfg.Minio.SecretKey)
	return nil
}

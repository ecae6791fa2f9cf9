package api_gateway_config

import (
	"time"

	"github.com/NordCoder/Gatekeeper/internal/obs"
	pg "github.com/NordCoder/Gatekeeper/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig(app App) obs.OTELConfig {
	return obs.OTELConfig{
		Enable:         oc.Enable,
		Endpoint:       oc.OTLPEndpoint,
		ServiceName:    oc.ServiceName,
		ServiceVersion: app.Version,
		Environment:    app.Env,
		SampleRatio:    oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

type Auth struct {
	JWTSecret              string        `mapstructure:"jwt_secret"`
	Issuer                 string        `mapstructure:"issuer"`
	Audience               string        `mapstructure:"audience"`
	TokenTTL               time.Duration `mapstructure:"token_ttl"`
	MinPasswordLength      int           `mapstructure:"min_password_length"`
	BcryptCost             int           `mapstructure:"bcrypt_cost"`
	BootstrapAdminUsername string        `mapstructure:"bootstrap_admin_username"`
	BootstrapAdminEmail    string        `mapstructure:"bootstrap_admin_email"`
	BootstrapAdminPassword string        `mapstructure:"bootstrap_admin_password"`
}

type Kafka struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Sweep struct {
	Enable  bool          `mapstructure:"enable"`
	Tick    time.Duration `mapstructure:"tick"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Config struct {
	App    App       `mapstructure:"app"`
	Server Server    `mapstructure:"server"`
	DB     pg.Config `mapstructure:"db"`
	OTEL   OTEL      `mapstructure:"otel"`
	Log    Log       `mapstructure:"log"`
	Auth   Auth      `mapstructure:"auth"`
	Kafka  Kafka     `mapstructure:"kafka"`
	Sweep  Sweep     `mapstructure:"sweep"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

const (
	ErrNoDSN       ErrConfig = "db.dsn is empty"
	ErrNoJWTSecret ErrConfig = "auth.jwt_secret is empty"
	ErrNoBrokers   ErrConfig = "kafka.brokers is empty"
	ErrBadTick     ErrConfig = "sweep.tick must be positive"
)

package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string
		RedisURL         string

		Server   ServerConfig
		Database DatabaseConfig
		Realtime RealtimeConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		BodyLimit                 string
		DisableReqLogs            bool
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		UploadsDir                string
		UploadsURL                string
		LoginRate                 float64 // attempts per second, per client IP
		LoginBurst                int
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RealtimeConfig struct {
		QueueSize     int
		SessionBuffer int
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig reads the application configuration from the environment.
// `config/.env.<env>` is loaded first when it exists.
func NewConfig() *Config {
	v := viper.New()
	wd := Getwd()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("APP_NAME", "Quantum QP")
	v.SetDefault("DEBUG", true)
	v.SetDefault("BUILD", "develop")
	v.SetDefault("SECRET_KEY", "t9^c2wq+0m!ls)c1zq7@d3k*u$j8e&vy=r5x#n6h(p4b_gfao")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("DEFAULT_FROM_NAME", "Quantum QP")
	v.SetDefault("DEFAULT_FROM_EMAIL", "noreply@localhost")
	v.SetDefault("SERVER_HOST", "")
	v.SetDefault("SERVER_PORT", 5000)
	v.SetDefault("SERVER_DEBUG_HOST", "localhost:5010")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("SERVER_BODY_LIMIT", "20M")
	v.SetDefault("SERVER_DISABLE_REQ_LOGS", false)
	v.SetDefault("JWT_EXPIRATION_DELTA", 7*24*time.Hour)
	v.SetDefault("JWT_REFRESH_EXPIRATION_DELTA", 30*24*time.Hour)
	v.SetDefault("UPLOADS_DIR", filepath.Join(wd, "uploads"))
	v.SetDefault("UPLOADS_URL", "/uploads")
	v.SetDefault("LOGIN_RATE", 0.2)
	v.SetDefault("LOGIN_BURST", 5)
	v.SetDefault("DATABASE_ENGINE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "quantum")
	v.SetDefault("DATABASE_USER", "quantum")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_ADMIN_USER", "")
	v.SetDefault("DATABASE_ADMIN_PASSWORD", "")
	v.SetDefault("DATABASE_DISABLE_TLS", true)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("REALTIME_QUEUE_SIZE", 1024)
	v.SetDefault("REALTIME_SESSION_BUFFER", 64)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("TEST_MODE", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:         v.GetString("APP_NAME"),
		Env:             env,
		Build:           v.GetString("BUILD"),
		Debug:           v.GetBool("DEBUG"),
		TestMode:        v.GetBool("TEST_MODE"),
		WorkDir:         wd,
		SecretKey:       v.GetString("SECRET_KEY"),
		FrontendBaseURL: v.GetString("FRONTEND_URL"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("DEFAULT_FROM_NAME"),
			Address: v.GetString("DEFAULT_FROM_EMAIL"),
		},
		RollbarToken:   v.GetString("ROLLBAR_TOKEN"),
		SendgridApiKey: v.GetString("SENDGRID_API_KEY"),
		RedisURL:       v.GetString("REDIS_URL"),
		Server: ServerConfig{
			Host:                      v.GetString("SERVER_HOST"),
			Port:                      v.GetInt("SERVER_PORT"),
			DebugHost:                 v.GetString("SERVER_DEBUG_HOST"),
			ShutdownTimeout:           v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			BodyLimit:                 v.GetString("SERVER_BODY_LIMIT"),
			DisableReqLogs:            v.GetBool("SERVER_DISABLE_REQ_LOGS"),
			JWTExpirationDelta:        v.GetDuration("JWT_EXPIRATION_DELTA"),
			JWTRefreshExpirationDelta: v.GetDuration("JWT_REFRESH_EXPIRATION_DELTA"),
			UploadsDir:                v.GetString("UPLOADS_DIR"),
			UploadsURL:                v.GetString("UPLOADS_URL"),
			LoginRate:                 v.GetFloat64("LOGIN_RATE"),
			LoginBurst:                v.GetInt("LOGIN_BURST"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("DATABASE_ENGINE"),
			Host:          v.GetString("DATABASE_HOST"),
			Port:          v.GetString("DATABASE_PORT"),
			Name:          v.GetString("DATABASE_NAME"),
			User:          v.GetString("DATABASE_USER"),
			Password:      v.GetString("DATABASE_PASSWORD"),
			AdminUser:     v.GetString("DATABASE_ADMIN_USER"),
			AdminPassword: v.GetString("DATABASE_ADMIN_PASSWORD"),
			DisableTLS:    v.GetBool("DATABASE_DISABLE_TLS"),
		},
		Realtime: RealtimeConfig{
			QueueSize:     v.GetInt("REALTIME_QUEUE_SIZE"),
			SessionBuffer: v.GetInt("REALTIME_SESSION_BUFFER"),
		},
	}
}

// Check reports the settings that must be provided outside of debug mode.
func (c *Config) Check() error {
	if c.Debug || c.TestMode {
		return nil
	}
	var missing []string
	if os.Getenv("SECRET_KEY") == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if c.Database.Engine == "postgres" && c.Database.Password == "" {
		missing = append(missing, "DATABASE_PASSWORD")
	}
	if c.SendgridApiKey == "" {
		missing = append(missing, "SENDGRID_API_KEY")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NewTestConfig returns the configuration used by package tests.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "Quantum QP",
		Env:              "TEST",
		TestMode:         true,
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:5173",
		DefaultFromEmail: mail.Address{Name: "Quantum QP", Address: "noreply@localhost"},
		Server: ServerConfig{
			ShutdownTimeout:           time.Second,
			BodyLimit:                 "20M",
			DisableReqLogs:            true,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			UploadsURL:                "/uploads",
			LoginRate:                 100,
			LoginBurst:                100,
		},
		Database: DatabaseConfig{Engine: "inmem"},
		Realtime: RealtimeConfig{QueueSize: 64, SessionBuffer: 16},
	}
}

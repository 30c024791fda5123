package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf holds the application configuration. It is loaded once at import time
// from defaults, an optional dotenv file and ENV-prefixed environment variables.
var Conf *Config

type (
	ServerConfig struct {
		Host            string
		Addr            string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		Build    string

		AppName          string
		SecretKey        []byte
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		ModerationEmail  string // recipient of moderation queue alerts

		Server   ServerConfig
		Database DatabaseConfig

		JWTExpirationDelta time.Duration

		// submission engine knobs
		TokenReservationTTL   time.Duration
		MinCommentLength      int
		ClassificationTimeout time.Duration
		ExtraProfanity        []string // rejected outright, on top of the stock lexicon
		Watchlist             []string // accepted but flagged for review

		SendgridApiKey string
		RollbarToken   string
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func init() {
	Conf = loadConfig()
}

func loadConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Sauti")
	v.SetDefault("secretKey", "x2m$9e)f1u&vq!7t=wp3#ka8(h5c4j*bz6@dyr0s+glno-i")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("moderationEmail", "moderation@localhost")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "sauti")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("tokenReservationTTL", 2*time.Minute)
	v.SetDefault("minCommentLength", 10)
	v.SetDefault("classificationTimeout", 5*time.Second)
	v.SetDefault("extraProfanity", []string{"idiot", "useless", "stupid", "dumb"})
	v.SetDefault("watchlist", []string{"waste of time", "never attends", "does not care"})

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	appName := v.GetString("appName")
	return &Config{
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		Env:      env,
		Build:    v.GetString("build"),

		AppName:         appName,
		SecretKey:       []byte(v.GetString("secretKey")),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    appName,
			Address: v.GetString("defaultFromEmail"),
		},
		ModerationEmail: v.GetString("moderationEmail"),

		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			Addr:            v.GetString("serverAddr"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},

		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),

		TokenReservationTTL:   v.GetDuration("tokenReservationTTL"),
		MinCommentLength:      v.GetInt("minCommentLength"),
		ClassificationTimeout: v.GetDuration("classificationTimeout"),
		ExtraProfanity:        v.GetStringSlice("extraProfanity"),
		Watchlist:             v.GetStringSlice("watchlist"),

		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),
	}
}

// String renders the non-secret parts of the config, for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("%s [%s] db=%s@%s/%s addr=%s debug=%t",
		c.AppName, c.Env, c.Database.User, c.Database.Address(), c.Database.Name, c.Server.Addr, c.Debug)
}

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dohyunkim-dev/authgate/internal/cache"
	"github.com/dohyunkim-dev/authgate/internal/config"
	"github.com/dohyunkim-dev/authgate/internal/email"
	httpserver "github.com/dohyunkim-dev/authgate/internal/http"
	"github.com/dohyunkim-dev/authgate/internal/http/handlers"
	"github.com/dohyunkim-dev/authgate/internal/keycloak"
	"github.com/dohyunkim-dev/authgate/internal/oauth"
	"github.com/dohyunkim-dev/authgate/internal/oauth/google"
	"github.com/dohyunkim-dev/authgate/internal/oauth/kakao"
	"github.com/dohyunkim-dev/authgate/internal/oauth/naver"
	"github.com/dohyunkim-dev/authgate/internal/observability/logger"
	"github.com/dohyunkim-dev/authgate/internal/provision"
	"github.com/dohyunkim-dev/authgate/internal/rate"
	"github.com/dohyunkim-dev/authgate/internal/verification"
)

func main() {
	var (
		cfgPath string
		envFile string
	)

	root := &cobra.Command{
		Use:   "authgate",
		Short: "Identity broker in front of a Keycloak realm",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath, envFile)
		},
	}
	serve.Flags().StringVar(&cfgPath, "config", "", "path to config.yaml (optional, env wins)")
	serve.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before config")

	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cfgPath, envFile string) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load(envFile)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       "info",
		ServiceName: "authgate",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	kv, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	// Keycloak plumbing
	client := keycloak.NewClient(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret)
	keys := keycloak.NewKeySet(client.CertsURL())
	verifier := keycloak.NewVerifier(keys)
	guard := keycloak.NewGuard(verifier, client, cfg.Keycloak.Audience)
	admin := keycloak.NewAdmin(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.AdminUsername, cfg.Keycloak.AdminPassword)
	provisioner := provision.New(admin)

	// OAuth providers
	registry := oauth.NewRegistry(
		google.New(cfg.Providers.Google.ClientID, cfg.Providers.Google.ClientSecret),
		kakao.New(cfg.Providers.Kakao.ClientID, cfg.Providers.Kakao.ClientSecret),
		naver.New(cfg.Providers.Naver.ClientID, cfg.Providers.Naver.ClientSecret),
	)
	oauthSvc := oauth.NewService(registry, provisioner)

	// Verification codes
	var sender email.Sender
	if cfg.SMTP.DebugEchoCodes || cfg.SMTP.Host == "" {
		sender = email.EchoSender{}
	} else {
		s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		s.TLSMode = cfg.SMTP.TLS
		s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = s
	}
	codes := verification.NewCodeStore(kv, sender)

	var limiter rate.Limiter
	if cfg.RateLimit.Max > 0 {
		limiter = rate.NewFixedWindow(kv, "rl:auth", cfg.RateLimit.Max,
			time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Guard:       guard,
		Client:      client,
		Keys:        keys,
		Codes:       codes,
		Provisioner: provisioner,
		OAuth:       oauthSvc,
		Cookies: handlers.Cookies{
			Domain:   cfg.Session.CookieDomain,
			SameSite: sameSite(cfg.Session.SameSite),
			Secure:   cfg.Session.Secure,
		},
		APIKey:  cfg.Server.APIKey,
		Metrics: httpserver.RegisterMetrics(nil),
		Limiter: limiter,
	})

	log.Info("listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("realm", cfg.Keycloak.Realm))
	return httpserver.Start(cfg.Server.Addr, router)
}

func sameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

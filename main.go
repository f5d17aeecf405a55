package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/api"
	"github.com/silvesterwali/daily-gateway/cdc"
	"github.com/silvesterwali/daily-gateway/events"
	"github.com/silvesterwali/daily-gateway/flags"
	"github.com/silvesterwali/daily-gateway/mailing"
	"github.com/silvesterwali/daily-gateway/notify"
	"github.com/silvesterwali/daily-gateway/storage"
	"github.com/silvesterwali/daily-gateway/workers"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	dbURL := os.Getenv("DATABASE_URL")
	queueConn := os.Getenv("QUEUE_CONNECTION_STRING")
	if dbURL == "" || queueConn == "" {
		log.Fatal("missing storage config")
	}

	ctx := context.Background()
	store, err := storage.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	bus, err := events.NewQueueBus(queueConn)
	if err != nil {
		log.Fatalf("queue bus: %v", err)
	}

	rc := redis.NewClient(redisOptions())

	ttl := 24 * time.Hour
	if v := os.Getenv("DEDUPER_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid DEDUPER_TTL: %v", err)
		}
		ttl = d
	}
	deduper := events.NewRedisDeduper(rc, ttl)

	flagsCache := flags.NewCache(rc, flags.DefaultTTL)
	flagsClient := flags.NewClient(
		os.Getenv("FLAGS_BASE_URL"),
		os.Getenv("FLAGS_ENV_KEY"),
		flagsCache,
	)
	alertsCache := storage.NewAlertsCache(rc, 0)

	auth := newAuth()

	slack := notify.NewSlackWebhook(os.Getenv("SLACK_WEBHOOK_URL"))
	ws := workers.All(workers.Deps{
		Changes:         cdc.NewNormalizer(store, bus),
		Contests:        store,
		FeaturesCache:   flagsCache,
		AlertsCache:     alertsCache,
		Mailing:         mailing.New(os.Getenv("MAILING_BASE_URL"), os.Getenv("MAILING_API_KEY")),
		Notifier:        slack,
		Eligible:        slack,
		Deduper:         deduper,
		DefaultListID:   os.Getenv("MAILING_DEFAULT_LIST"),
		MarketingListID: os.Getenv("MAILING_MARKETING_LIST"),
	})

	logger := log.New()
	visits := api.NewVisitSender(store, logger, 4, 256)
	defer visits.Close()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     strings.Split(os.Getenv("CORS_ORIGIN"), ","),
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "app"},
		AllowCredentials: true,
	}))

	api.Register(e, api.Deps{
		Store:         store,
		Auth:          auth,
		Bus:           bus,
		Flags:         flagsClient,
		Alerts:        alertsCache,
		Visits:        visits,
		Workers:       ws,
		Logger:        logger,
		FlagsResetKey: os.Getenv("FLAGS_RESET_KEY"),
	})

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// redisOptions parses REDIS_CONNECTION_STRING as a redis URL, falling back to
// the comma-separated host,key=value form some providers hand out.
func redisOptions() *redis.Options {
	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	opts, err := redis.ParseURL(redisConn)
	if err == nil {
		return opts
	}
	parts := strings.Split(redisConn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

// newAuth builds the token layer: HS256 against ACCESS_SECRET when set,
// otherwise RS256 against the identity provider's JWKS.
func newAuth() *api.Auth {
	audience := os.Getenv("JWT_AUDIENCE")
	issuer := os.Getenv("JWT_ISSUER")

	if secret := os.Getenv("ACCESS_SECRET"); secret != "" {
		return api.NewAuth(nil, []byte(secret), audience, issuer)
	}

	domain := os.Getenv("AUTH_DOMAIN")
	if domain == "" {
		log.Fatal("missing auth config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, nil, audience, issuer)
}

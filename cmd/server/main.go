// Command server runs the registry core: identity, compliance, asset, and
// exchange services behind one HTTP surface, with the optional event outbox
// relay alongside.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	accessHandler "provena/internal/access/handler"
	accessService "provena/internal/access/service"
	accessStore "provena/internal/access/store"
	assetHandler "provena/internal/asset/handler"
	assetService "provena/internal/asset/service"
	assetStore "provena/internal/asset/store"
	"provena/internal/authtoken"
	authtokenHandler "provena/internal/authtoken/handler"
	complianceHandler "provena/internal/compliance/handler"
	complianceMetrics "provena/internal/compliance/metrics"
	complianceService "provena/internal/compliance/service"
	complianceStore "provena/internal/compliance/store"
	"provena/internal/events"
	eventsHandler "provena/internal/events/handler"
	"provena/internal/events/relay"
	eventsMemory "provena/internal/events/store/memory"
	eventsPostgres "provena/internal/events/store/postgres"
	"provena/internal/events/store/redisstream"
	"provena/internal/exchange/funds"
	exchangeHandler "provena/internal/exchange/handler"
	exchangeMetrics "provena/internal/exchange/metrics"
	exchangeService "provena/internal/exchange/service"
	exchangeStore "provena/internal/exchange/store"
	identityHandler "provena/internal/identity/handler"
	identityService "provena/internal/identity/service"
	identityStore "provena/internal/identity/store"
	"provena/internal/platform/config"
	"provena/internal/platform/httpserver"
	"provena/internal/platform/logger"
	platformMetrics "provena/internal/platform/metrics"
	"provena/internal/platform/ratelimit"
	platformRedis "provena/internal/platform/redis"
	httptransport "provena/internal/transport/http"
	id "provena/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- storage backends ---

	var (
		idStore identityService.Store
		outbox  *eventsPostgres.Store
	)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		idStore = identityStore.NewPostgres(pool)

		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("postgres outbox", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		outbox = eventsPostgres.New(db)
	} else {
		idStore = identityStore.NewInMemory()
	}

	redisClient, err := platformRedis.New(cfg.Redis)
	if err != nil {
		log.Error("redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// --- event pipeline ---
	// The feed store always receives events so /audit/events works without
	// external backends. When postgres is configured the outbox becomes the
	// fail-closed primary and the feed a mirror.

	feed := eventsMemory.New()
	var sink events.Store = feed
	if outbox != nil {
		mirrors := []events.Store{feed}
		if redisClient != nil {
			mirrors = append(mirrors, redisstream.New(redisClient.Client))
		}
		sink = events.NewFanout(outbox, log, mirrors...)
	} else if redisClient != nil {
		sink = events.NewFanout(feed, log, redisstream.New(redisClient.Client))
	}
	publisher := events.NewPublisher(sink, events.WithLogger(log))

	// --- services ---

	access := accessService.New(accessStore.NewInMemory(),
		accessService.WithLogger(log),
		accessService.WithPublisher(publisher),
	)
	admin, err := id.ParseAccountID(cfg.AdminAccount)
	if err != nil {
		log.Error("admin account", "error", err)
		os.Exit(1)
	}
	if err := access.Bootstrap(ctx, admin); err != nil {
		log.Error("bootstrap admin", "error", err)
		os.Exit(1)
	}

	identityOpts := []identityService.Option{
		identityService.WithLogger(log),
		identityService.WithPublisher(publisher),
	}
	if len(cfg.RequiredTopics) > 0 {
		topics := make([]id.ClaimTopic, 0, len(cfg.RequiredTopics))
		for _, raw := range cfg.RequiredTopics {
			topic, err := id.ParseClaimTopic(raw)
			if err != nil {
				log.Error("required topics", "topic", raw, "error", err)
				os.Exit(1)
			}
			topics = append(topics, topic)
		}
		identityOpts = append(identityOpts, identityService.WithRequiredTopics(topics))
	}
	identity := identityService.New(idStore, access, identityOpts...)

	compliance := complianceService.New(complianceStore.NewInMemory(), identity, access,
		complianceService.WithLogger(log),
		complianceService.WithPublisher(publisher),
		complianceService.WithMetrics(complianceMetrics.New()),
	)

	assets := assetService.New(assetStore.NewInMemory(), compliance, identity, access,
		assetService.WithLogger(log),
		assetService.WithPublisher(publisher),
	)

	operator, err := id.ParseAccountID(cfg.OperatorAccount)
	if err != nil {
		log.Error("operator account", "error", err)
		os.Exit(1)
	}
	exchange := exchangeService.New(
		exchangeStore.NewInMemory(),
		funds.NewLedger(),
		assets,
		compliance,
		access,
		operator,
		exchangeService.WithLogger(log),
		exchangeService.WithPublisher(publisher),
		exchangeService.WithMetrics(exchangeMetrics.New()),
		exchangeService.WithFeeCap(cfg.FeeCapBps),
		exchangeService.WithMaxListingExpiry(cfg.MaxListingExpiry),
		exchangeService.WithCompletionWindow(cfg.CompletionWindow),
	)

	// --- transport ---

	tokens := authtoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	var limiter *ratelimit.Limiter
	if cfg.RateLimit > 0 {
		limiter = ratelimit.NewLimiter(int(cfg.RateLimit), cfg.RateLimitWindow)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Validator: tokens,
		Metrics:   platformMetrics.New(),
		Limiter:   limiter,
		Public: []httptransport.Registrar{
			authtokenHandler.New(tokens, cfg.ProvisioningKeyHash, log),
		},
		Authed: []httptransport.Registrar{
			identityHandler.New(identity, log),
			complianceHandler.New(compliance, log),
			assetHandler.New(assets, log),
			exchangeHandler.New(exchange, log),
			accessHandler.New(access, log),
			eventsHandler.New(feed, access, log),
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if outbox != nil && len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
		)
		if err != nil {
			log.Error("kafka client", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()
		if err := relay.EnsureTopic(ctx, kafkaClient, cfg.Kafka.Topic, 3); err != nil {
			log.Error("kafka topic", "error", err)
			os.Exit(1)
		}
		outboxRelay := relay.New(outbox, kafkaClient,
			relay.WithTopic(cfg.Kafka.Topic),
			relay.WithLogger(log),
		)
		group.Go(func() error {
			if err := outboxRelay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

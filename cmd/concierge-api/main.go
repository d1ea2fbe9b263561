// README: Entry point; loads config, wires stores, tools, planner and the HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"concierge/internal/ai"
	"concierge/internal/config"
	httptransport "concierge/internal/http"
	"concierge/internal/infra"
	"concierge/internal/maps"
	"concierge/internal/modules/aiusage"
	"concierge/internal/modules/booking"
	"concierge/internal/modules/catalog"
	"concierge/internal/modules/memory"
	"concierge/internal/modules/pricing"
	"concierge/internal/planner"
	"concierge/internal/ratelimit"
	"concierge/internal/service"
	"concierge/internal/synth"
	"concierge/internal/telemetry"
	"concierge/internal/tools"
	"concierge/internal/vendor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	infra.SetupLogger(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry init")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase init")
	}
	if verifier == nil {
		log.Warn().Msg("firebase project not set, token auth disabled and body userId is trusted")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable at startup, in-process fallbacks will serve")
	}

	memorySvc := memory.NewService(
		memory.NewRedisStore(redisClient, time.Duration(cfg.Memory.TTLHours)*time.Hour),
		memory.NewLocalStore(cfg.Memory.FallbackLimit),
	)

	localLimiter := ratelimit.NewLocal(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window(), ratelimit.WithMaxKeys(cfg.RateLimit.MaxKeys))
	var limiter ratelimit.Limiter = localLimiter
	if cfg.RateLimit.Shared {
		limiter = ratelimit.NewRedis(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window(), localLimiter)
	}

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool))
	bookingSvc := booking.NewService(booking.NewStore(dbPool))
	catalogSvc := catalog.NewService(catalog.NewStore(redisClient))

	supplier := vendor.NewClient(vendor.Config{
		BaseURL: cfg.Vendor.BaseURL,
		APIKey:  cfg.Vendor.APIKey,
		RPS:     cfg.Vendor.RPS,
		Burst:   cfg.Vendor.Burst,
		Timeout: time.Duration(cfg.Vendor.TimeoutSeconds) * time.Second,
	})
	if !supplier.Configured() {
		log.Warn().Msg("supplier gateway not configured, flight and hotel tools will report not_configured")
	}

	toolDeps := tools.Deps{
		Flights:     supplier,
		Hotels:      supplier,
		Listings:    catalogSvc,
		Quotes:      pricingSvc,
		Bookings:    bookingSvc,
		Preferences: memorySvc,
	}
	wireMaps(&toolDeps, cfg.Maps.APIKey)

	dispatcher, err := tools.NewDispatcher(toolDeps)
	if err != nil {
		log.Fatal().Err(err).Msg("tool dispatcher")
	}

	provider, closeProvider := newProvider(ctx, cfg.AI)
	defer closeProvider()

	aiTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	plan, err := planner.New(provider, aiTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("planner init")
	}

	deps := service.Deps{
		Limiter: limiter,
		Memory:  memorySvc,
		Planner: plan,
		Tools:   dispatcher,
		Synth:   synth.New(provider, aiTimeout),
	}
	if cfg.AI.MonthlyQuota {
		deps.Quota = aiusage.NewService(aiusage.NewStore(dbPool), aiusage.DefaultTokens)
	}
	concierge := service.New(deps)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Chat:     concierge,
		Bookings: bookingSvc,
		Verifier: verifier,
	})

	if err := httptransport.NewServer(cfg.HTTP.Addr, router).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server")
	}
	log.Info().Msg("shutdown complete")
}

// wireMaps leaves the maps-backed tools unset without an API key so they
// report not_configured instead of failing every call.
func wireMaps(deps *tools.Deps, apiKey string) {
	if apiKey == "" {
		log.Warn().Msg("maps api key not set, geocoding, routing and places tools disabled")
		return
	}
	if geo, err := maps.NewGeocodeService(apiKey); err != nil {
		log.Error().Err(err).Msg("geocode service")
	} else {
		deps.Geocoder = geo
	}
	if routes, err := maps.NewRouteService(apiKey); err != nil {
		log.Error().Err(err).Msg("route service")
	} else {
		deps.Routes = routes
	}
	if places, err := maps.NewPlacesService(apiKey); err != nil {
		log.Error().Err(err).Msg("places service")
	} else {
		deps.Places = places
	}
}

// newProvider picks the configured model provider. A nil provider puts the
// planner and synthesizer into their fixed-message fallback.
func newProvider(ctx context.Context, cfg config.AIConfig) (ai.Provider, func()) {
	noop := func() {}
	switch cfg.Provider {
	case "gemini":
		p, err := ai.NewGeminiProvider(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			log.Error().Err(err).Msg("gemini provider unavailable, running without a model")
			return nil, noop
		}
		return p, p.Close
	case "openai":
		p, err := ai.NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel)
		if err != nil {
			log.Error().Err(err).Msg("openai provider unavailable, running without a model")
			return nil, noop
		}
		return p, noop
	default:
		log.Warn().Msg("no ai provider configured, replies use the fixed fallback")
		return nil, noop
	}
}

package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dvote-dapp/dvote/client"
	"github.com/dvote-dapp/dvote/internal/config"
	"github.com/dvote-dapp/dvote/internal/infra/database"
	"github.com/dvote-dapp/dvote/internal/infra/gateway"
	"github.com/dvote-dapp/dvote/internal/infra/repository"
	"github.com/dvote-dapp/dvote/internal/metrics"
	"github.com/dvote-dapp/dvote/internal/present/rest"
	authmw "github.com/dvote-dapp/dvote/internal/present/rest/middleware"
	"github.com/dvote-dapp/dvote/internal/service"
	"github.com/dvote-dapp/dvote/internal/usecase"
)

const (
	flagConfigPath = "config"
	flagMigrate    = "migrate"
)

func initFlags() {
	pflag.String(flagConfigPath, "", "config file path")
	pflag.Bool(flagMigrate, true, "run database migrations on start")
	pflag.Parse()

	viper.SetEnvPrefix("DVOTE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		panic(err)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	opts := []otlptracehttp.Option{}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "dvote"),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func main() {
	initFlags()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	conf, err := config.Load(viper.GetString(flagConfigPath))
	if err != nil {
		panic(err)
	}
	if err := conf.Validate(); err != nil {
		panic(err)
	}

	setupLogger(conf.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := setupTracing(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			panic(err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("tracer shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	db, err := database.NewDB(conf.Server.DBDialect, conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}
	if err := database.WaitForDB(ctx, db); err != nil {
		panic(err)
	}
	if viper.GetBool(flagMigrate) {
		if err := database.Migrate(db); err != nil {
			panic("failed to migrate database")
		}
	}

	domainConf := conf.Domain()
	metricService := metrics.NewMetricService()

	opts := []usecase.Option{
		usecase.WithMetrics(metricService),
		usecase.WithLogger(slog.Default()),
	}

	var signalService *service.SignalService
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		if err := database.WaitForRedis(ctx, rdb); err != nil {
			panic(err)
		}
		defer rdb.Close()
		signalService = service.NewSignalService(rdb)
		opts = append(opts, usecase.WithSignal(signalService))
	}

	if conf.Server.MemcachedAddr != "" {
		mc := database.NewMemcached(conf.Server.MemcachedAddr)
		if err := database.WaitForMemcached(ctx, mc); err != nil {
			slog.Warn("memcached unavailable, counts are not cached", slog.String("error", err.Error()))
		} else {
			opts = append(opts, usecase.WithCountCache(service.NewCountCache(mc, conf.Server.CountCacheDuration())))
		}
	}

	var contractGateway usecase.ContractGateway
	if conf.Chain.ProviderURL != "" && conf.Chain.ContractAddress != "" {
		cl, err := client.New(ctx, conf.Chain.ProviderURL, conf.Chain.CallTimeoutDuration())
		if err != nil {
			panic(err)
		}
		defer cl.Close()
		gw, err := gateway.NewContractGateway(cl, conf.Chain.ContractAddress, conf.Chain.CallTimeoutDuration(), conf.Chain.TallyCacheDuration())
		if err != nil {
			panic(err)
		}
		contractGateway = gw
	} else {
		slog.Warn("chain provider not configured, tally reads and result publishing are disabled")
	}

	accountRepo := repository.NewAccountRepository(db)
	voterRepo := repository.NewVoterRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	resultRepo := repository.NewResultRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	ballotRepo := repository.NewBallotRepository(db)

	authService := service.NewAuthService(&domainConf)
	walletService := service.NewWalletService(&domainConf)

	accountUsecase := usecase.NewAccountUsecase(accountRepo, topicRepo, authService, authService, opts...)
	voterUsecase := usecase.NewVoterUsecase(accountRepo, voterRepo, candidateRepo, resultRepo, historyRepo, ballotRepo, contractGateway, opts...)
	ownerUsecase := usecase.NewTopicOwnerUsecase(accountRepo, voterRepo, candidateRepo, topicRepo, resultRepo, contractGateway, opts...)

	handler := rest.NewHandler(
		domainConf,
		accountUsecase,
		voterUsecase,
		ownerUsecase,
		authmw.NewAuthMiddleware(authService, accountUsecase),
		walletService,
		signalService,
		metricService.Handler(),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.Origins(),
		AllowCredentials: true,
	}))
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("dvote"))
	}
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(conf.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

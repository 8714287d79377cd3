// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageVariants/internal/imageproc"
	"github.com/UnendingLoop/ImageVariants/internal/kafka"
	"github.com/UnendingLoop/ImageVariants/internal/mwlogger"
	"github.com/UnendingLoop/ImageVariants/internal/preset"
	"github.com/UnendingLoop/ImageVariants/internal/repository"
	"github.com/UnendingLoop/ImageVariants/internal/service"
	"github.com/UnendingLoop/ImageVariants/internal/storage"
	"github.com/UnendingLoop/ImageVariants/internal/transport"
	"github.com/UnendingLoop/ImageVariants/internal/variant"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(envOr(appConfig, "LOG_LEVEL", "info")); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// накатываем миграцию
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// подключиться к хранилищу
	strg := storage.NewResourceStore(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresImageRepo(dbConn)

	// движок рендера и каталог пресетов
	transformer, err := imageproc.NewTransformer(strg)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init transformer")
	}
	factory := variant.NewFactory(transformer, strg)
	presets, err := preset.LoadFile(envOr(appConfig, "PRESETS_FILE", "./presets.yaml"), factory)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load presets")
	}
	zlog.Logger.Info().Strs("presets", presets.IDs()).Msg("Presets loaded")

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if !kafka.WaitKafkaReady(ctx, broker, 5*time.Second) {
		zlog.Logger.Fatal().Msg("Interrupted while waiting for Kafka")
	}
	// подключиться к кафке как продюсер
	topic := appConfig.GetString("KAFKA_TOPIC")
	kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic)
	pub := wbfkafka.NewProducer([]string{broker}, topic)

	// создаем экземпляр сервиса
	variantSvc := service.NewVariantService(repo, pub, strg, factory, presets)
	go variantSvc.StartEviction(ctx, time.Minute, liveVariantTTL(appConfig))
	var svc VariantAPIService = variantSvc
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewVariantHandler(svc, maxUploadSize(appConfig))
	// сетапим сервер
	engine := ginext.New(appConfig.GetString("GIN_MODE"))
	handlers.RegisterRoutes(engine)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", mwlogger.NewMWLogger(engine))

	srv := &http.Server{
		Addr:              ":" + appConfig.GetString("APP_PORT"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Server launch
	go func() {
		zlog.Logger.Info().Str("addr", srv.Addr).Msg("Server running")
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				zlog.Logger.Info().Msg("Server gracefully stopping...")
			default:
				zlog.Logger.Error().Err(err).Msg("Server stopped")
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdown(srv, pub, dbConn)
	zlog.Logger.Info().Msg("Exiting api...")
}

func shutdown(srv *http.Server, pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// даем дорендерить текущие запросы
	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to shutdown HTTP-server")
	}

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-producer")
	}
	zlog.Logger.Info().Msg("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}

func envOr(cfg *config.Config, key, def string) string {
	if v := cfg.GetString(key); v != "" {
		return v
	}
	return def
}

// liveVariantTTL - сколько вариант живет в памяти без обращений
func liveVariantTTL(cfg *config.Config) time.Duration {
	const def = 10 * time.Minute
	raw := cfg.GetString("LIVE_VARIANT_TTL")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		zlog.Logger.Warn().Str("value", raw).Msg("Invalid LIVE_VARIANT_TTL, using default")
		return def
	}
	return d
}

func maxUploadSize(cfg *config.Config) int64 {
	raw := cfg.GetString("MAX_UPLOAD_SIZE")
	if raw == "" {
		return transport.DefaultMaxUploadSize
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		zlog.Logger.Warn().Str("value", raw).Msg("Invalid MAX_UPLOAD_SIZE, using default")
		return transport.DefaultMaxUploadSize
	}
	return n
}

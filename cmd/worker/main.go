package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageVariants/internal/imageproc"
	"github.com/UnendingLoop/ImageVariants/internal/kafka"
	"github.com/UnendingLoop/ImageVariants/internal/preset"
	"github.com/UnendingLoop/ImageVariants/internal/repository"
	"github.com/UnendingLoop/ImageVariants/internal/service"
	"github.com/UnendingLoop/ImageVariants/internal/storage"
	"github.com/UnendingLoop/ImageVariants/internal/variant"
	"github.com/UnendingLoop/ImageVariants/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	zlog.InitConsole()
	level := appConfig.GetString("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if err := zlog.SetLevel(level); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// подкллючиться к хранилищу
	strg := storage.NewResourceStore(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresImageRepo(dbConn)

	transformer, err := imageproc.NewTransformer(strg)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init transformer")
	}
	factory := variant.NewFactory(transformer, strg)
	presetsFile := appConfig.GetString("PRESETS_FILE")
	if presetsFile == "" {
		presetsFile = "./presets.yaml"
	}
	presets, err := preset.LoadFile(presetsFile, factory)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load presets")
	}

	// создаем экземпляр сервиса - воркер ничего не публикует
	variantSvc := service.NewVariantService(repo, worker.NoopPublisher{}, strg, factory, presets)
	// воркер к вариантам повторно почти не обращается - держим их в памяти недолго
	go variantSvc.StartEviction(ctx, 30*time.Second, time.Minute)
	var svc WarmWorkerService = variantSvc

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if !kafka.WaitKafkaReady(ctx, broker, 5*time.Second) {
		zlog.Logger.Fatal().Msg("Interrupted while waiting for Kafka")
	}
	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	topic := appConfig.GetString("KAFKA_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	w := worker.NewWorkerInstance(svc, queue, cons)
	go w.StartWorker(ctx)

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, dbConn)
	zlog.Logger.Info().Msg("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-reader")
	}
	zlog.Logger.Info().Msg("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}

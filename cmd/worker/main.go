// Package main (in worker-subfolder) launches the queue worker that applies watermarks
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/kafka"
	"github.com/UnendingLoop/WatermarkManager/internal/repository"
	"github.com/UnendingLoop/WatermarkManager/internal/service"
	"github.com/UnendingLoop/WatermarkManager/internal/storage"
	"github.com/UnendingLoop/WatermarkManager/internal/worker"
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

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(logLevel(appConfig)); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключиться к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// подключиться к хранилищу
	strg := storage.NewJobStorage(ctx, appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresJobRepo(dbConn)
	// создаем экземпляр сервиса
	var svc worker.JobWorkerService = service.NewJobService(repo, NoopPublisher{}, strg, keyPrefixes(appConfig))

	// шрифт грузится один раз на процесс
	raster, err := imageproc.NewTextRasterizer()
	if err != nil {
		log.Fatalf("Failed to init text rasterizer: %v", err)
	}
	defer func() {
		if err := raster.Close(); err != nil {
			log.Println("Failed to close text rasterizer:", err)
		}
	}()

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if err := kafka.WaitKafkaReady(ctx, broker, 10*time.Second); err != nil {
		log.Fatalf("Kafka is not reachable: %v", err)
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
	w := worker.NewWorkerInstance(strg, svc, queue, cons, runnerFactory(raster))
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.StartWorker(ctx)
	}()
	zlog.Logger.Info().Str("topic", topic).Str("group", groupID).Msg("Worker started")

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()
	<-done

	shutdown(cons, dbConn)
	log.Println("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	log.Println("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}

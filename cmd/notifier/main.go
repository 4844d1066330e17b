package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Oniqq60/task_system_control/internal/cfg"
	"github.com/Oniqq60/task_system_control/internal/database"
	"github.com/Oniqq60/task_system_control/internal/mailer"
	"github.com/Oniqq60/task_system_control/internal/notification"
	"github.com/Oniqq60/task_system_control/internal/user"
)

func main() {
	conf := cfg.Read()
	logger := log.New(os.Stdout, "[notification] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(conf.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS must be set")
	}
	if conf.KafkaTopic == "" {
		logger.Fatal("KAFKA_TOPIC must be set")
	}
	if err := conf.ValidateDatabase(); err != nil {
		logger.Fatal(err)
	}

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("failed to access sql DB: %v", err)
	}
	defer sqlDB.Close()

	sender := mailer.NewSender(mailer.SMTPConfig{
		Host:     conf.SMTPHost,
		Port:     conf.SMTPPort,
		Username: conf.SMTPUsername,
		Password: conf.SMTPPassword,
		From:     conf.MailFrom,
	}, logger)
	handler := notification.NewEventHandler(notification.NewMailNotifier(sender), user.NewRepository(db), logger)
	consumer := notification.NewKafkaConsumer(conf.KafkaBrokers, conf.KafkaTopic, conf.KafkaGroupID, handler, logger)
	defer consumer.Close()

	errCh := make(chan error, 1)

	go func() {
		logger.Printf("Kafka consumer subscribing to topic=%s group=%s", conf.KafkaTopic, conf.KafkaGroupID)
		errCh <- consumer.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Println("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Printf("consumer error: %v", err)
		}
	}

	logger.Println("notification service stopped")
}

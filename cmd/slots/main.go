package main

import (
	"slotlock/internal/slots/handler"
	"slotlock/internal/slots/notifier"
	"slotlock/internal/slots/relay"
	"slotlock/internal/slots/repository"
	"slotlock/internal/slots/service"
	"slotlock/internal/slots/validator"
	"slotlock/internal/slots/ws"
	"slotlock/pkg/app"
	"slotlock/pkg/config"
	"slotlock/pkg/id"
	"slotlock/pkg/kafka"
)

const ServiceName = "slots"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Slots service")

	store := repository.NewStore(repository.Seed(cfg.SlotCount))
	changes := notifier.New(cfg.NotifyBuffer, cfg.Log)
	store.OnChange(changes.Publish)

	requestValidator := validator.NewLockRequestValidator(cfg.Log)
	lockService := service.NewLockService(cfg, store, requestValidator, id.UUIDGenerator{})
	cfg.Log.Info("Lock service initialized", "slot_count", cfg.SlotCount, "lease_ttl", cfg.LeaseTTL)

	sweeper := service.NewSweeper(lockService, cfg.SweepInterval, cfg.Log)
	sweeper.Start()

	hub := ws.NewHub(cfg.WSSendBuffer, cfg.Log)
	hub.Start()
	unsubscribeHub := changes.Subscribe(hub)

	serverApp := app.NewApplication(cfg)
	serverApp.AddShutdownHook("sweeper", sweeper.Stop)

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			Topic:       cfg.KafkaTopic,
			Compression: cfg.KafkaCompression,
		})
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
		}
		producer.Use(kafka.LoggingMiddleware(cfg.Log))

		changeRelay := relay.New(producer, ServiceName, cfg.Log)
		unsubscribeRelay := changes.Subscribe(changeRelay)
		serverApp.AddShutdownHook("kafka-relay", func() {
			unsubscribeRelay()
			if err := changeRelay.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka relay", "error", err)
			}
		})
		cfg.Log.Info("Kafka change-feed relay enabled", "topic", cfg.KafkaTopic)
	}

	serverApp.AddShutdownHook("ws-hub", func() {
		unsubscribeHub()
		hub.Stop()
	})
	serverApp.AddShutdownHook("notifier", changes.Close)

	slotHandler := handler.NewSlotHandler(lockService, hub, cfg.Log)
	serverApp.SetApp(slotHandler, slotHandler)
	serverApp.Run()
}

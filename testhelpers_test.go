//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/homease/service-booking/internal/application"
	bookingEvents "github.com/homease/service-booking/internal/events"
	"github.com/homease/service-booking/internal/pkg/kafka"
	"github.com/homease/service-booking/internal/pkg/kvstore"
	"github.com/homease/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	Sweeper         *application.Sweeper
	Consumer        *bookingEvents.PaymentEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.ProviderModel{},
		&repository.ServiceModel{},
		&repository.BookingModel{},
		&repository.CancellationModel{},
		&repository.NotificationModel{},
		&repository.ProviderAccountModel{},
		&repository.CustomerAccountModel{},
	))

	// The partial unique index is not expressible in GORM tags; create it
	// the way the production migration does.
	require.NoError(t, db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_active_customer_service
		ON bookings (customer_id, service_id)
		WHERE status IN ('pending', 'confirmed', 'in_progress')`).Error)

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, "booking.events", "payment.events")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	producer := kafka.NewProducer(brokers, logger)
	emitter := bookingEvents.NewEmitter(producer, logger)

	bookingSvc := application.NewBookingService(
		repository.NewGormBookingRepository(db),
		repository.NewGormTxManager(db),
		repository.NewGormNotificationSink(db),
		repository.NewGormProviderLookup(db),
		repository.NewGormServiceLookup(db),
		repository.NewGormFinancialCounters(db),
		emitter,
		logger,
	)

	sweeper := application.NewSweeper(bookingSvc, kvstore.NewMemoryStore(), logger,
		time.Minute, time.Hour)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(brokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Service:         bookingSvc,
		Sweeper:         sweeper,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedProviderWithService inserts an approved provider and one active
// service priced at 1000, returning (providerID, ownerUserID, serviceID).
func seedProviderWithService(t *testing.T, db *gorm.DB) (uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()

	providerID := uuid.New()
	ownerID := uuid.New()
	serviceID := uuid.New()

	require.NoError(t, db.Create(&repository.ProviderModel{
		ID:          providerID,
		OwnerUserID: ownerID,
		Status:      "approved",
		Phone:       "+919800000000",
		QRCodeURL:   "https://cdn.example.com/qr/provider.png",
	}).Error)

	require.NoError(t, db.Create(&repository.ServiceModel{
		ID:         serviceID,
		ProviderID: providerID,
		Name:       "Deep home cleaning",
		Price:      1000,
		Currency:   "INR",
		Active:     true,
	}).Error)

	return providerID, ownerID, serviceID
}

// seedStalePendingBooking inserts a pending booking whose created_at is in
// the past by the given amount.
func seedStalePendingBooking(t *testing.T, db *gorm.DB, providerID, serviceID uuid.UUID, age time.Duration) uuid.UUID {
	t.Helper()
	createdAt := time.Now().UTC().Add(-age)

	model := repository.BookingModel{
		ID:               uuid.New(),
		CustomerID:       uuid.New(),
		ProviderID:       providerID,
		ServiceID:        serviceID,
		Status:           "pending",
		PaymentStatus:    "pending",
		TotalAmount:      1000,
		PlatformFee:      70,
		ProviderEarnings: 930,
		Currency:         "INR",
		ScheduledAt:      createdAt.Add(24 * time.Hour),
		AddressLine1:     "14 MG Road",
		City:             "Bengaluru",
		Pincode:          "560001",
		Version:          1,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed booking")
	return model.ID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingField polls the bookings table until check passes.
func waitForBookingField(t *testing.T, db *gorm.DB, bookingID uuid.UUID, check func(repository.BookingModel) bool, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if check(model) {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking never reached the expected state")
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

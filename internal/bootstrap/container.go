package bootstrap

import (
	"context"
	"log"

	"subscription-billing-be/internal/config"
	"subscription-billing-be/internal/constant"
	"subscription-billing-be/internal/controller"
	"subscription-billing-be/internal/gateway"
	midtransgw "subscription-billing-be/internal/gateway/midtrans"
	"subscription-billing-be/internal/pkg/logger"
	"subscription-billing-be/internal/pkg/mailer"
	"subscription-billing-be/internal/repository/unitofwork"
	"subscription-billing-be/internal/service"
	"subscription-billing-be/pkg/events"

	pkgNats "subscription-billing-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SubscriptionController controller.ISubscriptionController
	PlanController         controller.IPlanController

	// Background Services (Exposed for main.go to run)
	SchedulerService service.ISchedulerService
	ConsumerService  service.IConsumerService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	var eventPublisher events.Publisher
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		eventPublisher = natsPub
	}

	// Redis (job locks)
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Payment provider
	var billingGateway gateway.BillingGateway = midtransgw.NewGateway(
		cfg.Billing.MidtransServerKey,
		cfg.Billing.MidtransIsProduction,
		sysLogger,
	)

	// 3. Services
	billingProcessor := service.NewBillingProcessor(
		uowFactory,
		billingGateway,
		eventPublisher,
		pubSub,
		sysLogger,
		cfg.Billing.MaxPaymentAttempts,
		cfg.Billing.GracePeriodDays,
	)

	schedulerService := service.NewSchedulerService(
		rdb,
		billingProcessor,
		uowFactory,
		billingGateway,
		eventPublisher,
		pubSub,
		sysLogger,
		cfg.Jobs,
	)

	subscriptionService := service.NewSubscriptionService(
		uowFactory,
		billingGateway,
		eventPublisher,
		sysLogger,
		cfg.Billing.MaxActivePerCustomer,
	)

	planService := service.NewPlanService(uowFactory)

	consumerService := service.NewConsumerService(
		pubSub,
		constant.DunningTopicName,
		uowFactory,
		emailService,
	)

	// 4. Controllers
	return &Container{
		SubscriptionController: controller.NewSubscriptionController(subscriptionService),
		PlanController:         controller.NewPlanController(planService),
		SchedulerService:       schedulerService,
		ConsumerService:        consumerService,
		Logger:                 sysLogger,
	}
}

// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"

	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/pkg/mailer"
	"subscription-billing-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the dunning topic and turns each message into a
// customer email. Email sending stays off the billing path; a slow SMTP
// server delays notifications, never charges.
type consumerService struct {
	pubSub       *gochannel.GoChannel
	topicName    string
	uowFactory   unitofwork.RepositoryFactory
	emailService mailer.IEmailService
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	emailService mailer.IEmailService,
) IConsumerService {
	return &consumerService{
		pubSub:       pubSub,
		topicName:    topicName,
		uowFactory:   uowFactory,
		emailService: emailService,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.DunningMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal dunning message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	planName := payload.PlanName
	if planName == "" {
		uow := cs.uowFactory.NewUnitOfWork(ctx)
		if plan, err := uow.PlanRepository().FindOneByExternalId(ctx, payload.PlanId); err == nil && plan != nil {
			planName = plan.Name
		} else {
			planName = payload.PlanId
		}
	}

	var err error
	switch payload.Kind {
	case dto.DunningKindPaymentFailed:
		err = cs.emailService.SendPaymentFailed(payload.CustomerEmail, planName, payload.Amount, payload.Attempt, payload.MaxAttempts, payload.GraceDeadline)
	case dto.DunningKindCancelled:
		err = cs.emailService.SendSubscriptionCancelled(payload.CustomerEmail, planName, payload.CancelReason)
	default:
		log.Printf("[WARN] Unknown dunning kind %q, dropping message", payload.Kind)
		msg.Ack()
		return
	}

	if err != nil {
		log.Printf("[ERROR] Failed to send dunning email for subscription %s: %v", payload.SubscriptionId, err)
		msg.Nack()
		return
	}

	msg.Ack()
}

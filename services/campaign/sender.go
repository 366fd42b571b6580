package campaign

import (
	"context"
	"errors"
	"fmt"

	"smallbiznis-referral/pkg/mailer"
	"smallbiznis-referral/pkg/sms"
)

//go:generate mockgen -destination=mock_sender_test.go -package=campaign . Sender

var errUnsupportedChannel = errors.New("unsupported channel")

// Delivery is what a provider reports after accepting a message.
type Delivery struct {
	ProviderMessageID string
	// Delivered is set when the provider confirmed delivery synchronously.
	Delivered bool
}

type Sender interface {
	Send(ctx context.Context, msg *Message) (Delivery, error)
}

// Senders routes a message to the provider of its channel.
type Senders map[Channel]Sender

func NewSenders(m mailer.Mailer, s sms.Sender) Senders {
	return Senders{
		ChannelEmail: &emailSender{mailer: m},
		ChannelSMS:   &smsSender{sms: s},
	}
}

func (s Senders) Send(ctx context.Context, msg *Message) (Delivery, error) {
	sender, ok := s[msg.Channel]
	if !ok {
		return Delivery{}, fmt.Errorf("%w %q", errUnsupportedChannel, msg.Channel)
	}
	return sender.Send(ctx, msg)
}

type emailSender struct {
	mailer mailer.Mailer
}

func (e *emailSender) Send(ctx context.Context, msg *Message) (Delivery, error) {
	id, err := e.mailer.Send(ctx, mailer.Message{
		To:      msg.Recipient,
		ToName:  msg.RecipientName,
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{ProviderMessageID: id}, nil
}

type smsSender struct {
	sms sms.Sender
}

func (s *smsSender) Send(ctx context.Context, msg *Message) (Delivery, error) {
	res, err := s.sms.Send(ctx, msg.Recipient, msg.Body)
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{ProviderMessageID: res.MessageID, Delivered: res.Delivered}, nil
}

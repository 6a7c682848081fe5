// Package notifications delivers outbid, registration and lot won messages
// to users by email and SMS. Delivery is asynchronous and never reports back
// to the caller.
package notifications

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/templates"
)

// Payload keys understood by the message templates
const (
	KeyLotNumber      = "lot_number"
	KeyAmount         = "amount"
	KeyNextMinimumBid = "next_minimum_bid"
	KeyAuctionTitle   = "auction_title"
	KeyPaddle         = "paddle"
	KeyHammerPrice    = "hammer_price"
	KeyPremium        = "premium"
	KeyTotal          = "total"
)

// Notifier is a fire-and-forget notification sink
type Notifier interface {
	Notify(userId uint32, t models.NotificationType, payload map[string]interface{})
}

// Channel delivers a rendered message to one user over one medium
type Channel interface {
	Name() string
	Deliver(ctx context.Context, user *models.User, msg *Message) error
}

// UserLookup resolves recipients. store.Store satisfies it.
type UserLookup interface {
	GetUser(ctx context.Context, userId uint32) (*models.User, error)
}

// Message is a notification rendered for every channel
type Message struct {
	Type    models.NotificationType
	Subject string
	Html    string
	Plain   string
	// Sms is empty for types that are not sent by SMS
	Sms string
}

// FormatMoney renders an amount in minor units, e.g. 150000 -> "1500.00"
func FormatMoney(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

func intOf(payload map[string]interface{}, key string) int64 {
	switch v := payload[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func stringOf(payload map[string]interface{}, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

// Render builds the message for a notification type
func Render(t models.NotificationType, payload map[string]interface{}) (*Message, error) {
	msg := &Message{Type: t}
	lotNumber := intOf(payload, KeyLotNumber)

	switch t {
	case models.OutbidNotification:
		amount := FormatMoney(intOf(payload, KeyAmount))
		next := FormatMoney(intOf(payload, KeyNextMinimumBid))
		msg.Subject = fmt.Sprintf(templates.OutbidSubject, lotNumber)
		msg.Html = fmt.Sprintf(templates.HtmlOutbidTemplate, lotNumber, amount, next)
		msg.Plain = fmt.Sprintf(templates.PlainOutbidTemplate, lotNumber, amount, next)
	case models.RegistrationNotification:
		title := stringOf(payload, KeyAuctionTitle)
		paddle := intOf(payload, KeyPaddle)
		msg.Subject = fmt.Sprintf(templates.RegistrationSubject, title)
		msg.Html = fmt.Sprintf(templates.HtmlRegistrationTemplate, title, paddle)
		msg.Plain = fmt.Sprintf(templates.PlainRegistrationTemplate, title, paddle)
	case models.LotWonNotification:
		hammer := FormatMoney(intOf(payload, KeyHammerPrice))
		prem := FormatMoney(intOf(payload, KeyPremium))
		total := FormatMoney(intOf(payload, KeyTotal))
		msg.Subject = fmt.Sprintf(templates.LotWonSubject, lotNumber)
		msg.Html = fmt.Sprintf(templates.HtmlLotWonTemplate, lotNumber, hammer, prem, total)
		msg.Plain = fmt.Sprintf(templates.PlainLotWonTemplate, lotNumber, hammer, prem, total)
		msg.Sms = fmt.Sprintf(templates.SmsLotWonTemplate, lotNumber, total)
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}

	msg.Html = fmt.Sprintf(templates.HtmlEmailLayout, msg.Html)
	return msg, nil
}

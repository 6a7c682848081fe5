package notifications

import (
	"context"
	"net/http"

	"github.com/plivo/plivo-go"

	"github.com/delta/auction-house-server/models"
)

// SmsChannel sends the SMS form of a message through Plivo. Messages without
// an SMS form and users without a phone number are skipped.
type SmsChannel struct {
	source string
	client *plivo.Client
}

// NewSmsChannel creates an SmsChannel. httpClient may be nil.
func NewSmsChannel(authId, authToken, source string, httpClient *http.Client) (*SmsChannel, error) {
	client, err := plivo.NewClient(authId, authToken, &plivo.ClientOptions{HttpClient: httpClient})
	if err != nil {
		return nil, err
	}
	return &SmsChannel{source: source, client: client}, nil
}

func (sc *SmsChannel) Name() string {
	return "sms"
}

func (sc *SmsChannel) Deliver(ctx context.Context, user *models.User, msg *Message) error {
	if msg.Sms == "" || user.Phone == "" {
		return nil
	}
	_, err := sc.client.Messages.Create(plivo.MessageCreateParams{
		Src:  sc.source,
		Dst:  user.Phone,
		Text: msg.Sms,
	})
	return err
}

package notifications

import (
	"context"
	"errors"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/delta/auction-house-server/models"
)

const sendgridHost = "https://api.sendgrid.com"

// EmailChannel sends notifications through Sendgrid
type EmailChannel struct {
	apiKey     string
	senderName string
	senderAddr string
	client     *rest.Client
}

// NewEmailChannel creates an EmailChannel. httpClient may be nil.
func NewEmailChannel(apiKey, senderAddr string, httpClient *http.Client) *EmailChannel {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &EmailChannel{
		apiKey:     apiKey,
		senderName: "Auction House",
		senderAddr: senderAddr,
		client:     &rest.Client{HTTPClient: httpClient},
	}
}

func (ec *EmailChannel) Name() string {
	return "email"
}

func (ec *EmailChannel) Deliver(ctx context.Context, user *models.User, msg *Message) error {
	if user.Email == "" {
		return nil
	}

	from := mail.NewEmail(ec.senderName, ec.senderAddr)
	to := mail.NewEmail(user.Name, user.Email)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Plain, msg.Html)

	request := sendgrid.GetRequest(ec.apiKey, "/v3/mail/send", sendgridHost)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(message)

	response, err := ec.client.SendWithContext(ctx, request)
	if err != nil {
		return err
	} else if response.StatusCode >= 300 {
		return errors.New(response.Body)
	}
	return nil
}

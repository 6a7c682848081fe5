package notifications

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta/auction-house-server/models"
)

type fakeUsers map[uint32]*models.User

func (fu fakeUsers) GetUser(ctx context.Context, userId uint32) (*models.User, error) {
	if u, ok := fu[userId]; ok {
		return u, nil
	}
	return nil, models.NotFoundError{Entity: "User", Id: userId}
}

type recordingChannel struct {
	mu   sync.Mutex
	sent []*Message
	to   []uint32
	err  error
}

func (rc *recordingChannel) Name() string { return "recording" }

func (rc *recordingChannel) Deliver(ctx context.Context, user *models.User, msg *Message) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.sent = append(rc.sent, msg)
	rc.to = append(rc.to, user.Id)
	return rc.err
}

func (rc *recordingChannel) count() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.sent)
}

func TestRender(t *testing.T) {
	msg, err := Render(models.OutbidNotification, map[string]interface{}{
		KeyLotNumber:      uint32(12),
		KeyAmount:         int64(150000),
		KeyNextMinimumBid: int64(155000),
	})
	require.NoError(t, err)
	assert.Equal(t, "You have been outbid on lot 12", msg.Subject)
	assert.Contains(t, msg.Plain, "1500.00")
	assert.Contains(t, msg.Plain, "1550.00")
	assert.Contains(t, msg.Html, "<h2>Auction House</h2>")
	assert.Contains(t, msg.Html, "margin:10%;")
	assert.NotContains(t, msg.Html, "%!")
	assert.Empty(t, msg.Sms)

	msg, err = Render(models.LotWonNotification, map[string]interface{}{
		KeyLotNumber:   uint32(3),
		KeyHammerPrice: int64(60000000),
		KeyPremium:     int64(11700000),
		KeyTotal:       int64(71700000),
	})
	require.NoError(t, err)
	assert.Contains(t, msg.Sms, "717000.00")

	msg, err = Render(models.RegistrationNotification, map[string]interface{}{
		KeyAuctionTitle: "Old Masters",
		KeyPaddle:       uint32(104),
	})
	require.NoError(t, err)
	assert.Contains(t, msg.Plain, "paddle number is 104")

	_, err = Render("mystery", nil)
	assert.Error(t, err)
}

func TestDispatcherDeliversToEveryChannel(t *testing.T) {
	users := fakeUsers{7: {Id: 7, Email: "a@example.com"}}
	first := &recordingChannel{err: errors.New("provider down")}
	second := &recordingChannel{}

	d := NewDispatcher(users, 2, 10, first, second)
	d.Start()

	d.Notify(7, models.OutbidNotification, map[string]interface{}{KeyLotNumber: 1})
	d.Notify(99, models.OutbidNotification, nil)
	d.Stop()

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count(), "a failing channel does not stop the others")
	assert.Equal(t, []uint32{7}, second.to)

	d.Notify(7, models.OutbidNotification, nil)
	assert.Equal(t, 1, second.count(), "notifications after Stop are dropped")
}

func TestDispatcherNotifyNeverBlocks(t *testing.T) {
	d := NewDispatcher(fakeUsers{}, 1, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Notify(1, models.OutbidNotification, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	d.Start()
	d.Stop()
}

func TestEmailChannel(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.sendgrid.com/v3/mail/send",
		httpmock.NewStringResponder(202, ""))

	ec := NewEmailChannel("SG.key", "bids@auctionhouse.test", client)
	msg := &Message{Subject: "s", Plain: "p", Html: "<p>h</p>"}

	err := ec.Deliver(context.Background(), &models.User{Name: "A", Email: "a@example.com"}, msg)
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	// users without an email address are skipped
	require.NoError(t, ec.Deliver(context.Background(), &models.User{}, msg))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestEmailChannelReportsProviderErrors(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.sendgrid.com/v3/mail/send",
		httpmock.NewStringResponder(401, `{"errors":[{"message":"bad key"}]}`))

	ec := NewEmailChannel("SG.wrong", "bids@auctionhouse.test", client)
	err := ec.Deliver(context.Background(), &models.User{Email: "a@example.com"}, &Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestSmsChannelSkipsMessagesWithoutSmsForm(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	sc, err := NewSmsChannel("MAXXXXXXXXXXXXXXXXXX", "token", "AUCTION", client)
	require.NoError(t, err)

	require.NoError(t, sc.Deliver(context.Background(), &models.User{Phone: "+911234567890"}, &Message{Plain: "p"}))
	require.NoError(t, sc.Deliver(context.Background(), &models.User{}, &Message{Sms: "s"}))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

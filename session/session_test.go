package session

import (
	"context"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/store"
	testutils "github.com/delta/auction-house-server/utils/test"
)

func newManager(t *testing.T) (*Manager, *testutils.FakeClock) {
	clock := testutils.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	m, err := NewManager(store.NewMemoryStore(clock), Config{
		Secret:    "hellobidders",
		TTL:       time.Hour,
		CacheSize: 16,
		Clock:     clock,
	})
	require.NoError(t, err)
	return m, clock
}

func TestRegisterAndLogin(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	user, err := m.Register(ctx, " Collector@Example.com ", "A. Collector", "+441234567890", "impasto-2026")
	require.NoError(t, err)
	assert.Equal(t, "collector@example.com", user.Email)
	assert.NotEqual(t, "impasto-2026", user.PasswordHash)

	_, err = m.Register(ctx, "collector@example.com", "Someone Else", "", "another-password")
	assert.Equal(t, models.AlreadyExistsError, err)

	sess, got, err := m.Login(ctx, "COLLECTOR@example.com", "impasto-2026")
	require.NoError(t, err)
	assert.Equal(t, user.Id, got.Id)
	assert.Equal(t, user.Id, sess.UserId)
	assert.False(t, sess.IsAdmin)

	_, _, err = m.Login(ctx, "collector@example.com", "wrong-password")
	assert.Equal(t, models.UnauthorizedError, err)
	_, _, err = m.Login(ctx, "nobody@example.com", "impasto-2026")
	assert.Equal(t, models.UnauthorizedError, err)
}

func TestRegisterValidation(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	cases := map[string][3]string{
		"email":    {"not-an-email", "Name", "long-enough"},
		"name":     {"a@example.com", " ", "long-enough"},
		"password": {"a@example.com", "Name", "short"},
	}
	for field, in := range cases {
		_, err := m.Register(ctx, in[0], in[1], "", in[2])
		var verr models.ValidationError
		require.ErrorAs(t, err, &verr, field)
		assert.Equal(t, field, verr.Field)
	}
}

func TestValidate(t *testing.T) {
	m, clock := newManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "collector@example.com", "A. Collector", "", "impasto-2026")
	require.NoError(t, err)
	sess, _, err := m.Login(ctx, "collector@example.com", "impasto-2026")
	require.NoError(t, err)

	got, err := m.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.UserId, got.UserId)

	// cached on the second call
	again, err := m.Validate(sess.Token)
	require.NoError(t, err)
	assert.Same(t, got, again)

	_, err = m.Validate("")
	assert.Equal(t, models.UnauthorizedError, err)
	_, err = m.Validate(sess.Token + "x")
	assert.Equal(t, models.UnauthorizedError, err)

	clock.Advance(2 * time.Hour)
	_, err = m.Validate(sess.Token)
	assert.Equal(t, models.UnauthorizedError, err)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	m, clock := newManager(t)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserId:         1,
		IsAdmin:        true,
		StandardClaims: jwt.StandardClaims{ExpiresAt: clock.Now().Add(time.Hour).Unix()},
	})
	signed, err := forged.SignedString([]byte("someone-elses-secret"))
	require.NoError(t, err)

	_, err = m.Validate(signed)
	assert.Equal(t, models.UnauthorizedError, err)
}

func TestLogout(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "collector@example.com", "A. Collector", "", "impasto-2026")
	require.NoError(t, err)
	sess, _, err := m.Login(ctx, "collector@example.com", "impasto-2026")
	require.NoError(t, err)
	_, err = m.Validate(sess.Token)
	require.NoError(t, err)

	m.Logout(sess.Token)
	_, err = m.Validate(sess.Token)
	assert.Equal(t, models.UnauthorizedError, err)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := NewContext(context.Background(), &Session{UserId: 7})
	sess, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, uint32(7), sess.UserId)
}

package qr_test

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	qr "ms-booking/internal/booking/qr_generator"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBooking() models.Booking {
	return models.Booking{
		ID:            12,
		EventID:       3,
		AttendeeName:  "Alice",
		AttendeeEmail: "alice@x.com",
		Slot:          "10:00",
		BookedAt:      time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestGenerateConfirmationQR_IsPNG(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")

	png1, err := gen.GenerateConfirmationQR(sampleBooking(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, png1)

	img, err := png.Decode(bytes.NewReader(png1))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestSealOpen_RoundTrip(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")

	token, err := gen.Seal(sampleBooking())
	require.NoError(t, err)

	c, err := gen.Open(token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), c.BookingID)
	assert.Equal(t, int64(3), c.EventID)
	assert.Equal(t, "10:00", c.Slot)
	assert.Equal(t, "alice@x.com", c.AttendeeEmail)
	assert.True(t, c.BookedAt.Equal(sampleBooking().BookedAt))
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")

	a, err := gen.Seal(sampleBooking())
	require.NoError(t, err)
	b, err := gen.Seal(sampleBooking())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_RejectsForeignOrTamperedTokens(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")
	other := qr.NewQRGenerator("another-secret")

	token, err := gen.Seal(sampleBooking())
	require.NoError(t, err)

	_, err = other.Open(token)
	assert.Error(t, err)

	tampered := []byte(token)
	tampered[len(tampered)/2] ^= 0x01
	_, err = gen.Open(string(tampered))
	assert.Error(t, err)

	_, err = gen.Open("%%%")
	assert.Error(t, err)
}

func TestConfirmation_Matches(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")
	b := sampleBooking()

	token, err := gen.Seal(b)
	require.NoError(t, err)
	c, err := gen.Open(token)
	require.NoError(t, err)
	assert.True(t, c.Matches(b))

	moved := b
	moved.Slot = "11:00"
	assert.False(t, c.Matches(moved))

	rebooked := b
	rebooked.BookedAt = b.BookedAt.Add(time.Microsecond)
	assert.False(t, c.Matches(rebooked))
}

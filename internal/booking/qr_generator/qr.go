package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"ms-booking/internal/models"

	"github.com/skip2/go-qrcode"
)

// Confirmation is the payload sealed into a booking's QR code.
type Confirmation struct {
	BookingID     int64     `json:"booking_id"`
	EventID       int64     `json:"event_id"`
	Slot          string    `json:"slot"`
	AttendeeEmail string    `json:"attendee_email"`
	BookedAt      time.Time `json:"booked_at"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// GenerateConfirmationQR returns a PNG encoding the sealed confirmation.
func (q *QRGenerator) GenerateConfirmationQR(booking models.Booking, size int) ([]byte, error) {
	token, err := q.Seal(booking)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}

// Seal encrypts the booking's confirmation into a URL-safe token.
func (q *QRGenerator) Seal(booking models.Booking) (string, error) {
	data, err := json.Marshal(Confirmation{
		BookingID:     booking.ID,
		EventID:       booking.EventID,
		Slot:          booking.Slot,
		AttendeeEmail: booking.AttendeeEmail,
		BookedAt:      booking.BookedAt.UTC(),
	})
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// Open reverses Seal. Tokens sealed under another secret or altered in
// transit are rejected.
func (q *QRGenerator) Open(token string) (*Confirmation, error) {
	data, err := decryptAES(token, q.secret)
	if err != nil {
		return nil, err
	}
	var c Confirmation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode confirmation: %w", err)
	}
	return &c, nil
}

// Matches reports whether the confirmation still describes the booking as
// stored. A booking moved or rebooked after the code was issued no longer
// matches.
func (c *Confirmation) Matches(b models.Booking) bool {
	return c.BookingID == b.ID &&
		c.EventID == b.EventID &&
		c.Slot == b.Slot &&
		c.AttendeeEmail == b.AttendeeEmail &&
		c.BookedAt.Equal(b.BookedAt)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func decryptAES(token string, key []byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("token too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open token: %w", err)
	}
	return data, nil
}

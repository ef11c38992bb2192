package booking

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Booking reference and QR payload formats are parsed by existing clients and
// must stay bit-exact: "SL" + YYYYMMDD + 6 uppercase alphanumerics, and
// "SL-GOV-{reference}-{appointmentID}".
const (
	referencePrefix   = "SL"
	qrPrefix          = "SL-GOV"
	referenceRandLen  = 6
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewBookingReference generates a reference for the given booking day.
// Uniqueness is enforced by the store's unique constraint; callers retry on
// collision rather than trusting randomness.
func NewBookingReference(now time.Time) string {
	buf := make([]byte, referenceRandLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// there is nothing sensible to degrade to.
		panic(fmt.Sprintf("booking reference entropy: %v", err))
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return referencePrefix + now.Format("20060102") + string(buf)
}

// QRPayload derives the scannable payload for a booked appointment.
func QRPayload(bookingReference string, appointmentID int64) string {
	return fmt.Sprintf("%s-%s-%d", qrPrefix, bookingReference, appointmentID)
}

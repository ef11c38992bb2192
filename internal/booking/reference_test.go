package booking

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var referencePattern = regexp.MustCompile(`^SL\d{8}[A-Z0-9]{6}$`)

func TestNewBookingReferenceFormat(t *testing.T) {
	day := time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
	ref := NewBookingReference(day)
	require.Regexp(t, referencePattern, ref)
	assert.Equal(t, "SL20250314", ref[:10])
}

func TestNewBookingReferenceUniqueness(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		ref := NewBookingReference(now)
		if _, dup := seen[ref]; dup {
			// A single collision in 10k draws from a 36^6 space would be
			// astronomically unlikely; treat it as a generator bug.
			t.Fatalf("duplicate reference %s after %d draws", ref, i)
		}
		seen[ref] = struct{}{}
	}
}

func TestQRPayload(t *testing.T) {
	assert.Equal(t, "SL-GOV-SL20250314ABC123-42", QRPayload("SL20250314ABC123", 42))
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", c.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, c.KafkaBrokers)
	assert.Equal(t, "aud", c.Currency)
	assert.Equal(t, ReceiptModeAll, c.ReceiptMode)
	assert.Equal(t, 5*time.Second, c.OutboxInterval)
	assert.Equal(t, 10*time.Minute, c.OutboxStaleAfter)
	assert.Equal(t, []string{"123 Fake st", "Melbourne VIC 3000", "Australia"}, c.PickupAddress)
	assert.Equal(t, "Australia/Sydney", c.Location().String())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("CURRENCY", "AUD")
	t.Setenv("RECEIPT_MODE", ReceiptModePickupOnly)
	t.Setenv("NOTIFIER_WORKERS", "0")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, "aud", c.Currency)
	assert.Equal(t, ReceiptModePickupOnly, c.ReceiptMode)
	assert.Equal(t, 1, c.NotifierWorkers)
}

func TestLoadRejectsUnknownReceiptMode(t *testing.T) {
	t.Setenv("RECEIPT_MODE", "sometimes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECEIPT_MODE")
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("RECEIPT_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECEIPT_TIMEZONE")
}

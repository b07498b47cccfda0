package testutil

import (
	"github.com/google/uuid"

	"github.com/HerbHall/fleetaudit/pkg/models"
)

// NewClient returns a Client with sensible defaults, suitable for test fixtures.
// Override individual fields after creation as needed.
func NewClient(opts ...func(*models.Client)) models.Client {
	c := models.Client{
		ID:           "k_" + uuid.New().String()[:8],
		MAC:          "00:11:22:33:44:55",
		Description:  "test-client",
		IP:           "10.0.0.100",
		Manufacturer: "Test Manufacturing Co",
		Status:       "Online",
		Usage:        models.Usage{Sent: 100, Recv: 200},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithMAC sets the client's MAC address.
func WithMAC(mac string) func(*models.Client) {
	return func(c *models.Client) { c.MAC = mac }
}

// WithManufacturer sets the client's manufacturer string.
func WithManufacturer(m string) func(*models.Client) {
	return func(c *models.Client) { c.Manufacturer = m }
}

// WithDescription sets the client's description.
func WithDescription(d string) func(*models.Client) {
	return func(c *models.Client) { c.Description = d }
}

// WithUsage sets the client's usage counters.
func WithUsage(sent, recv float64) func(*models.Client) {
	return func(c *models.Client) { c.Usage = models.Usage{Sent: sent, Recv: recv} }
}

package domain

import "time"

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is a pickup point with its human-readable address.
type Location struct {
	Point
	Address string `json:"address"`
}

// Event is the snapshot of a listing taken at publish time.
//
// It is handed to the dispatcher by value and must not be mutated afterwards;
// sends for the same event run concurrently.
type Event struct {
	ID          string    `json:"id"`
	PublisherID string    `json:"publisher_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Quantity    float64   `json:"quantity"`
	Unit        string    `json:"unit"`
	ExpiresAt   time.Time `json:"expires_at"`
	Pickup      Location  `json:"pickup"`
	Category    string    `json:"category"`
}

// Recipient is the snapshot of a notifiable party. Any contact field may be empty.
type Recipient struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DeviceToken string `json:"device_token,omitempty"`
	Verified    bool   `json:"verified"`
	// Location is nil when the recipient never shared one.
	Location *Point `json:"location,omitempty"`
}

// IsPublisher reports whether r published e. Such recipients are never notified.
func (e Event) IsPublisher(r Recipient) bool {
	return e.PublisherID != "" && r.ID == e.PublisherID
}

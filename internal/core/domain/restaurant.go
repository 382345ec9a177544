package domain

import "time"

// RestaurantInfo is the venue profile shown across the console.
type RestaurantInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	TaxRate   float64   `json:"taxRate,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

package delivery

import (
	"time"

	"github.com/google/uuid"
)

// Contact is an address-book entry mapping channel kinds to addresses. The
// scheduler never mutates contacts, they are created and edited by the
// embedding application only.
type Contact struct {
	Uuid uuid.UUID `json:"uuid"`

	Name      string             `json:"name"`
	Addresses map[Channel]string `json:"addresses"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Contact) Validate() error {
	if c.Name == "" {
		return ValidationError{Field: "name", Reason: "must not be empty"}
	}

	for channel, address := range c.Addresses {
		if !channel.Valid() {
			return ValidationError{Field: "addresses", Reason: "unknown channel kind"}
		}

		if address == "" {
			return ValidationError{Field: "addresses", Reason: "address must not be empty"}
		}
	}

	if len(c.Addresses) == 0 {
		return ValidationError{Field: "addresses", Reason: "at least one channel address required"}
	}

	return nil
}

// Address returns the contact's address for the channel.
func (c *Contact) Address(channel Channel) (string, bool) {
	address, ok := c.Addresses[channel]
	return address, ok && address != ""
}

package domain

import "time"

type CardStatus string

const (
	CardStatusActive  CardStatus = "active"
	CardStatusBlocked CardStatus = "blocked"
)

// Cardholder is a bank customer with a single credit card.
type Cardholder struct {
	ID               int64
	Username         string
	PhoneNumber      string
	CreditCardNumber string
	CardStatus       CardStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LastFour returns the last four digits of the card number.
func (c Cardholder) LastFour() string {
	digits := make([]rune, 0, len(c.CreditCardNumber))
	for _, r := range c.CreditCardNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}

// CardEvent is one entry of the card status audit trail.
type CardEvent struct {
	PhoneNumber string
	Username    string
	Action      string
	Status      CardStatus
	OccurredAt  time.Time
	TTL         int64
}

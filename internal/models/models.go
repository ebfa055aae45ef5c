package models

import "time"

// Contestant represents a registered pageant contestant
type Contestant struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Age          int       `json:"age"`
	Bio          string    `json:"bio"`
	Photo        string    `json:"photo,omitempty"` // filename under the uploads directory
	HasPhotoBlob bool      `json:"hasPhotoBlob"`
	Votes        int       `json:"votes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// ContestantPhoto is the stored image of a contestant.
// Exactly one of Blob or Filename is set; Filename names a file under the uploads directory.
type ContestantPhoto struct {
	Blob        []byte
	ContentType string
	Filename    string
}

// Vote is a single immutable ballot
type Vote struct {
	ID           int64     `json:"id"`
	ContestantID int64     `json:"contestantId"`
	VoterEmail   string    `json:"voterEmail"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	VotedAt      time.Time `json:"votedAt"`
}

// ContestantResult is one row of the live tally
type ContestantResult struct {
	ContestantID int64  `json:"id"`
	FullName     string `json:"fullName"`
	Votes        int    `json:"votes"`
	Percentage   int    `json:"percentage"`
}

// TallyMismatch reports a contestant whose counter disagrees with its vote rows
type TallyMismatch struct {
	ContestantID int64 `json:"contestant_id"`
	Counter      int   `json:"counter"`
	Actual       int   `json:"actual"`
}

// PaymentStatus is the lifecycle state of a ticket payment
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentFailed || s == PaymentCancelled
}

// Ticket represents a ticket purchase and its payment state
type Ticket struct {
	ID                   int64         `json:"id"`
	BuyerName            string        `json:"buyerName"`
	BuyerEmail           string        `json:"buyerEmail"`
	Phone                string        `json:"phone"`
	TicketType           string        `json:"ticketType"`
	Price                float64       `json:"price"`
	PaymentMethod        string        `json:"paymentMethod"`
	PaymentStatus        PaymentStatus `json:"paymentStatus"`
	MerchantReference    string        `json:"merchantReference"`
	TransactionReference string        `json:"transactionReference,omitempty"`
	PollURL              string        `json:"pollUrl,omitempty"`
	PurchasedAt          time.Time     `json:"purchasedAt"`
}

// TicketStats aggregates tickets of a single type
type TicketStats struct {
	TicketType   string  `json:"ticketType"`
	Count        int     `json:"count"`
	PaidCount    int     `json:"paidCount"`
	TotalRevenue float64 `json:"totalRevenue"`
	PaidRevenue  float64 `json:"paidRevenue"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

package handlers

// ContestantRegisterRequest is the JSON form of a contestant registration.
// Multipart registrations carry the same fields plus an optional photo part.
type ContestantRegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Age      int    `json:"age"`
	Bio      string `json:"bio"`
}

// VoteRequest represents a request to cast a vote
type VoteRequest struct {
	ContestantID int64  `json:"contestantId"`
	VoterEmail   string `json:"voterEmail"`
}

// TicketPurchaseRequest represents a request to buy a ticket through the gateway
type TicketPurchaseRequest struct {
	BuyerName  string  `json:"buyerName"`
	BuyerEmail string  `json:"buyerEmail"`
	Phone      string  `json:"phone"`
	TicketType string  `json:"ticketType"`
	Price      float64 `json:"price"`
}

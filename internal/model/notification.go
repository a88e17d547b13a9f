package model

import "time"

type EventKind string

const (
	EventBidSubmitted   EventKind = "bid_submitted"
	EventBidUnderReview EventKind = "bid_under_review"
	EventBidWithdrawn   EventKind = "bid_withdrawn"
	EventBidAwarded     EventKind = "bid_awarded"
	EventBidRejected    EventKind = "bid_rejected"
	EventPackageClosed  EventKind = "package_closed"
)

var eventMessages = map[EventKind]string{
	EventBidSubmitted:   "A new bid was submitted on your package",
	EventBidUnderReview: "Your bid is under review",
	EventBidWithdrawn:   "A bid on your package was withdrawn",
	EventBidAwarded:     "Your bid was awarded",
	EventBidRejected:    "Your bid was rejected",
	EventPackageClosed:  "A package you bid on was closed",
}

func (k EventKind) Message() string {
	return eventMessages[k]
}

// Notification is written once and never updated.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Kind        EventKind `json:"kind"`
	EntityID    string    `json:"entity_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

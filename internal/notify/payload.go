package notify

// Payload is the structured body pushed with an event. One concrete type
// exists per event name, replacing the loose key/value maps the clients
// already consume — the JSON wire shape is unchanged, only the Go side is
// typed.
type Payload interface {
	// EventName is the SSE event name clients subscribe to.
	EventName() string
}

// NoticePayload announces a published notice.
type NoticePayload struct {
	NoticeID string `json:"noticeId,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

func (NoticePayload) EventName() string { return "notice" }

// VaccinationPayload carries one vaccination reminder.
type VaccinationPayload struct {
	PetID       string `json:"petId"`
	PetName     string `json:"petName"`
	Round       int    `json:"round"`
	DueDate     string `json:"dueDate"` // yyyy-mm-dd
	WindowStart string `json:"windowStart,omitempty"`
	WindowEnd   string `json:"windowEnd,omitempty"`
	Message     string `json:"message"`
}

func (VaccinationPayload) EventName() string { return "vaccination" }

// AntiparasiticPayload carries one heartworm-preventive reminder.
type AntiparasiticPayload struct {
	PetID   string `json:"petId"`
	PetName string `json:"petName"`
	DueDate string `json:"dueDate"` // yyyy-mm-dd
	Message string `json:"message"`
}

func (AntiparasiticPayload) EventName() string { return "antiparasitic" }

// ReservationPayload reports a reservation status change.
type ReservationPayload struct {
	ReservationID string `json:"reservationId"`
	Status        string `json:"status"` // APPROVED | REJECTED | CANCELLED
	Message       string `json:"message"`
}

func (ReservationPayload) EventName() string { return "reservation" }

// ChatPayload carries one chat message to a room's subscribers.
type ChatPayload struct {
	RoomID     string `json:"roomId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Message    string `json:"message"`
	SentAt     string `json:"sentAt"` // RFC 3339
}

func (ChatPayload) EventName() string { return "chat" }

// payloadFor maps a notification type to its payload shape for callers that
// dispatch with only (type, content), e.g. the internal HTTP entry point.
// Every known type gets its own variant so the SSE event name always agrees
// with the persisted record's type; only unknown types degrade to a notice.
func payloadFor(typ Type, content string) Payload {
	switch typ {
	case TypeNotice:
		return NoticePayload{Title: content, Content: content}
	case TypeReservation:
		return ReservationPayload{Message: content}
	case TypeVaccination:
		return VaccinationPayload{Message: content}
	case TypeAntiparasitic:
		return AntiparasiticPayload{Message: content}
	case TypeChat:
		return ChatPayload{Message: content}
	default:
		return NoticePayload{Content: content}
	}
}

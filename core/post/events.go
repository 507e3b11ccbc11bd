package post

// Event names pushed to connected viewers.
const (
	EventPostUpdated = "postUpdated"
	EventPostDeleted = "postDeleted"
	EventActiveUsers = "activeUsers"
)

// DeletedPayload is the body of a postDeleted event.
type DeletedPayload struct {
	ID string `json:"id"`
}

// EventSink receives post notifications after the change is committed.
// Implementations must not block.
type EventSink interface {
	PostUpdated(p Post)
	PostDeleted(id string)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) PostUpdated(Post)   {}
func (NopSink) PostDeleted(string) {}

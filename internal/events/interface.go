package events

// Publisher fans lifecycle events out to the event stream so downstream
// consumers (stats jobs, bots) can react without polling the database.
type Publisher interface {
	Publish(event EventType, payload any) error
	Decode(data []byte, returnValue any) error
	Close()
}

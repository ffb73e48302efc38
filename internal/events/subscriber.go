package events

// Subscriber is the consuming side of the bus. The CLI push tail and any
// external delivery gateway read through it.
type Subscriber interface {
	// Subscribe delivers raw payloads for topic on the returned channel
	// until cancel is called; cancel also closes the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

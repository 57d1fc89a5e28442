package conn

// State is the Connection's position in its request lifecycle state
// machine.
type State int

const (
	StateNew State = iota
	StateReadingHeaders
	StateReadingBody
	StateProcessing
	StateWritingResponse
	StateKeepAlive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateReadingHeaders:
		return "READING_HEADERS"
	case StateReadingBody:
		return "READING_BODY"
	case StateProcessing:
		return "PROCESSING"
	case StateWritingResponse:
		return "WRITING_RESPONSE"
	case StateKeepAlive:
		return "KEEP_ALIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

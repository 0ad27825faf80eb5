package types

// Fragment is one piece of a streamed model response. The engine treats
// fragments as opaque text; FinishReason is set on the final fragment only.
type Fragment struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Stream is a single-consumer sequence of fragments. The producer closes the
// channel when the response is complete or the request is cancelled.
type Stream <-chan Fragment

package oscproto

import "sync"

// Recorder is a Writer that keeps every message in memory
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Write records msg
func (r *Recorder) Write(msg Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return nil
}

// Messages returns a copy of everything recorded so far
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Find returns the first message sent to addr
func (r *Recorder) Find(addr string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.Address == addr {
			return m, true
		}
	}
	return Message{}, false
}

// Addresses lists recorded addresses in send order
func (r *Recorder) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Address
	}
	return out
}

// Reset drops recorded messages
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}

package rpcstream

import "sync"

// Registry tracks every open stream on one connection, keyed by streamID.
// The client and server each own one Registry per connection they manage.
type Registry struct {
	mu      sync.Mutex
	streams map[uint64]*Stream
	nextID  uint64
}

// NewRegistry returns an empty stream registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[uint64]*Stream)}
}

// Open allocates the next local streamID and registers a new Stream for it.
// The server side uses this when a stream-open method handler runs, minting
// the ID its response then carries back to the client.
func (r *Registry) Open(sender Sender) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s := New(r.nextID, sender)
	r.streams[s.ID] = s
	return s
}

// Add registers an already-identified stream. The client side uses this to
// adopt the streamID a stream-open call's response carried, so that its
// registry key matches the server-assigned ID both peers agree on.
func (r *Registry) Add(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[s.ID] = s
}

// Get looks up a stream by ID.
func (r *Registry) Get(id uint64) (*Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[id]
	return s, ok
}

// Remove drops a stream from the registry without closing it; callers close
// the stream separately so pending requests are completed exactly once.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, id)
}

// CloseAll closes every registered stream with cause and empties the
// registry, used when the underlying connection fails or is shut down.
func (r *Registry) CloseAll(cause error) {
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[uint64]*Stream)
	r.mu.Unlock()

	for _, s := range streams {
		s.Close(cause)
	}
}

package broker

// Room pairs the participant that created it with at most one joiner.
type Room struct {
	// ID is the normalised room code.
	ID string

	// Host is the client who created the room.
	Host *Client

	// Peer is the client who joined the room. Filled at most once.
	Peer *Client
}

// Has reports whether c is a member of the room.
func (r *Room) Has(c *Client) bool {
	return c != nil && (r.Host == c || r.Peer == c)
}

// Other returns the member that is not c, or nil.
func (r *Room) Other(c *Client) *Client {
	switch c {
	case r.Host:
		return r.Peer
	case r.Peer:
		return r.Host
	}
	return nil
}

// Registry is the in-memory table of rooms. It is owned by the hub goroutine
// and is not safe for concurrent use.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create registers a room with host, replacing any room with the same id.
// The replaced room, if any, is returned.
func (r *Registry) Create(id string, host *Client) (room, replaced *Room) {
	replaced = r.rooms[id]
	room = &Room{ID: id, Host: host}
	r.rooms[id] = room
	return room, replaced
}

func (r *Registry) Get(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) Delete(id string) {
	delete(r.rooms, id)
}

// RoomsOf returns every room c belongs to.
func (r *Registry) RoomsOf(c *Client) []*Room {
	var out []*Room
	for _, room := range r.rooms {
		if room.Has(c) {
			out = append(out, room)
		}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.rooms)
}

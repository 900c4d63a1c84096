package signaling

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mediline/telehealth-server-go/internal/model"
)

const maxRoomMembers = 2

// Deliverer pushes an event to one user's live channel, reporting whether a
// channel was found. Satisfied by *realtime.Registry.
type Deliverer interface {
	Send(userID string, event any) bool
}

// Relay forwards signaling messages between the participants of one call
// room. Payloads are opaque; the relay only enforces room membership and
// delivery addressing. Delivery failures are logged, never raised: the
// client-side signaling protocol tolerates dropped messages and resends.
type Relay struct {
	deliverer Deliverer

	mu    sync.Mutex
	rooms map[string]map[string]struct{} // roomID -> member set
}

func NewRelay(deliverer Deliverer) *Relay {
	return &Relay{
		deliverer: deliverer,
		rooms:     make(map[string]map[string]struct{}),
	}
}

// Join adds userID to the room, creating the room on first join, and
// announces the join to the members already present. Reports false when the
// room is already full.
func (r *Relay) Join(roomID, userID string) bool {
	r.mu.Lock()
	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]struct{})
		r.rooms[roomID] = room
	}
	if _, member := room[userID]; !member && len(room) >= maxRoomMembers {
		r.mu.Unlock()
		log.Warn().
			Str("roomId", roomID).
			Str("userId", userID).
			Msg("join rejected, room full")
		return false
	}
	room[userID] = struct{}{}
	peers := otherMembers(room, userID)
	r.mu.Unlock()

	log.Info().Str("roomId", roomID).Str("userId", userID).Msg("joined signaling room")

	r.fanOut(roomID, peers, model.SignalEvent{
		Type:   model.SignalTypeJoin,
		RoomID: roomID,
		From:   userID,
	})
	return true
}

// Leave removes userID from the room and tears the room down when it was the
// last member. Remaining members are told the peer left.
func (r *Relay) Leave(roomID, userID string) {
	r.mu.Lock()
	room := r.rooms[roomID]
	if room == nil {
		r.mu.Unlock()
		return
	}
	if _, member := room[userID]; !member {
		r.mu.Unlock()
		return
	}
	delete(room, userID)
	empty := len(room) == 0
	if empty {
		delete(r.rooms, roomID)
	}
	peers := otherMembers(room, userID)
	r.mu.Unlock()

	log.Info().
		Str("roomId", roomID).
		Str("userId", userID).
		Bool("roomClosed", empty).
		Msg("left signaling room")

	r.fanOut(roomID, peers, model.SignalEvent{
		Type:   model.SignalTypeLeave,
		RoomID: roomID,
		From:   userID,
	})
}

// Relay delivers frame to the other participants of the room, never back to
// the sender. A missing room, a non-member sender or a targeted recipient
// outside the room make this a logged no-op.
func (r *Relay) Relay(roomID, senderID string, frame model.SignalFrame) {
	r.mu.Lock()
	room := r.rooms[roomID]
	if room == nil {
		r.mu.Unlock()
		log.Debug().Str("roomId", roomID).Msg("relay on unknown room, dropping")
		return
	}
	if _, member := room[senderID]; !member {
		r.mu.Unlock()
		log.Warn().
			Str("roomId", roomID).
			Str("userId", senderID).
			Msg("relay from non-member, dropping")
		return
	}

	var recipients []string
	if frame.Target != "" && frame.Target != senderID {
		if _, member := room[frame.Target]; member {
			recipients = []string{frame.Target}
		}
	} else if frame.Target == "" {
		recipients = otherMembers(room, senderID)
	}
	r.mu.Unlock()

	r.fanOut(roomID, recipients, model.SignalEvent{
		Type:    frame.Type,
		RoomID:  roomID,
		From:    senderID,
		Target:  frame.Target,
		Payload: frame.Payload,
	})
}

// Members returns the current member ids of the room.
func (r *Relay) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	members := make([]string, 0, len(room))
	for id := range room {
		members = append(members, id)
	}
	return members
}

// LeaveAll removes userID from every room it joined. Called when a user's
// connection drops.
func (r *Relay) LeaveAll(userID string) {
	r.mu.Lock()
	var roomIDs []string
	for roomID, room := range r.rooms {
		if _, member := room[userID]; member {
			roomIDs = append(roomIDs, roomID)
		}
	}
	r.mu.Unlock()

	for _, roomID := range roomIDs {
		r.Leave(roomID, userID)
	}
}

func (r *Relay) fanOut(roomID string, recipients []string, event model.SignalEvent) {
	for _, userID := range recipients {
		if !r.deliverer.Send(userID, event) {
			log.Debug().
				Str("roomId", roomID).
				Str("userId", userID).
				Str("type", event.Type).
				Msg("signaling recipient not connected, dropping")
		}
	}
}

func otherMembers(room map[string]struct{}, except string) []string {
	others := make([]string, 0, len(room))
	for id := range room {
		if id != except {
			others = append(others, id)
		}
	}
	return others
}

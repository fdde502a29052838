package chat

import (
	"testing"

	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/models"
)

func newTestClient(room RoomID) *Client {
	return &Client{
		ID:     "c-" + room.String(),
		Room:   room,
		Sender: models.SenderGuardian,
		send:   make(chan WSMessage, 4),
		logger: zap.NewNop(),
	}
}

func TestHubRegisterUnregisterOccupancy(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	room := RoomID{SchoolID: 3, StudentID: 11}

	a := newTestClient(room)
	a.ID = "a"
	a.hub = hub
	b := newTestClient(room)
	b.ID = "b"
	b.hub = hub

	hub.Register(a)
	hub.Register(b)
	if n := hub.Occupancy(room); n != 2 {
		t.Fatalf("Occupancy = %d, want 2", n)
	}

	hub.Unregister(a)
	if n := hub.Occupancy(room); n != 1 {
		t.Fatalf("Occupancy = %d, want 1", n)
	}
	hub.Unregister(b)
	if n := hub.Occupancy(room); n != 0 {
		t.Fatalf("Occupancy = %d, want 0", n)
	}
}

func TestHubPublishFallsBackToLocalBroadcast(t *testing.T) {
	// Without Redis, Publish must still reach local clients in the room and
	// only that room.
	hub := NewHub(zap.NewNop(), nil, nil)
	room := RoomID{SchoolID: 3, StudentID: 11}
	other := RoomID{SchoolID: 3, StudentID: 12}

	in := newTestClient(room)
	in.hub = hub
	out := newTestClient(other)
	out.hub = hub
	hub.Register(in)
	hub.Register(out)

	hub.Publish(room, "chat_message", map[string]string{"content": "hi"})

	select {
	case msg := <-in.send:
		if msg.Event != "chat_message" {
			t.Fatalf("event = %q, want chat_message", msg.Event)
		}
	default:
		t.Fatal("client in room received nothing")
	}
	select {
	case msg := <-out.send:
		t.Fatalf("client in other room received %+v", msg)
	default:
	}
}

func TestRoomIDString(t *testing.T) {
	room := RoomID{SchoolID: 14, StudentID: 208}
	if got := room.String(); got != "14:208" {
		t.Fatalf("String() = %q, want 14:208", got)
	}
}

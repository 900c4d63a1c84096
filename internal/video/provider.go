package video

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Namespace for deriving room ids from appointment ids. Fixed so every
// instance derives the same room for the same appointment.
var roomNamespace = uuid.MustParse("9c9dca50-8f41-45c0-ae45-3c8d0ad13f5a")

// RoomID derives the signaling room id for an appointment. Deterministic, so
// redials and reconnecting participants land in the same room.
func RoomID(appointmentID string) string {
	return uuid.NewSHA1(roomNamespace, []byte(appointmentID)).String()
}

// Provider turns a room id into a conferencing URL. The URL is treated as an
// opaque string by everything downstream.
type Provider struct {
	baseURL string
}

func NewProvider(baseURL string) *Provider {
	return &Provider{baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) RoomURL(roomID string) string {
	return fmt.Sprintf("%s/room/%s", p.baseURL, roomID)
}

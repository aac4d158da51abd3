package logic

import (
	"github.com/chazu/marionette/bus"
)

// DialogPlayer starts a dialog line. Implementations report completion by
// sending bus.ActionEndSound to the speaking character.
type DialogPlayer interface {
	PlayDialog(ch bus.CharacterID, name string)
}

// SoundPlayer plays a positional sound effect.
type SoundPlayer interface {
	PlaySound(ch bus.CharacterID, name string)
}

// DoorController updates door state in the scene layer.
type DoorController interface {
	SetDoor(door int, ch bus.CharacterID, status int)
}

// Services are the collaborators handlers call directly, outside the bus.
type Services struct {
	Dialog DialogPlayer
	Sound  SoundPlayer
	Doors  DoorController
}

// NopServices returns services that do nothing.
func NopServices() Services {
	return Services{Dialog: nopService{}, Sound: nopService{}, Doors: nopService{}}
}

type nopService struct{}

func (nopService) PlayDialog(bus.CharacterID, string) {}
func (nopService) PlaySound(bus.CharacterID, string)  {}
func (nopService) SetDoor(int, bus.CharacterID, int)  {}

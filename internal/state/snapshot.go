package state

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Identity describes the device hardware. It is fetched once and never changes
// afterwards.
type Identity struct {
	SerialNumber    string `json:"serialNumber"`
	Name            string `json:"name"`
	TypeName        string `json:"typeName"`
	TypeNumber      string `json:"typeNumber"`
	ItemNumber      string `json:"itemNumber"`
	SoftwareVersion string `json:"softwareVersion"`
	HardwareVersion string `json:"hardwareVersion"`
}

// Known reports whether the identity has been fetched.
func (i Identity) Known() bool {
	return i.SerialNumber != ""
}

// Volume holds the speaker state. Level, Min and Max are fractions of the
// device's 0..100 scale.
type Volume struct {
	Level *float64 `json:"level"`
	Muted *bool    `json:"muted"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
}

// Media is the now-playing metadata. Fields the current source does not report
// are nil.
type Media struct {
	URL       *string  `json:"url"`
	Track     *string  `json:"track"`
	Artist    *string  `json:"artist"`
	Album     *string  `json:"album"`
	Genre     *string  `json:"genre"`
	Country   *string  `json:"country"`
	Languages []string `json:"languages"`
}

// ID is an opaque device identifier. The device uses both strings and numbers;
// ID remembers which so it can be sent back unchanged.
type ID struct {
	Value   string
	Numeric bool
}

// StringID returns a string identifier.
func StringID(v string) ID { return ID{Value: v} }

func (id ID) String() string { return id.Value }

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.Numeric {
		return []byte(id.Value), nil
	}
	return json.Marshal(id.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID{Value: s}
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("id %s is neither string nor number", b)
	}
	*id = ID{Value: string(b), Numeric: true}
	return nil
}

// Source is a selectable input.
type Source struct {
	Name     string `json:"name"`
	ID       ID     `json:"id"`
	Borrowed bool   `json:"borrowed"`
}

// Position is a motorized stand position.
type Position struct {
	Name string `json:"name"`
	ID   ID     `json:"id"`
}

// SoundMode is a selectable sound mode.
type SoundMode struct {
	Name string `json:"name"`
	ID   ID     `json:"id"`
}

// Catalogue caches the lists the device offers for selection.
type Catalogue struct {
	Sources        []Source    `json:"sources"`
	StandPositions []Position  `json:"standPositions"`
	SoundModes     []SoundMode `json:"soundModes"`
}

// FindSource returns the first source with the given display name.
func (c Catalogue) FindSource(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// FindStandPosition returns the first stand position with the given name.
func (c Catalogue) FindStandPosition(name string) (Position, bool) {
	for _, p := range c.StandPositions {
		if p.Name == name {
			return p, true
		}
	}
	return Position{}, false
}

// FindSoundMode returns the first sound mode with the given name.
func (c Catalogue) FindSoundMode(name string) (SoundMode, bool) {
	for _, m := range c.SoundModes {
		if m.Name == name {
			return m, true
		}
	}
	return SoundMode{}, false
}

// PlayState is the normalized playback state.
type PlayState string

const (
	PlayStateUnknown PlayState = "unknown"
	PlayStatePlaying PlayState = "playing"
	PlayStatePaused  PlayState = "paused"
	PlayStateStopped PlayState = "stopped"
)

// Snapshot is the client's view of the device. Nil fields are unknown.
type Snapshot struct {
	Identity      Identity  `json:"identity"`
	Power         *bool     `json:"power"`
	Volume        Volume    `json:"volume"`
	Source        *string   `json:"source"`
	Listeners     []string  `json:"listeners"`
	State         *string   `json:"state"`
	Media         Media     `json:"media"`
	SoundMode     *string   `json:"soundMode"`
	StandPosition *string   `json:"standPosition"`
	Catalogue     Catalogue `json:"catalogue"`

	Version     uint64    `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// PlayState maps the device state string onto the normalized states.
func (s Snapshot) PlayState() PlayState {
	if s.State == nil {
		return PlayStateUnknown
	}
	switch strings.ToLower(*s.State) {
	case "play", "playing":
		return PlayStatePlaying
	case "pause", "paused":
		return PlayStatePaused
	case "stop", "stopped", "idle":
		return PlayStateStopped
	default:
		return PlayStateUnknown
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	dup := s
	dup.Power = cloneBool(s.Power)
	dup.Volume = Volume{
		Level: cloneFloat(s.Volume.Level),
		Muted: cloneBool(s.Volume.Muted),
		Min:   cloneFloat(s.Volume.Min),
		Max:   cloneFloat(s.Volume.Max),
	}
	dup.Source = cloneString(s.Source)
	dup.Listeners = cloneSlice(s.Listeners)
	dup.State = cloneString(s.State)
	dup.Media = Media{
		URL:       cloneString(s.Media.URL),
		Track:     cloneString(s.Media.Track),
		Artist:    cloneString(s.Media.Artist),
		Album:     cloneString(s.Media.Album),
		Genre:     cloneString(s.Media.Genre),
		Country:   cloneString(s.Media.Country),
		Languages: cloneSlice(s.Media.Languages),
	}
	dup.SoundMode = cloneString(s.SoundMode)
	dup.StandPosition = cloneString(s.StandPosition)
	dup.Catalogue = Catalogue{
		Sources:        cloneSlice(s.Catalogue.Sources),
		StandPositions: cloneSlice(s.Catalogue.StandPositions),
		SoundModes:     cloneSlice(s.Catalogue.SoundModes),
	}
	return dup
}

// Text dereferences an optional string, returning "" for nil.
func Text(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	return Ptr(*p)
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	return Ptr(*p)
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Ptr(*p)
}

func cloneSlice[T any](items []T) []T {
	if items == nil {
		return nil
	}
	dup := make([]T, len(items))
	copy(dup, items)
	return dup
}

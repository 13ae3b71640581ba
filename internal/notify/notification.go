package notify

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind is the wire "type" of a notification.
type Kind string

const (
	KindVolume                  Kind = "VOLUME"
	KindSource                  Kind = "SOURCE"
	KindSourceExperienceChanged Kind = "SOURCE_EXPERIENCE_CHANGED"
	KindProgress                Kind = "PROGRESS_INFORMATION"
	KindStoredMusic             Kind = "NOW_PLAYING_STORED_MUSIC"
	KindStoredVideo             Kind = "NOW_PLAYING_STORED_VIDEO"
	KindNetRadio                Kind = "NOW_PLAYING_NET_RADIO"
	KindLegacy                  Kind = "NOW_PLAYING_LEGACY"
	KindEnded                   Kind = "NOW_PLAYING_ENDED"
	KindNumberAndName           Kind = "NUMBER_AND_NAME"
	KindSoundModeChanged        Kind = "SOUND_ACTIVE_MODE_CHANGED"
)

// Known reports whether k is a kind the state merger understands.
func (k Kind) Known() bool {
	switch k {
	case KindVolume, KindSource, KindSourceExperienceChanged, KindProgress,
		KindStoredMusic, KindStoredVideo, KindNetRadio, KindLegacy, KindEnded,
		KindNumberAndName, KindSoundModeChanged:
		return true
	}
	return false
}

var (
	// ErrMalformedLine is returned by Decode when a line is not a notification
	// envelope at all.
	ErrMalformedLine = errors.New("malformed notification line")
	// ErrMissingField marks a payload lacking a key its kind requires.
	ErrMissingField = errors.New("missing field")
)

// Payload is the typed data of one notification kind.
type Payload interface {
	kind() Kind
}

// Volume carries speaker level and mute. Values are on the device's 0..100 scale.
type Volume struct {
	Level int64
	Muted bool
	Min   int64
	Max   int64
}

// Source reports the active source. Present is false when the device sent no
// data, which means no source is active.
type Source struct {
	Present bool
	Name    string
	State   string
}

// Experience lists the devices sharing the current experience.
type Experience struct {
	Listeners []string
}

// Progress reports playback state. Position and TotalDuration are seconds when
// the device sends them.
type Progress struct {
	State         string
	Position      *int64
	TotalDuration *int64
}

// StoredMusic describes a track from local or streamed storage.
type StoredMusic struct {
	Name     string
	Artist   *string
	Album    *string
	Genre    *string
	ImageURL *string
}

// StoredVideo describes stored video content.
type StoredVideo struct {
	Name     string
	ImageURL *string
}

// NetRadio describes a net radio station.
type NetRadio struct {
	Name            *string
	LiveDescription *string
	Genre           *string
	Country         *string
	Languages       []string
	ImageURL        *string
}

// Legacy is the sparse now-playing notification of older sources.
type Legacy struct {
	TrackNumber int64
	Kind        string
}

// Ended signals that playback finished.
type Ended struct{}

// NumberAndName is sent by channel based sources such as TV tuners.
type NumberAndName struct {
	Number int64
	Name   string
}

// SoundMode reports a change of the active sound mode.
type SoundMode struct {
	Name string
}

// Unknown wraps kinds without a decoder.
type Unknown struct {
	Type string
}

func (Volume) kind() Kind        { return KindVolume }
func (Source) kind() Kind        { return KindSource }
func (Experience) kind() Kind    { return KindSourceExperienceChanged }
func (Progress) kind() Kind      { return KindProgress }
func (StoredMusic) kind() Kind   { return KindStoredMusic }
func (StoredVideo) kind() Kind   { return KindStoredVideo }
func (NetRadio) kind() Kind      { return KindNetRadio }
func (Legacy) kind() Kind        { return KindLegacy }
func (Ended) kind() Kind         { return KindEnded }
func (NumberAndName) kind() Kind { return KindNumberAndName }
func (SoundMode) kind() Kind     { return KindSoundModeChanged }
func (u Unknown) kind() Kind     { return Kind(u.Type) }

// Notification is one decoded push from the device.
//
// Payload is nil when Err is set. Err describes a payload that could not be
// decoded for its kind; the envelope itself was valid, so the notification is
// still delivered to observers.
type Notification struct {
	Kind      Kind
	Timestamp string
	Payload   Payload
	// Raw is the inner "notification" object as received.
	Raw json.RawMessage
	Err error
}

type wireNotification struct {
	Type      string          `json:"type"`
	Kind      *string         `json:"kind"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Decode parses one line of the notification stream.
func Decode(line []byte) (Notification, error) {
	var raw struct {
		Notification json.RawMessage `json:"notification"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	if isNull(raw.Notification) {
		return Notification{}, fmt.Errorf("%w: no notification object", ErrMalformedLine)
	}
	wire := &wireNotification{}
	if err := json.Unmarshal(raw.Notification, wire); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	if wire.Type == "" {
		return Notification{}, fmt.Errorf("%w: notification without type", ErrMalformedLine)
	}

	n := Notification{
		Kind:      Kind(wire.Type),
		Timestamp: wire.Timestamp,
		Raw:       append(json.RawMessage(nil), raw.Notification...),
	}
	payload, err := decodePayload(wire)
	if err != nil {
		n.Err = fmt.Errorf("decode %s: %w", wire.Type, err)
		return n, nil
	}
	n.Payload = payload
	return n, nil
}

func decodePayload(wire *wireNotification) (Payload, error) {
	switch Kind(wire.Type) {
	case KindVolume:
		return ParseVolume(wire.Data)
	case KindSource:
		return decodeSource(wire.Data)
	case KindSourceExperienceChanged:
		return decodeExperience(wire.Data)
	case KindProgress:
		return decodeProgress(wire.Data)
	case KindStoredMusic:
		return decodeStoredMusic(wire.Data)
	case KindStoredVideo:
		return decodeStoredVideo(wire.Data)
	case KindNetRadio:
		return decodeNetRadio(wire.Data)
	case KindLegacy:
		return decodeLegacy(wire)
	case KindEnded:
		return Ended{}, nil
	case KindNumberAndName:
		return decodeNumberAndName(wire.Data)
	case KindSoundModeChanged:
		return decodeSoundMode(wire.Data)
	default:
		return Unknown{Type: wire.Type}, nil
	}
}

// ParseVolume decodes a speaker object wrapper as found in VOLUME
// notifications and in the volume resource.
func ParseVolume(data []byte) (Volume, error) {
	var wire struct {
		Speaker *struct {
			Level *Int  `json:"level"`
			Muted *bool `json:"muted"`
			Range *struct {
				Minimum *Int `json:"minimum"`
				Maximum *Int `json:"maximum"`
			} `json:"range"`
		} `json:"speaker"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return Volume{}, err
	}
	sp := wire.Speaker
	switch {
	case sp == nil:
		return Volume{}, missing("speaker")
	case sp.Level == nil:
		return Volume{}, missing("speaker.level")
	case sp.Muted == nil:
		return Volume{}, missing("speaker.muted")
	case sp.Range == nil || sp.Range.Minimum == nil:
		return Volume{}, missing("speaker.range.minimum")
	case sp.Range.Maximum == nil:
		return Volume{}, missing("speaker.range.maximum")
	}
	return Volume{
		Level: int64(*sp.Level),
		Muted: *sp.Muted,
		Min:   int64(*sp.Range.Minimum),
		Max:   int64(*sp.Range.Maximum),
	}, nil
}

func decodeSource(data []byte) (Payload, error) {
	if isEmpty(data) {
		return Source{}, nil
	}
	var wire struct {
		PrimaryExperience *struct {
			Source *struct {
				FriendlyName *string `json:"friendlyName"`
			} `json:"source"`
			State *string `json:"state"`
		} `json:"primaryExperience"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return nil, err
	}
	pe := wire.PrimaryExperience
	switch {
	case pe == nil:
		return nil, missing("primaryExperience")
	case pe.Source == nil || pe.Source.FriendlyName == nil:
		return nil, missing("primaryExperience.source.friendlyName")
	case pe.State == nil:
		return nil, missing("primaryExperience.state")
	}
	return Source{Present: true, Name: *pe.Source.FriendlyName, State: *pe.State}, nil
}

func decodeExperience(data []byte) (Payload, error) {
	var wire struct {
		PrimaryExperience *struct {
			Listener *Listeners `json:"listener"`
		} `json:"primaryExperience"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return nil, err
	}
	if wire.PrimaryExperience == nil || wire.PrimaryExperience.Listener == nil {
		return nil, missing("primaryExperience.listener")
	}
	return Experience{Listeners: []string(*wire.PrimaryExperience.Listener)}, nil
}

func decodeProgress(data []byte) (Payload, error) {
	var wire struct {
		State         *string `json:"state"`
		Position      *Int    `json:"position"`
		TotalDuration *Int    `json:"totalDuration"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return nil, err
	}
	if wire.State == nil {
		return nil, missing("state")
	}
	p := Progress{State: *wire.State}
	if wire.Position != nil {
		v := int64(*wire.Position)
		p.Position = &v
	}
	if wire.TotalDuration != nil {
		v := int64(*wire.TotalDuration)
		p.TotalDuration = &v
	}
	return p, nil
}

type wireImage struct {
	URL string `json:"url"`
}

func firstImage(images []wireImage) *string {
	if len(images) == 0 || images[0].URL == "" {
		return nil
	}
	u := images[0].URL
	return &u
}

func decodeStoredMusic(data []byte) (Payload, error) {
	var wire struct {
		Name       *string     `json:"name"`
		Artist     *string     `json:"artist"`
		Album      *string     `json:"album"`
		Genre      *string     `json:"genre"`
		TrackImage []wireImage `json:"trackImage"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return nil, err
	}
	if wire.Name == nil {
		return nil, missing("name")
	}
	return StoredMusic{
		Name:     *wire.Name,
		Artist:   wire.Artist,
		Album:    wire.Album,
		Genre:    wire.Genre,
		ImageURL: firstImage(wire.TrackImage),
	}, nil
}

func decodeStoredVideo(data []byte) (Payload, error) {
	var wire struct {
		Name  *string     `json:"name"`
		Image []wireImage `json:"image"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return nil, err
	}
	if wire.Name == nil {
		return nil, missing("name")
	}
	return StoredVideo{Name: *wire.Name, ImageURL: firstImage(wire.Image)}, nil
}

func decodeNetRadio(data []byte) (Payload, error) {
	var wire struct {
		Name            *string     `json:"name"`
		LiveDescription *string     `json:"liveDescription"`
		Genre           *string     `json:"genre"`
		Country         *string     `json:"country"`
		Languages       *Strings    `json:"languages"`
		Image           []wireImage `json:"image"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return nil, err
	}
	p := NetRadio{
		Name:            wire.Name,
		LiveDescription: wire.LiveDescription,
		Genre:           wire.Genre,
		Country:         wire.Country,
		ImageURL:        firstImage(wire.Image),
	}
	if wire.Languages != nil {
		p.Languages = []string(*wire.Languages)
	}
	return p, nil
}

func decodeLegacy(wire *wireNotification) (Payload, error) {
	var data struct {
		TrackNumber *Int `json:"trackNumber"`
	}
	if err := unmarshalData(wire.Data, &data); err != nil {
		return nil, err
	}
	if data.TrackNumber == nil {
		return nil, missing("trackNumber")
	}
	if wire.Kind == nil {
		return nil, missing("kind")
	}
	return Legacy{TrackNumber: int64(*data.TrackNumber), Kind: *wire.Kind}, nil
}

func decodeNumberAndName(data []byte) (Payload, error) {
	var wire struct {
		Number *Int    `json:"number"`
		Name   *string `json:"name"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return nil, err
	}
	switch {
	case wire.Number == nil:
		return nil, missing("number")
	case wire.Name == nil:
		return nil, missing("name")
	}
	return NumberAndName{Number: int64(*wire.Number), Name: *wire.Name}, nil
}

func decodeSoundMode(data []byte) (Payload, error) {
	var wire struct {
		FriendlyName *string `json:"friendlyName"`
	}
	if err := unmarshalData(data, &wire); err != nil {
		return nil, err
	}
	if wire.FriendlyName == nil {
		return nil, missing("friendlyName")
	}
	return SoundMode{Name: *wire.FriendlyName}, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// unmarshalData decodes a data object; absent or null data is reported as a
// missing field rather than decoded into zero values.
func unmarshalData(data []byte, dest any) error {
	if isNull(data) {
		return missing("data")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func isNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// isEmpty reports null, absent, or {} data.
func isEmpty(data []byte) bool {
	if isNull(data) {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	return len(fields) == 0
}

// Int decodes JSON numbers and numeric strings, truncating fractions.
type Int int64

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*i = Int(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*i = Int(f)
	return nil
}

// Strings decodes either a single string or a list of strings.
type Strings []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Strings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*s = Strings{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Listeners decodes a listener list given either as plain identifiers or as
// objects carrying a "jid".
type Listeners []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Listeners) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var id string
			if err := json.Unmarshal(item, &id); err != nil {
				return err
			}
			out = append(out, id)
			continue
		}
		var obj struct {
			JID string `json:"jid"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		out = append(out, obj.JID)
	}
	*l = out
	return nil
}

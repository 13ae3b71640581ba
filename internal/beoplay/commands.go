package beoplay

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/five82/beoplay/internal/state"
)

// SetVolume sets the speaker level. level is a fraction in [0, 1]. The
// snapshot is updated before the request goes out.
func (c *Client) SetVolume(ctx context.Context, level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return invalid("volume %v outside [0, 1]", level)
	}
	c.store.Update(func(s *state.Snapshot) { s.Volume.Level = state.Ptr(level) })
	body := map[string]int{"level": int(math.Round(level * 100))}
	return c.do(ctx, http.MethodPut, pathVolumeLevel, body, nil)
}

// SetMute mutes or unmutes the speaker.
func (c *Client) SetMute(ctx context.Context, muted bool) error {
	return c.do(ctx, http.MethodPut, pathMuted, map[string]bool{"muted": muted}, nil)
}

// Transport sends a playback or list action by name; see TransportActions.
func (c *Client) Transport(ctx context.Context, action string) error {
	path, ok := transportActions[action]
	if !ok {
		return invalid("unknown transport action %q", action)
	}
	return c.do(ctx, http.MethodPost, path, struct{}{}, nil)
}

func (c *Client) Play(ctx context.Context) error     { return c.Transport(ctx, "play") }
func (c *Client) Pause(ctx context.Context) error    { return c.Transport(ctx, "pause") }
func (c *Client) Stop(ctx context.Context) error     { return c.Transport(ctx, "stop") }
func (c *Client) Forward(ctx context.Context) error  { return c.Transport(ctx, "forward") }
func (c *Client) Backward(ctx context.Context) error { return c.Transport(ctx, "backward") }
func (c *Client) StepUp(ctx context.Context) error   { return c.Transport(ctx, "stepup") }
func (c *Client) StepDown(ctx context.Context) error { return c.Transport(ctx, "stepdown") }
func (c *Client) Shuffle(ctx context.Context) error  { return c.Transport(ctx, "shuffle") }
func (c *Client) Repeat(ctx context.Context) error   { return c.Transport(ctx, "repeat") }

type standbyRequest struct {
	Standby struct {
		PowerState string `json:"powerState"`
	} `json:"standby"`
}

// Standby puts the device into standby. Power is recorded as off whether or
// not the request succeeds.
func (c *Client) Standby(ctx context.Context) error {
	c.store.Update(func(s *state.Snapshot) { s.Power = state.Ptr(false) })
	var body standbyRequest
	body.Standby.PowerState = "standby"
	return c.do(ctx, http.MethodPut, pathStandby, body, nil)
}

// TurnOn wakes the device by selecting the first known source. The source
// catalogue is fetched first when it is empty.
func (c *Client) TurnOn(ctx context.Context) error {
	sources := c.store.Snapshot().Catalogue.Sources
	if len(sources) == 0 {
		fetched, err := c.FetchSources(ctx)
		if err != nil {
			return err
		}
		sources = fetched
	}
	if len(sources) == 0 {
		return invalid("device offers no source to turn on with")
	}
	c.store.Update(func(s *state.Snapshot) { s.Power = state.Ptr(true) })
	return c.selectSource(ctx, sources[0])
}

type sourceRequest struct {
	PrimaryExperience struct {
		Source struct {
			ID state.ID `json:"id"`
		} `json:"source"`
	} `json:"primaryExperience"`
}

// SetSource selects the cached source with the given name. The catalogue is
// not fetched; call FetchSources first.
func (c *Client) SetSource(ctx context.Context, name string) error {
	src, ok := c.store.Snapshot().Catalogue.FindSource(name)
	if !ok {
		return invalid("unknown source %q", name)
	}
	return c.selectSource(ctx, src)
}

func (c *Client) selectSource(ctx context.Context, src state.Source) error {
	var body sourceRequest
	body.PrimaryExperience.Source.ID = src.ID
	return c.do(ctx, http.MethodPost, pathActiveSources, body, nil)
}

type activeRequest struct {
	Active state.ID `json:"active"`
}

// SetSoundMode activates the sound mode with the given name, fetching the
// list of modes first when none are cached.
func (c *Client) SetSoundMode(ctx context.Context, name string) error {
	cat := c.store.Snapshot().Catalogue
	if len(cat.SoundModes) == 0 {
		if _, err := c.FetchSoundModes(ctx); err != nil {
			return err
		}
		cat = c.store.Snapshot().Catalogue
	}
	mode, ok := cat.FindSoundMode(name)
	if !ok {
		return invalid("unknown sound mode %q", name)
	}
	return c.do(ctx, http.MethodPut, pathSoundModeActive, activeRequest{Active: mode.ID}, nil)
}

// SetStandPosition moves the stand to the named position, fetching the list
// of positions first when none are cached.
func (c *Client) SetStandPosition(ctx context.Context, name string) error {
	cat := c.store.Snapshot().Catalogue
	if len(cat.StandPositions) == 0 {
		if _, err := c.FetchStandPositions(ctx); err != nil {
			return err
		}
		cat = c.store.Snapshot().Catalogue
	}
	pos, ok := cat.FindStandPosition(name)
	if !ok {
		return invalid("unknown stand position %q", name)
	}
	return c.do(ctx, http.MethodPut, pathStandActive, activeRequest{Active: pos.ID}, nil)
}

// JoinExperience joins whatever another device in the network is playing.
func (c *Client) JoinExperience(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, pathJoin, struct{}{}, nil)
}

// LeaveExperience leaves a joined experience.
func (c *Client) LeaveExperience(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, pathLeave, nil, nil)
}

// PlayQueueItem adds item to the play queue. With instant set the device
// starts playing it immediately.
func (c *Client) PlayQueueItem(ctx context.Context, instant bool, item QueueItem) error {
	if item.PlayQueueItem.Track == nil && item.PlayQueueItem.Station == nil {
		return invalid("queue item needs a track or a station")
	}
	path := pathPlayQueue
	if instant {
		path += queryInstantPlay
	}
	return c.do(ctx, http.MethodPost, path, item, nil)
}

type remoteRequest struct {
	ToBeReleased bool `json:"toBeReleased"`
}

// RemoteCommand sends a remote control key. With hold set the device treats
// the key as held until RemoteRelease is sent.
func (c *Client) RemoteCommand(ctx context.Context, cmd string, hold bool) error {
	if !isRemoteCommand(cmd) {
		return invalid("unknown remote command %q", cmd)
	}
	return c.do(ctx, http.MethodPost, remotePrefix+cmd, remoteRequest{ToBeReleased: hold}, nil)
}

// RemoteRelease releases a held remote control key.
func (c *Client) RemoteRelease(ctx context.Context, cmd string) error {
	if !isRemoteCommand(cmd) {
		return invalid("unknown remote command %q", cmd)
	}
	return c.do(ctx, http.MethodPost, remotePrefix+cmd+releaseSuffix, struct{}{}, nil)
}

// Press sends a key press followed by its release, as older firmware expects.
func (c *Client) Press(ctx context.Context, cmd string) error {
	if err := c.RemoteCommand(ctx, cmd, true); err != nil {
		return err
	}
	return c.RemoteRelease(ctx, cmd)
}

// Digit sends one digit key, "0" through "9".
func (c *Client) Digit(ctx context.Context, digit string) error {
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		return invalid("digit %q not in 0-9", digit)
	}
	n, _ := strconv.Atoi(digit)
	return c.do(ctx, http.MethodPost, pathDigits, map[string]int{"digit": n}, nil)
}

package beoplay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/goccy/go-json"

	"github.com/five82/beoplay/internal/notify"
	"github.com/five82/beoplay/internal/state"
)

type deviceInfoResponse struct {
	BeoDevice *struct {
		ProductID struct {
			ProductType  string   `json:"productType"`
			TypeNumber   state.ID `json:"typeNumber"`
			SerialNumber state.ID `json:"serialNumber"`
			ItemNumber   state.ID `json:"itemNumber"`
		} `json:"productId"`
		ProductFriendlyName struct {
			ProductFriendlyName string `json:"productFriendlyName"`
		} `json:"productFriendlyName"`
		Software struct {
			Version string `json:"version"`
		} `json:"software"`
		Hardware struct {
			Version string `json:"version"`
		} `json:"hardware"`
	} `json:"beoDevice"`
}

// FetchDeviceInfo returns the device identity. The first successful fetch is
// cached for the life of the client; later calls return it without a request.
func (c *Client) FetchDeviceInfo(ctx context.Context) (state.Identity, error) {
	if id := c.store.Snapshot().Identity; id.Known() {
		return id, nil
	}
	var payload deviceInfoResponse
	if err := c.do(ctx, http.MethodGet, pathDevice, nil, &payload); err != nil {
		return state.Identity{}, err
	}
	dev := payload.BeoDevice
	if dev == nil || dev.ProductID.SerialNumber.Value == "" {
		return state.Identity{}, fmt.Errorf("%w: device info without serial number", ErrMalformedBody)
	}
	id := state.Identity{
		SerialNumber:    dev.ProductID.SerialNumber.Value,
		Name:            dev.ProductFriendlyName.ProductFriendlyName,
		TypeName:        dev.ProductID.ProductType,
		TypeNumber:      dev.ProductID.TypeNumber.Value,
		ItemNumber:      dev.ProductID.ItemNumber.Value,
		SoftwareVersion: dev.Software.Version,
		HardwareVersion: dev.Hardware.Version,
	}
	if c.store.SetIdentity(id) {
		c.log.Info().Str("serial", id.SerialNumber).Str("name", id.Name).Str("type", id.TypeName).
			Msg("device identified")
	}
	return c.store.Snapshot().Identity, nil
}

type sourcesResponse struct {
	Sources [][]json.RawMessage `json:"sources"`
}

type sourceEntry struct {
	FriendlyName string `json:"friendlyName"`
	InUse        bool   `json:"inUse"`
	Borrowed     bool   `json:"borrowed"`
}

// FetchSources reads the selectable sources and replaces the cached list.
// Sources the device reports as not in use are left out.
func (c *Client) FetchSources(ctx context.Context) ([]state.Source, error) {
	var payload sourcesResponse
	if err := c.do(ctx, http.MethodGet, pathSources, nil, &payload); err != nil {
		return nil, err
	}

	sources := make([]state.Source, 0, len(payload.Sources))
	for i, pair := range payload.Sources {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: source entry %d has %d elements", ErrMalformedBody, i, len(pair))
		}
		var id state.ID
		if err := json.Unmarshal(pair[0], &id); err != nil {
			return nil, fmt.Errorf("%w: source entry %d id: %v", ErrMalformedBody, i, err)
		}
		var entry sourceEntry
		if err := json.Unmarshal(pair[1], &entry); err != nil {
			return nil, fmt.Errorf("%w: source entry %d: %v", ErrMalformedBody, i, err)
		}
		if !entry.InUse {
			continue
		}
		sources = append(sources, state.Source{Name: entry.FriendlyName, ID: id, Borrowed: entry.Borrowed})
	}

	c.store.ReplaceSources(sources)
	return sources, nil
}

type activeSourceResponse struct {
	PrimaryExperience *struct {
		Source *struct {
			FriendlyName *string `json:"friendlyName"`
		} `json:"source"`
		ListenerList *struct {
			Listener notify.Listeners `json:"listener"`
		} `json:"listenerList"`
	} `json:"primaryExperience"`
}

// FetchActiveSource reads the active source name and the listeners sharing
// it. The name is empty when no source is active.
func (c *Client) FetchActiveSource(ctx context.Context) (string, []string, error) {
	var payload activeSourceResponse
	if err := c.do(ctx, http.MethodGet, pathActiveSources, nil, &payload); err != nil {
		return "", nil, err
	}

	var source *string
	listeners := []string{}
	if pe := payload.PrimaryExperience; pe != nil {
		if pe.Source != nil {
			source = pe.Source.FriendlyName
		}
		if pe.ListenerList != nil {
			listeners = append(listeners, pe.ListenerList.Listener...)
		}
	}
	c.store.Update(func(s *state.Snapshot) {
		s.Source = source
		s.Listeners = listeners
	})
	return state.Text(source), append([]string{}, listeners...), nil
}

type standbyResponse struct {
	Standby *struct {
		PowerState string `json:"powerState"`
	} `json:"standby"`
}

// FetchStandby reads the power state and reports whether the device is on.
func (c *Client) FetchStandby(ctx context.Context) (bool, error) {
	var payload standbyResponse
	if err := c.do(ctx, http.MethodGet, pathStandby, nil, &payload); err != nil {
		return false, err
	}
	if payload.Standby == nil {
		return false, fmt.Errorf("%w: standby without powerState", ErrMalformedBody)
	}
	on := payload.Standby.PowerState == "on"
	c.store.Update(func(s *state.Snapshot) { s.Power = state.Ptr(on) })
	return on, nil
}

type namedID struct {
	ID           state.ID `json:"id"`
	FriendlyName string   `json:"friendlyName"`
}

type soundModeResponse struct {
	Mode *struct {
		List   []namedID `json:"list"`
		Active *state.ID `json:"active"`
	} `json:"mode"`
}

// FetchSoundModes reads the sound modes, replaces the cached list and records
// the active mode.
func (c *Client) FetchSoundModes(ctx context.Context) ([]state.SoundMode, error) {
	var payload soundModeResponse
	if err := c.do(ctx, http.MethodGet, pathSoundMode, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Mode == nil {
		return nil, fmt.Errorf("%w: sound mode response without mode", ErrMalformedBody)
	}

	modes := make([]state.SoundMode, 0, len(payload.Mode.List))
	var active *string
	for _, m := range payload.Mode.List {
		modes = append(modes, state.SoundMode{Name: m.FriendlyName, ID: m.ID})
		if payload.Mode.Active != nil && *payload.Mode.Active == m.ID {
			active = state.Ptr(m.FriendlyName)
		}
	}
	c.store.Update(func(s *state.Snapshot) {
		s.Catalogue.SoundModes = slices.Clone(modes)
		s.SoundMode = active
	})
	return modes, nil
}

// FetchSoundMode returns the active sound mode name, or "" if none matches.
func (c *Client) FetchSoundMode(ctx context.Context) (string, error) {
	if _, err := c.FetchSoundModes(ctx); err != nil {
		return "", err
	}
	return state.Text(c.store.Snapshot().SoundMode), nil
}

type standResponse struct {
	Stand *struct {
		List []namedID `json:"list"`
	} `json:"stand"`
}

// FetchStandPositions reads the stand positions and replaces the cached list.
// Devices without a motorized stand report none.
func (c *Client) FetchStandPositions(ctx context.Context) ([]state.Position, error) {
	var payload standResponse
	if err := c.do(ctx, http.MethodGet, pathStand, nil, &payload); err != nil {
		return nil, err
	}
	positions := []state.Position{}
	if payload.Stand != nil {
		for _, p := range payload.Stand.List {
			positions = append(positions, state.Position{Name: p.FriendlyName, ID: p.ID})
		}
	}
	c.store.ReplaceStandPositions(positions)
	return positions, nil
}

type activeResponse struct {
	Active *state.ID `json:"active"`
}

// FetchStandPosition reads the active stand position. The result is the
// position name when the catalogue knows it and the raw id otherwise.
func (c *Client) FetchStandPosition(ctx context.Context) (string, error) {
	var payload activeResponse
	if err := c.do(ctx, http.MethodGet, pathStandActive, nil, &payload); err != nil {
		return "", err
	}
	if payload.Active == nil {
		return "", fmt.Errorf("%w: stand without active position", ErrMalformedBody)
	}

	name := payload.Active.Value
	for _, p := range c.store.Snapshot().Catalogue.StandPositions {
		if p.ID == *payload.Active {
			name = p.Name
			break
		}
	}
	c.store.Update(func(s *state.Snapshot) { s.StandPosition = state.Ptr(name) })
	return name, nil
}

type volumeResponse struct {
	Volume json.RawMessage `json:"volume"`
}

// FetchVolume reads the speaker level, range and mute state.
func (c *Client) FetchVolume(ctx context.Context) (state.Volume, error) {
	var payload volumeResponse
	if err := c.do(ctx, http.MethodGet, pathVolume, nil, &payload); err != nil {
		return state.Volume{}, err
	}
	v, err := notify.ParseVolume(payload.Volume)
	if err != nil {
		return state.Volume{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	snap := c.store.Update(func(s *state.Snapshot) { state.ApplyVolume(s, v) })
	return snap.Volume, nil
}

// Refresh re-reads identity, power, sources, active source and volume. It
// stops at the first failure that means the device is unreachable; other
// failures are collected and returned together.
func (c *Client) Refresh(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"device info", func(ctx context.Context) error { _, err := c.FetchDeviceInfo(ctx); return err }},
		{"standby", func(ctx context.Context) error { _, err := c.FetchStandby(ctx); return err }},
		{"sources", func(ctx context.Context) error { _, err := c.FetchSources(ctx); return err }},
		{"active source", func(ctx context.Context) error { _, _, err := c.FetchActiveSource(ctx); return err }},
		{"volume", func(ctx context.Context) error { _, err := c.FetchVolume(ctx); return err }},
	}

	var errs []error
	for _, step := range steps {
		err := step.run(ctx)
		if err == nil {
			continue
		}
		err = fmt.Errorf("refresh %s: %w", step.name, err)
		if Unreachable(err) || ctx.Err() != nil {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

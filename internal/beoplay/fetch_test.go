package beoplay

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetchDeviceInfo_CachedAfterFirstSuccess(t *testing.T) {
	dev := newSimDevice(t)
	c := dev.client(t)
	ctx := testContext(t)

	id, err := c.FetchDeviceInfo(ctx)
	if err != nil {
		t.Fatalf("FetchDeviceInfo returned error: %v", err)
	}
	if id.SerialNumber != "28240839" || id.Name != "Living Room" || id.TypeName != "BeoSound 35" {
		t.Fatalf("identity = %#v", id)
	}
	if id.SoftwareVersion != "1.22.24654" || id.ItemNumber != "1200298" || id.TypeNumber != "2714" {
		t.Fatalf("identity versions = %#v", id)
	}

	dev.set("GET", pathDevice, `{"beoDevice":{"productId":{"serialNumber":"other"}}}`)
	again, err := c.FetchDeviceInfo(ctx)
	if err != nil || again != id {
		t.Fatalf("second FetchDeviceInfo = %#v, %v; want cached identity", again, err)
	}
	if n := dev.count("GET", pathDevice); n != 1 {
		t.Fatalf("device info requests = %d, want 1", n)
	}
}

func TestFetchDeviceInfo_Malformed(t *testing.T) {
	dev := newSimDevice(t)
	dev.set("GET", pathDevice, `{"somethingElse":{}}`)
	c := dev.client(t)

	if _, err := c.FetchDeviceInfo(testContext(t)); !errors.Is(err, ErrMalformedBody) {
		t.Fatalf("FetchDeviceInfo error = %v, want ErrMalformedBody", err)
	}
	if c.Cooldown().State != BreakerClosed {
		t.Fatalf("malformed body armed the cooldown")
	}
}

func TestFetchSources_KeepsOnlyInUse(t *testing.T) {
	dev := newSimDevice(t)
	c := dev.client(t)

	sources, err := c.FetchSources(testContext(t))
	if err != nil {
		t.Fatalf("FetchSources returned error: %v", err)
	}
	if got := c.SourceNames(); !reflect.DeepEqual(got, []string{"Spotify", "TuneIn"}) {
		t.Fatalf("SourceNames = %v", got)
	}
	if !sources[1].Borrowed || sources[0].Borrowed {
		t.Fatalf("borrowed flags = %v/%v", sources[0].Borrowed, sources[1].Borrowed)
	}

	dev.set("GET", pathSources, `{"sources":[["a",{"friendlyName":"Only","inUse":true}]]}`)
	if _, err := c.FetchSources(testContext(t)); err != nil {
		t.Fatalf("FetchSources returned error: %v", err)
	}
	if got := c.SourceNames(); !reflect.DeepEqual(got, []string{"Only"}) {
		t.Fatalf("SourceNames after refetch = %v, want wholesale replacement", got)
	}
}

func TestFetchActiveSourceAndStandby(t *testing.T) {
	dev := newSimDevice(t)
	c := dev.client(t)
	ctx := testContext(t)

	name, listeners, err := c.FetchActiveSource(ctx)
	if err != nil {
		t.Fatalf("FetchActiveSource returned error: %v", err)
	}
	if name != "Spotify" || len(listeners) != 1 {
		t.Fatalf("active source = %q %v", name, listeners)
	}

	on, err := c.FetchStandby(ctx)
	if err != nil || !on {
		t.Fatalf("FetchStandby = %v, %v; want on", on, err)
	}

	dev.set("GET", pathActiveSources, `{}`)
	name, listeners, err = c.FetchActiveSource(ctx)
	if err != nil || name != "" || len(listeners) != 0 {
		t.Fatalf("FetchActiveSource with no source = %q %v %v", name, listeners, err)
	}
	if c.Snapshot().Source != nil {
		t.Fatalf("snapshot source = %v, want nil", c.Snapshot().Source)
	}
}

func TestFetchSoundModesAndStand(t *testing.T) {
	dev := newSimDevice(t)
	c := dev.client(t)
	ctx := testContext(t)

	mode, err := c.FetchSoundMode(ctx)
	if err != nil || mode != "Movie" {
		t.Fatalf("FetchSoundMode = %q, %v; want Movie", mode, err)
	}
	if n := len(c.Snapshot().Catalogue.SoundModes); n != 2 {
		t.Fatalf("sound modes cached = %d, want 2", n)
	}

	positions, err := c.FetchStandPositions(ctx)
	if err != nil || len(positions) != 2 {
		t.Fatalf("FetchStandPositions = %v, %v", positions, err)
	}
	pos, err := c.FetchStandPosition(ctx)
	if err != nil || pos != "Left" {
		t.Fatalf("FetchStandPosition = %q, %v; want Left", pos, err)
	}

	dev.set("GET", pathStand, `{"stand":null}`)
	positions, err = c.FetchStandPositions(ctx)
	if err != nil || len(positions) != 0 {
		t.Fatalf("FetchStandPositions without stand = %v, %v", positions, err)
	}
}

func TestFetchVolume(t *testing.T) {
	dev := newSimDevice(t)
	c := dev.client(t)

	v, err := c.FetchVolume(testContext(t))
	if err != nil {
		t.Fatalf("FetchVolume returned error: %v", err)
	}
	if *v.Level != 0.35 || *v.Max != 0.9 || *v.Muted {
		t.Fatalf("volume = %v %v %v", *v.Level, *v.Max, *v.Muted)
	}
}

func TestFailedFetchLeavesSnapshotUntouched(t *testing.T) {
	dev := newSimDevice(t)
	c := dev.client(t)
	ctx := testContext(t)

	if _, err := c.FetchSources(ctx); err != nil {
		t.Fatalf("FetchSources returned error: %v", err)
	}
	before := c.Snapshot()

	dev.set("GET", pathSources, `{"sources":[["broken"]]}`)
	if _, err := c.FetchSources(ctx); !errors.Is(err, ErrMalformedBody) {
		t.Fatalf("FetchSources error = %v, want ErrMalformedBody", err)
	}
	dev.mu.Lock()
	delete(dev.routes, "GET "+pathStandby)
	dev.mu.Unlock()
	var se *StatusError
	if _, err := c.FetchStandby(ctx); !errors.As(err, &se) {
		t.Fatalf("FetchStandby error = %v, want StatusError", err)
	}

	after := c.Snapshot()
	if after.Version != before.Version || !reflect.DeepEqual(after.Catalogue, before.Catalogue) {
		t.Fatalf("snapshot changed by failed fetches: version %d → %d", before.Version, after.Version)
	}
}

func TestRefresh(t *testing.T) {
	dev := newSimDevice(t)
	c := dev.client(t)

	if err := c.Refresh(testContext(t)); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	snap := c.Snapshot()
	if !snap.Identity.Known() || snap.Power == nil || !*snap.Power {
		t.Fatalf("identity/power not refreshed: %#v", snap)
	}
	if len(snap.Catalogue.Sources) != 2 || *snap.Source != "Spotify" || snap.Volume.Level == nil {
		t.Fatalf("sources/source/volume not refreshed: %#v", snap)
	}
}

func TestRefresh_StopsWhenUnreachable(t *testing.T) {
	dev := newSimDevice(t)
	c := dev.client(t, WithTimeout(200*time.Millisecond))
	dev.server.Close()

	err := c.Refresh(testContext(t))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Refresh error = %v, want TransportError", err)
	}
	if cd := c.Cooldown(); cd.Remaining != DefaultCooldown {
		t.Fatalf("cooldown remaining = %d, want %d (refresh should stop after the failure)", cd.Remaining, DefaultCooldown)
	}
}

// Package state holds the client's mirror of a BeoPlay device.
//
// # Overview
//
// Everything the client knows about the device lives in one Snapshot value:
// identity, power, volume, active source, listeners, playback state,
// now-playing metadata, sound mode, stand position, and the catalogue of
// selectable sources, stand positions and sound modes. Unknown values are nil
// pointers rather than zero values, so "muted = false" and "mute state not yet
// reported" stay distinguishable.
//
// # Merging Notifications
//
// Merge is a pure function from (Snapshot, notify.Notification) to Snapshot.
// Every notification kind owns a fixed group of fields:
//
//	VOLUME                     volume level, min, max (÷100) and muted
//	SOURCE (with data)         source, state, power on, media cleared
//	SOURCE (empty)             source and state unset, power off, media cleared
//	SOURCE_EXPERIENCE_CHANGED  listeners
//	PROGRESS_INFORMATION       state
//	NOW_PLAYING_*              media group, replaced as a whole
//	SOUND_ACTIVE_MODE_CHANGED  sound mode
//
// Media is never merged field by field. A stored music track without an album
// leaves Album nil even if the previous track had one.
//
// A notification whose payload could not be decoded leaves the snapshot
// unchanged. Merge returns the decode error so the caller can log it; later
// notifications merge normally.
//
// # Store
//
// Store is the single owner of the live snapshot. Writers are the
// notification stream, fetch results and optimistic command updates; all go
// through the store's mutex and each committed change bumps Version. Readers
// get deep copies and may hold them as long as they like.
//
//	stream goroutine ──Merge──┐
//	fetch / commands ──Update─┼──→ Store ──Snapshot()──→ TUI, bridge, MQTT
//	first device info ─SetIdentity┘
//
// Identity is written once by SetIdentity and cannot be changed by Update.
// The catalogue lists are replaced wholesale by the Replace* methods.
//
// # Versioning
//
// Every committed change increments Snapshot.Version by one and stamps
// LastUpdated. Consumers compare versions instead of diffing snapshots:
//
//	Merge, known kind, decoded     version + 1
//	Merge, payload error           unchanged, error returned
//	Merge, unknown kind            unchanged
//	Update / Replace*              version + 1, even if fn changed nothing
//	SetIdentity, first call        version + 1
//	SetIdentity, later calls       unchanged, returns false
//
// The MQTT publisher sends only new versions and the TUI tick adopts a
// snapshot from the client only when its version is ahead of the one it
// shows.
//
// # Concurrency Model
//
// Store uses a readers-writer lock:
//
//   - Merge, Update, SetIdentity, Replace*: write lock
//   - Snapshot: read lock
//
// The lock is held for the merge and the copy only, never across network
// I/O. Update's fn runs under the write lock, so it must not call back into
// the store.
//
// # Copying
//
// Snapshot.Clone copies every pointer field and slice: listeners, languages,
// the three catalogue lists and all *string / *bool / *float64 values. A
// caller may change a returned snapshot freely without affecting the store,
// and the store never aliases a slice handed to Replace*.
//
// # Helpers
//
// Text dereferences an optional string ("" when nil). Ptr takes the address
// of a literal. Catalogue.FindSource, FindStandPosition and FindSoundMode
// look entries up by their human readable name, case sensitively, as the
// device does.
//
// PlayState folds the device's state strings ("play", "playing", "pause",
// ...) onto the PlayState constants used by the TUI.
//
// # Artwork
//
// Some firmware reports net radio artwork under its own hostname with a
// trailing dot ("host.:8080"). Merge rewrites those URLs so they resolve.
//
// # Usage Example
//
//	store := &state.Store{}
//
//	// stream goroutine
//	for n := range notifications {
//		snap, err := store.Merge(n)
//		if err != nil {
//			log.Debug().Err(err).Msg("malformed notification")
//			continue
//		}
//		publish(snap)
//	}
//
//	// optimistic command update
//	store.Update(func(s *state.Snapshot) { s.Volume.Level = state.Ptr(0.35) })
//
// # Testing Considerations
//
// The zero Store is ready to use. Snapshot on a fresh store returns the zero
// Snapshot with Version 0. Merge is a plain function, so most merge tests
// call it directly without a store.
package state

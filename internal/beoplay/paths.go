package beoplay

import "slices"

// API paths, relative to http://{host}:8080/.
const (
	pathNotifications = "BeoNotify/Notifications"

	pathDevice  = "BeoDevice"
	pathStandby = "BeoDevice/powerManagement/standby"

	pathSources       = "BeoZone/Zone/Sources"
	pathActiveSources = "BeoZone/Zone/ActiveSources"
	pathLeave         = "BeoZone/Zone/ActiveSources/primaryExperience"
	pathJoin          = "BeoZone/Zone/Device/OneWayJoin"

	pathVolume      = "BeoZone/Zone/Sound/Volume"
	pathVolumeLevel = "BeoZone/Zone/Sound/Volume/Speaker/Level"
	pathMuted       = "BeoZone/Zone/Sound/Volume/Speaker/Muted"

	pathSoundMode       = "BeoZone/Zone/Sound/Mode"
	pathSoundModeActive = "BeoZone/Zone/Sound/Mode/Active"
	pathStand           = "BeoZone/Zone/Stand"
	pathStandActive     = "BeoZone/Zone/Stand/Active"

	pathPlayQueue    = "BeoZone/Zone/PlayQueue"
	queryInstantPlay = "?instantplay"

	pathDigits    = "BeoZone/Zone/Digits"
	remotePrefix  = "BeoZone/Zone/"
	releaseSuffix = "/Release"
)

// Transport actions accepted by Client.Transport, mapped to their paths.
var transportActions = map[string]string{
	"play":     "BeoZone/Zone/Stream/Play",
	"pause":    "BeoZone/Zone/Stream/Pause",
	"stop":     "BeoZone/Zone/Stream/Stop",
	"forward":  "BeoZone/Zone/Stream/Forward",
	"backward": "BeoZone/Zone/Stream/Backward",
	"stepup":   "BeoZone/Zone/List/StepUp",
	"stepdown": "BeoZone/Zone/List/StepDown",
	"shuffle":  "BeoZone/Zone/List/Shuffle",
	"repeat":   "BeoZone/Zone/List/Repeat",
}

// TransportActions lists the names accepted by Client.Transport.
func TransportActions() []string {
	names := make([]string, 0, len(transportActions))
	for name := range transportActions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var remoteCommands = []string{
	"Cursor/Select", "Cursor/Up", "Cursor/Down", "Cursor/Left", "Cursor/Right",
	"Cursor/Exit", "Cursor/Back", "Cursor/PageUp", "Cursor/PageDown", "Cursor/Clear",
	"Stream/Play", "Stream/Stop", "Stream/Pause", "Stream/Wind", "Stream/Rewind",
	"Stream/Forward", "Stream/Backward",
	"List/StepUp", "List/StepDown", "List/PreviousElement", "List/Shuffle", "List/Repeat",
	"Menu/Root", "Menu/Option", "Menu/Setup", "Menu/Contents", "Menu/Favorites",
	"Menu/ElectronicProgramGuide", "Menu/VideoOnDemand", "Menu/Text", "Menu/HbbTV",
	"Menu/HomeControl",
	"Device/Information", "Device/Eject", "Device/TogglePower", "Device/Languages",
	"Device/Subtitles", "Device/OneWayJoin", "Device/Mots",
	"Record/Record",
	"Generic/Blue", "Generic/Red", "Generic/Green", "Generic/Yellow",
}

var digits = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

// RemoteCommands returns the remote control commands the device accepts.
func RemoteCommands() []string { return slices.Clone(remoteCommands) }

// Digits returns the digit keys the device accepts.
func Digits() []string { return slices.Clone(digits) }

func isRemoteCommand(cmd string) bool { return slices.Contains(remoteCommands, cmd) }

package beoplay

import (
	"strconv"
	"strings"
)

// Queue behaviours.
const (
	BehaviourPlanned   = "planned"
	BehaviourImpulsive = "impulsive"
)

// QueueItem is the body of a play queue request.
type QueueItem struct {
	PlayQueueItem QueueEntry `json:"playQueueItem"`
}

// QueueEntry holds exactly one of Track or Station.
type QueueEntry struct {
	Behaviour string   `json:"behaviour"`
	Track     *Track   `json:"track,omitempty"`
	Station   *Station `json:"station,omitempty"`
}

// Track is a queued track from a streaming service or a media server.
type Track struct {
	Deezer *DeezerRef `json:"deezer,omitempty"`
	DLNA   *DLNARef   `json:"dlna,omitempty"`
	Image  []Image    `json:"image"`
}

// Station is a queued radio station.
type Station struct {
	TuneIn *TuneInRef `json:"tuneIn,omitempty"`
	Image  []Image    `json:"image"`
}

type DeezerRef struct {
	ID int64 `json:"id"`
}

type DLNARef struct {
	URL string `json:"url"`
}

type TuneInRef struct {
	StationID string `json:"stationId"`
}

type Image struct {
	URL       string `json:"url"`
	Size      string `json:"size,omitempty"`
	MediaType string `json:"mediatype,omitempty"`
}

// TuneInStation queues a TuneIn station such as "s45455".
func TuneInStation(stationID string) (QueueItem, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return QueueItem{}, invalid("tunein station id is empty")
	}
	return QueueItem{PlayQueueItem: QueueEntry{
		Behaviour: BehaviourPlanned,
		Station:   &Station{TuneIn: &TuneInRef{StationID: stationID}, Image: []Image{}},
	}}, nil
}

// DeezerTrack queues a Deezer track by numeric id.
func DeezerTrack(id string) (QueueItem, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return QueueItem{}, invalid("deezer track id %q is not a positive number", id)
	}
	return QueueItem{PlayQueueItem: QueueEntry{
		Behaviour: BehaviourImpulsive,
		Track:     &Track{Deezer: &DeezerRef{ID: n}, Image: []Image{}},
	}}, nil
}

// DLNATrack queues a track served by a DLNA media server.
func DLNATrack(url string) (QueueItem, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return QueueItem{}, invalid("dlna url %q is not http", url)
	}
	return QueueItem{PlayQueueItem: QueueEntry{
		Behaviour: BehaviourImpulsive,
		Track:     &Track{DLNA: &DLNARef{URL: url}, Image: []Image{}},
	}}, nil
}

// Queue services accepted by QueueItemFor.
const (
	ServiceTuneIn = "tunein"
	ServiceDeezer = "deezer"
	ServiceDLNA   = "dlna"
)

// QueueItemFor builds a queue item from a service name and its reference.
func QueueItemFor(service, ref string) (QueueItem, error) {
	switch strings.ToLower(strings.TrimSpace(service)) {
	case ServiceTuneIn:
		return TuneInStation(ref)
	case ServiceDeezer:
		return DeezerTrack(ref)
	case ServiceDLNA:
		return DLNATrack(ref)
	default:
		return QueueItem{}, invalid("unknown queue service %q (want tunein, deezer or dlna)", service)
	}
}

package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/five82/beoplay/internal/notify"
)

// Merge folds one notification into s and returns the result. s itself is not
// modified. A notification that failed to decode leaves s as it was and its
// error is returned. Unknown kinds are a no-op.
//
// Each kind owns a fixed group of fields; media metadata is overwritten as a
// whole, so a field the kind does not report is cleared rather than kept from
// the previous track. The catalogue and identity are never touched.
func Merge(s Snapshot, n notify.Notification) (Snapshot, error) {
	if n.Err != nil {
		return s, n.Err
	}
	if n.Payload == nil {
		return s, fmt.Errorf("notification %s has no payload", n.Kind)
	}

	next := s.Clone()
	switch p := n.Payload.(type) {
	case notify.Volume:
		ApplyVolume(&next, p)

	case notify.Source:
		if p.Present {
			next.Source = Ptr(p.Name)
			next.State = Ptr(p.State)
			next.Power = Ptr(true)
		} else {
			next.Source = nil
			next.State = nil
			next.Power = Ptr(false)
		}
		next.Media = Media{}

	case notify.Experience:
		next.Listeners = append([]string{}, p.Listeners...)

	case notify.Progress:
		next.State = Ptr(p.State)

	case notify.StoredMusic:
		next.Media = Media{
			URL:    cloneString(p.ImageURL),
			Track:  Ptr(p.Name),
			Artist: cloneString(p.Artist),
			Album:  cloneString(p.Album),
			Genre:  cloneString(p.Genre),
		}

	case notify.StoredVideo:
		next.Media = Media{Track: Ptr(p.Name)}

	case notify.NetRadio:
		media := Media{
			Artist:  cloneString(p.Name),
			Track:   cloneString(p.LiveDescription),
			Genre:   cloneString(p.Genre),
			Country: cloneString(p.Country),
		}
		if p.ImageURL != nil {
			media.URL = Ptr(fixArtworkHost(*p.ImageURL))
		}
		if p.Languages != nil {
			media.Languages = append([]string{}, p.Languages...)
		}
		next.Media = media

	case notify.Legacy:
		next.Media = Media{Track: Ptr(strconv.FormatInt(p.TrackNumber, 10))}
		next.Power = Ptr(p.Kind == "playing")
		next.State = Ptr(p.Kind)

	case notify.Ended:
		next.Media = Media{}

	case notify.NumberAndName:
		next.Media = Media{Track: Ptr(fmt.Sprintf("%d. %s", p.Number, p.Name))}

	case notify.SoundMode:
		next.SoundMode = Ptr(p.Name)

	default:
		return s, nil
	}
	return next, nil
}

// ApplyVolume sets the volume group from a speaker reading on the device's
// 0..100 scale.
func ApplyVolume(s *Snapshot, v notify.Volume) {
	s.Volume = Volume{
		Level: Ptr(float64(v.Level) / 100),
		Muted: Ptr(v.Muted),
		Min:   Ptr(float64(v.Min) / 100),
		Max:   Ptr(float64(v.Max) / 100),
	}
}

// fixArtworkHost works around firmware that reports its own hostname with a
// trailing dot ("host.:8080"), which does not resolve.
func fixArtworkHost(u string) string {
	return strings.ReplaceAll(u, ".:8080/", ":8080/")
}

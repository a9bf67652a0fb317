package session

import (
	"fmt"

	"github.com/openairplay/airplay/pkg/plist"
)

// MinVolumeDB is the quietest volume SET_PARAMETER accepts (-144.0 means muted).
const MinVolumeDB = -144.0

// MaxVolumeDB is the loudest volume SET_PARAMETER accepts.
const MaxVolumeDB = 0.0

// VolumeToDB converts a 0..100 linear volume percentage to the signed dB
// scale SET_PARAMETER carries on the wire.
//
// Open question: the exact curve pyatv and other controllers
// use for this conversion is not authoritative in public sources. This
// module picks a fixed linear-in-dB mapping (0 -> -144.0dB, 100 ->
// 0.0dB) and documents it here rather than guessing a logarithmic curve;
// see DESIGN.md.
func VolumeToDB(percent float64) (float64, error) {
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("session: volume percent %.1f out of range [0,100]", percent)
	}
	if percent == 0 {
		return MinVolumeDB, nil
	}
	return MinVolumeDB + (percent/100)*(MaxVolumeDB-MinVolumeDB), nil
}

// DBToVolume converts a signed dB value back to the 0..100 linear scale,
// the inverse of VolumeToDB.
func DBToVolume(db float64) (float64, error) {
	if db < MinVolumeDB || db > MaxVolumeDB {
		return 0, fmt.Errorf("session: volume %.1fdB out of range [%.1f,%.1f]", db, MinVolumeDB, MaxVolumeDB)
	}
	return (db - MinVolumeDB) / (MaxVolumeDB - MinVolumeDB) * 100, nil
}

// FormatVolumeParameter renders the SET_PARAMETER text body for a volume
// change.
func FormatVolumeParameter(db float64) string {
	return fmt.Sprintf("volume: %.6f\r\n", db)
}

// FormatProgressParameter renders the SET_PARAMETER text body for a
// progress update.
func FormatProgressParameter(p Progress) string {
	return fmt.Sprintf("progress: %d/%d/%d\r\n", p.Start, p.Current, p.End)
}

// ParseVolumeParameter extracts the signed dB value from a
// `volume: <dB>` SET_PARAMETER text body, the inverse of
// FormatVolumeParameter.
func ParseVolumeParameter(body []byte) (float64, error) {
	var db float64
	if _, err := fmt.Sscanf(string(body), "volume: %f", &db); err != nil {
		return 0, fmt.Errorf("session: parse volume parameter: %w", err)
	}
	if db < MinVolumeDB || db > MaxVolumeDB {
		return 0, fmt.Errorf("session: volume %.1fdB out of range [%.1f,%.1f]", db, MinVolumeDB, MaxVolumeDB)
	}
	return db, nil
}

// ParseProgressParameter extracts the RTP sample triple from a
// `progress: start/current/end` SET_PARAMETER text body, the inverse of
// FormatProgressParameter.
func ParseProgressParameter(body []byte) (Progress, error) {
	var p Progress
	if _, err := fmt.Sscanf(string(body), "progress: %d/%d/%d", &p.Start, &p.Current, &p.End); err != nil {
		return Progress{}, fmt.Errorf("session: parse progress parameter: %w", err)
	}
	return p, nil
}

// ParseMetadataBody decodes a binary-plist SET_PARAMETER body into track
// metadata, the inverse of the trackInfo dictionary BuildPlayBody emits.
func ParseMetadataBody(body []byte) (Metadata, error) {
	v, err := plist.Decode(body)
	if err != nil {
		return Metadata{}, fmt.Errorf("session: decode metadata body: %w", err)
	}
	info := v.Get("trackInfo")
	if info == nil {
		info = v
	}
	var m Metadata
	if t := info.Get("title"); t != nil {
		m.Title = t.String
	}
	if a := info.Get("artist"); a != nil {
		m.Artist = a.String
	}
	if al := info.Get("album"); al != nil {
		m.Album = al.String
	}
	return m, nil
}

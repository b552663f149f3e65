// Package profile provides the adaptive bitrate representation catalog.
// The catalog is a fixed table of named tiers, each mapping to a resolution
// and a video/audio bitrate pair. It is built once at package init and never
// mutated; every accessor hands out copies.
//
// Example usage:
//
//	rep, err := profile.Lookup("480p")
//	ladder, err := profile.Resolve([]string{"360p", "720p"})
//	full := profile.AutoLadder(0) // unknown source height: whole ladder
package profile

import (
	"fmt"
	"strings"

	serrors "github.com/mantonx/streamctl/internal/modules/streammodule/errors"
)

// Representation is a single quality level of an ABR ladder.
// Bitrates are in bits per second.
type Representation struct {
	Name         string `json:"name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	VideoBitrate int    `json:"video_bitrate"`
	AudioBitrate int    `json:"audio_bitrate"`
}

// Size returns the resolution formatted as WxH
func (r Representation) Size() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// VideoKbps returns the video bitrate in the unit ffmpeg's "k" suffix expects
func (r Representation) VideoKbps() int {
	return r.VideoBitrate / 1024
}

// AudioKbps returns the audio bitrate in the unit ffmpeg's "k" suffix expects
func (r Representation) AudioKbps() int {
	return r.AudioBitrate / 1024
}

// Tier names
const (
	Tier240p  = "240p"
	Tier360p  = "360p"
	Tier480p  = "480p"
	Tier720p  = "720p"
	Tier1080p = "1080p"
)

// Ordered lowest bandwidth first. Bitrates grow with resolution; nothing
// enforces that, the table is simply written that way.
var ladder = []Representation{
	{Name: Tier240p, Width: 426, Height: 240, VideoBitrate: 150 * 1024, AudioBitrate: 94 * 1024},
	{Name: Tier360p, Width: 640, Height: 360, VideoBitrate: 276 * 1024, AudioBitrate: 128 * 1024},
	{Name: Tier480p, Width: 854, Height: 480, VideoBitrate: 750 * 1024, AudioBitrate: 192 * 1024},
	{Name: Tier720p, Width: 1280, Height: 720, VideoBitrate: 2048 * 1024, AudioBitrate: 320 * 1024},
	{Name: Tier1080p, Width: 1920, Height: 1080, VideoBitrate: 4096 * 1024, AudioBitrate: 320 * 1024},
}

var byName = func() map[string]Representation {
	m := make(map[string]Representation, len(ladder))
	for _, rep := range ladder {
		m[rep.Name] = rep
	}
	return m
}()

// Lookup returns the representation for a tier name.
// Names are matched case-insensitively; unknown names fail with ErrInvalidProfile.
func Lookup(name string) (Representation, error) {
	rep, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Representation{}, serrors.ValidationError("lookup_profile", serrors.ErrInvalidProfile).
			WithDetail("tier", name)
	}
	return rep, nil
}

// Resolve looks up every name in order. The first unknown name fails the whole call.
func Resolve(names []string) ([]Representation, error) {
	reps := make([]Representation, 0, len(names))
	for _, name := range names {
		rep, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		reps = append(reps, rep)
	}
	return reps, nil
}

// Ladder returns the full catalog, lowest tier first
func Ladder() []Representation {
	out := make([]Representation, len(ladder))
	copy(out, ladder)
	return out
}

// Names returns the tier names, lowest tier first
func Names() []string {
	names := make([]string, len(ladder))
	for i, rep := range ladder {
		names[i] = rep.Name
	}
	return names
}

// AutoLadder picks every tier that does not upscale a source of the given height.
// A non-positive height means the source is unknown and yields the full ladder.
// At least the lowest tier is always returned.
func AutoLadder(sourceHeight int) []Representation {
	if sourceHeight <= 0 {
		return Ladder()
	}

	var out []Representation
	for _, rep := range ladder {
		if rep.Height > sourceHeight {
			break
		}
		out = append(out, rep)
	}

	if len(out) == 0 {
		out = append(out, ladder[0])
	}
	return out
}

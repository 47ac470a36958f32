package pianobar

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// stationCountMarker separates the scalar key-value pairs from the station
// array. A scalar value containing it splits the input in the wrong place.
const stationCountMarker = "stationCount="

var (
	// ErrInvalidInfo is matched by every Info parse failure.
	ErrInvalidInfo = errors.New("invalid event info")

	ErrMissingStationCount = fmt.Errorf("%w: missing %q", ErrInvalidInfo, stationCountMarker)
	ErrMalformedLine       = fmt.Errorf("%w: malformed line", ErrInvalidInfo)
	ErrMissingKey          = fmt.Errorf("%w: missing key", ErrInvalidInfo)
	ErrInvalidNumber       = fmt.Errorf("%w: invalid number", ErrInvalidInfo)
)

// PianobarStatus is the result of pianobar's own API call.
// Code comes from PianoReturn_t.
type PianobarStatus struct {
	Code    int32
	Message string
}

// CurlStatus is the result of the underlying HTTP transfer.
type CurlStatus struct {
	Code    int32
	Message string
}

// Song holds playback progress in seconds.
type Song struct {
	Duration int32
	Played   int32
}

// Info is the player state pianobar writes to the eventcmd's stdin.
// Optional fields are nil when the key is absent or its value is empty.
type Info struct {
	Artist          *string
	Title           *string
	Album           *string
	CoverArt        *string
	StationName     *string
	SongStationName *string
	PianobarStatus  PianobarStatus
	CurlStatus      CurlStatus
	Song            Song
	Rating          int32
	DetailURL       *string
	Stations        []string
}

// ReadInfo reads r to EOF and parses the result.
func ReadInfo(r io.Reader) (Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, fmt.Errorf("read event info: %w", err)
	}
	return ParseInfo(string(data))
}

// ParseInfo parses pianobar's event info text. It either returns a complete
// Info or an error matching ErrInvalidInfo.
func ParseInfo(text string) (Info, error) {
	head, tail, ok := strings.Cut(text, stationCountMarker)
	if !ok {
		return Info{}, ErrMissingStationCount
	}

	fields, err := parsePairs(head)
	if err != nil {
		return Info{}, err
	}
	stations, err := parseStations(tail)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Artist:          fields.optional("artist"),
		Title:           fields.optional("title"),
		Album:           fields.optional("album"),
		CoverArt:        fields.optional("coverArt"),
		StationName:     fields.optional("stationName"),
		SongStationName: fields.optional("songStationName"),
		DetailURL:       fields.optional("detailUrl"),
		Stations:        stations,
	}

	if info.PianobarStatus.Code, err = fields.integer("pRet"); err != nil {
		return Info{}, err
	}
	if info.PianobarStatus.Message, err = fields.required("pRetStr"); err != nil {
		return Info{}, err
	}
	if info.CurlStatus.Code, err = fields.integer("wRet"); err != nil {
		return Info{}, err
	}
	if info.CurlStatus.Message, err = fields.required("wRetStr"); err != nil {
		return Info{}, err
	}
	if info.Song.Duration, err = fields.integer("songDuration"); err != nil {
		return Info{}, err
	}
	if info.Song.Played, err = fields.integer("songPlayed"); err != nil {
		return Info{}, err
	}
	if info.Rating, err = fields.integer("rating"); err != nil {
		return Info{}, err
	}

	return info, nil
}

type pairs map[string]string

// parsePairs collects key=value lines. Later duplicates overwrite earlier ones.
func parsePairs(text string) (pairs, error) {
	out := make(pairs)
	for _, line := range lines(text) {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMalformedLine, line)
		}
		out[key] = value
	}
	return out, nil
}

// parseStations drops the remainder of the stationCount line and keeps the
// value of every following line. The declared count is not checked against
// the result.
func parseStations(tail string) ([]string, error) {
	_, rest, _ := strings.Cut(tail, "\n")
	ls := lines(rest)
	stations := make([]string, 0, len(ls))
	for _, line := range ls {
		_, name, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMalformedLine, line)
		}
		stations = append(stations, name)
	}
	return stations, nil
}

func (p pairs) optional(key string) *string {
	v, ok := p[key]
	if !ok || v == "" {
		return nil
	}
	return &v
}

func (p pairs) required(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrMissingKey, key)
	}
	return v, nil
}

func (p pairs) integer(key string) (int32, error) {
	v, err := p.required(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w for %q: %q", ErrInvalidNumber, key, v)
	}
	return int32(n), nil
}

// lines splits on newlines, strips a trailing carriage return and drops
// empty lines.
func lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

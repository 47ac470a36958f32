package pianobar

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Event pairs an eventcmd with the info pianobar supplied for it. It is the
// unit sent over the socket.
//
// Only values built with NewEvent (or returned by DecodeEvent) survive an
// encode/decode round trip unchanged: decoding always yields a non-nil
// station list and nil for empty optional strings.
type Event struct {
	EventCmd EventCmd
	Info     Info
}

// NewEvent builds an Event in the form DecodeEvent produces. A nil station
// list becomes an empty one and empty optional strings become nil.
func NewEvent(cmd EventCmd, info Info) Event {
	if info.Stations == nil {
		info.Stations = []string{}
	}
	for _, opt := range []**string{
		&info.Artist, &info.Title, &info.Album, &info.CoverArt,
		&info.StationName, &info.SongStationName, &info.DetailURL,
	} {
		*opt = nonEmpty(*opt)
	}
	return Event{EventCmd: cmd, Info: info}
}

// DecodeError is returned when a payload is not an encoded Event.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Wire representation. Pointers let the validator tell a missing member
// from a zero one.
type wireEvent struct {
	EventCmd *EventCmd `json:"eventcmd" validate:"required"`
	Info     *wireInfo `json:"info" validate:"required"`
}

type wireInfo struct {
	Artist          *string     `json:"artist"`
	Title           *string     `json:"title"`
	Album           *string     `json:"album"`
	CoverArt        *string     `json:"cover_art"`
	StationName     *string     `json:"station_name"`
	SongStationName *string     `json:"song_station_name"`
	PianobarStatus  *wireStatus `json:"pianobar_status" validate:"required"`
	CurlStatus      *wireStatus `json:"curl_status" validate:"required"`
	Song            *wireSong   `json:"song" validate:"required"`
	Rating          *int32      `json:"rating" validate:"required"`
	DetailURL       *string     `json:"detail_url"`
	Stations        []string    `json:"stations"`
}

type wireStatus struct {
	Code    *int32  `json:"code" validate:"required"`
	Message *string `json:"message" validate:"required"`
}

type wireSong struct {
	Duration *int32 `json:"duration" validate:"required"`
	Played   *int32 `json:"played" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Encode serializes the event as a JSON object.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(toWire(e))
}

// DecodeEvent is the inverse of Encode. Unknown members, trailing data,
// unknown eventcmds and missing mandatory members are rejected with a
// *DecodeError.
func DecodeEvent(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireEvent
	if err := dec.Decode(&w); err != nil {
		return Event{}, &DecodeError{Err: err}
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Event{}, &DecodeError{Err: errors.New("trailing data after event")}
	}
	if err := validate.Struct(&w); err != nil {
		return Event{}, &DecodeError{Err: err}
	}
	return fromWire(w), nil
}

// MarshalJSON renders the wire form, so loggers and HTTP handlers print
// the same document the socket carries.
func (e Event) MarshalJSON() ([]byte, error) {
	return e.Encode()
}

// UnmarshalJSON applies the same checks as DecodeEvent.
func (e *Event) UnmarshalJSON(data []byte) error {
	ev, err := DecodeEvent(data)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

// MarshalJSON renders the info object of the wire form.
func (i Info) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWireInfo(i))
}

func toWire(e Event) wireEvent {
	cmd := e.EventCmd
	return wireEvent{
		EventCmd: &cmd,
		Info:     toWireInfo(e.Info),
	}
}

func toWireInfo(info Info) *wireInfo {
	stations := info.Stations
	if stations == nil {
		stations = []string{}
	}
	return &wireInfo{
		Artist:          info.Artist,
		Title:           info.Title,
		Album:           info.Album,
		CoverArt:        info.CoverArt,
		StationName:     info.StationName,
		SongStationName: info.SongStationName,
		PianobarStatus: &wireStatus{
			Code:    &info.PianobarStatus.Code,
			Message: &info.PianobarStatus.Message,
		},
		CurlStatus: &wireStatus{
			Code:    &info.CurlStatus.Code,
			Message: &info.CurlStatus.Message,
		},
		Song: &wireSong{
			Duration: &info.Song.Duration,
			Played:   &info.Song.Played,
		},
		Rating:    &info.Rating,
		DetailURL: info.DetailURL,
		Stations:  stations,
	}
}

func fromWire(w wireEvent) Event {
	wi := w.Info
	return NewEvent(*w.EventCmd, Info{
		Artist:          nonEmpty(wi.Artist),
		Title:           nonEmpty(wi.Title),
		Album:           nonEmpty(wi.Album),
		CoverArt:        nonEmpty(wi.CoverArt),
		StationName:     nonEmpty(wi.StationName),
		SongStationName: nonEmpty(wi.SongStationName),
		PianobarStatus: PianobarStatus{
			Code:    *wi.PianobarStatus.Code,
			Message: *wi.PianobarStatus.Message,
		},
		CurlStatus: CurlStatus{
			Code:    *wi.CurlStatus.Code,
			Message: *wi.CurlStatus.Message,
		},
		Song: Song{
			Duration: *wi.Song.Duration,
			Played:   *wi.Song.Played,
		},
		Rating:    *wi.Rating,
		DetailURL: nonEmpty(wi.DetailURL),
		Stations:  wi.Stations,
	})
}

// nonEmpty keeps decoded optionals consistent with ParseInfo, where an empty
// value is absent.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

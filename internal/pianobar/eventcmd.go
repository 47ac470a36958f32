// Package pianobar models the notifications pianobar hands to its
// event_command: the eventcmd name, the info block piped on stdin, and the
// Event envelope relayed between hope processes.
//
// Pianobar's eventcmd types are described in pianobar(1).
package pianobar

import "fmt"

// EventCmd identifies the pianobar action that triggered a notification.
// The value of each constant is the token pianobar passes as argv[1].
type EventCmd string

const (
	ArtistBookmark           EventCmd = "artistbookmark"
	SettingsChange           EventCmd = "settingschange"
	SettingsGet              EventCmd = "settingsget"
	SongBan                  EventCmd = "songban"
	SongBookmark             EventCmd = "songbookmark"
	SongExplain              EventCmd = "songexplain"
	SongFinish               EventCmd = "songfinish"
	SongLove                 EventCmd = "songlove"
	SongShelf                EventCmd = "songshelf"
	SongStart                EventCmd = "songstart"
	StationAddGenre          EventCmd = "stationaddgenre"
	StationAddMusic          EventCmd = "stationaddmusic"
	StationAddShared         EventCmd = "stationaddshared"
	StationCreate            EventCmd = "stationcreate"
	StationDelete            EventCmd = "stationdelete"
	StationDeleteArtistSeed  EventCmd = "stationdeleteartistseed"
	StationDeleteFeedback    EventCmd = "stationdeletefeedback"
	StationDeleteSongSeed    EventCmd = "stationdeletesongseed"
	StationDeleteStationSeed EventCmd = "stationdeletestationseed"
	StationFetchGenre        EventCmd = "stationfetchgenre"
	StationFetchInfo         EventCmd = "stationfetchinfo"
	StationFetchPlaylist     EventCmd = "stationfetchplaylist"
	StationGetModes          EventCmd = "stationgetmodes"
	StationQuickMixToggle    EventCmd = "stationquickmixtoggle"
	StationRename            EventCmd = "stationrename"
	StationSetMode           EventCmd = "stationsetmode"
	UserGetStations          EventCmd = "usergetstations"
	UserLogin                EventCmd = "userlogin"
)

// eventCmds is the closed vocabulary. The classifier, the text codec and the
// HTTP listing all read from it.
var eventCmds = []EventCmd{
	ArtistBookmark,
	SettingsChange,
	SettingsGet,
	SongBan,
	SongBookmark,
	SongExplain,
	SongFinish,
	SongLove,
	SongShelf,
	SongStart,
	StationAddGenre,
	StationAddMusic,
	StationAddShared,
	StationCreate,
	StationDelete,
	StationDeleteArtistSeed,
	StationDeleteFeedback,
	StationDeleteSongSeed,
	StationDeleteStationSeed,
	StationFetchGenre,
	StationFetchInfo,
	StationFetchPlaylist,
	StationGetModes,
	StationQuickMixToggle,
	StationRename,
	StationSetMode,
	UserGetStations,
	UserLogin,
}

var eventCmdIndex = func() map[string]EventCmd {
	m := make(map[string]EventCmd, len(eventCmds))
	for _, c := range eventCmds {
		m[string(c)] = c
	}
	return m
}()

// ParseEventCmdError is returned when a token is not a known eventcmd.
type ParseEventCmdError struct {
	Token string
}

func (e *ParseEventCmdError) Error() string {
	return fmt.Sprintf("invalid eventcmd: %s", e.Token)
}

// ParseEventCmd classifies a token. Matching is exact: no trimming and no
// case folding.
func ParseEventCmd(token string) (EventCmd, error) {
	c, ok := eventCmdIndex[token]
	if !ok {
		return "", &ParseEventCmdError{Token: token}
	}
	return c, nil
}

// EventCmds returns every known eventcmd in table order.
func EventCmds() []EventCmd {
	out := make([]EventCmd, len(eventCmds))
	copy(out, eventCmds)
	return out
}

// Valid reports whether c is a member of the vocabulary.
func (c EventCmd) Valid() bool {
	_, ok := eventCmdIndex[string(c)]
	return ok
}

func (c EventCmd) String() string {
	return string(c)
}

// MarshalText implements encoding.TextMarshaler.
func (c EventCmd) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, &ParseEventCmdError{Token: string(c)}
	}
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *EventCmd) UnmarshalText(text []byte) error {
	parsed, err := ParseEventCmd(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

package domain

// Track represents a catalog track in the domain layer.
type Track struct {
	ID          string
	Title       string
	Artists     []string
	Album       string // optional
	DurationMs  int
	URI         string
	AlbumArtURL string // optional
	PreviewURL  string // optional
}

// AudioFeatures holds the tempo and mood descriptors for a track.
// Energy, Danceability and Valence are normalized to 0.0-1.0.
type AudioFeatures struct {
	TrackID      string
	Tempo        float64
	Energy       float64
	Danceability float64
	Valence      float64
}

// Song is a track joined with its resolved integer BPM. It is the unit handed
// to the session layer and is never mutated after construction.
type Song struct {
	ID          string
	Title       string
	Artist      string
	Album       string
	BPM         int
	URI         string
	AlbumArtURL string
}

// PlaybackState describes what the catalog reports as currently playing.
type PlaybackState struct {
	IsPlaying  bool
	ProgressMs int
	Track      *Track
	Device     *Device
}

// Device is a playback target known to the catalog.
type Device struct {
	ID       string
	Name     string
	Type     string
	IsActive bool
	Volume   int
}

// UserProfile is the authenticated catalog user.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	Country     string
	Product     string
}

package spotify

// Wire shapes for the Web API. Only the fields we read are declared; unknown
// fields are ignored by the decoder.

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
	DurationMs int             `json:"duration_ms"`
	URI        string          `json:"uri"`
	PreviewURL *string         `json:"preview_url"`
}

type spotifyAudioFeatures struct {
	ID           string  `json:"id"`
	Tempo        float64 `json:"tempo"`
	Energy       float64 `json:"energy"`
	Danceability float64 `json:"danceability"`
	Valence      float64 `json:"valence"`
}

type spotifyDevice struct {
	ID            *string `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	IsActive      bool    `json:"is_active"`
	VolumePercent *int    `json:"volume_percent"`
}

type spotifyPlayback struct {
	IsPlaying  bool           `json:"is_playing"`
	ProgressMs *int           `json:"progress_ms"`
	Item       *spotifyTrack  `json:"item"`
	Device     *spotifyDevice `json:"device"`
}

type spotifyUser struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name"`
	Email       string  `json:"email"`
	Country     string  `json:"country"`
	Product     string  `json:"product"`
}

type playRequest struct {
	URIs []string `json:"uris"`
}

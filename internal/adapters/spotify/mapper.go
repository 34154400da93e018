package spotify

import (
	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// mapTrackToDomain converts a raw Spotify track to a domain track.
func mapTrackToDomain(st spotifyTrack) domain.Track {
	// 1. Flatten artists
	artists := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}

	// 2. Album art: the API lists the largest image first
	coverURL := ""
	if len(st.Album.Images) > 0 {
		coverURL = st.Album.Images[0].URL
	}

	dt := domain.Track{
		ID:          st.ID,
		Title:       st.Name,
		Artists:     artists,
		Album:       st.Album.Name,
		DurationMs:  st.DurationMs,
		URI:         st.URI,
		AlbumArtURL: coverURL,
	}
	if st.PreviewURL != nil {
		dt.PreviewURL = *st.PreviewURL
	}
	if dt.URI == "" && dt.ID != "" {
		dt.URI = "spotify:track:" + dt.ID
	}
	return dt
}

func mapFeaturesToDomain(f spotifyAudioFeatures) domain.AudioFeatures {
	return domain.AudioFeatures{
		TrackID:      f.ID,
		Tempo:        f.Tempo,
		Energy:       f.Energy,
		Danceability: f.Danceability,
		Valence:      f.Valence,
	}
}

func mapDeviceToDomain(d spotifyDevice) domain.Device {
	dd := domain.Device{Name: d.Name, Type: d.Type, IsActive: d.IsActive}
	if d.ID != nil {
		dd.ID = *d.ID
	}
	if d.VolumePercent != nil {
		dd.Volume = *d.VolumePercent
	}
	return dd
}

func mapPlaybackToDomain(p spotifyPlayback) *domain.PlaybackState {
	ps := &domain.PlaybackState{IsPlaying: p.IsPlaying}
	if p.ProgressMs != nil {
		ps.ProgressMs = *p.ProgressMs
	}
	if p.Item != nil && p.Item.ID != "" {
		track := mapTrackToDomain(*p.Item)
		ps.Track = &track
	}
	if p.Device != nil {
		device := mapDeviceToDomain(*p.Device)
		ps.Device = &device
	}
	return ps
}

func mapUserToDomain(u spotifyUser) domain.UserProfile {
	up := domain.UserProfile{ID: u.ID, Email: u.Email, Country: u.Country, Product: u.Product}
	if u.DisplayName != nil {
		up.DisplayName = *u.DisplayName
	}
	return up
}

package rest

import (
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/workout"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type songDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	BPM         int    `json:"bpm"`
	URI         string `json:"uri"`
	AlbumArtURL string `json:"album_art_url,omitempty"`
}

func toSongDTO(s domain.Song) songDTO {
	return songDTO{
		ID:          s.ID,
		Title:       s.Title,
		Artist:      s.Artist,
		Album:       s.Album,
		BPM:         s.BPM,
		URI:         s.URI,
		AlbumArtURL: s.AlbumArtURL,
	}
}

type songsResponse struct {
	BPM      int       `json:"bpm"`
	Fallback bool      `json:"fallback"`
	Songs    []songDTO `json:"songs"`
}

func toSongsResponse(res services.MatchResult) songsResponse {
	out := songsResponse{BPM: res.BPM, Fallback: res.Fallback, Songs: make([]songDTO, 0, len(res.Songs))}
	for _, s := range res.Songs {
		out.Songs = append(out.Songs, toSongDTO(s))
	}
	return out
}

type sessionDTO struct {
	ID                     string     `json:"id"`
	StartTime              time.Time  `json:"start_time"`
	EndTime                *time.Time `json:"end_time,omitempty"`
	TargetBPM              int        `json:"target_bpm"`
	Type                   string     `json:"type"`
	PlannedDurationSeconds int        `json:"planned_duration_seconds,omitempty"`
	DurationSeconds        int        `json:"duration_seconds"`
	Duration               string     `json:"duration"`
	Songs                  []string   `json:"songs"`
}

func toSessionDTO(s domain.WorkoutSession) sessionDTO {
	songs := s.Songs
	if songs == nil {
		songs = []string{}
	}
	return sessionDTO{
		ID:                     s.ID,
		StartTime:              s.StartTime,
		EndTime:                s.EndTime,
		TargetBPM:              s.TargetBPM,
		Type:                   string(s.Type),
		PlannedDurationSeconds: int(s.PlannedDuration / time.Second),
		DurationSeconds:        int(s.Duration / time.Second),
		Duration:               domain.FormatDuration(s.Duration),
		Songs:                  songs,
	}
}

type stateDTO struct {
	Status           string  `json:"status"`
	SessionID        string  `json:"session_id,omitempty"`
	Type             string  `json:"type,omitempty"`
	TargetBPM        int     `json:"target_bpm,omitempty"`
	ElapsedSeconds   int     `json:"elapsed_seconds"`
	RemainingSeconds int     `json:"remaining_seconds"`
	Elapsed          string  `json:"elapsed"`
	Remaining        string  `json:"remaining"`
	Completion       float64 `json:"completion"`
	SongsPlayed      int     `json:"songs_played"`
}

func toStateDTO(s workout.State) stateDTO {
	return stateDTO{
		Status:           string(s.Status),
		SessionID:        s.SessionID,
		Type:             string(s.Type),
		TargetBPM:        s.TargetBPM,
		ElapsedSeconds:   int(s.Elapsed / time.Second),
		RemainingSeconds: int(s.Remaining / time.Second),
		Elapsed:          s.ElapsedText,
		Remaining:        s.RemainingText,
		Completion:       s.Completion,
		SongsPlayed:      s.SongsPlayed,
	}
}

type statsDTO struct {
	TotalSessions    int    `json:"total_sessions"`
	TotalTimeSeconds int    `json:"total_time_seconds"`
	TotalTime        string `json:"total_time"`
	AverageBPM       int    `json:"average_bpm"`
	SongsPlayed      int    `json:"songs_played"`
}

func toStatsDTO(s domain.WorkoutStats) statsDTO {
	return statsDTO{
		TotalSessions:    s.TotalSessions,
		TotalTimeSeconds: int(s.TotalTime / time.Second),
		TotalTime:        domain.FormatDuration(s.TotalTime),
		AverageBPM:       s.AverageBPM,
		SongsPlayed:      s.SongsPlayed,
	}
}

type presetDTO struct {
	BPM         int    `json:"bpm"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type presetsResponse struct {
	BPM             []presetDTO `json:"bpm"`
	DurationMinutes []int       `json:"duration_minutes"`
	SessionTypes    []string    `json:"session_types"`
	DefaultBPM      int         `json:"default_bpm"`
}

type trackDTO struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artists []string `json:"artists"`
	Album   string   `json:"album,omitempty"`
	URI     string   `json:"uri"`
}

type deviceDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
	Volume   int    `json:"volume"`
}

func toDeviceDTO(d domain.Device) deviceDTO {
	return deviceDTO{ID: d.ID, Name: d.Name, Type: d.Type, IsActive: d.IsActive, Volume: d.Volume}
}

type playbackDTO struct {
	IsPlaying  bool       `json:"is_playing"`
	ProgressMs int        `json:"progress_ms"`
	Track      *trackDTO  `json:"track,omitempty"`
	Device     *deviceDTO `json:"device,omitempty"`
}

func toPlaybackDTO(p domain.PlaybackState) playbackDTO {
	out := playbackDTO{IsPlaying: p.IsPlaying, ProgressMs: p.ProgressMs}
	if p.Track != nil {
		out.Track = &trackDTO{ID: p.Track.ID, Title: p.Track.Title, Artists: p.Track.Artists, Album: p.Track.Album, URI: p.Track.URI}
	}
	if p.Device != nil {
		d := toDeviceDTO(*p.Device)
		out.Device = &d
	}
	return out
}

type profileDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
}

type metronomeDTO struct {
	BPM     int  `json:"bpm"`
	Running bool `json:"running"`
	Enabled bool `json:"enabled"`
}

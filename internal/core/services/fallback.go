package services

import "github.com/ewilliams-labs/cadence/internal/core/domain"

// FallbackSongs returns the built-in songs used when the catalog cannot be
// reached. Each call returns a fresh slice.
func FallbackSongs() []domain.Song {
	return []domain.Song{
		{ID: "1", Title: "Running in the 90s", Artist: "Max Coveri", Album: "Initial D", BPM: 160, URI: "spotify:track:1"},
		{ID: "2", Title: "Eye of the Tiger", Artist: "Survivor", Album: "Rocky III", BPM: 180, URI: "spotify:track:2"},
		{ID: "3", Title: "Born to Run", Artist: "Bruce Springsteen", Album: "Born to Run", BPM: 140, URI: "spotify:track:3"},
		{ID: "4", Title: "Chariots of Fire", Artist: "Vangelis", Album: "Chariots of Fire", BPM: 120, URI: "spotify:track:4"},
		{ID: "5", Title: "The Final Countdown", Artist: "Europe", Album: "The Final Countdown", BPM: 160, URI: "spotify:track:5"},
		{ID: "6", Title: "We Will Rock You", Artist: "Queen", Album: "News of the World", BPM: 180, URI: "spotify:track:6"},
		{ID: "7", Title: "Sweet Child O' Mine", Artist: "Guns N' Roses", Album: "Appetite for Destruction", BPM: 140, URI: "spotify:track:7"},
		{ID: "8", Title: "Don't Stop Believin'", Artist: "Journey", Album: "Escape", BPM: 120, URI: "spotify:track:8"},
	}
}

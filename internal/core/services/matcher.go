package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// TempoTolerance is the maximum distance in BPM between a song and the
// target cadence.
const TempoTolerance = 10

const (
	minFitnessScore      = 0.4
	defaultPerQueryLimit = 20
	defaultBatchLimit    = 50
	defaultMaxResults    = 20
)

// ErrNoMatch is returned when no song lies within tolerance of the target.
var ErrNoMatch = errors.New("no song matches the target tempo")

var baseQueries = []string{"workout", "running", "fitness", "energy"}

var genreBuckets = []struct {
	maxBPM int
	genres []string
}{
	{maxBPM: 110, genres: []string{"chill", "acoustic", "folk", "indie"}},
	{maxBPM: 130, genres: []string{"pop", "rock", "alternative", "indie"}},
	{maxBPM: 150, genres: []string{"dance", "house", "electronic", "disco"}},
	{maxBPM: 170, genres: []string{"techno", "edm", "dance", "electronic"}},
	{maxBPM: 200, genres: []string{"drum and bass", "hardcore", "speed", "fast"}},
}

var outOfRangeGenres = []string{"energetic", "workout", "running", "fitness"}

// GenresForBPM returns the four genre tags searched for bpm.
func GenresForBPM(bpm int) []string {
	if bpm > 0 {
		for _, b := range genreBuckets {
			if bpm <= b.maxBPM {
				return b.genres
			}
		}
	}
	return outOfRangeGenres
}

// QueriesForBPM returns the generic workout terms followed by one
// genre:<tag> query per bucket genre.
func QueriesForBPM(bpm int) []string {
	genres := GenresForBPM(bpm)
	queries := make([]string, 0, len(baseQueries)+len(genres))
	queries = append(queries, baseQueries...)
	for _, g := range genres {
		queries = append(queries, "genre:"+g)
	}
	return queries
}

// FitnessScore rates how well features suit a run at target BPM. ok is false
// when the tempo is outside tolerance.
func FitnessScore(f domain.AudioFeatures, target int) (score float64, ok bool) {
	diff := math.Abs(f.Tempo - float64(target))
	if diff > TempoTolerance {
		return 0, false
	}
	closeness := 1 - diff/TempoTolerance
	return 0.4*f.Energy + 0.3*f.Danceability + 0.2*f.Valence + 0.1*closeness, true
}

// FilterByTempo keeps the songs within tolerance of bpm, preserving order.
func FilterByTempo(songs []domain.Song, bpm int) []domain.Song {
	out := make([]domain.Song, 0, len(songs))
	for _, s := range songs {
		diff := s.BPM - bpm
		if diff < 0 {
			diff = -diff
		}
		if diff <= TempoTolerance {
			out = append(out, s)
		}
	}
	return out
}

// MatchResult is the outcome of one match request. Fallback is set when the
// songs came from the built-in list; Err holds the catalog failure that
// caused it, if any.
type MatchResult struct {
	BPM      int
	Songs    []domain.Song
	Fallback bool
	Err      error
}

// MatcherOptions tunes the matcher. Zero values select the defaults.
type MatcherOptions struct {
	PerQueryLimit int
	BatchLimit    int
	MaxResults    int
	Fallback      []domain.Song
	Rand          *rand.Rand
	Logger        logrus.FieldLogger
}

// Matcher turns a target BPM into a ranked list of songs.
type Matcher struct {
	catalog       ports.CatalogClient
	logger        logrus.FieldLogger
	perQueryLimit int
	batchLimit    int
	maxResults    int
	fallback      []domain.Song

	mu         sync.Mutex
	rng        *rand.Rand
	generation uint64
	pool       []domain.Song
}

// NewMatcher constructs a Matcher over catalog.
func NewMatcher(catalog ports.CatalogClient, opts MatcherOptions) *Matcher {
	m := &Matcher{
		catalog:       catalog,
		logger:        opts.Logger,
		perQueryLimit: opts.PerQueryLimit,
		batchLimit:    opts.BatchLimit,
		maxResults:    opts.MaxResults,
		fallback:      opts.Fallback,
		rng:           opts.Rand,
	}
	if m.logger == nil {
		m.logger = logrus.StandardLogger()
	}
	if m.perQueryLimit <= 0 {
		m.perQueryLimit = defaultPerQueryLimit
	}
	if m.batchLimit <= 0 {
		m.batchLimit = defaultBatchLimit
	}
	if m.maxResults <= 0 {
		m.maxResults = defaultMaxResults
	}
	if m.fallback == nil {
		m.fallback = FallbackSongs()
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return m
}

// SongsForBPM returns songs for bpm from the catalog, or from the fallback
// list when the catalog is unavailable. It never fails. A result produced
// after ctx is done is returned but does not replace the pool.
func (m *Matcher) SongsForBPM(ctx context.Context, bpm int) MatchResult {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	res := MatchResult{BPM: bpm}
	if !m.catalog.Authenticated() {
		res.Songs = FilterByTempo(m.fallback, bpm)
		res.Fallback = true
	} else if songs, err := m.matchRemote(ctx, bpm); err != nil {
		m.logger.Warnf("matcher: catalog match for %d BPM failed, using fallback: %v", bpm, err)
		res.Songs = FilterByTempo(m.fallback, bpm)
		res.Fallback = true
		res.Err = err
	} else {
		res.Songs = songs
	}

	m.mu.Lock()
	switch {
	case ctx.Err() != nil:
		m.logger.Debugf("matcher: match for %d BPM canceled, keeping current pool", bpm)
	case gen == m.generation:
		m.pool = res.Songs
	default:
		m.logger.Debugf("matcher: dropping superseded result for %d BPM", bpm)
	}
	m.mu.Unlock()

	return res
}

// RandomSongForBPM picks a song within tolerance of bpm from the latest
// match result, or from the fallback list when that result is empty.
func (m *Matcher) RandomSongForBPM(bpm int) (domain.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source := m.pool
	if len(source) == 0 {
		source = m.fallback
	}
	candidates := FilterByTempo(source, bpm)
	if len(candidates) == 0 {
		return domain.Song{}, ErrNoMatch
	}
	return candidates[m.rng.IntN(len(candidates))], nil
}

// Pool returns a copy of the songs RandomSongForBPM currently draws from.
func (m *Matcher) Pool() []domain.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Song(nil), m.pool...)
}

type scoredSong struct {
	song  domain.Song
	score float64
}

func (m *Matcher) matchRemote(ctx context.Context, bpm int) ([]domain.Song, error) {
	// 1. Fan out one search per query and wait for all of them
	queries := QueriesForBPM(bpm)
	results := make([][]domain.Track, len(queries))

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, q := range queries {
		p.Go(func(ctx context.Context) error {
			tracks, err := m.catalog.SearchTracks(ctx, q, m.perQueryLimit)
			if err != nil {
				return fmt.Errorf("search %q: %w", q, err)
			}
			results[i] = tracks
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	// 2. Merge in query order, first occurrence wins
	seen := make(map[string]struct{})
	var merged []domain.Track
	for _, tracks := range results {
		for _, t := range tracks {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			merged = append(merged, t)
		}
	}
	if len(merged) > m.batchLimit {
		merged = merged[:m.batchLimit]
	}
	if len(merged) == 0 {
		return nil, nil
	}

	// 3. One feature lookup for the whole batch
	ids := make([]string, len(merged))
	for i, t := range merged {
		ids[i] = t.ID
	}
	features, err := m.catalog.AudioFeatures(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: audio features: %w", err)
	}
	byID := make(map[string]domain.AudioFeatures, len(features))
	for _, f := range features {
		byID[f.TrackID] = f
	}

	// 4. Score, filter, rank
	var scored []scoredSong
	for _, t := range merged {
		f, ok := byID[t.ID]
		if !ok {
			continue
		}
		score, ok := FitnessScore(f, bpm)
		if !ok || score <= minFitnessScore {
			continue
		}
		scored = append(scored, scoredSong{song: songFromTrack(t, f), score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > m.maxResults {
		scored = scored[:m.maxResults]
	}

	songs := make([]domain.Song, len(scored))
	for i, s := range scored {
		songs[i] = s.song
	}
	return songs, nil
}

func songFromTrack(t domain.Track, f domain.AudioFeatures) domain.Song {
	artist := strings.Join(t.Artists, ", ")
	if artist == "" {
		artist = "Unknown Artist"
	}
	return domain.Song{
		ID:          t.ID,
		Title:       t.Title,
		Artist:      artist,
		Album:       t.Album,
		BPM:         int(math.Round(f.Tempo)),
		URI:         t.URI,
		AlbumArtURL: t.AlbumArtURL,
	}
}

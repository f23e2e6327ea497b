// Package snippet implements the Snippet Library: loads songs and
// their phase metadata from disk and answers "give me a snippet whose
// transition matches post-genre G" (spec.md section 2.A).
//
// Grounded on original_source/soundsride/song.py's Song/SongSnippet/
// SongDatabase, decoding via the teacher's FFmpeg subprocess path
// (internal/audio.DecodeFile) instead of the Python original's pydub.
package snippet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/soundsride/soundsrided/internal/audio"
)

// Snippet is a slice of a Song between two phase boundaries, with the
// genre either side of its transition (spec.md section 3 SongSnippet).
type Snippet struct {
	song *Song

	StartMS      int64
	TransitionMS int64
	EndMS        int64
	PreGenre     string
	PostGenre    string
}

// PreDuration is the snippet's length before its transition.
func (s Snippet) PreDuration() int64 { return s.TransitionMS - s.StartMS }

// PostDuration is the snippet's length after its transition.
func (s Snippet) PostDuration() int64 { return s.EndMS - s.TransitionMS }

// Samples returns the snippet's audio, sliced out of its song's shared
// immutable buffer. No per-snippet copy: spec.md section 5 requires
// song audio buffers to be immutable after load and shared by
// reference.
func (s Snippet) Samples() audio.Segment {
	return s.song.full.Slice(s.StartMS, s.EndMS)
}

// Song is one decoded audio file plus its ordered phase metadata.
// Decoded once at load time; its buffer never changes afterward.
type Song struct {
	Name  string
	full  audio.Segment
	phase []phase
}

type phase struct {
	startMS int64
	genre   string
}

// Load decodes audioPath via FFmpeg at the given format and parses
// metaPath's phase lines ("<phase_start_ms> <genre>", one per line,
// ascending). Mirrors song.py's Song.__init__ and
// _parse_metadata_file.
func Load(name, audioPath, metaPath string, format audio.Format) (*Song, error) {
	samples, err := audio.DecodeFile(audioPath, format)
	if err != nil {
		return nil, fmt.Errorf("snippet: load %s: %w", name, err)
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("snippet: read metadata %s: %w", metaPath, err)
	}

	phases, err := parsePhases(string(raw))
	if err != nil {
		return nil, fmt.Errorf("snippet: parse metadata %s: %w", metaPath, err)
	}

	return &Song{
		Name:  name,
		full:  audio.Segment{Samples: samples, Format: format},
		phase: phases,
	}, nil
}

func parsePhases(text string) ([]phase, error) {
	var out []phase
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed phase line %q", line)
		}
		startMS, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed phase timestamp %q: %w", fields[0], err)
		}
		out = append(out, phase{startMS: startMS, genre: fields[1]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].startMS < out[j].startMS })
	return out, nil
}

// Snippets returns every (pre_genre, post_genre) transition the song
// contains, one Snippet per consecutive phase pair. Mirrors song.py's
// get_full_snippets_by_genres but computed for all genre pairs at
// once, since the library indexes by post-genre across every loaded
// song rather than querying one song at a time.
func (s *Song) Snippets() []Snippet {
	if len(s.phase) < 2 {
		return nil
	}
	out := make([]Snippet, 0, len(s.phase)-1)
	for i := 0; i < len(s.phase)-1; i++ {
		startMS := s.phase[i].startMS
		transitionMS := s.phase[i+1].startMS

		endMS := s.full.DurationMS()
		if i+2 < len(s.phase) {
			endMS = s.phase[i+2].startMS
		}

		out = append(out, Snippet{
			song:         s,
			StartMS:      startMS,
			TransitionMS: transitionMS,
			EndMS:        endMS,
			PreGenre:     s.phase[i].genre,
			PostGenre:    s.phase[i+1].genre,
		})
	}
	return out
}

// Library indexes every snippet loaded from a directory by post-genre,
// serving the Mix Planner's "give me a snippet whose transition
// matches category G" queries (spec.md section 2.A).
type Library struct {
	Format audio.Format

	mu        sync.Mutex
	songs     []*Song
	byPost    map[string][]Snippet
	rotations map[string]int // round-robin cursor per post-genre
}

// NewLibrary scans dir for "<name>.mp3"/"<name>.txt" pairs (teacher's
// directory-scan style) and indexes their snippets. Missing ".txt"
// companions are skipped rather than erroring, since a library
// directory may stage audio ahead of its metadata.
func NewLibrary(dir string, format audio.Format) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("snippet: read library dir %s: %w", dir, err)
	}

	lib := &Library{
		Format:    format,
		byPost:    make(map[string][]Snippet),
		rotations: make(map[string]int),
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".mp3")
		audioPath := filepath.Join(dir, base+".mp3")
		metaPath := filepath.Join(dir, base+".txt")
		if _, err := os.Stat(metaPath); err != nil {
			continue
		}

		song, err := Load(base, audioPath, metaPath, format)
		if err != nil {
			return nil, err
		}
		lib.songs = append(lib.songs, song)

		for _, snip := range song.Snippets() {
			lib.byPost[snip.PostGenre] = append(lib.byPost[snip.PostGenre], snip)
		}
	}

	return lib, nil
}

// PhaseMarker is an exported mirror of phase, for callers building a
// Song directly from an in-memory buffer (NewSongFromSegment) rather
// than from a decoded file and metadata text.
type PhaseMarker struct {
	StartMS int64
	Genre   string
}

// NewSongFromSegment builds a Song from an already-decoded PCM buffer
// and explicit phase markers, skipping FFmpeg and metadata-file
// parsing. Used wherever a Song's audio is synthesized or already in
// memory — tests chief among them.
func NewSongFromSegment(name string, seg audio.Segment, phases []PhaseMarker) *Song {
	out := make([]phase, len(phases))
	for i, p := range phases {
		out[i] = phase{startMS: p.StartMS, genre: p.Genre}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].startMS < out[j].startMS })
	return &Song{Name: name, full: seg, phase: out}
}

// NewLibraryFromSnippets builds a Library directly from an already
// decoded snippet set, indexed the same way NewLibrary indexes a
// directory scan. Useful wherever snippets arrive other than via a
// directory of (mp3, txt) pairs — tests chief among them, since it
// lets a caller exercise Get's round-robin without FFmpeg or disk.
func NewLibraryFromSnippets(format audio.Format, snippets []Snippet) *Library {
	lib := &Library{
		Format:    format,
		byPost:    make(map[string][]Snippet),
		rotations: make(map[string]int),
	}
	for _, snip := range snippets {
		lib.byPost[snip.PostGenre] = append(lib.byPost[snip.PostGenre], snip)
	}
	return lib
}

// Get returns a snippet whose transition's post-genre matches
// postGenre. When multiple candidates exist, successive calls
// round-robin through them so the library doesn't always hand back
// the same clip. Safe for concurrent use: a Library is shared read
// traffic across every session's mix planner.
func (l *Library) Get(postGenre string) (Snippet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	candidates := l.byPost[postGenre]
	if len(candidates) == 0 {
		return Snippet{}, false
	}
	i := l.rotations[postGenre] % len(candidates)
	l.rotations[postGenre] = i + 1
	return candidates[i], true
}

// Songs returns the loaded songs, for diagnostics and session logging.
func (l *Library) Songs() []*Song {
	out := make([]*Song, len(l.songs))
	copy(out, l.songs)
	return out
}

package docindex

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunking defaults used when building the notes index
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 150
)

var headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// defaultSeparators are tried in order, from paragraph breaks down to
// single characters
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into passages of at most size characters, carrying up
// to overlap characters of context from one passage into the next.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter creates a splitter. Invalid sizes fall back to the defaults
// and an overlap that does not fit inside a chunk is reduced.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}
}

// SplitNote splits markdown into chunks, keeping each chunk inside one
// heading section so the heading can travel with it.
func (s *Splitter) SplitNote(content string) []Chunk {
	var chunks []Chunk
	for _, sec := range parseSections(content) {
		for _, text := range s.Split(sec.body) {
			chunks = append(chunks, Chunk{
				Position: len(chunks),
				Heading:  sec.heading,
				Content:  text,
			})
		}
	}
	return chunks
}

// Split cuts plain text into chunks
func (s *Splitter) Split(text string) []string {
	return s.split(strings.TrimSpace(text), s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	if runeLen(text) <= s.size {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, separators[i+1:]
			break
		}
	}
	if sep == "" {
		return s.hardSplit(text)
	}

	var chunks, fitting []string
	for _, piece := range strings.Split(text, sep) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		if runeLen(piece) <= s.size {
			fitting = append(fitting, piece)
			continue
		}
		chunks = append(chunks, s.merge(fitting, sep)...)
		fitting = nil
		chunks = append(chunks, s.split(piece, rest)...)
	}
	return append(chunks, s.merge(fitting, sep)...)
}

// merge packs pieces into windows no longer than size, starting each new
// window with a tail of the previous one no longer than overlap.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var chunks, window []string
	sepLen := runeLen(sep)
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if len(window) > 0 && total+sepLen+n > s.size {
			chunks = appendChunk(chunks, strings.Join(window, sep))
			for len(window) > 0 && (total > s.overlap || total+sepLen+n > s.size) {
				total -= runeLen(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, piece)
		total += n
	}
	if len(window) > 0 {
		chunks = appendChunk(chunks, strings.Join(window, sep))
	}
	return chunks
}

// hardSplit cuts text without a separator into fixed windows
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.size - s.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = appendChunk(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func appendChunk(chunks []string, text string) []string {
	if text = strings.TrimSpace(text); text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

type section struct {
	heading string
	body    string
}

// parseSections groups markdown lines under their nearest heading. Text
// before the first heading forms a section with an empty heading.
func parseSections(content string) []section {
	var sections []section
	var current section
	var body strings.Builder

	flush := func() {
		current.body = strings.TrimSpace(body.String())
		if current.body != "" {
			sections = append(sections, current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		if m := headingRegex.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			flush()
			current = section{heading: strings.TrimSpace(m[2])}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

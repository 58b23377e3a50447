package dedupe

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Zuo-Peng/cc-summarize/internal/fingerprint"
	"github.com/Zuo-Peng/cc-summarize/internal/parse"
)

// Source is the parsed content of one log file. ModTime decides precedence
// and is supplied by the caller.
type Source struct {
	Path     string
	ModTime  time.Time
	Messages []parse.Message
}

// Stats counts dropped duplicates.
type Stats struct {
	DroppedByID      int
	DroppedByContent int
}

func (s Stats) Total() int {
	return s.DroppedByID + s.DroppedByContent
}

// Dedupe merges sources into one ordered message sequence. Sources are
// visited most recently modified first; the first message seen for an ID
// wins. A message whose content fingerprint matches one already kept from a
// different source is dropped as well.
func Dedupe(sources []Source) ([]parse.Message, Stats) {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ModTime.After(ordered[j].ModTime)
	})

	var (
		stats  Stats
		out    []parse.Message
		seenID = map[string]bool{}
		seenFP = map[string]int{} // fingerprint -> index of the source that kept it
	)

	for si, src := range ordered {
		for _, m := range src.Messages {
			if m.ID != "" && seenID[m.ID] {
				stats.DroppedByID++
				continue
			}

			fp, err := ContentKey(&m)
			if err != nil {
				log.Debug().Err(err).Str("id", m.ID).Msg("content fingerprint failed")
			} else if owner, ok := seenFP[fp]; ok && owner != si {
				stats.DroppedByContent++
				continue
			} else if !ok {
				seenFP[fp] = si
			}

			if m.ID != "" {
				seenID[m.ID] = true
			}
			out = append(out, m)
		}
	}

	// ties keep visiting order: most recent file first, then file order
	parse.Renumber(out)
	parse.SortMessages(out)
	parse.Renumber(out)

	if stats.Total() > 0 {
		log.Debug().
			Int("by_id", stats.DroppedByID).
			Int("by_content", stats.DroppedByContent).
			Msg("dropped duplicate messages")
	}
	return out, stats
}

type contentMaterial struct {
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
	Content   []any  `json:"content"`
}

// ContentKey fingerprints the role, timestamp and content of m. Position
// fields such as Seq, Line and Source are not part of it.
func ContentKey(m *parse.Message) (string, error) {
	mat := contentMaterial{Role: string(m.Role), Content: []any{}}
	if m.HasTimestamp() {
		mat.Timestamp = m.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	for _, b := range m.Content {
		if len(b.Raw) > 0 {
			mat.Content = append(mat.Content, fingerprint.Decode(b.Raw))
			continue
		}
		mat.Content = append(mat.Content, b)
	}
	return fingerprint.Sum(mat)
}

package memory

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// experiencePrefix names the files in an experience directory that hold
// exemplar conversations.
const experiencePrefix = "raw_exp_"

// Experience is a past successful conversation used as an exemplar when
// composing role prompts.
type Experience struct {
	Rounds []*Round
}

// ExperienceFromYAMLFile loads one exemplar conversation.
func ExperienceFromYAMLFile(path string) (*Experience, error) {
	conv, err := ConversationFromYAMLFile(path)
	if err != nil {
		return nil, err
	}
	return &Experience{Rounds: conv.Rounds}, nil
}

// ExperienceLibrary loads exemplar conversations from a directory and
// selects the ones most relevant to a query. Relevance here is a naive
// token-overlap score; embedding-based retrieval lives outside the
// conversation core.
type ExperienceLibrary struct {
	dir    string
	logger zerolog.Logger
}

// NewExperienceLibrary creates a library over the given directory.
func NewExperienceLibrary(dir string, logger zerolog.Logger) *ExperienceLibrary {
	return &ExperienceLibrary{dir: dir, logger: logger}
}

// Load returns up to topK experiences relevant to query, restricted to
// conversations whose posts only involve roles in roleSet (when non-nil).
func (l *ExperienceLibrary) Load(query string, roleSet map[string]bool, topK int) []*Experience {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil
	}

	var experiences []*Experience
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, experiencePrefix) || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		exp, err := ExperienceFromYAMLFile(filepath.Join(l.dir, name))
		if err != nil {
			l.logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable experience")
			continue
		}
		if roleSet != nil && !experienceWithinRoles(exp, roleSet) {
			continue
		}
		experiences = append(experiences, exp)
	}

	if len(experiences) > topK {
		sort.SliceStable(experiences, func(i, j int) bool {
			return overlapScore(query, experiences[i]) > overlapScore(query, experiences[j])
		})
		experiences = experiences[:topK]
	}
	return experiences
}

func experienceWithinRoles(exp *Experience, roleSet map[string]bool) bool {
	for _, r := range exp.Rounds {
		for _, p := range r.Posts {
			if !roleSet[p.SendFrom] || !roleSet[p.SendTo] {
				return false
			}
		}
	}
	return true
}

// overlapScore counts query tokens that appear in the experience's user
// queries. Crude, but cheap and deterministic.
func overlapScore(query string, exp *Experience) int {
	haystack := make(map[string]bool)
	for _, r := range exp.Rounds {
		for _, tok := range strings.Fields(strings.ToLower(r.UserQuery)) {
			haystack[tok] = true
		}
	}
	score := 0
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if haystack[tok] {
			score++
		}
	}
	return score
}

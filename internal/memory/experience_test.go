package memory

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExperience(t *testing.T, dir, name string, rounds ...*Round) {
	t.Helper()
	conv := NewConversation()
	for _, r := range rounds {
		conv.AddRound(r)
	}
	require.NoError(t, conv.WriteYAMLFile(filepath.Join(dir, name)))
}

func TestExperienceLibrary_LoadsOnlyPrefixedFiles(t *testing.T) {
	dir := t.TempDir()
	writeExperience(t, dir, "raw_exp_histogram.yaml",
		buildRound("plot a histogram", NewPost("plot a histogram", RoleUser, RolePlanner)))
	writeExperience(t, dir, "notes.yaml",
		buildRound("unrelated", NewPost("unrelated", RoleUser, RolePlanner)))

	lib := NewExperienceLibrary(dir, zerolog.Nop())
	got := lib.Load("anything", nil, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "plot a histogram", got[0].Rounds[0].UserQuery)
}

func TestExperienceLibrary_TopKPrefersOverlappingQueries(t *testing.T) {
	dir := t.TempDir()
	writeExperience(t, dir, "raw_exp_histogram.yaml",
		buildRound("plot a histogram of sales", NewPost("q", RoleUser, RolePlanner)))
	writeExperience(t, dir, "raw_exp_scrape.yaml",
		buildRound("scrape a web page", NewPost("q", RoleUser, RolePlanner)))

	lib := NewExperienceLibrary(dir, zerolog.Nop())
	got := lib.Load("please plot a histogram", nil, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "plot a histogram of sales", got[0].Rounds[0].UserQuery)
}

func TestExperienceLibrary_RoleSetFiltersForeignRoles(t *testing.T) {
	dir := t.TempDir()
	writeExperience(t, dir, "raw_exp_known.yaml",
		buildRound("known", NewPost("known", RoleUser, RolePlanner)))
	writeExperience(t, dir, "raw_exp_foreign.yaml",
		buildRound("foreign", NewPost("foreign", RoleUser, "ImageAnalyst")))

	lib := NewExperienceLibrary(dir, zerolog.Nop())
	roleSet := map[string]bool{RoleUser: true, RolePlanner: true}
	got := lib.Load("anything", roleSet, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "known", got[0].Rounds[0].UserQuery)
}

func TestExperienceLibrary_MissingDirectory(t *testing.T) {
	lib := NewExperienceLibrary(filepath.Join(t.TempDir(), "absent"), zerolog.Nop())
	assert.Empty(t, lib.Load("query", nil, 3))
}

package planner

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/memory"
	"github.com/tandem-ai/tandem/internal/provider"
)

// fakeStreamer replays canned completions and records the prompts it saw.
type fakeStreamer struct {
	docs    []string
	prompts [][]*schema.Message
}

func (f *fakeStreamer) Stream(_ context.Context, messages []*schema.Message) (*provider.CompletionStream, error) {
	f.prompts = append(f.prompts, messages)
	doc := f.docs[len(f.prompts)-1]
	return provider.NewCompletionStream(schema.StreamReaderFromArray([]*schema.Message{
		{Role: schema.Assistant, Content: doc},
	})), nil
}

func memoryWithQuery(query string) *memory.Memory {
	mem := memory.New()
	round := memory.NewRound(query)
	round.AddPost(memory.NewPost(query, memory.RoleUser, memory.RolePlanner))
	mem.AddRound(round)
	return mem
}

func newTestPlanner(t *testing.T, cfg Config, llm Streamer) *Planner {
	t.Helper()
	p, err := New(cfg, llm, nil, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func replyOnce(t *testing.T, p *Planner, mem *memory.Memory) *memory.Post {
	t.Helper()
	emitter := event.NewSessionEventEmitter("test", nil)
	proxy := emitter.CreatePostProxy(p.Alias())
	post, err := p.Reply(context.Background(), mem, proxy)
	require.NoError(t, err)
	return post
}

func TestPlanner_StepRoutesToCodeInterpreter(t *testing.T) {
	llm := &fakeStreamer{docs: []string{
		`{"response": {"send_to": "CodeInterpreter", "message": "Load the data file.", "thought": "Needs execution.", "init_plan": "1. load\n2. plot", "plan": "1. load\n2. plot", "current_plan_step": "1. load"}}`,
	}}
	p := newTestPlanner(t, Config{}, llm)
	mem := memoryWithQuery("plot a histogram of sales.csv")

	post := replyOnce(t, p, mem)

	assert.Equal(t, memory.RoleCodeInterpreter, post.SendTo)
	assert.Equal(t, memory.RolePlanner, post.SendFrom)

	entries := mem.SharedMemoryEntries(memory.SharedMemoryPlan)
	require.Len(t, entries, 1)
	assert.Equal(t, "1. load\n2. plot", entries[0].Content)
}

func TestPlanner_PlanWithoutStepRoutesToUser(t *testing.T) {
	llm := &fakeStreamer{docs: []string{
		`{"response": {"send_to": "User", "message": "Here is my plan.", "plan": "1. gather requirements"}}`,
	}}
	p := newTestPlanner(t, Config{}, llm)
	mem := memoryWithQuery("help me refactor this service")

	post := replyOnce(t, p, mem)

	assert.Equal(t, memory.RoleUser, post.SendTo)
	assert.Equal(t, "Here is my plan.", post.Message)
	assert.Len(t, mem.SharedMemoryEntries(memory.SharedMemoryPlan), 1)
}

func TestPlanner_PlainReplyRoutesToUser(t *testing.T) {
	llm := &fakeStreamer{docs: []string{
		`{"response": {"send_to": "User", "message": "Hello! What can I do for you?"}}`,
	}}
	p := newTestPlanner(t, Config{}, llm)
	mem := memoryWithQuery("hi")

	post := replyOnce(t, p, mem)

	assert.Equal(t, memory.RoleUser, post.SendTo)
	assert.Empty(t, mem.SharedMemoryEntries(memory.SharedMemoryPlan))
}

func TestPlanner_RoutingOverridesModelSendTo(t *testing.T) {
	// The attachments, not the model's own send_to, decide the route.
	llm := &fakeStreamer{docs: []string{
		`{"response": {"send_to": "User", "message": "Running step one.", "plan": "1. load", "current_plan_step": "1. load"}}`,
	}}
	p := newTestPlanner(t, Config{}, llm)

	post := replyOnce(t, p, memoryWithQuery("load the data"))
	assert.Equal(t, memory.RoleCodeInterpreter, post.SendTo)
}

func TestPlanner_PromptCarriesHistoryAndPersistedPlan(t *testing.T) {
	llm := &fakeStreamer{docs: []string{
		`{"response": {"send_to": "User", "message": "ok"}}`,
	}}
	p := newTestPlanner(t, Config{}, llm)

	mem := memoryWithQuery("first question")
	mem.AddSharedMemoryEntry(memory.SharedMemoryPlan, "1. answer questions")

	replyOnce(t, p, mem)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	require.NotEmpty(t, prompt)
	assert.Equal(t, schema.System, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "Planner")
	assert.Contains(t, prompt[0].Content, "1. answer questions")

	last := prompt[len(prompt)-1]
	assert.Equal(t, schema.User, last.Role)
	assert.Contains(t, last.Content, "first question")
}

func TestPlanner_CompressionReplacesOlderRounds(t *testing.T) {
	llm := &fakeStreamer{docs: []string{
		`{"response": {"send_to": "User", "message": "ok"}}`,
	}}
	compressor := memory.NewRoundCompressor(&stubCompleter{reply: "SUMMARY OF EARLIER WORK"}, zerolog.Nop())

	p, err := New(Config{PromptCompression: true}, llm, compressor, zerolog.Nop())
	require.NoError(t, err)

	mem := memoryWithQuery("old question about imports")
	second := memory.NewRound("new question about exports")
	second.AddPost(memory.NewPost("new question about exports", memory.RoleUser, memory.RolePlanner))
	mem.AddRound(second)

	replyOnce(t, p, mem)

	flat := flattenPrompt(llm.prompts[0])
	assert.Contains(t, flat, "SUMMARY OF EARLIER WORK")
	assert.Contains(t, flat, "new question about exports")
	assert.NotContains(t, flat, "old question about imports")
}

func TestPlanner_ExperienceRetrievalSpansRecentRounds(t *testing.T) {
	dir := t.TempDir()
	writeExperienceFile(t, dir, "raw_exp_histogram.yaml",
		"plot a histogram of sales figures", "Used a 20-bin histogram over the sales column.")
	writeExperienceFile(t, dir, "raw_exp_smalltalk.yaml",
		"looks good thanks done", "No action was needed.")

	llm := &fakeStreamer{docs: []string{
		`{"response": {"send_to": "User", "message": "ok"}}`,
	}}
	p := newTestPlanner(t, Config{UseExperience: true, ExperienceDir: dir, ExperienceTopK: 1}, llm)

	// The task spans two rounds; retrieval has to weigh the earlier
	// query, not just the latest follow-up.
	mem := memoryWithQuery("plot a histogram of sales")
	second := memory.NewRound("looks good")
	second.AddPost(memory.NewPost("looks good", memory.RoleUser, memory.RolePlanner))
	mem.AddRound(second)

	replyOnce(t, p, mem)

	require.Len(t, llm.prompts, 1)
	system := llm.prompts[0][0].Content
	assert.Contains(t, system, "plot a histogram of sales figures")
	assert.NotContains(t, system, "No action was needed.")
}

func writeExperienceFile(t *testing.T, dir, name, query, outcome string) {
	t.Helper()
	conv := memory.NewConversation()
	round := memory.NewRound(query)
	round.AddPost(memory.NewPost(outcome, memory.RolePlanner, memory.RoleUser))
	conv.AddRound(round)
	require.NoError(t, conv.WriteYAMLFile(filepath.Join(dir, name)))
}

type stubCompleter struct {
	reply string
}

func (s *stubCompleter) Complete(context.Context, []*schema.Message) (string, error) {
	return s.reply, nil
}

func flattenPrompt(messages []*schema.Message) string {
	var out strings.Builder
	for _, m := range messages {
		out.WriteString(m.Content)
		out.WriteString("\n")
	}
	return out.String()
}

package role

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/memory"
	"github.com/tandem-ai/tandem/internal/provider"
)

// chunks splits text into size-byte deltas, the way a model streams a
// completion.
func chunks(text string, size int) []*schema.Message {
	var messages []*schema.Message
	for len(text) > 0 {
		n := size
		if n > len(text) {
			n = len(text)
		}
		messages = append(messages, &schema.Message{Role: schema.Assistant, Content: text[:n]})
		text = text[n:]
	}
	return messages
}

func chunkStream(text string, size int) *provider.CompletionStream {
	return provider.NewCompletionStream(schema.StreamReaderFromArray(chunks(text, size)))
}

// countingHandler counts post updates and collects error reports.
type countingHandler struct {
	updates    int
	lastStatus string
	errors     []string
}

func (h *countingHandler) OnRoundStart(string) {}
func (h *countingHandler) OnRoundEnd(string)   {}
func (h *countingHandler) OnPostUpdate(post *memory.Post, status string) {
	h.updates++
	h.lastStatus = status
}
func (h *countingHandler) OnError(message string) { h.errors = append(h.errors, message) }

func newTestProxy(handler event.SessionEventHandler) *event.PostEventProxy {
	emitter := event.NewSessionEventEmitter("test", nil)
	if handler != nil {
		emitter.AddHandler(handler)
	}
	return emitter.CreatePostProxy(memory.RolePlanner)
}

func TestStreamToPost_DecodesAllFields(t *testing.T) {
	doc := `{"response": {"send_to": "CodeInterpreter", "message": "Working on step one.", "thought": "The user wants a histogram.", "init_plan": "1. load data\n2. plot", "plan": "1. load data\n2. plot", "current_plan_step": "1. load data"}}`

	h := &countingHandler{}
	proxy := newTestProxy(h)
	translator := NewPostTranslator()

	err := translator.StreamToPost(context.Background(), chunkStream(doc, 7), proxy, nil)
	require.NoError(t, err)

	post := proxy.Post()
	assert.Equal(t, "CodeInterpreter", post.SendTo)
	assert.Equal(t, "Working on step one.", post.Message)

	thought, ok := post.FirstAttachment(memory.AttachmentThought)
	require.True(t, ok)
	assert.Equal(t, "The user wants a histogram.", thought.Content)

	step, ok := post.FirstAttachment(memory.AttachmentCurrentPlanStep)
	require.True(t, ok)
	assert.Equal(t, "1. load data", step.Content)

	// Updates streamed while the document grew, not only once at the end.
	assert.Greater(t, h.updates, 2)
	assert.False(t, proxy.Done())
}

func TestStreamToPost_MessageEscapesResolved(t *testing.T) {
	doc := `{"response": {"send_to": "User", "message": "line one\nline \"two\""}}`

	proxy := newTestProxy(nil)
	err := NewPostTranslator().StreamToPost(context.Background(), chunkStream(doc, 5), proxy, nil)
	require.NoError(t, err)

	assert.Equal(t, "line one\nline \"two\"", proxy.Post().Message)
}

func TestStreamToPost_EarlyStopSkipsTrailingTokens(t *testing.T) {
	// A trailing garbage delta after the closing brace would poison the
	// final validation pass; the early stop must cut consumption first.
	doc := `{"response": {"send_to": "User", "message": "hi", "reply_type": "text", "reply_content": "hi"}}`
	deltas := append(chunks(doc, 11), &schema.Message{Role: schema.Assistant, Content: "NOT JSON, MUST NEVER BE READ"})
	stream := provider.NewCompletionStream(schema.StreamReaderFromArray(deltas))

	h := &countingHandler{}
	proxy := newTestProxy(h)

	stop := func(typ memory.AttachmentType, _ string) bool {
		return typ == memory.AttachmentReplyContent
	}
	err := NewPostTranslator().StreamToPost(context.Background(), stream, proxy, stop)
	require.NoError(t, err)

	assert.Empty(t, h.errors)
	content, ok := proxy.Post().FirstAttachment(memory.AttachmentReplyContent)
	require.True(t, ok)
	assert.Equal(t, "hi", content.Content)
	assert.Equal(t, "User", proxy.Post().SendTo)
}

func TestStreamToPost_UnparseableDocumentErrorsTheProxy(t *testing.T) {
	doc := `{"response": {"send_to": "User", "message": "truncated`

	h := &countingHandler{}
	proxy := newTestProxy(h)

	err := NewPostTranslator().StreamToPost(context.Background(), chunkStream(doc, 9), proxy, nil)
	require.NoError(t, err)

	assert.True(t, proxy.Done())
	require.Len(t, h.errors, 1)
	assert.Contains(t, h.errors[0], "failed to parse")
}

func TestStreamToPost_PlainFieldOrderWithoutWrapper(t *testing.T) {
	doc := `{"send_to": "User", "message": "no wrapper"}`

	proxy := newTestProxy(nil)
	err := NewPostTranslator().StreamToPost(context.Background(), chunkStream(doc, 6), proxy, nil)
	require.NoError(t, err)

	assert.Equal(t, "User", proxy.Post().SendTo)
	assert.Equal(t, "no wrapper", proxy.Post().Message)
}

func TestPostToText(t *testing.T) {
	post := memory.NewPost("Executed the step.", memory.RoleCodeInterpreter, memory.RolePlanner)
	post.AddAttachment(memory.NewAttachment("print hello", memory.AttachmentReplyContent))
	post.AddAttachment(memory.NewAttachment("1. done", memory.AttachmentPlan))

	text := NewPostTranslator().PostToText(post, func(a *memory.Attachment) string {
		return string(a.Type) + ": " + a.Content
	}, true, true, []memory.AttachmentType{memory.AttachmentPlan})

	assert.Contains(t, text, "Executed the step.")
	assert.Contains(t, text, "reply_content: print hello")
	assert.NotContains(t, text, "1. done")
	assert.Contains(t, text, "send_to: Planner")
}

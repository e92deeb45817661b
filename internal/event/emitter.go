package event

import (
	"sync"

	"github.com/tandem-ai/tandem/internal/memory"
)

// Post statuses reported through OnPostUpdate. In between StatusStreaming
// and a terminal status, roles may report free-text progress statuses
// (e.g. "composing message").
const (
	StatusStreaming = "streaming"
	StatusEnded     = "end"
	StatusError     = "error"
)

// SessionEventHandler observes a session's turns as they unfold. Handlers
// see every post evolve through intermediate states before it is
// finalized, so OnPostUpdate implementations must render overwrites
// idempotently rather than append.
type SessionEventHandler interface {
	OnRoundStart(roundID string)
	OnRoundEnd(roundID string)
	OnPostUpdate(post *memory.Post, status string)
	OnError(message string)
}

// SessionEventEmitter broadcasts session events to registered handlers,
// mirroring each notification onto the bus for out-of-band observers.
// Handler notifications are synchronous and delivered in registration
// order, strictly before the post in question is appended to its round.
type SessionEventEmitter struct {
	mu        sync.Mutex
	handlers  []handlerEntry
	nextID    uint64
	sessionID string
	bus       *Bus
}

type handlerEntry struct {
	id      uint64
	handler SessionEventHandler
}

// NewSessionEventEmitter creates an emitter. bus may be nil for sessions
// with no out-of-band observers.
func NewSessionEventEmitter(sessionID string, bus *Bus) *SessionEventEmitter {
	return &SessionEventEmitter{sessionID: sessionID, bus: bus}
}

// AddHandler registers a handler and returns its removal func. Callers
// wanting scoped registration defer the removal, which runs on every exit
// path including panics.
func (e *SessionEventEmitter) AddHandler(h SessionEventHandler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, handlerEntry{id: id, handler: h})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, entry := range e.handlers {
			if entry.id == id {
				e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
				break
			}
		}
	}
}

func (e *SessionEventEmitter) snapshot() []SessionEventHandler {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SessionEventHandler, len(e.handlers))
	for i, entry := range e.handlers {
		out[i] = entry.handler
	}
	return out
}

// StartRound notifies handlers that a round has begun.
func (e *SessionEventEmitter) StartRound(roundID string) {
	for _, h := range e.snapshot() {
		h.OnRoundStart(roundID)
	}
	if e.bus != nil {
		e.bus.PublishSync(Event{
			Type: RoundStarted,
			Data: RoundStartedData{SessionID: e.sessionID, RoundID: roundID},
		})
	}
}

// EndRound notifies handlers that a round has finished.
func (e *SessionEventEmitter) EndRound(roundID string) {
	for _, h := range e.snapshot() {
		h.OnRoundEnd(roundID)
	}
	if e.bus != nil {
		e.bus.PublishSync(Event{
			Type: RoundEnded,
			Data: RoundEndedData{SessionID: e.sessionID, RoundID: roundID},
		})
	}
}

// UpdatePost fans the current state of an in-flight post out to handlers.
func (e *SessionEventEmitter) UpdatePost(post *memory.Post, status string) {
	for _, h := range e.snapshot() {
		h.OnPostUpdate(post, status)
	}
	if e.bus != nil {
		e.bus.PublishSync(Event{
			Type: PostUpdated,
			Data: PostUpdatedData{SessionID: e.sessionID, Post: post, Status: status},
		})
	}
}

// EmitError reports an error on the handler channel.
func (e *SessionEventEmitter) EmitError(message string) {
	for _, h := range e.snapshot() {
		h.OnError(message)
	}
	if e.bus != nil {
		e.bus.PublishSync(Event{
			Type: SessionError,
			Data: SessionErrorData{SessionID: e.sessionID, Error: message},
		})
	}
}

// CreatePostProxy starts a fresh post for the given sender. The post's
// recipient stays undetermined until the role routes it.
func (e *SessionEventEmitter) CreatePostProxy(sendFrom string) *PostEventProxy {
	return &PostEventProxy{
		emitter: e,
		post:    memory.NewPost("", sendFrom, memory.SendToUnknown),
	}
}

// PostEventProxy is the mutable handle through which a role streams
// incremental updates to a post before finalizing it. Lifecycle: empty →
// streaming (repeated) → ended or errored; once terminal, further updates
// are dropped.
type PostEventProxy struct {
	emitter *SessionEventEmitter
	post    *memory.Post
	status  string
	done    bool
}

// Post returns the post under construction.
func (p *PostEventProxy) Post() *memory.Post {
	return p.post
}

// Done reports whether the proxy reached a terminal state.
func (p *PostEventProxy) Done() bool {
	return p.done
}

func (p *PostEventProxy) emit(status string) {
	p.emitter.UpdatePost(p.post, status)
}

// UpdateMessage overwrites the post's message with the latest streamed text.
func (p *PostEventProxy) UpdateMessage(message string) {
	if p.done {
		return
	}
	p.post.Message = message
	if p.status == "" {
		p.status = StatusStreaming
	}
	p.emit(p.status)
}

// UpdateSendTo routes the post.
func (p *PostEventProxy) UpdateSendTo(sendTo string) {
	if p.done {
		return
	}
	p.post.SendTo = sendTo
	if p.status == "" {
		p.status = StatusStreaming
	}
	p.emit(p.status)
}

// UpdateStatus reports a free-text progress status.
func (p *PostEventProxy) UpdateStatus(status string) {
	if p.done {
		return
	}
	p.status = status
	p.emit(p.status)
}

// UpdateAttachment appends an attachment to the post.
func (p *PostEventProxy) UpdateAttachment(content string, typ memory.AttachmentType) {
	if p.done {
		return
	}
	p.post.AddAttachment(memory.NewAttachment(content, typ))
	if p.status == "" {
		p.status = StatusStreaming
	}
	p.emit(p.status)
}

// Error moves the proxy to the errored terminal state. The error text
// becomes the post's message and the emitter's error channel fires.
func (p *PostEventProxy) Error(message string) {
	if p.done {
		return
	}
	p.post.Message = message
	p.done = true
	p.emit(StatusError)
	p.emitter.EmitError(message)
}

// End finalizes and returns the post. An optional message overrides the
// streamed text.
func (p *PostEventProxy) End(message string) *memory.Post {
	if p.done {
		return p.post
	}
	if message != "" {
		p.post.Message = message
	}
	p.done = true
	p.emit(StatusEnded)
	return p.post
}

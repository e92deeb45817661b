package role

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/memory"
	"github.com/tandem-ai/tandem/internal/provider"
)

// EarlyStop decides whether stream consumption can stop once a field has
// been decoded: no later field is expected to change the routing
// decision, so the remaining tokens are not worth paying for. This
// cancels prompt consumption only, not the underlying network call.
type EarlyStop func(typ memory.AttachmentType, value string) bool

// responseKey wraps the structured fields in role responses.
const responseKey = "response"

type fieldKind int

const (
	kindSendTo fieldKind = iota
	kindMessage
	kindAttachment
)

// streamFields lists the recognized top-level response fields in the
// order the response schema asks the model to emit them. Routing fields
// come before the plan family so an early stop never drops them.
var streamFields = []struct {
	key  string
	typ  memory.AttachmentType
	kind fieldKind
}{
	{"send_to", "", kindSendTo},
	{"message", "", kindMessage},
	{"thought", memory.AttachmentThought, kindAttachment},
	{"reply_type", memory.AttachmentReplyType, kindAttachment},
	{"reply_content", memory.AttachmentReplyContent, kindAttachment},
	{"init_plan", memory.AttachmentInitPlan, kindAttachment},
	{"plan", memory.AttachmentPlan, kindAttachment},
	{"current_plan_step", memory.AttachmentCurrentPlanStep, kindAttachment},
}

// PostTranslator converts between posts and LLM text in both directions:
// rendering finalized posts for prompt replay, and decoding a streaming
// structured-JSON completion onto a post proxy.
type PostTranslator struct{}

// NewPostTranslator creates a translator.
func NewPostTranslator() *PostTranslator {
	return &PostTranslator{}
}

// PostToText renders a post as raw text for prompt replay: the message,
// then each attachment not in ignored, then the routing line.
func (t *PostTranslator) PostToText(
	post *memory.Post,
	formatter func(*memory.Attachment) string,
	includeMessage bool,
	includeSendTo bool,
	ignored []memory.AttachmentType,
) string {
	skip := make(map[memory.AttachmentType]bool, len(ignored))
	for _, typ := range ignored {
		skip[typ] = true
	}

	var out strings.Builder
	if includeMessage && post.Message != "" {
		out.WriteString(post.Message)
		out.WriteString("\n\n")
	}
	for _, a := range post.Attachments {
		if skip[a.Type] {
			continue
		}
		if formatter != nil {
			out.WriteString(formatter(a))
		} else {
			out.WriteString(a.Content)
		}
		out.WriteString("\n\n")
	}
	if includeSendTo {
		out.WriteString("send_to: " + post.SendTo)
	}
	return out.String()
}

// StreamToPost consumes a structured-JSON completion stream and maps
// recognized fields onto proxy updates as they become available. The
// accumulated text is expected to be invalid JSON until fully received,
// so extraction is only attempted when a likely-complete marker arrives,
// and each field is applied once its value has settled (a later field
// key has appeared, or the document parses whole). The message field is
// additionally re-emitted as its value grows so observers can render the
// reply incrementally.
//
// Transport errors from the stream propagate to the caller. A document
// that is still unparseable after the stream is exhausted is reported
// through proxy.Error instead.
func (t *PostTranslator) StreamToPost(
	ctx context.Context,
	stream *provider.CompletionStream,
	proxy *event.PostEventProxy,
	earlyStop EarlyStop,
) error {
	var buf strings.Builder
	applied := make(map[string]bool, len(streamFields))
	stopped := false
	lastMessage := ""

recv:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}
		if msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)

		// Cheap gate: without a quote or brace in the delta no field
		// can have settled since the last attempt.
		if !strings.ContainsAny(msg.Content, `"}`) {
			continue
		}

		doc := buf.String()
		docValid := json.Valid([]byte(strings.TrimSpace(doc)))

		for _, f := range streamFields {
			if applied[f.key] {
				continue
			}
			if !fieldSettled(doc, f.key, docValid) {
				// Stream the message's partial value while it grows.
				if f.kind == kindMessage {
					if partial, ok := partialStringValue(doc, f.key); ok && partial != lastMessage {
						lastMessage = partial
						proxy.UpdateMessage(partial)
					}
				}
				continue
			}

			value, ok := extractField(doc, f.key)
			if !ok {
				continue
			}
			applied[f.key] = true

			switch f.kind {
			case kindSendTo:
				proxy.UpdateSendTo(value)
			case kindMessage:
				lastMessage = value
				proxy.UpdateMessage(value)
			case kindAttachment:
				proxy.UpdateAttachment(value, f.typ)
				if earlyStop != nil && earlyStop(f.typ, value) {
					stopped = true
					break recv
				}
			}
		}
	}

	if stopped {
		return nil
	}

	doc := strings.TrimSpace(buf.String())
	if !json.Valid([]byte(doc)) {
		proxy.Error(fmt.Sprintf("failed to parse output: invalid JSON after %d bytes", len(doc)))
		return nil
	}

	// Final pass for fields that only settled when the document closed.
	for _, f := range streamFields {
		if applied[f.key] {
			continue
		}
		value, ok := extractField(doc, f.key)
		if !ok {
			continue
		}
		applied[f.key] = true
		switch f.kind {
		case kindSendTo:
			proxy.UpdateSendTo(value)
		case kindMessage:
			proxy.UpdateMessage(value)
		case kindAttachment:
			proxy.UpdateAttachment(value, f.typ)
		}
	}
	return nil
}

// fieldSettled reports whether the value for key can no longer change:
// either the whole document parses, or another recognized key starts
// after this one.
func fieldSettled(doc, key string, docValid bool) bool {
	pos := keyPos(doc, key)
	if pos < 0 {
		return false
	}
	if docValid {
		return true
	}
	for _, f := range streamFields {
		if f.key == key {
			continue
		}
		if other := keyPos(doc, f.key); other > pos {
			return true
		}
	}
	return false
}

// keyPos locates `"key"` followed by a colon, or -1. Matches inside
// string values can false-positive; settling is a heuristic and the
// post-stream pass corrects anything it misses.
func keyPos(doc, key string) int {
	quoted := `"` + key + `"`
	from := 0
	for {
		idx := strings.Index(doc[from:], quoted)
		if idx < 0 {
			return -1
		}
		idx += from
		rest := strings.TrimLeft(doc[idx+len(quoted):], " \t\r\n")
		if strings.HasPrefix(rest, ":") {
			return idx
		}
		from = idx + len(quoted)
	}
}

// extractField pulls a settled field value out of the accumulated
// document, looking under the response wrapper first.
func extractField(doc, key string) (string, bool) {
	res := gjson.Get(doc, responseKey+"."+key)
	if !res.Exists() {
		res = gjson.Get(doc, key)
	}
	if !res.Exists() {
		return "", false
	}
	if res.Type == gjson.String {
		return res.String(), true
	}
	return res.Raw, true
}

// partialStringValue returns the still-growing string value for key, for
// incremental display only. Escapes are resolved best-effort; the final
// settled extraction replaces this value.
func partialStringValue(doc, key string) (string, bool) {
	pos := keyPos(doc, key)
	if pos < 0 {
		return "", false
	}
	rest := doc[pos+len(key)+2:]
	rest = strings.TrimLeft(rest, " \t\r\n")
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if !strings.HasPrefix(rest, `"`) {
		return "", false
	}
	rest = rest[1:]

	var out strings.Builder
	escaped := false
	for _, r := range rest {
		if escaped {
			switch r {
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			default:
				out.WriteRune(r)
			}
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			return out.String(), true
		default:
			out.WriteRune(r)
		}
	}
	return out.String(), true
}

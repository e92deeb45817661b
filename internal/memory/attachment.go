// Package memory holds the conversation data model: attachments, posts,
// rounds, conversations, and the per-session Memory that wraps them. The
// round/post log is append-only; the only cross-round mutable state is the
// shared memory channel on Memory.
package memory

// AttachmentType tags the payload riding on a post. The set is closed;
// roles must not invent new tags at runtime.
type AttachmentType string

const (
	AttachmentThought         AttachmentType = "thought"
	AttachmentReplyType       AttachmentType = "reply_type"
	AttachmentReplyContent    AttachmentType = "reply_content"
	AttachmentVerification    AttachmentType = "verification"
	AttachmentCodeError       AttachmentType = "code_error"
	AttachmentExecutionStatus AttachmentType = "execution_status"
	AttachmentExecutionResult AttachmentType = "execution_result"
	AttachmentArtifactPaths   AttachmentType = "artifact_paths"
	AttachmentReviseMessage   AttachmentType = "revise_message"
	AttachmentInitPlan        AttachmentType = "init_plan"
	AttachmentPlan            AttachmentType = "plan"
	AttachmentCurrentPlanStep AttachmentType = "current_plan_step"
)

// Attachment is a typed payload attached to a post. It is never mutated
// after the owning post is finalized.
type Attachment struct {
	Content string         `json:"content" yaml:"content"`
	Type    AttachmentType `json:"type" yaml:"type"`
	Extra   any            `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewAttachment creates an attachment with no extra payload.
func NewAttachment(content string, typ AttachmentType) *Attachment {
	return &Attachment{Content: content, Type: typ}
}

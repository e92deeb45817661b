package memory

import "github.com/oklog/ulid/v2"

// Role identifiers used in send_from/send_to fields.
const (
	RoleUser            = "User"
	RolePlanner         = "Planner"
	RoleCodeInterpreter = "CodeInterpreter"

	// SendToUnknown marks a post whose routing has not been decided yet.
	// A post under construction starts here and must be routed before it
	// is appended to a round.
	SendToUnknown = "Unknown"
)

// Post is a single directed message between two roles, carrying free text
// plus an ordered list of attachments. A post is owned by exactly one round
// and is frozen once appended.
type Post struct {
	ID          string        `json:"id" yaml:"id"`
	Message     string        `json:"message" yaml:"message"`
	SendFrom    string        `json:"send_from" yaml:"send_from"`
	SendTo      string        `json:"send_to" yaml:"send_to"`
	Attachments []*Attachment `json:"attachment_list" yaml:"attachment_list"`
}

// NewPost creates a post with a fresh ULID.
func NewPost(message, sendFrom, sendTo string) *Post {
	return &Post{
		ID:       ulid.Make().String(),
		Message:  message,
		SendFrom: sendFrom,
		SendTo:   sendTo,
	}
}

// AddAttachment appends an attachment, preserving arrival order.
func (p *Post) AddAttachment(a *Attachment) {
	p.Attachments = append(p.Attachments, a)
}

// AttachmentsOfType returns all attachments with the given type, in order.
func (p *Post) AttachmentsOfType(typ AttachmentType) []*Attachment {
	var out []*Attachment
	for _, a := range p.Attachments {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

// FirstAttachment returns the first attachment of the given type, if any.
func (p *Post) FirstAttachment(typ AttachmentType) (*Attachment, bool) {
	for _, a := range p.Attachments {
		if a.Type == typ {
			return a, true
		}
	}
	return nil, false
}

// Package interpreter implements the CodeInterpreter role: it turns a
// plan step into a shell program, runs it in the session workspace, and
// reports the outcome back to the planner.
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/memory"
	"github.com/tandem-ai/tandem/internal/provider"
	"github.com/tandem-ai/tandem/internal/role"
)

// ReplyTypeShell marks reply_content as an executable program;
// ReplyTypeText marks it as a plain reply needing no execution.
const (
	ReplyTypeShell = "shell"
	ReplyTypeText  = "text"
)

// Streamer produces a completion stream for a prompt. *provider.Client
// satisfies it.
type Streamer interface {
	Stream(ctx context.Context, messages []*schema.Message) (*provider.CompletionStream, error)
}

// CodeInterpreter generates and executes code for one plan step at a
// time. Every reply is addressed to the planner, which decides what to
// do with the result.
type CodeInterpreter struct {
	llm        Streamer
	translator *role.PostTranslator
	executor   *ShellExecutor
	logger     zerolog.Logger

	mu          sync.Mutex
	sessionVars map[string]string
}

// New creates a code interpreter whose programs run under cwd.
func New(llm Streamer, cwd string, logger zerolog.Logger) (*CodeInterpreter, error) {
	logger = logger.With().Str("role", memory.RoleCodeInterpreter).Logger()
	executor, err := NewShellExecutor(cwd, logger)
	if err != nil {
		return nil, err
	}
	return &CodeInterpreter{
		llm:         llm,
		translator:  role.NewPostTranslator(),
		executor:    executor,
		logger:      logger,
		sessionVars: make(map[string]string),
	}, nil
}

func (c *CodeInterpreter) Alias() string {
	return memory.RoleCodeInterpreter
}

func (c *CodeInterpreter) Close() error {
	return nil
}

// UpdateSessionVariables merges vars into the variables exported to
// every generated program's environment.
func (c *CodeInterpreter) UpdateSessionVariables(vars map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range vars {
		c.sessionVars[k] = v
	}
}

// Reply generates a response for the latest plan step, executes it when
// the model marked it as a program, and reports the result to the
// planner with the execution attachments filled in.
func (c *CodeInterpreter) Reply(ctx context.Context, mem *memory.Memory, proxy *event.PostEventProxy) (*memory.Post, error) {
	rounds := mem.RoleRounds(c.Alias(), false)
	if len(rounds) == 0 {
		return nil, fmt.Errorf("no rounds for code interpreter to reply to")
	}

	stream, err := c.llm.Stream(ctx, c.composePrompt(rounds))
	if err != nil {
		return nil, fmt.Errorf("interpreter completion: %w", err)
	}
	defer stream.Close()

	if err := c.translator.StreamToPost(ctx, stream, proxy, interpreterEarlyStop); err != nil {
		return nil, err
	}

	proxy.UpdateSendTo(memory.RolePlanner)

	post := proxy.Post()
	replyType, _ := post.FirstAttachment(memory.AttachmentReplyType)
	replyContent, hasContent := post.FirstAttachment(memory.AttachmentReplyContent)

	if replyType == nil || replyType.Content != ReplyTypeShell || !hasContent {
		// Plain text turn; the reply content is the message itself.
		if hasContent && post.Message == "" {
			proxy.UpdateMessage(replyContent.Content)
		}
		return proxy.End(""), nil
	}

	code := replyContent.Content
	if err := c.executor.Parse(code); err != nil {
		proxy.UpdateAttachment(err.Error(), memory.AttachmentCodeError)
		proxy.UpdateMessage(fmt.Sprintf("The generated program does not parse: %v", err))
		return proxy.End(""), nil
	}
	proxy.UpdateAttachment("CORRECT", memory.AttachmentVerification)

	result, err := c.executor.Run(ctx, code, c.envSnapshot())
	if err != nil {
		return nil, err
	}

	if result.Success {
		proxy.UpdateAttachment("SUCCESS", memory.AttachmentExecutionStatus)
	} else {
		proxy.UpdateAttachment("FAILURE", memory.AttachmentExecutionStatus)
	}
	proxy.UpdateAttachment(result.Output, memory.AttachmentExecutionResult)
	if len(result.ArtifactPaths) > 0 {
		paths, _ := json.Marshal(result.ArtifactPaths)
		proxy.UpdateAttachment(string(paths), memory.AttachmentArtifactPaths)
	}
	proxy.UpdateMessage(formatExecutionMessage(code, result))

	return proxy.End(""), nil
}

// interpreterEarlyStop cuts the stream once reply_content has settled;
// it is the last field in the interpreter's response schema.
func interpreterEarlyStop(typ memory.AttachmentType, _ string) bool {
	return typ == memory.AttachmentReplyContent
}

// composePrompt renders the step history as chat turns: posts addressed
// to the interpreter replay as user turns, its own posts as assistant
// turns carrying the generated code and results.
func (c *CodeInterpreter) composePrompt(rounds []*memory.Round) []*schema.Message {
	system := strings.ReplaceAll(instructionTemplate, "{ROLE_NAME}", memory.RoleCodeInterpreter)
	system = strings.ReplaceAll(system, "{CWD}", c.executor.cwd)
	system = strings.ReplaceAll(system, "{SESSION_VARIABLES}", c.formatSessionVars())
	system = strings.ReplaceAll(system, "{RESPONSE_SCHEMA}", responseSchema)

	messages := []*schema.Message{{Role: schema.System, Content: system}}
	for _, round := range rounds {
		for _, post := range round.Posts {
			switch {
			case post.SendFrom == c.Alias():
				messages = append(messages, &schema.Message{Role: schema.Assistant, Content: c.assistantText(post)})
			case post.SendTo == c.Alias():
				messages = append(messages, &schema.Message{Role: schema.User, Content: post.Message})
			}
		}
	}
	return messages
}

func (c *CodeInterpreter) assistantText(post *memory.Post) string {
	return c.translator.PostToText(post, func(a *memory.Attachment) string {
		return fmt.Sprintf("%s: %s", a.Type, a.Content)
	}, true, false, nil)
}

func (c *CodeInterpreter) formatSessionVars() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessionVars) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(c.sessionVars))
	for k := range c.sessionVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out strings.Builder
	for _, k := range keys {
		out.WriteString(fmt.Sprintf("- %s=%s\n", k, c.sessionVars[k]))
	}
	return strings.TrimRight(out.String(), "\n")
}

func (c *CodeInterpreter) envSnapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	env := make(map[string]string, len(c.sessionVars))
	for k, v := range c.sessionVars {
		env[k] = v
	}
	return env
}

func formatExecutionMessage(code string, result *ExecutionResult) string {
	var out strings.Builder
	out.WriteString("The following program has been executed:\n```\n")
	out.WriteString(strings.TrimRight(code, "\n"))
	out.WriteString("\n```\n")
	if result.Success {
		out.WriteString("Execution succeeded.")
	} else {
		out.WriteString(fmt.Sprintf("Execution failed (exit code %d): %s.", result.ExitCode, result.Error))
	}
	if result.Output != "" {
		out.WriteString("\nOutput:\n" + result.Output)
	}
	if len(result.ArtifactPaths) > 0 {
		out.WriteString("\nArtifacts: " + strings.Join(result.ArtifactPaths, ", "))
	}
	return out.String()
}

// Package planner implements the routing role: it maintains the task
// plan, talks to the user, and delegates plan steps to the code
// interpreter.
package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/memory"
	"github.com/tandem-ai/tandem/internal/provider"
	"github.com/tandem-ai/tandem/internal/role"
)

// Config controls optional prompt enrichment.
type Config struct {
	// PromptCompression summarizes all but the latest round before
	// composing the prompt.
	PromptCompression bool
	// UseExperience mixes in lessons retrieved from ExperienceDir.
	UseExperience bool
	ExperienceDir string
	// UseExample replays example conversations from ExampleDir ahead of
	// the real history.
	UseExample bool
	ExampleDir string
	// ExperienceTopK bounds how many retrieved experiences are included.
	ExperienceTopK int
}

// Streamer produces a completion stream for a prompt. *provider.Client
// satisfies it.
type Streamer interface {
	Stream(ctx context.Context, messages []*schema.Message) (*provider.CompletionStream, error)
}

// Planner is the role every round starts with. Each reply either
// answers the user or hands one plan step to the code interpreter,
// decided by which fields the model's structured response carries.
type Planner struct {
	config      Config
	llm         Streamer
	compressor  *memory.RoundCompressor
	translator  *role.PostTranslator
	experiences *memory.ExperienceLibrary
	examples    []*memory.Conversation
	logger      zerolog.Logger
}

// New creates a planner. Example conversations are loaded eagerly so a
// malformed example surfaces at startup rather than mid-conversation.
func New(cfg Config, llm Streamer, compressor *memory.RoundCompressor, logger zerolog.Logger) (*Planner, error) {
	p := &Planner{
		config:     cfg,
		llm:        llm,
		compressor: compressor,
		translator: role.NewPostTranslator(),
		logger:     logger.With().Str("role", memory.RolePlanner).Logger(),
	}
	if cfg.UseExperience {
		if cfg.ExperienceTopK <= 0 {
			p.config.ExperienceTopK = 3
		}
		p.experiences = memory.NewExperienceLibrary(cfg.ExperienceDir, p.logger)
	}
	if cfg.UseExample {
		examples, err := loadExamples(cfg.ExampleDir)
		if err != nil {
			return nil, fmt.Errorf("loading planner examples: %w", err)
		}
		p.examples = examples
	}
	return p, nil
}

func (p *Planner) Alias() string {
	return memory.RolePlanner
}

func (p *Planner) Close() error {
	return nil
}

// Reply composes the prompt from the planner's view of the conversation,
// streams the structured response onto the proxy, then routes the post:
// a current_plan_step hands off to the code interpreter, a plan without
// one is an announcement back to the user, and a plain reply defaults to
// the user. A refined plan is persisted to shared memory so later rounds
// see it even after compression.
func (p *Planner) Reply(ctx context.Context, mem *memory.Memory, proxy *event.PostEventProxy) (*memory.Post, error) {
	rounds := mem.RoleRounds(p.Alias(), false)
	if len(rounds) == 0 {
		return nil, fmt.Errorf("no rounds for planner to reply to")
	}

	prompt, err := p.composePrompt(ctx, mem, rounds)
	if err != nil {
		return nil, err
	}

	stream, err := p.llm.Stream(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("planner completion: %w", err)
	}
	defer stream.Close()

	if err := p.translator.StreamToPost(ctx, stream, proxy, plannerEarlyStop); err != nil {
		return nil, err
	}

	post := proxy.Post()
	if plans := post.AttachmentsOfType(memory.AttachmentPlan); len(plans) > 0 {
		// The latest revision is the plan.
		mem.AddSharedMemoryEntry(memory.SharedMemoryPlan, plans[len(plans)-1].Content)
	}

	_, hasStep := post.FirstAttachment(memory.AttachmentCurrentPlanStep)
	switch {
	case hasStep:
		proxy.UpdateSendTo(memory.RoleCodeInterpreter)
	default:
		proxy.UpdateSendTo(memory.RoleUser)
	}

	return proxy.End(""), nil
}

// plannerEarlyStop cuts the stream once the last schema field has
// arrived. Earlier plan fields cannot trigger a stop because the step
// that decides routing may still follow them.
func plannerEarlyStop(typ memory.AttachmentType, _ string) bool {
	return typ == memory.AttachmentCurrentPlanStep
}

// composePrompt builds the chat messages: system instruction (with
// retrieved experiences), replayed example conversations, then the real
// history, optionally with older rounds compressed into a summary line.
func (p *Planner) composePrompt(ctx context.Context, mem *memory.Memory, rounds []*memory.Round) ([]*schema.Message, error) {
	system := strings.ReplaceAll(instructionTemplate, "{ROLE_NAME}", memory.RolePlanner)
	system = strings.ReplaceAll(system, "{ENVIRONMENT_CONTEXT}", p.environmentContext(mem))
	system = strings.ReplaceAll(system, "{RESPONSE_SCHEMA}", responseSchema)

	if p.experiences != nil {
		if block := p.experienceBlock(experienceQuery(mem)); block != "" {
			system += "\n\n" + block
		}
	}

	messages := []*schema.Message{{Role: schema.System, Content: system}}

	for _, example := range p.examples {
		messages = append(messages, p.conversationMessages(example.Rounds, "")...)
	}

	summary := ""
	if p.config.PromptCompression && p.compressor != nil {
		var err error
		summary, rounds, err = p.compressor.CompressRounds(ctx, rounds, p.formatRounds, compressionTemplate)
		if err != nil {
			// Degraded but correct: fall back to the full history.
			p.logger.Warn().Err(err).Msg("continuing without prompt compression")
		}
	}

	messages = append(messages, p.conversationMessages(rounds, summary)...)
	return messages, nil
}

// conversationMessages renders rounds as alternating chat turns. The
// planner's own posts replay as assistant turns; posts addressed to the
// planner replay as user turns. Plan attachments are dropped from the
// replay since shared memory carries the current plan.
func (p *Planner) conversationMessages(rounds []*memory.Round, summary string) []*schema.Message {
	var messages []*schema.Message
	for i, round := range rounds {
		for j, post := range round.Posts {
			if i == 0 && j == 0 && summary != "" {
				head := strings.ReplaceAll(conversationHeadTemplate, "{SUMMARY}", summary)
				head = strings.ReplaceAll(head, "{ROLE_NAME}", memory.RolePlanner)
				messages = append(messages, &schema.Message{Role: schema.User, Content: head + p.userText(post)})
				continue
			}
			if post.SendFrom == p.Alias() {
				messages = append(messages, &schema.Message{Role: schema.Assistant, Content: p.assistantText(post)})
			} else {
				messages = append(messages, &schema.Message{Role: schema.User, Content: p.userText(post)})
			}
		}
	}
	return messages
}

func (p *Planner) userText(post *memory.Post) string {
	text := strings.ReplaceAll(userMessageHeadTemplate, "{SENDER}", post.SendFrom)
	return strings.ReplaceAll(text, "{MESSAGE}", post.Message)
}

func (p *Planner) assistantText(post *memory.Post) string {
	return p.translator.PostToText(post, p.formatAttachment, true, true, []memory.AttachmentType{
		memory.AttachmentInitPlan,
		memory.AttachmentPlan,
		memory.AttachmentCurrentPlanStep,
	})
}

func (p *Planner) formatAttachment(a *memory.Attachment) string {
	return fmt.Sprintf("%s: %s", a.Type, a.Content)
}

// formatRounds renders rounds as plain text for the compression prompt.
func (p *Planner) formatRounds(rounds []*memory.Round) string {
	var out strings.Builder
	for _, round := range rounds {
		out.WriteString("User query: " + round.UserQuery + "\n")
		for _, post := range round.Posts {
			out.WriteString(fmt.Sprintf("%s -> %s: %s\n", post.SendFrom, post.SendTo, post.Message))
		}
		out.WriteString("\n")
	}
	return out.String()
}

// environmentContext surfaces the persisted plan, if any, so the model
// keeps refining the same plan across rounds.
func (p *Planner) environmentContext(mem *memory.Memory) string {
	entries := mem.SharedMemoryEntries(memory.SharedMemoryPlan)
	if len(entries) == 0 {
		return "No plan has been made yet."
	}
	return "The current plan is:\n" + entries[len(entries)-1].Content
}

// experienceQueryRounds bounds how much recent history feeds the
// experience retrieval query. The task being worked on usually spans a
// few rounds, not just the latest message.
const experienceQueryRounds = 3

// experienceQuery joins the user queries of the most recent rounds.
func experienceQuery(mem *memory.Memory) string {
	var parts []string
	for _, r := range mem.LastKRounds(experienceQueryRounds) {
		parts = append(parts, r.UserQuery)
	}
	return strings.Join(parts, " ")
}

func (p *Planner) experienceBlock(query string) string {
	roleSet := map[string]bool{
		memory.RoleUser:            true,
		memory.RolePlanner:         true,
		memory.RoleCodeInterpreter: true,
	}
	experiences := p.experiences.Load(query, roleSet, p.config.ExperienceTopK)
	if len(experiences) == 0 {
		return ""
	}

	var out strings.Builder
	for _, exp := range experiences {
		for _, round := range exp.Rounds {
			out.WriteString("Task: " + round.UserQuery + "\n")
			for _, post := range round.Posts {
				if post.SendFrom == memory.RolePlanner && post.SendTo == memory.RoleUser {
					out.WriteString("Outcome: " + post.Message + "\n")
				}
			}
		}
		out.WriteString("\n")
	}
	return strings.ReplaceAll(experienceTemplate, "{EXPERIENCES}", strings.TrimRight(out.String(), "\n"))
}

// loadExamples reads every example conversation under dir. A missing
// directory is not an error; examples are optional.
func loadExamples(dir string) ([]*memory.Conversation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var examples []*memory.Conversation
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		conv, err := memory.ConversationFromYAMLFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("example %s: %w", name, err)
		}
		examples = append(examples, conv)
	}
	return examples, nil
}

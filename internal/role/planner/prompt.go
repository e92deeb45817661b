package planner

// Prompt templates for the planner. Placeholders are substituted with
// strings.ReplaceAll; the response schema is inlined into the system
// instruction so the model emits the structured fields the translator
// recognizes, in an order where routing fields precede the plan family.

const instructionTemplate = `You are the {ROLE_NAME} of Tandem, a framework that completes user tasks by planning and delegating code execution.

Environment context:
{ENVIRONMENT_CONTEXT}

Your job each turn:
- Understand the user's request in the context of the conversation.
- Maintain a numbered plan for the task. Draft it as "init_plan", refine it as "plan".
- When a plan step needs code execution, describe exactly one step as "current_plan_step" and address the CodeInterpreter.
- When the task needs no execution, or the plan is merely being announced, reply to the User directly.

Respond with a single JSON object and nothing else, following this schema:
{RESPONSE_SCHEMA}

Emit the fields in the order listed in the schema.`

const responseSchema = `{
  "type": "object",
  "properties": {
    "response": {
      "type": "object",
      "properties": {
        "send_to": {"type": "string", "description": "recipient of this message: User or CodeInterpreter"},
        "message": {"type": "string", "description": "the message text for the recipient"},
        "thought": {"type": "string", "description": "your reasoning for this turn"},
        "init_plan": {"type": "string", "description": "initial numbered plan draft"},
        "plan": {"type": "string", "description": "refined numbered plan"},
        "current_plan_step": {"type": "string", "description": "the single plan step to execute now"}
      },
      "required": ["send_to", "message"]
    }
  },
  "required": ["response"]
}`

const experienceTemplate = `Lessons from past successful tasks:
{EXPERIENCES}`

const conversationHeadTemplate = `Let's start the conversation. Summary of earlier rounds: {SUMMARY}
You are the {ROLE_NAME}; respond per your instructions.
`

const userMessageHeadTemplate = `From: {SENDER}
Message: {MESSAGE}`

const compressionTemplate = `Summarize the following conversation rounds between a user, a planner, and a code interpreter. Preserve the task goal, what has been done, what failed, and what remains. Be concise.

{ROUNDS}

Summary:`

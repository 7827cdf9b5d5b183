package assist

import (
	"fmt"
	"strings"
	"time"

	"github.com/carahq/cara/internal/task"
)

// caraContext is the persona preamble for chat conversations.
const caraContext = `You are Cara, an AI assistant specializing in automotive repair and insurance claims.
You are helpful, knowledgeable, and focused on providing practical advice for auto repair situations.
When a user describes a task or repair need, you should offer to create a task for them.
Keep responses concise and relevant to automotive topics.`

// taskSection renders the shared task block embedded in most prompts.
// Optional fields are only included when present.
func taskSection(t task.Task) string {
	var parts []string
	parts = append(parts, "Task Title: "+t.Title)
	parts = append(parts, "Description: "+t.Description)
	if t.Dealership != "" {
		parts = append(parts, "Dealership: "+t.Dealership)
	}
	if t.InsuranceClaim != "" {
		parts = append(parts, "Insurance Claim: "+t.InsuranceClaim)
	}
	return strings.Join(parts, "\n")
}

func priorityPrompt(t task.Task) string {
	return fmt.Sprintf(`Analyze this automotive repair task and rate its priority from 1-10 based on:
- Safety implications
- Vehicle drivability
- Customer impact
- Insurance claim requirements
- Time sensitivity

%s

Respond with ONLY a number between 1-10.`, taskSection(t))
}

func extractPrompt(message string) string {
	return fmt.Sprintf(`Extract task information from this message. If no task is described, return null.
Message: %q

Respond with ONLY a valid JSON object containing these fields if a task is detected, or null if no task:
{
  "title": "Brief task title",
  "description": "Detailed description",
  "dealership": "Dealership name if mentioned",
  "insuranceClaim": "Claim number if mentioned",
  "aiPriority": number from 1-10 based on urgency
}`, message)
}

func nextActionPrompt(t task.Task) string {
	return fmt.Sprintf(`Given this task in an auto repair context:
%s

Suggest ONE specific, actionable next step that would help complete this task. Keep it concise (max 100 characters) and practical.`, taskSection(t))
}

func summaryPrompt(description string) string {
	return "As an automotive repair expert, provide a 2-3 sentence summary of this task, focusing on key repair requirements and technical details: " + description
}

func stepsPrompt(description string) string {
	return fmt.Sprintf(`As an automotive repair expert, suggest 3 specific, actionable steps to complete this repair task. Focus on technical procedures and safety requirements: %s

Format each step as a clear, concise instruction.`, description)
}

func strategyPrompt(t task.Task, similar []task.Task) string {
	var ctx []string
	for _, s := range similar {
		if s.Status == task.StatusCompleted {
			ctx = append(ctx, s.Title+": "+s.Description)
		}
	}

	deadline := "No deadline"
	if t.Deadline != nil {
		deadline = t.Deadline.Format(time.DateOnly)
	}

	return fmt.Sprintf(`Based on these similar completed tasks:
%s

Generate a completion strategy for this task:
Title: %s
Description: %s
Deadline: %s

Provide a specific strategy considering time constraints and past successful approaches.`,
		strings.Join(ctx, "\n"), t.Title, t.Description, deadline)
}

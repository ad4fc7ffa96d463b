// Package prompt renders the instruction and context strings sent to the
// provider. Every builder is a pure function over validated request fields:
// the same input always produces the same prompt, and nothing is cached.
package prompt

import (
	"fmt"
	"strings"

	"github.com/arbiterhq/arbiter/pkg/domain"
)

// historyLimit caps how many trailing conversation turns are included in the
// conversational context.
const historyLimit = 6

const jsonAssistantSystem = "You are a helpful decision-making assistant. Always respond with valid JSON."

const suggestOptionsTemplate = `You are a decision-making assistant. A user needs to make the following decision:

"%s"

Please suggest 4-6 realistic and diverse options they could consider.
Provide your response as a JSON array of strings, where each string is a potential option.

Example format:
["Option 1", "Option 2", "Option 3", "Option 4"]

Make sure the options are:
1. Realistic and actionable
2. Diverse in approach
3. Relevant to the decision context
4. Clearly stated`

// SuggestOptions builds the prompt asking for 4-6 candidate options.
func SuggestOptions(decision string) (system, user string) {
	return jsonAssistantSystem, fmt.Sprintf(suggestOptionsTemplate, decision)
}

const suggestCriteriaTemplate = `You are a decision-making assistant. A user needs to make this decision:

"%s"

They are considering these options:
%s

Please suggest 4-6 important criteria they should consider when evaluating these options, along with suggested weights (importance percentages that sum to 100%%).

Provide your response as a JSON array of objects, where each object has "name" and "weight" properties.

Example format:
[
    {"name": "Cost", "weight": 25},
    {"name": "Time Required", "weight": 20},
    {"name": "Long-term Benefits", "weight": 30},
    {"name": "Risk Level", "weight": 25}
]

Make sure:
1. Criteria are relevant to the decision and options
2. Weights are realistic and sum to 100
3. Include both quantitative and qualitative factors
4. Consider short-term and long-term impacts`

// SuggestCriteria builds the prompt asking for weighted evaluation criteria.
func SuggestCriteria(decision string, options []string) (system, user string) {
	return jsonAssistantSystem, fmt.Sprintf(suggestCriteriaTemplate, decision, bulletList(options))
}

const conversationalSystem = `You are a helpful decision-making assistant specializing in generating and refining options.

Your role is to:
1. Help users brainstorm creative and realistic options for their decisions
2. Suggest refinements or variations of existing options
3. Ask clarifying questions to better understand their needs
4. Provide context and insights about different approaches
5. Help them think outside the box while staying practical

Guidelines:
- Be conversational and engaging
- Ask follow-up questions when helpful
- Suggest specific, actionable options
- Consider both conventional and unconventional approaches
- Help users explore different angles and perspectives
- Keep responses concise but informative
- When suggesting options, explain briefly why they might be worth considering

You should respond naturally to the user's questions and requests about their decision options.`

// ConversationalOptions builds the context-aware options prompt. At most the
// last six history turns are included, oldest first.
func ConversationalOptions(decision string, history []domain.Turn, currentOptions []string, userMessage string) (system, user string) {
	var context strings.Builder
	start := 0
	if len(history) > historyLimit {
		start = len(history) - historyLimit
	}
	for _, turn := range history[start:] {
		switch turn.Role {
		case domain.TurnRoleUser:
			context.WriteString("User: " + turn.Content + "\n")
		case domain.TurnRoleAssistant:
			context.WriteString("Assistant: " + turn.Content + "\n")
		}
	}

	optionsText := "None yet"
	if len(currentOptions) > 0 {
		optionsText = bulletList(currentOptions)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Decision Context: %q\n\n", decision)
	b.WriteString("Current options the user has:\n")
	b.WriteString(optionsText)
	b.WriteString("\n\nRecent conversation:\n")
	b.WriteString(context.String())
	fmt.Fprintf(&b, "\nUser's current message: %q\n\n", userMessage)
	b.WriteString("Please respond conversationally to help them with their options. " +
		"If they're asking for new suggestions, provide 2-4 specific options with brief explanations. " +
		"If they're asking questions or want refinements, address those directly.")

	return conversationalSystem, b.String()
}

const planSystem = "You are a helpful decision-making and planning assistant. Provide detailed, actionable plans."

const generatePlanTemplate = `You are a decision-making assistant. A user has made the following decision:

Decision: "%s"
Selected Option: "%s"

This choice was evaluated based on these criteria:
%s

Please create a detailed implementation plan for executing this decision. Include:

1. **Immediate Next Steps** (What to do in the next 1-7 days)
2. **Short-term Actions** (What to do in the next 1-4 weeks)
3. **Medium-term Milestones** (What to achieve in 1-3 months)
4. **Long-term Goals** (What to accomplish in 3-12 months)
5. **Potential Challenges** and how to address them
6. **Success Metrics** to track progress
7. **Resources Needed** (time, money, people, tools, etc.)

Make the plan:
- Specific and actionable
- Realistic and achievable
- Well-structured with clear timelines
- Comprehensive but not overwhelming

Use markdown formatting for better readability.`

// GeneratePlan builds the prompt asking for a structured implementation plan.
func GeneratePlan(decision, selectedOption string, criteria []domain.Criterion) (system, user string) {
	lines := make([]string, 0, len(criteria))
	for _, c := range criteria {
		lines = append(lines, fmt.Sprintf("- %s: %g%%", c.Name, c.Weight))
	}
	return planSystem, fmt.Sprintf(generatePlanTemplate, decision, selectedOption, strings.Join(lines, "\n"))
}

func bulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

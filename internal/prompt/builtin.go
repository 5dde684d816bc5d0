package prompt

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	"classify-intent.md": classifyIntentTemplate,
	"plan.md":            planTemplate,
	"generate-code.md":   generateCodeTemplate,
	"design-tests.md":    designTestsTemplate,
	"debug.md":           debugTemplate,
}

// Names returns the built-in template filenames, in no particular order.
func Names() []string {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	return names
}

const classifyIntentTemplate = `Classify the programming problem below.

## Problem
{{problem}}
{{#if memory}}
## Known User Context
{{memory}}
{{/if}}
## Categories
- dsa: algorithmic or data-structure exercise
- bug_fix: a defect in existing code must be found and repaired
- optimization: working code must be made faster or leaner
- system_design: architecture or component-interaction design

## Output
Respond with a single JSON object, no prose, no code fences:
{"category":"dsa|bug_fix|optimization|system_design","language":"<implementation language>","confidence":0.0}

If the problem names no language, use the user's preferred language, else "go".
`

const planTemplate = `Produce an implementation plan for the problem below.

## Problem
{{problem}}

## Classification
Category: {{category}} (confidence {{confidence}})
Target language: {{language}}
{{#if memory}}
## Known User Context
{{memory}}
{{/if}}
## Output
Respond with a single JSON object, no prose, no code fences:
{"approach":"<one-paragraph strategy>","steps":["<ordered step>"],"edge_cases":["<input shape to guard>"]}

Keep steps concrete and ordered, three to seven entries.
`

const generateCodeTemplate = `Write a candidate solution for the problem below.

## Problem
{{problem}}

## Approach
{{approach}}

## Steps
{{steps}}
{{#if feedback}}
## Previous Attempt Failed
A prior candidate failed its test run. Address this analysis first:
{{feedback}}
{{/if}}
## Rules
- Write {{language}} source split into one or more files, each starting with a package clause.
- Expose exactly one entrypoint function taking one argument; it may return (result) or (result, error).
- Import only from: errors, fmt, math, sort, strconv, strings, unicode, encoding/json.
- No file, network, environment, or goroutine use.

## Output
Respond with a single JSON object, no prose, no code fences:
{"files":{"solution.go":"<source>"},"entrypoint":"<package>.<Function>","language":"{{language}}"}
`

const designTestsTemplate = `Design adversarial test cases for the problem below.

## Problem
{{problem}}

## Planned Approach
{{approach}}

The candidate exposes a single function {{entrypoint}} taking one JSON-encodable argument.

## Output
Respond with a single JSON object, no prose, no code fences:
{"cases":[{"id":"<snake_case>","description":"<what it probes>","input":<json value>,"expected":"<correct behavior in prose>","kind":"unit|edge|stress|property"}]}

Cover normal operation (unit), boundary shapes (edge), at least one large
input (stress), and an invariant that must hold across inputs (property).
Four to eight cases, unique ids.
`

const debugTemplate = `Analyze the failing test run below.

## Problem
{{problem}}

## Candidate Source
{{code}}

## Failing Cases
{{failures}}

## Output
Respond with a single JSON object, no prose, no code fences:
{"summary":"<one-paragraph diagnosis>","root_causes":["<specific defect in the source>"],"suggested_fixes":["<concrete change>"]}

Attribute each failure class (wrong output, raised error, timeout, resource
exhaustion) to a cause in the candidate source.
`

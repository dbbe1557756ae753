package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Assignee is the minimal view of an agent a task extractor needs.
type Assignee struct {
	Role string
	Name string
}

// TaskExtractor maps the coordinator's analysis text to one task per role.
// Every requested role receives a task; roles the analysis does not mention
// get a generic one.
type TaskExtractor interface {
	Extract(analysis, topic string, assignees []Assignee) map[string]string
}

// FallbackTask is the task given to an agent the analysis does not address.
func FallbackTask(topic, name string) string {
	return fmt.Sprintf("Analyze the topic %q from the perspective of %s", topic, name)
}

// SectionExtractor reads "<ROLE>_TASK:" lines.
type SectionExtractor struct{}

func (SectionExtractor) Extract(analysis, topic string, assignees []Assignee) map[string]string {
	out := make(map[string]string, len(assignees))
	for _, a := range assignees {
		if task := sectionTask(analysis, a.Role); task != "" {
			out[a.Role] = task
			continue
		}
		out[a.Role] = FallbackTask(topic, a.Name)
	}
	return out
}

// SectionHeader is the label the coordinator is asked to use for role's task.
func SectionHeader(role string) string {
	return strings.ToUpper(role) + "_TASK"
}

func sectionTask(analysis, role string) string {
	re, err := regexp.Compile(`(?is)` + regexp.QuoteMeta(SectionHeader(role)) + `[:\s]*(.*?)(?:\n[\w-]+_TASK|\[|\z)`)
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(analysis)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

//go:embed task_schema.json
var taskSchemaJSON string

var (
	taskSchemaOnce sync.Once
	taskSchema     *jsonschema.Schema
	taskSchemaErr  error
)

// TaskSchema returns the compiled schema for structured task assignments.
func TaskSchema() (*jsonschema.Schema, error) {
	taskSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("task_schema.json", strings.NewReader(taskSchemaJSON)); err != nil {
			taskSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("task_schema.json")
		if err != nil {
			taskSchemaErr = fmt.Errorf("compile task schema: %w", err)
			return
		}
		taskSchema = schema
	})
	return taskSchema, taskSchemaErr
}

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// StructuredExtractor reads a JSON object {"tasks": {"<role>": "<task>"}}
// from the analysis, optionally inside a fenced block. Anything it cannot
// use falls back to SectionExtractor.
type StructuredExtractor struct{}

func (StructuredExtractor) Extract(analysis, topic string, assignees []Assignee) map[string]string {
	tasks, err := ParseTaskDocument(analysis)
	if err != nil {
		return SectionExtractor{}.Extract(analysis, topic, assignees)
	}
	fallback := SectionExtractor{}.Extract(analysis, topic, assignees)
	out := make(map[string]string, len(assignees))
	for _, a := range assignees {
		if t := strings.TrimSpace(tasks[a.Role]); t != "" {
			out[a.Role] = t
			continue
		}
		out[a.Role] = fallback[a.Role]
	}
	return out
}

// ParseTaskDocument finds and validates the structured task object in text.
func ParseTaskDocument(text string) (map[string]string, error) {
	raw := ""
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		raw = text[start : end+1]
	} else {
		return nil, fmt.Errorf("no task document found")
	}

	schema, err := TaskSchema()
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("task document is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("task document does not match schema: %w", err)
	}
	var typed struct {
		Tasks map[string]string `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(raw), &typed); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(typed.Tasks))
	for role, task := range typed.Tasks {
		out[strings.ToLower(role)] = task
	}
	return out, nil
}

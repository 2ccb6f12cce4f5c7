// ABOUTME: Task handlers executed by agent actors: search, analyze, summarize, remember.
// ABOUTME: Runs inside the actor goroutine; handlers read and mutate the agent's memory.

package actor

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Built-in task actions.
const (
	ActionSearch    = "search"
	ActionAnalyze   = "analyze"
	ActionSummarize = "summarize"
	ActionRemember  = "remember"
	ActionCrash     = "crash"
)

// processNext pops and executes the oldest queued task. The second return
// value is non-empty when the task demands the actor terminate abnormally
// (the crash chaos hook); the run loop converts it into an exit.
func (p *proc) processNext() (TaskResult, string) {
	if len(p.inbox) == 0 {
		return TaskResult{Status: StatusEmpty, CompletedAt: time.Now().UTC()}, ""
	}

	task := p.inbox[0]
	p.inbox = p.inbox[1:]
	p.processed++

	result := TaskResult{
		TaskID:      task.ID,
		Action:      task.Action,
		Status:      StatusCompleted,
		CompletedAt: time.Now().UTC(),
	}

	switch task.Action {
	case ActionSearch:
		result.Output = p.search(task.Params["query"])

	case ActionAnalyze:
		result.Output = p.analyze(task.Params["text"])

	case ActionSummarize:
		result.Output = p.summarize()

	case ActionRemember:
		key := task.Params["key"]
		if key == "" {
			result.Status = StatusFailed
			result.Output = "remember requires a key"
			break
		}
		p.memory[key] = task.Params["value"]
		result.Output = fmt.Sprintf("stored %q", key)

	case ActionCrash:
		result.Status = StatusFailed
		result.Output = "crash requested"
		return result, "crash requested"

	default:
		result.Status = StatusFailed
		result.Output = fmt.Sprintf("no handler for action %q", task.Action)
	}

	return result, ""
}

// search scans the agent's memory values for the query string.
func (p *proc) search(query string) string {
	if query == "" {
		return "search requires a query"
	}

	var hits []string
	for key, value := range p.memory {
		if strings.Contains(strings.ToLower(value), strings.ToLower(query)) ||
			strings.Contains(strings.ToLower(key), strings.ToLower(query)) {
			hits = append(hits, key)
		}
	}
	sort.Strings(hits)

	p.memory["last_search"] = query

	if len(hits) == 0 {
		return fmt.Sprintf("no notes matching %q", query)
	}
	return fmt.Sprintf("%d notes matching %q: %s", len(hits), query, strings.Join(hits, ", "))
}

// analyze reports simple statistics about the given text, falling back
// to the agent's memory contents when no text is supplied.
func (p *proc) analyze(text string) string {
	if text == "" {
		var parts []string
		for _, v := range p.memory {
			parts = append(parts, v)
		}
		text = strings.Join(parts, " ")
	}
	if strings.TrimSpace(text) == "" {
		return "nothing to analyze"
	}

	words := strings.Fields(text)
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(strings.Trim(w, ".,!?;:"))] = struct{}{}
	}

	return fmt.Sprintf("analyzed %d words, %d unique", len(words), len(unique))
}

// summarize produces a short digest of the agent's memory.
func (p *proc) summarize() string {
	if len(p.memory) == 0 {
		return fmt.Sprintf("agent %s holds no notes", p.ref.name)
	}

	keys := make([]string, 0, len(p.memory))
	for k := range p.memory {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return fmt.Sprintf("agent %s holds %d notes: %s", p.ref.name, len(keys), strings.Join(keys, ", "))
}

package orchestrator

import "github.com/kestrelrun/agentkernel/kernel/message"

// prunedPlaceholder replaces a pruned tool result's content in place.
const prunedPlaceholder = "[output pruned to save context]"

// skillToolID is exempt from pruning: per the testable property that
// pruning must preserve skill outputs, a skill's full body stays in
// history no matter how old the turn that fetched it is.
const skillToolID = "skill"

// prune walks the history and replaces the content of tool results
// older than the most recent keepRecent with a placeholder, except
// results produced by the skill tool. Messages with no changed blocks
// are returned unmodified; only messages whose blocks were rewritten
// are copied.
func prune(messages []message.Message, keepRecent int) []message.Message {
	total := 0
	for _, m := range messages {
		for _, b := range m.Content {
			if b.Type == message.BlockToolResult && b.ToolName != skillToolID {
				total++
			}
		}
	}
	if total <= keepRecent {
		return messages
	}
	toPrune := total - keepRecent

	out := make([]message.Message, len(messages))
	seen := 0
	for i, m := range messages {
		changed := false
		var content []message.Block
		for _, b := range m.Content {
			if b.Type == message.BlockToolResult && b.ToolName != skillToolID && seen < toPrune {
				seen++
				if b.Content != prunedPlaceholder {
					b.Content = prunedPlaceholder
					changed = true
				}
			}
			content = append(content, b)
		}
		if changed {
			out[i] = message.Message{Role: m.Role, Content: content}
		} else {
			out[i] = m
		}
	}
	return out
}

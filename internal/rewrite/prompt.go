package rewrite

import "strings"

const basePrompt = `You rewrite brand style guide text. Apply the user's instruction to the text between the markers and return ONLY the rewritten text, with no commentary and no code fences.

Rules:
- Keep the same markdown structure: if the text starts with a heading line, return it with a heading line
- Preserve the meaning the instruction does not ask you to change
- Match the register of a professional brand document`

func systemPrompt(scope Scope) string {
	switch scope {
	case ScopeDocument:
		return basePrompt + "\n- The text is a complete document; keep every section heading present"
	case ScopeSelection:
		return basePrompt + "\n- The text is a fragment selected inside a section; return only the rewritten fragment"
	default:
		return basePrompt
	}
}

// userPrompt frames one instruction and its target text.
func userPrompt(instruction, target string) string {
	var sb strings.Builder
	sb.WriteString("Instruction: ")
	sb.WriteString(strings.TrimSpace(instruction))
	sb.WriteString("\n\n--- TEXT ---\n")
	sb.WriteString(target)
	sb.WriteString("\n--- END TEXT ---")
	return sb.String()
}

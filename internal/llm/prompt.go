package llm

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.prompt
var promptFS embed.FS

// LoadPrompt returns a named prompt asset (without the .prompt
// extension) compiled into the binary.
func LoadPrompt(name string) (string, error) {
	b, err := promptFS.ReadFile("prompts/" + name + ".prompt")
	if err != nil {
		return "", fmt.Errorf("prompt %q not found: %w", name, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// BuildUserPrompt is the fixed user message that accompanies the image.
// The attached image may be a whole sheet or a tile of one; the system
// prompt already explains both cases.
func BuildUserPrompt() string {
	var b strings.Builder
	b.WriteString("The attached image is a P&ID sheet or a rectangular fragment of one.\n")
	b.WriteString("Tags near the image edges may be clipped; report what is visible and flag it in warnings_and_notes.\n")
	b.WriteString("Return ONLY JSON matching the provided schema.")
	return b.String()
}

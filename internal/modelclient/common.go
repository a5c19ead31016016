package modelclient

import (
	"encoding/json"
	"strings"

	"github.com/mandate-run/mandate/internal/merrors"
)

// stripCodeFence removes a single leading/trailing triple-backtick fence
// (with or without a "json" language tag), as adapter G's responses
// sometimes carry one around the plan payload.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parsePlanText parses the plan JSON object out of the unwrapped assistant
// text, for the adapter named in errors.
func parsePlanText(adapterName, text string, stripFence bool) (WriteFileCommand, error) {
	if stripFence {
		text = stripCodeFence(text)
	}

	var cmd WriteFileCommand
	if err := json.Unmarshal([]byte(text), &cmd); err != nil {
		return WriteFileCommand{}, merrors.Wrap(err, merrors.CodeParse, "plan payload is not valid JSON").
			WithContext("adapter", adapterName)
	}
	if cmd.Command == "" || cmd.Path == "" {
		return WriteFileCommand{}, merrors.New(merrors.CodeParse, "plan payload missing required field").
			WithContext("adapter", adapterName)
	}
	return cmd, nil
}

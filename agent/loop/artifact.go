package loop

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

// parseArtifact reads the model's terminal response. Models emit JSON with
// varying fidelity, so a strict parse is tried first and a repaired one
// second; content that is not JSON at all survives as plain text.
func parseArtifact(content string) contractx.Artifact {
	content = strings.TrimSpace(stripCodeFence(content))
	if content == "" {
		return contractx.Artifact{}
	}

	var payload struct {
		Contacts []contractx.Contact `json:"contacts"`
		Text     string              `json:"text"`
		Message  string              `json:"message"`
	}
	raw := content
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return contractx.Artifact{Text: content}
		}
		if err := json.Unmarshal([]byte(fixed), &payload); err != nil {
			return contractx.Artifact{Text: content}
		}
	}

	text := payload.Text
	if text == "" {
		text = payload.Message
	}
	if len(payload.Contacts) == 0 && text == "" {
		return contractx.Artifact{Text: content}
	}
	return contractx.Artifact{Contacts: payload.Contacts, Text: text}
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
}

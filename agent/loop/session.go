package loop

import (
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

// session carries one run's conversation and lifecycle. Terminal status is
// write-once: the first transition wins and later ones are ignored.
type session struct {
	id         string
	agentType  contractx.AgentType
	history    []*schema.Message
	status     contractx.SessionStatus
	iterations int
}

func newSession(agentType contractx.AgentType, systemPrompt, userPayload string) *session {
	return &session{
		id:        uuid.NewString(),
		agentType: agentType,
		status:    contractx.StatusRunning,
		history: []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(userPayload),
		},
	}
}

func (s *session) append(msgs ...*schema.Message) {
	s.history = append(s.history, msgs...)
}

func (s *session) finish(status contractx.SessionStatus) {
	if s.status.Terminal() {
		return
	}
	s.status = status
}

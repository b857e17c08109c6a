package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Gateway validates and routes tool invocations for one agent role.
// Execute returns one result per request, in request order.
type Gateway interface {
	Execute(ctx context.Context, reqs []ToolRequest) []ToolResult
	Infos() []*schema.ToolInfo
}

// Observer receives progress callbacks around tool dispatch. Observers are
// for reporting only: they must not alter control flow, and a panicking
// observer must not corrupt the loop.
type Observer interface {
	ToolRequested(name string, args map[string]any)
	ToolCompleted(name string, result ToolResult)
}

// ArtifactStore persists a session's final artifact. Persist is idempotent
// per session id: re-running with the same id overwrites.
type ArtifactStore interface {
	Persist(ctx context.Context, sessionID string, artifact Artifact) error
}

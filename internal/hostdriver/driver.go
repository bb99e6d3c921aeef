// Package hostdriver abstracts the browser-automation session that drives
// one game-host instance: remote script execution, player snapshots, and
// chat. The Room Controller treats a Driver as an opaque owned resource; it
// never reaches into a browser session directly.
package hostdriver

import "context"

// SnapshotPlayer is one entry from the host's live player list.
type SnapshotPlayer struct {
	ID    int32
	Team  int32
	Ready bool
	Name  string
}

// Driver is the remote game-host session for one room.
//
// Implementations: WSDriver talks to a real host bridge over a websocket;
// Fake is an in-memory double used by tests.
type Driver interface {
	// Execute runs an opaque remote script with the given arguments and
	// returns its decoded JSON result.
	Execute(ctx context.Context, script string, args ...any) (any, error)

	// Players returns the current player snapshot.
	Players(ctx context.Context) ([]SnapshotPlayer, error)

	// DrainChatMessages returns accumulated chat lines since the last call
	// and clears the buffer.
	DrainChatMessages(ctx context.Context) ([]string, error)

	// Chat sends one line of room chat.
	Chat(ctx context.Context, message string) error

	// Close releases the underlying session.
	Close() error
}

// Well-known script names the Room Controller depends on (spec §6). These
// are the contract, not the implementation: what each Execute call means is
// defined by the game host on the other end of the Driver.
const (
	ScriptChangeTeam         = "changeTeam"
	ScriptKickPlayer         = "kickPlayer"
	ScriptStartGame          = "startGame"
	ScriptSendStartCountdown = "sendStartCountdown"
	ScriptAllReadyReset      = "allReadyReset"
	ScriptLoadMap            = "loadMap"
	ScriptReadScoresFFA      = "readScoresFFA"
	ScriptReadScoresFootball = "readScoresFootball"
	ScriptLobbyVisible       = "lobbyVisible"
	ScriptReplayPlayerJoined = "replayPlayerJoined"
	ScriptClearChat          = "clearChat"
	ScriptCreateRoom         = "createRoom"
)

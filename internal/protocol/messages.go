// Package protocol defines the JSON client-server message schema and the
// protocol mediator (component G) that dispatches inbound messages against
// sessions and broadcasts outbound events.
package protocol

import "encoding/json"

// ErrorCode enumerates the machine-readable error kinds an error message can carry.
type ErrorCode string

const (
	ErrParseError          ErrorCode = "PARSE_ERROR"
	ErrCommandFailed       ErrorCode = "COMMAND_FAILED"
	ErrInputFailed         ErrorCode = "INPUT_FAILED"
	ErrInvalidSize         ErrorCode = "INVALID_SIZE"
	ErrResizeFailed        ErrorCode = "RESIZE_FAILED"
	ErrSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrProviderNotFound    ErrorCode = "PROVIDER_NOT_FOUND"
	ErrSessionCreateFailed ErrorCode = "SESSION_CREATE_FAILED"
)

// Envelope is the minimal shape used to sniff an inbound message's type
// before decoding its full payload.
type Envelope struct {
	Type string `json:"type"`
}

// Inbound message payloads, one struct per `type` value in the client-facing schema.

type ConnectRequest struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
}

type ListSessionsRequest struct {
	Type string `json:"type"`
}

type CreateSessionRequest struct {
	Type string `json:"type"`
}

type CloseSessionRequest struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
}

type GetHistoryRequest struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
}

type ExecuteCommandRequest struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
	Command   string `json:"command"`
}

type SendInputRequest struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
	Text      string `json:"text"`
}

type ResizeRequest struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

type RequestCompletionRequest struct {
	Type           string `json:"type"`
	SessionID      uint64 `json:"sessionId"`
	Text           string `json:"text"`
	CursorPosition int    `json:"cursorPosition"`
}

type AIChatRequest struct {
	Type       string `json:"type"`
	SessionID  uint64 `json:"sessionId"`
	ProviderID int64  `json:"providerId"`
	Message    string `json:"message"`
}

type LLMProviderPayload struct {
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	URL    string `json:"url"`
	Model  string `json:"model"`
	APIKey string `json:"apiKey"`
}

type ListLLMProvidersRequest struct {
	Type string `json:"type"`
}

type AddLLMProviderRequest struct {
	Type     string             `json:"type"`
	Provider LLMProviderPayload `json:"provider"`
}

type UpdateLLMProviderRequest struct {
	Type     string             `json:"type"`
	Provider LLMProviderPayload `json:"provider"`
}

type DeleteLLMProviderRequest struct {
	Type       string `json:"type"`
	ProviderID int64  `json:"providerId"`
}

type GetChatHistoryRequest struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
}

type ClearChatHistoryRequest struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
}

// ChatMessageWire is one persisted turn of a session's AI chat transcript.
type ChatMessageWire struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

type ChatHistory struct {
	Type      string            `json:"type"`
	SessionID uint64            `json:"sessionId"`
	Messages  []ChatMessageWire `json:"messages"`
}

type ChatHistoryCleared struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
}

// Outbound message payloads.

type Connected struct {
	Type          string `json:"type"`
	ServerVersion string `json:"serverVersion"`
	Home          string `json:"home,omitempty"`
}

type SessionSummary struct {
	ID        uint64 `json:"id"`
	CreatedAt int64  `json:"createdAt"`
}

type SessionsList struct {
	Type            string           `json:"type"`
	Sessions        []SessionSummary `json:"sessions"`
	ActiveSessionID *uint64          `json:"activeSessionId,omitempty"`
}

type SessionCreated struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
}

type SessionClosed struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
}

// StyledSegmentWire is the wire form of a term.StyledSegment.
type StyledSegmentWire struct {
	Text  string    `json:"text"`
	Style StyleWire `json:"style"`
}

// ColorWire is the tagged-union wire form of a term.Color: either a bare
// string (standard/bright names), or an object carrying index or rgb.
type ColorWire = json.RawMessage

// StyleWire is the wire form of a term.TextStyle.
type StyleWire struct {
	Fg            ColorWire `json:"fg,omitempty"`
	Bg            ColorWire `json:"bg,omitempty"`
	Bold          bool      `json:"bold,omitempty"`
	Dim           bool      `json:"dim,omitempty"`
	Italic        bool      `json:"italic,omitempty"`
	Underline     bool      `json:"underline,omitempty"`
	Reverse       bool      `json:"reverse,omitempty"`
	Strikethrough bool      `json:"strikethrough,omitempty"`
}

type HistoryCommand struct {
	ID         int64               `json:"id"`
	Command    string              `json:"command"`
	Segments   []StyledSegmentWire `json:"segments"`
	ExitCode   int                 `json:"exitCode"`
	CwdStart   string              `json:"cwdStart"`
	CwdEnd     string              `json:"cwdEnd"`
	IsFinished bool                `json:"isFinished"`
}

type History struct {
	Type      string           `json:"type"`
	SessionID uint64           `json:"sessionId"`
	Commands  []HistoryCommand `json:"commands"`
}

type Output struct {
	Type     string              `json:"type"`
	Segments []StyledSegmentWire `json:"segments"`
}

type CommandStart struct {
	Type string `json:"type"`
	Cwd  string `json:"cwd,omitempty"`
}

type CommandEnd struct {
	Type     string `json:"type"`
	ExitCode int    `json:"exitCode"`
	Cwd      string `json:"cwd,omitempty"`
}

type PromptStart struct {
	Type string `json:"type"`
}

type PromptEnd struct {
	Type string `json:"type"`
}

type CwdUpdate struct {
	Type string `json:"type"`
	Cwd  string `json:"cwd"`
}

type InteractiveModeStart struct {
	Type string `json:"type"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

type InteractiveModeEnd struct {
	Type string `json:"type"`
}

type ScreenSnapshot struct {
	Type      string                `json:"type"`
	CursorRow int                   `json:"cursorRow"`
	CursorCol int                   `json:"cursorColumn"`
	Lines     [][]StyledSegmentWire `json:"lines"`
}

type RowUpdate struct {
	Row      int                 `json:"row"`
	Segments []StyledSegmentWire `json:"segments"`
}

type ScreenDiff struct {
	Type      string      `json:"type"`
	CursorRow int         `json:"cursorRow"`
	CursorCol int         `json:"cursorColumn"`
	Updates   []RowUpdate `json:"updates"`
}

type CompletionResult struct {
	Type           string   `json:"type"`
	Completions    []string `json:"completions"`
	Text           string   `json:"text"`
	CursorPosition int      `json:"cursorPosition"`
}

type Status struct {
	Type     string `json:"type"`
	Running  bool   `json:"running"`
	ExitCode int    `json:"exitCode"`
}

type InputSent struct {
	Type  string `json:"type"`
	Bytes int    `json:"bytes"`
}

type ResizeAck struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

type AIChunk struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
	Content   string `json:"content,omitempty"`
}

type AIDone struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
}

type AIError struct {
	Type      string `json:"type"`
	SessionID uint64 `json:"sessionId"`
	Content   string `json:"content,omitempty"`
}

type ErrorMessage struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
}

func NewError(code ErrorCode, message string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: message, Code: code}
}

package protocol

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/fnc12/termihui-sub000/internal/completion"
	"github.com/fnc12/termihui-sub000/internal/llm"
	"github.com/fnc12/termihui-sub000/internal/session"
	"github.com/fnc12/termihui-sub000/internal/shellmarker"
	"github.com/fnc12/termihui-sub000/internal/storage"
	"github.com/fnc12/termihui-sub000/internal/term"
	"github.com/fnc12/termihui-sub000/internal/transport"
)

// Sender delivers outbound messages to transport clients; satisfied by
// *transport.Adapter.
type Sender interface {
	Send(clientID uint64, data []byte)
	Broadcast(data []byte)
}

// Mediator is the protocol mediator (component G): it owns every live
// session, dispatches inbound client messages against them, and turns PTY
// output into the outbound event stream. It is driven single-threaded by
// the server loop.
type Mediator struct {
	log zerolog.Logger

	transport  Sender
	store      *storage.ServerStore
	completion *completion.Provider
	llmClient  *llm.Client
	dataRoot   string
	serverRun  int64

	sessions map[uint64]*session.Session

	clientSession map[uint64]uint64 // clientId -> most recently active sessionId, for AI chat routing
	aiReplies     map[uint64]string // sessionId -> assistant content accumulated since the last aiDone
}

// New builds a Mediator. dataRoot is the directory session databases are
// created under.
func New(log zerolog.Logger, tr Sender, store *storage.ServerStore, comp *completion.Provider, llmClient *llm.Client, dataRoot string, serverRun int64) *Mediator {
	return &Mediator{
		log:           log,
		transport:     tr,
		store:         store,
		completion:    comp,
		llmClient:     llmClient,
		dataRoot:      dataRoot,
		serverRun:     serverRun,
		sessions:      make(map[uint64]*session.Session),
		clientSession: make(map[uint64]uint64),
		aiReplies:     make(map[uint64]string),
	}
}

// HandleConnectionEvents processes transport connect/disconnect notifications.
func (m *Mediator) HandleConnectionEvents(events []transport.ConnectionEvent) {
	for _, ev := range events {
		if !ev.Connected {
			delete(m.clientSession, ev.ClientID)
			continue
		}
		m.send(ev.ClientID, Connected{Type: "connected", ServerVersion: "termihui"})
	}
}

// HandleInbound dispatches one decoded client message.
func (m *Mediator) HandleInbound(clientID uint64, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.send(clientID, NewError(ErrParseError, "malformed message"))
		return
	}

	switch env.Type {
	case "connectButtonClicked", "disconnectButtonClicked", "requestReconnect":
		// Connection lifecycle is driven by the transport layer itself; these
		// notifications are acknowledged implicitly by the connected message.
	case "listSessions":
		m.handleListSessions(clientID)
	case "createSession":
		m.handleCreateSession(clientID)
	case "closeSession":
		var req CloseSessionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed closeSession"))
			return
		}
		m.handleCloseSession(clientID, req)
	case "executeCommand":
		var req ExecuteCommandRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed executeCommand"))
			return
		}
		m.handleExecuteCommand(clientID, req)
	case "sendInput":
		var req SendInputRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed sendInput"))
			return
		}
		m.handleSendInput(clientID, req)
	case "resize":
		var req ResizeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed resize"))
			return
		}
		m.handleResize(clientID, req)
	case "requestCompletion":
		var req RequestCompletionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed requestCompletion"))
			return
		}
		m.handleRequestCompletion(clientID, req)
	case "getHistory":
		var req GetHistoryRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed getHistory"))
			return
		}
		m.handleGetHistory(clientID, req)
	case "listLLMProviders":
		m.handleListLLMProviders(clientID)
	case "addLLMProvider":
		var req AddLLMProviderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed addLLMProvider"))
			return
		}
		m.handleAddLLMProvider(clientID, req)
	case "updateLLMProvider":
		var req UpdateLLMProviderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed updateLLMProvider"))
			return
		}
		m.handleUpdateLLMProvider(clientID, req)
	case "deleteLLMProvider":
		var req DeleteLLMProviderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed deleteLLMProvider"))
			return
		}
		m.handleDeleteLLMProvider(clientID, req)
	case "aiChat":
		var req AIChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed aiChat"))
			return
		}
		m.handleAIChat(clientID, req)
	case "getChatHistory":
		var req GetChatHistoryRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed getChatHistory"))
			return
		}
		m.handleGetChatHistory(clientID, req)
	case "clearChatHistory":
		var req ClearChatHistoryRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.send(clientID, NewError(ErrParseError, "malformed clearChatHistory"))
			return
		}
		m.handleClearChatHistory(clientID, req)
	default:
		m.send(clientID, NewError(ErrParseError, "unknown message type"))
	}
}

// materialize returns the cached session for id, lazily constructing a new
// PTY controller from F's active-session record when it is not yet in memory.
func (m *Mediator) materialize(id uint64) (*session.Session, bool) {
	if sess, ok := m.sessions[id]; ok {
		return sess, true
	}

	active, err := m.store.IsActiveTerminalSession(id)
	if err != nil || !active {
		return nil, false
	}

	store, err := storage.OpenSessionStore(storage.SessionStatePath(m.dataRoot, id), m.serverRun)
	if err != nil {
		m.log.Error().Err(err).Uint64("sessionId", id).Msg("reopen session store failed")
		return nil, false
	}

	sess, err := session.New(id, store, 0, 0)
	if err != nil {
		m.log.Error().Err(err).Uint64("sessionId", id).Msg("materialize session failed")
		store.Close()
		return nil, false
	}
	m.sessions[id] = sess
	return sess, true
}

func (m *Mediator) handleListSessions(clientID uint64) {
	rows, err := m.store.GetActiveTerminalSessions()
	if err != nil {
		m.send(clientID, NewError(ErrSessionNotFound, "list failed"))
		return
	}
	summaries := make([]SessionSummary, len(rows))
	for i, r := range rows {
		summaries[i] = SessionSummary{ID: r.ID, CreatedAt: r.CreatedAt.Unix()}
	}

	list := SessionsList{Type: "sessionsList", Sessions: summaries}
	if active, ok := m.clientSession[clientID]; ok {
		list.ActiveSessionID = &active
	}
	m.send(clientID, list)
}

func (m *Mediator) handleCreateSession(clientID uint64) {
	id, err := m.store.CreateTerminalSession(m.serverRun)
	if err != nil {
		m.send(clientID, NewError(ErrSessionCreateFailed, "could not register session"))
		return
	}

	store, err := storage.OpenSessionStore(storage.SessionStatePath(m.dataRoot, id), m.serverRun)
	if err != nil {
		m.send(clientID, NewError(ErrSessionCreateFailed, "could not open session store"))
		return
	}

	sess, err := session.New(id, store, 0, 0)
	if err != nil {
		store.Close()
		m.send(clientID, NewError(ErrSessionCreateFailed, "could not start shell"))
		return
	}
	m.sessions[id] = sess
	m.clientSession[clientID] = id

	m.send(clientID, SessionCreated{Type: "sessionCreated", SessionID: id})
}

func (m *Mediator) handleCloseSession(clientID uint64, req CloseSessionRequest) {
	sess, ok := m.materialize(req.SessionID)
	if ok {
		sess.Close()
		delete(m.sessions, req.SessionID)
	}
	if err := m.store.MarkTerminalSessionAsDeleted(req.SessionID); err != nil {
		m.send(clientID, NewError(ErrSessionNotFound, "close failed"))
		return
	}
	m.send(clientID, SessionClosed{Type: "sessionClosed", SessionID: req.SessionID})
}

func (m *Mediator) handleExecuteCommand(clientID uint64, req ExecuteCommandRequest) {
	sess, ok := m.materialize(req.SessionID)
	if !ok {
		m.send(clientID, NewError(ErrSessionNotFound, "unknown session"))
		return
	}
	m.clientSession[clientID] = req.SessionID

	sess.Marker.SetPendingCommand(req.Command)
	if _, err := sess.Controller.ExecuteCommand(req.Command); err != nil {
		m.send(clientID, NewError(ErrCommandFailed, err.Error()))
	}
}

func (m *Mediator) handleSendInput(clientID uint64, req SendInputRequest) {
	sess, ok := m.materialize(req.SessionID)
	if !ok {
		m.send(clientID, NewError(ErrSessionNotFound, "unknown session"))
		return
	}

	n, err := sess.Controller.SendInput([]byte(req.Text))
	if err != nil {
		m.send(clientID, NewError(ErrInputFailed, err.Error()))
		return
	}
	m.send(clientID, InputSent{Type: "inputSent", Bytes: n})
}

func (m *Mediator) handleResize(clientID uint64, req ResizeRequest) {
	if req.Cols <= 0 || req.Rows <= 0 {
		m.send(clientID, NewError(ErrInvalidSize, "cols/rows must be positive"))
		return
	}
	sess, ok := m.materialize(req.SessionID)
	if !ok {
		m.send(clientID, NewError(ErrSessionNotFound, "unknown session"))
		return
	}
	if err := sess.Controller.SetWindowSize(req.Cols, req.Rows); err != nil {
		m.send(clientID, NewError(ErrResizeFailed, err.Error()))
		return
	}
	sess.Grid.Resize(req.Rows, req.Cols)
	m.send(clientID, ResizeAck{Type: "resizeAck", Cols: req.Cols, Rows: req.Rows})
}

func (m *Mediator) handleRequestCompletion(clientID uint64, req RequestCompletionRequest) {
	sess, ok := m.materialize(req.SessionID)
	cwd := ""
	if ok {
		cwd = sess.LastKnownCwd()
	}
	completions := m.completion.GetCompletions(req.Text, req.CursorPosition, cwd)
	m.send(clientID, CompletionResult{
		Type:           "completionResult",
		Completions:    completions,
		Text:           req.Text,
		CursorPosition: req.CursorPosition,
	})
}

func (m *Mediator) handleGetHistory(clientID uint64, req GetHistoryRequest) {
	sess, ok := m.materialize(req.SessionID)
	if !ok {
		m.send(clientID, NewError(ErrSessionNotFound, "unknown session"))
		return
	}
	m.clientSession[clientID] = req.SessionID

	records, err := sess.Store.GetAllCommands()
	if err != nil {
		m.send(clientID, NewError(ErrSessionNotFound, "history read failed"))
		return
	}

	var parser shellmarker.OutputParser
	commands := make([]HistoryCommand, len(records))
	for i, rec := range records {
		segments := parser.Parse(rec.Output)
		commands[i] = HistoryCommand{
			ID:         rec.ID,
			Command:    rec.Command,
			Segments:   SegmentsToWire(segments),
			ExitCode:   rec.ExitCode,
			CwdStart:   rec.CwdStart,
			CwdEnd:     rec.CwdEnd,
			IsFinished: rec.IsFinished,
		}
	}
	m.send(clientID, History{Type: "history", SessionID: req.SessionID, Commands: commands})

	if sess.Interactive {
		m.send(clientID, InteractiveModeStart{Type: "interactiveModeStart", Rows: sess.Grid.Rows(), Cols: sess.Grid.Cols()})
		m.sendSnapshot(clientID, sess)
	}
}

func (m *Mediator) handleListLLMProviders(clientID uint64) {
	providers, err := m.store.GetAllLLMProviders()
	if err != nil {
		m.send(clientID, NewError(ErrProviderNotFound, "list failed"))
		return
	}
	payloads := make([]LLMProviderPayload, len(providers))
	for i, p := range providers {
		payloads[i] = LLMProviderPayload{ID: p.ID, Name: p.Name, Type: p.Type, URL: p.URL, Model: p.Model, APIKey: p.APIKey}
	}
	m.sendRaw(clientID, struct {
		Type      string               `json:"type"`
		Providers []LLMProviderPayload `json:"providers"`
	}{Type: "llmProvidersList", Providers: payloads})
}

func (m *Mediator) handleAddLLMProvider(clientID uint64, req AddLLMProviderRequest) {
	id, err := m.store.AddLLMProvider(storage.LLMProvider{
		Name: req.Provider.Name, Type: req.Provider.Type, URL: req.Provider.URL,
		Model: req.Provider.Model, APIKey: req.Provider.APIKey,
	})
	if err != nil {
		m.send(clientID, NewError(ErrProviderNotFound, "add failed"))
		return
	}
	req.Provider.ID = id
	m.sendRaw(clientID, struct {
		Type     string             `json:"type"`
		Provider LLMProviderPayload `json:"provider"`
	}{Type: "llmProviderAdded", Provider: req.Provider})
}

func (m *Mediator) handleUpdateLLMProvider(clientID uint64, req UpdateLLMProviderRequest) {
	err := m.store.UpdateLLMProvider(storage.LLMProvider{
		ID: req.Provider.ID, Name: req.Provider.Name, Type: req.Provider.Type,
		URL: req.Provider.URL, Model: req.Provider.Model, APIKey: req.Provider.APIKey,
	})
	if err != nil {
		m.send(clientID, NewError(ErrProviderNotFound, "update failed"))
		return
	}
	m.sendRaw(clientID, struct {
		Type     string             `json:"type"`
		Provider LLMProviderPayload `json:"provider"`
	}{Type: "llmProviderUpdated", Provider: req.Provider})
}

func (m *Mediator) handleDeleteLLMProvider(clientID uint64, req DeleteLLMProviderRequest) {
	if err := m.store.DeleteLLMProvider(req.ProviderID); err != nil {
		m.send(clientID, NewError(ErrProviderNotFound, "delete failed"))
		return
	}
	m.sendRaw(clientID, struct {
		Type       string `json:"type"`
		ProviderID int64  `json:"providerId"`
	}{Type: "llmProviderDeleted", ProviderID: req.ProviderID})
}

func (m *Mediator) handleAIChat(clientID uint64, req AIChatRequest) {
	provider, err := m.store.GetLLMProvider(req.ProviderID)
	if err != nil || provider == nil {
		m.send(clientID, NewError(ErrProviderNotFound, "unknown provider"))
		return
	}
	m.clientSession[clientID] = req.SessionID
	if _, err := m.store.SaveChatMessage(req.SessionID, "user", req.Message); err != nil {
		m.log.Warn().Err(err).Uint64("sessionId", req.SessionID).Msg("save chat message failed")
	}
	m.llmClient.Chat(req.SessionID, llm.Provider{
		Name: provider.Name, Type: provider.Type, URL: provider.URL,
		Model: provider.Model, APIKey: provider.APIKey,
	}, req.Message)
}

func (m *Mediator) handleGetChatHistory(clientID uint64, req GetChatHistoryRequest) {
	records, err := m.store.GetChatHistory(req.SessionID)
	if err != nil {
		m.send(clientID, NewError(ErrSessionNotFound, "chat history unavailable"))
		return
	}
	messages := make([]ChatMessageWire, 0, len(records))
	for _, r := range records {
		messages = append(messages, ChatMessageWire{Role: r.Role, Content: r.Content, CreatedAt: r.CreatedAt.UnixMilli()})
	}
	m.send(clientID, ChatHistory{Type: "chatHistory", SessionID: req.SessionID, Messages: messages})
}

func (m *Mediator) handleClearChatHistory(clientID uint64, req ClearChatHistoryRequest) {
	if err := m.store.ClearChatHistory(req.SessionID); err != nil {
		m.send(clientID, NewError(ErrSessionNotFound, "clear chat history failed"))
		return
	}
	m.send(clientID, ChatHistoryCleared{Type: "chatHistoryCleared", SessionID: req.SessionID})
}

// DrainAIChunks broadcasts every AI chunk accumulated by the LLM client
// since the last tick.
func (m *Mediator) DrainAIChunks() {
	for _, chunk := range m.llmClient.DrainChunks() {
		switch chunk.Kind {
		case llm.ChunkContent:
			m.aiReplies[chunk.SessionID] += chunk.Content
			m.broadcast(AIChunk{Type: "aiChunk", SessionID: chunk.SessionID, Content: chunk.Content})
		case llm.ChunkDone:
			if reply := m.aiReplies[chunk.SessionID]; reply != "" {
				if _, err := m.store.SaveChatMessage(chunk.SessionID, "assistant", reply); err != nil {
					m.log.Warn().Err(err).Uint64("sessionId", chunk.SessionID).Msg("save chat message failed")
				}
			}
			delete(m.aiReplies, chunk.SessionID)
			m.broadcast(AIDone{Type: "aiDone", SessionID: chunk.SessionID})
		case llm.ChunkError:
			delete(m.aiReplies, chunk.SessionID)
			m.broadcast(AIError{Type: "aiError", SessionID: chunk.SessionID, Content: chunk.Content})
		}
	}
}

// CloseAllSessions terminates every live PTY and closes its store, for
// graceful server shutdown.
func (m *Mediator) CloseAllSessions() {
	for id, sess := range m.sessions {
		sess.Close()
		delete(m.sessions, id)
	}
}

// Tick runs component G's per-session output processing for every live session.
func (m *Mediator) Tick() {
	for _, sess := range m.sessions {
		m.processTerminalOutput(sess)
	}
}

func (m *Mediator) processTerminalOutput(sess *session.Session) {
	bytesRead, err := sess.Controller.ReadOutput()
	if err != nil {
		m.log.Debug().Err(err).Uint64("sessionId", sess.ID).Msg("read output failed")
	}
	if len(bytesRead) == 0 {
		if sess.Controller.DidJustFinishRunning() {
			m.broadcast(Status{Type: "status", Running: false})
		}
		return
	}

	events := sess.Processor.Process(bytesRead)
	for _, ev := range events {
		if ev.Kind != term.EventInteractiveModeChanged {
			continue
		}
		if ev.Entered {
			sess.Interactive = true
			sess.JustExitedInteractiveMode = false
			sess.Marker.SetJustExitedInteractiveMode(false)
			m.broadcast(InteractiveModeStart{Type: "interactiveModeStart", Rows: sess.Grid.Rows(), Cols: sess.Grid.Cols()})
			m.sendSnapshot(0, sess)
			sess.Grid.ClearDirtyRows()
		} else {
			m.broadcast(InteractiveModeEnd{Type: "interactiveModeEnd"})
			sess.Interactive = false
			sess.JustExitedInteractiveMode = true
			sess.Marker.SetJustExitedInteractiveMode(true)
		}
	}

	if sess.Interactive {
		m.transmitDiff(sess)
		return
	}

	m.runMarker(sess, bytesRead)
}

func (m *Mediator) transmitDiff(sess *session.Session) {
	dirty := sess.Grid.DirtyRows()
	if len(dirty) == 0 && !sess.Grid.IsCursorDirty() {
		return
	}

	cursorRow, cursorCol := sess.Grid.CursorPos()
	if len(dirty) > sess.Grid.Rows()/2 {
		m.sendSnapshot(0, sess)
		sess.Grid.ClearDirtyRows()
		return
	}

	updates := make([]RowUpdate, len(dirty))
	for i, row := range dirty {
		updates[i] = RowUpdate{Row: row, Segments: SegmentsToWire(sess.Grid.GetRowSegments(row, false))}
	}
	m.broadcast(ScreenDiff{Type: "screenDiff", CursorRow: cursorRow, CursorCol: cursorCol, Updates: updates})
	sess.Grid.ClearDirtyRows()
}

func (m *Mediator) sendSnapshot(clientID uint64, sess *session.Session) {
	lines := make([][]term.StyledSegment, sess.Grid.Rows())
	for r := 0; r < sess.Grid.Rows(); r++ {
		lines[r] = sess.Grid.GetRowSegments(r, false)
	}
	cursorRow, cursorCol := sess.Grid.CursorPos()
	snapshot := ScreenSnapshot{
		Type:      "screenSnapshot",
		CursorRow: cursorRow,
		CursorCol: cursorCol,
		Lines:     LinesToWire(lines),
	}
	if clientID == 0 {
		m.broadcast(snapshot)
		return
	}
	m.send(clientID, snapshot)
}

func (m *Mediator) runMarker(sess *session.Session, data []byte) {
	events, err := sess.Marker.Process(data)
	if err != nil {
		m.log.Error().Err(err).Msg("marker process failed")
		return
	}
	for _, ev := range events {
		switch ev.Kind {
		case shellmarker.EventCommandStart:
			m.broadcast(CommandStart{Type: "commandStart", Cwd: ev.Cwd})
		case shellmarker.EventCommandEnd:
			m.broadcast(CommandEnd{Type: "commandEnd", ExitCode: ev.ExitCode, Cwd: ev.Cwd})
		case shellmarker.EventPromptStart:
			m.broadcast(PromptStart{Type: "promptStart"})
		case shellmarker.EventPromptEnd:
			m.broadcast(PromptEnd{Type: "promptEnd"})
		case shellmarker.EventCwdUpdate:
			m.broadcast(CwdUpdate{Type: "cwdUpdate", Cwd: ev.Cwd})
		case shellmarker.EventOutput:
			m.broadcast(Output{Type: "output", Segments: SegmentsToWire(ev.Segments)})
		}
	}
}

func (m *Mediator) send(clientID uint64, payload interface{}) {
	if clientID == 0 {
		return
	}
	m.sendRaw(clientID, payload)
}

func (m *Mediator) sendRaw(clientID uint64, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Error().Err(err).Msg("marshal outbound message failed")
		return
	}
	m.transport.Send(clientID, data)
}

func (m *Mediator) broadcast(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Error().Err(err).Msg("marshal broadcast message failed")
		return
	}
	m.transport.Broadcast(data)
}

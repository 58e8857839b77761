package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const maxRequestBytes = 1 << 20

// AppConfig holds the collaborators of an Application.
type AppConfig struct {
	Card     *Card
	Executor Executor
	Tasks    *TaskStore
	Logger   *slog.Logger
}

// Application serves the agent card and the JSON-RPC endpoint.
type Application struct {
	card     *Card
	executor Executor
	tasks    *TaskStore
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewApplication creates the agent application.
func NewApplication(cfg AppConfig) *Application {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tasks := cfg.Tasks
	if tasks == nil {
		tasks = NewTaskStore(logger)
	}
	executor := cfg.Executor
	if executor == nil {
		executor = NewRealmExecutor(nil)
	}

	app := &Application{
		card:     cfg.Card,
		executor: executor,
		tasks:    tasks,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	app.mux.HandleFunc("GET /.well-known/agent-card.json", app.handleCard)
	// Legacy location, still requested by older clients.
	app.mux.HandleFunc("GET /.well-known/agent.json", app.handleCard)
	app.mux.HandleFunc("POST /{$}", app.handleRPC)

	return app
}

// Tasks returns the application's task store.
func (a *Application) Tasks() *TaskStore {
	return a.tasks
}

func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *Application) handleCard(w http.ResponseWriter, r *http.Request) {
	if a.card == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, a.card)
}

func (a *Application) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeRPCError(w, nil, &JSONRPCError{Code: CodeInvalidRequest, Message: "request body too large or unreadable"})
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, &JSONRPCError{Code: CodeParseError, Message: "invalid JSON payload"})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCError(w, req.ID, &JSONRPCError{Code: CodeInvalidRequest, Message: "request payload validation error"})
		return
	}

	a.logger.Debug("JSON-RPC request", "method", req.Method)

	switch req.Method {
	case "message/send":
		a.rpcSend(r.Context(), w, req)
	case "message/stream":
		a.rpcStream(r.Context(), w, req)
	case "tasks/get":
		a.rpcGetTask(w, req)
	case "tasks/cancel":
		a.rpcCancelTask(w, req)
	default:
		writeRPCError(w, req.ID, &JSONRPCError{Code: CodeMethodNotFound, Message: "method not found: " + req.Method})
	}
}

func (a *Application) rpcSend(ctx context.Context, w http.ResponseWriter, req JSONRPCRequest) {
	params, rpcErr := decodeSendParams(req.Params)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}

	task := a.tasks.Create(params.Message)
	task, err := a.run(ctx, task, nil)
	if err != nil {
		writeRPCError(w, req.ID, toRPCError(err))
		return
	}
	writeRPCResult(w, req.ID, task)
}

func (a *Application) rpcStream(ctx context.Context, w http.ResponseWriter, req JSONRPCRequest) {
	if a.card == nil || !a.card.Capabilities.Streaming {
		writeRPCError(w, req.ID, &JSONRPCError{Code: CodeInvalidRequest, Message: "streaming is not supported"})
		return
	}
	params, rpcErr := decodeSendParams(req.Params)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}

	task := a.tasks.Create(params.Message)
	stream := newSSEWriter(w, req.ID)
	if err := stream.send(task, nil); err != nil {
		a.abandon(task.ID, err)
		return
	}

	_, err := a.run(ctx, task, func(ev TaskStatusUpdateEvent) error {
		return stream.send(ev, nil)
	})
	if err != nil && ctx.Err() == nil {
		_ = stream.send(nil, toRPCError(err))
	}
}

// run executes task to a terminal state. onUpdate, when set, receives every
// status change; a failing onUpdate aborts the run and the task is canceled.
func (a *Application) run(ctx context.Context, task *Task, onUpdate func(TaskStatusUpdateEvent) error) (final *Task, err error) {
	ctx, cancel := context.WithCancel(ctx)
	a.tasks.Track(task.ID, cancel)
	defer func() {
		cancel()
		a.tasks.Untrack(task.ID)
		if err != nil {
			a.abandon(task.ID, err)
		}
	}()

	update := func(t *Task) error {
		if onUpdate == nil {
			return nil
		}
		return onUpdate(TaskStatusUpdateEvent{
			Kind:      "status-update",
			TaskID:    t.ID,
			ContextID: t.ContextID,
			Status:    t.Status,
			Final:     t.Status.State.Terminal(),
		})
	}

	working, err := a.tasks.SetStatus(task.ID, TaskStateWorking, nil)
	if err != nil {
		return nil, err
	}
	if err := update(working); err != nil {
		return nil, err
	}

	answer, execErr := a.executor.Execute(ctx, task.History[0])

	if execErr == nil {
		final, err = a.tasks.Complete(task.ID, Artifact{
			ArtifactID: uuid.NewString(),
			Name:       "answer",
			Parts:      []Part{TextPart(answer)},
		}, a.agentMessage(task, answer))
	} else {
		a.logger.Warn("Agent execution failed", "task_id", task.ID, "error", execErr)
		final, err = a.tasks.SetStatus(task.ID, TaskStateFailed, a.agentMessage(task, "The request could not be completed."))
	}
	if err != nil {
		return nil, err
	}

	if err := update(final); err != nil {
		return nil, err
	}
	return final, nil
}

// abandon cancels a task whose run could not continue, typically because the
// streaming client went away. Tasks already in a final state keep it.
func (a *Application) abandon(id string, cause error) {
	task, err := a.tasks.SetStatus(id, TaskStateCanceled, nil)
	if err != nil {
		a.logger.Error("Failed to cancel abandoned task", "task_id", id, "error", err)
		return
	}
	a.logger.Info("Task abandoned", "task_id", id, "state", task.Status.State, "error", cause)
}

func (a *Application) agentMessage(task *Task, text string) *Message {
	return &Message{
		Kind:      "message",
		MessageID: uuid.NewString(),
		Role:      RoleAgent,
		Parts:     []Part{TextPart(text)},
		TaskID:    task.ID,
		ContextID: task.ContextID,
	}
}

func (a *Application) rpcGetTask(w http.ResponseWriter, req JSONRPCRequest) {
	var params TaskQueryParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		writeRPCError(w, req.ID, &JSONRPCError{Code: CodeInvalidParams, Message: "invalid params: task id is required"})
		return
	}

	task, err := a.tasks.Get(params.ID)
	if err != nil {
		writeRPCError(w, req.ID, toRPCError(err))
		return
	}
	if params.HistoryLength != nil && *params.HistoryLength >= 0 && *params.HistoryLength < len(task.History) {
		task.History = task.History[len(task.History)-*params.HistoryLength:]
	}
	writeRPCResult(w, req.ID, task)
}

func (a *Application) rpcCancelTask(w http.ResponseWriter, req JSONRPCRequest) {
	var params TaskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		writeRPCError(w, req.ID, &JSONRPCError{Code: CodeInvalidParams, Message: "invalid params: task id is required"})
		return
	}

	task, err := a.tasks.Cancel(params.ID)
	if err != nil {
		writeRPCError(w, req.ID, toRPCError(err))
		return
	}
	writeRPCResult(w, req.ID, task)
}

func decodeSendParams(raw json.RawMessage) (*MessageSendParams, *JSONRPCError) {
	var params MessageSendParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &JSONRPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	if params.Message.Role != RoleUser {
		return nil, &JSONRPCError{Code: CodeInvalidParams, Message: "invalid params: message role must be user"}
	}
	if strings.TrimSpace(params.Message.Text()) == "" {
		return nil, &JSONRPCError{Code: CodeInvalidParams, Message: "invalid params: " + ErrEmptyMessage.Error()}
	}
	params.Message.Kind = "message"
	return &params, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeJSON(w, http.StatusOK, JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, rpcErr *JSONRPCError) {
	writeJSON(w, http.StatusOK, JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

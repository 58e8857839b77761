package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStore keeps tasks in memory for the lifetime of the process.
// Returned tasks are copies; callers may modify them freely.
type TaskStore struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	cancels map[string]context.CancelFunc
	logger  *slog.Logger
}

// NewTaskStore creates an empty task store.
func NewTaskStore(logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		tasks:   make(map[string]*Task),
		cancels: make(map[string]context.CancelFunc),
		logger:  logger,
	}
}

// Create registers a submitted task for msg. The message is assigned the
// new task id and, when it has none, a fresh context id.
func (s *TaskStore) Create(msg Message) *Task {
	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	taskID := uuid.NewString()

	msg.TaskID = taskID
	msg.ContextID = contextID
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	task := &Task{
		Kind:      "task",
		ID:        taskID,
		ContextID: contextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: now(),
		},
		History: []Message{msg},
	}

	s.mu.Lock()
	s.tasks[taskID] = task
	s.mu.Unlock()

	s.logger.Debug("Task created", "task_id", taskID, "context_id", contextID)

	return cloneTask(task)
}

// Get returns the task with the given id.
func (s *TaskStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, &TaskError{TaskID: id, Err: ErrTaskNotFound}
	}
	return cloneTask(task), nil
}

// SetStatus moves a task to state. Tasks that already reached a terminal
// state are left alone and returned unchanged.
func (s *TaskStore) SetStatus(id string, state TaskState, msg *Message) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, &TaskError{TaskID: id, Err: ErrTaskNotFound}
	}
	if task.Status.State.Terminal() {
		return cloneTask(task), nil
	}

	task.Status = TaskStatus{State: state, Message: msg, Timestamp: now()}
	if msg != nil {
		task.History = append(task.History, *msg)
	}
	if state.Terminal() {
		delete(s.cancels, id)
	}
	return cloneTask(task), nil
}

// Complete attaches artifact to a running task and marks it completed with
// msg as the final status message. A task that reached a final state in the
// meantime, for example through Cancel, is returned unchanged.
func (s *TaskStore) Complete(id string, artifact Artifact, msg *Message) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, &TaskError{TaskID: id, Err: ErrTaskNotFound}
	}
	if task.Status.State.Terminal() {
		return cloneTask(task), nil
	}

	task.Artifacts = append(task.Artifacts, artifact)
	task.Status = TaskStatus{State: TaskStateCompleted, Message: msg, Timestamp: now()}
	if msg != nil {
		task.History = append(task.History, *msg)
	}
	delete(s.cancels, id)
	return cloneTask(task), nil
}

// Track records the cancel function of a running task.
func (s *TaskStore) Track(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

// Untrack forgets the cancel function of a task whose run has ended.
func (s *TaskStore) Untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

// Cancel marks a task canceled and stops its execution if still running.
func (s *TaskStore) Cancel(id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, &TaskError{TaskID: id, Err: ErrTaskNotFound}
	}
	if task.Status.State.Terminal() {
		return nil, &TaskError{TaskID: id, Err: ErrTaskNotCancelable}
	}

	task.Status = TaskStatus{State: TaskStateCanceled, Timestamp: now()}
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}

	s.logger.Info("Task canceled", "task_id", id)
	return cloneTask(task), nil
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func cloneTask(t *Task) *Task {
	c := *t
	if t.Status.Message != nil {
		m := cloneMessage(*t.Status.Message)
		c.Status.Message = &m
	}
	c.History = make([]Message, len(t.History))
	for i, m := range t.History {
		c.History[i] = cloneMessage(m)
	}
	if t.Artifacts != nil {
		c.Artifacts = make([]Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			a.Parts = append([]Part(nil), a.Parts...)
			c.Artifacts[i] = a
		}
	}
	return &c
}

func cloneMessage(m Message) Message {
	m.Parts = append([]Part(nil), m.Parts...)
	return m
}

// Package scheduler queues outbound station commands for deferred execution with retries.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/resident-x/go-csms/internal/command"
	"github.com/resident-x/go-csms/internal/config"
	"github.com/resident-x/go-csms/internal/domain"
)

// Global counter for unique command IDs
var commandIDCounter uint64

// Errors returned when scheduling.
var (
	ErrQueueFull      = errors.New("command queue is full")
	ErrUnknownCommand = errors.New("unknown action")
	ErrNotRunning     = errors.New("scheduler is not running")
)

// CommandPriority defines the priority level for commands.
type CommandPriority int

const (
	PriorityLow CommandPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String returns the string representation of the command priority.
func (p CommandPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// ParsePriority maps a priority name to its level. Unknown names yield PriorityNormal.
func ParsePriority(s string) CommandPriority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// CommandState is the lifecycle position of a scheduled command.
type CommandState string

// Command states.
const (
	StatePending   CommandState = "pending"
	StateRunning   CommandState = "running"
	StateCompleted CommandState = "completed"
	StateFailed    CommandState = "failed"
	StateExpired   CommandState = "expired"
)

// NoRetries disables retries for a single ScheduledCommand.
const NoRetries = -1

// ScheduledCommand is an outbound command waiting for execution.
type ScheduledCommand struct {
	ID          string
	Action      string
	Destination domain.StationID
	Payload     json.RawMessage
	Priority    CommandPriority
	ScheduledAt time.Time
	ExpiresAt   time.Time
	Retries     int
	// MaxRetries bounds re-executions after a failure. Zero selects the scheduler default;
	// NoRetries runs the command exactly once.
	MaxRetries  int
	CreatedAt   time.Time
	ExecutedAt  *time.Time
	CompletedAt *time.Time
	Error       error
	Result      json.RawMessage
}

// IsExpired returns true if the command has expired.
func (sc *ScheduledCommand) IsExpired() bool {
	return time.Now().After(sc.ExpiresAt)
}

// ShouldExecute returns true if the command should be executed now.
func (sc *ScheduledCommand) ShouldExecute() bool {
	return !sc.IsExpired() && !time.Now().Before(sc.ScheduledAt) && sc.ExecutedAt == nil
}

// CanRetry returns true if the command can be retried.
func (sc *ScheduledCommand) CanRetry() bool {
	return sc.Retries < sc.MaxRetries
}

// CommandStatus is the externally visible state of a scheduled command.
type CommandStatus struct {
	ID          string           `json:"id"`
	Action      string           `json:"action"`
	Destination domain.StationID `json:"destination"`
	Priority    string           `json:"priority"`
	State       CommandState     `json:"state"`
	Retries     int              `json:"retries"`
	MaxRetries  int              `json:"maxRetries"`
	CreatedAt   time.Time        `json:"createdAt"`
	ScheduledAt time.Time        `json:"scheduledAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Error       string           `json:"error,omitempty"`
	Result      json.RawMessage  `json:"result,omitempty"`
}

// CommandQueue manages a priority queue of scheduled commands.
type CommandQueue struct {
	commands map[CommandPriority][]*ScheduledCommand
	capacity int
	mutex    sync.RWMutex
	logger   zerolog.Logger
}

// NewCommandQueue creates a new command queue. A capacity of zero or less is unbounded.
func NewCommandQueue(capacity int, logger zerolog.Logger) *CommandQueue {
	return &CommandQueue{
		commands: make(map[CommandPriority][]*ScheduledCommand),
		capacity: capacity,
		logger:   logger.With().Str("component", "command_queue").Logger(),
	}
}

// Enqueue adds a command to the queue.
func (cq *CommandQueue) Enqueue(cmd *ScheduledCommand) error {
	cq.mutex.Lock()
	defer cq.mutex.Unlock()

	if cq.capacity > 0 && cq.length() >= cq.capacity {
		return ErrQueueFull
	}

	cq.commands[cmd.Priority] = append(cq.commands[cmd.Priority], cmd)
	cq.logger.Debug().
		Str("command_id", cmd.ID).
		Str("action", cmd.Action).
		Str("priority", cmd.Priority.String()).
		Msg("Command enqueued")
	return nil
}

// Dequeue removes and returns the highest priority command that's ready to execute.
func (cq *CommandQueue) Dequeue() *ScheduledCommand {
	cq.mutex.Lock()
	defer cq.mutex.Unlock()

	priorities := []CommandPriority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}

	for _, priority := range priorities {
		commands := cq.commands[priority]
		for i, cmd := range commands {
			if cmd.ShouldExecute() {
				cq.commands[priority] = append(commands[:i], commands[i+1:]...)
				cq.logger.Debug().
					Str("command_id", cmd.ID).
					Str("action", cmd.Action).
					Msg("Command dequeued")
				return cmd
			}
		}
	}

	return nil
}

// CleanupExpired removes expired commands from the queue and returns them.
func (cq *CommandQueue) CleanupExpired() []*ScheduledCommand {
	cq.mutex.Lock()
	defer cq.mutex.Unlock()

	var expired []*ScheduledCommand
	for priority := range cq.commands {
		var active []*ScheduledCommand
		for _, cmd := range cq.commands[priority] {
			if !cmd.IsExpired() {
				active = append(active, cmd)
			} else {
				expired = append(expired, cmd)
				cq.logger.Debug().
					Str("command_id", cmd.ID).
					Str("action", cmd.Action).
					Msg("Expired command removed")
			}
		}
		cq.commands[priority] = active
	}

	if len(expired) > 0 {
		cq.logger.Info().Int("count", len(expired)).Msg("Cleaned up expired commands")
	}

	return expired
}

// GetQueueLength returns the total number of commands in the queue.
func (cq *CommandQueue) GetQueueLength() int {
	cq.mutex.RLock()
	defer cq.mutex.RUnlock()
	return cq.length()
}

// GetQueueLengthByPriority returns the number of commands for each priority.
func (cq *CommandQueue) GetQueueLengthByPriority() map[string]int {
	cq.mutex.RLock()
	defer cq.mutex.RUnlock()

	result := make(map[string]int)
	for priority, commands := range cq.commands {
		result[priority.String()] = len(commands)
	}
	return result
}

func (cq *CommandQueue) length() int {
	total := 0
	for _, commands := range cq.commands {
		total += len(commands)
	}
	return total
}

// Executor runs one command and returns the encoded reply.
type Executor interface {
	Execute(ctx context.Context, action string, dest domain.StationID, payload json.RawMessage) (json.RawMessage, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, action string, dest domain.StationID, payload json.RawMessage) (json.RawMessage, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, action string, dest domain.StationID, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, action, dest, payload)
}

// CatalogExecutor sends commands through the command catalog of a node.
type CatalogExecutor struct {
	catalog *command.Catalog
	node    *command.Node
}

// NewCatalogExecutor creates an executor for node.
func NewCatalogExecutor(catalog *command.Catalog, node *command.Node) *CatalogExecutor {
	return &CatalogExecutor{catalog: catalog, node: node}
}

// Execute invokes action on dest.
func (e *CatalogExecutor) Execute(ctx context.Context, action string, dest domain.StationID, payload json.RawMessage) (json.RawMessage, error) {
	return e.catalog.Invoke(ctx, e.node, action, dest, payload)
}

// Has reports whether the catalog knows action.
func (e *CatalogExecutor) Has(action string) bool {
	return e.catalog.Has(action)
}

// SchedulerConfig holds configuration for the command scheduler.
type SchedulerConfig struct {
	TickInterval    time.Duration
	MaxConcurrent   int
	CommandTTL      time.Duration
	DefaultRetries  int
	RetryDelay      time.Duration
	QueueSize       int
	CleanupInterval time.Duration
}

// DefaultSchedulerConfig returns a default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		TickInterval:    time.Second,
		MaxConcurrent:   4,
		CommandTTL:      10 * time.Minute,
		DefaultRetries:  3,
		RetryDelay:      5 * time.Second,
		QueueSize:       1000,
		CleanupInterval: time.Minute,
	}
}

// ConfigFrom derives the scheduler configuration from the application configuration.
func ConfigFrom(cfg *config.Config) *SchedulerConfig {
	sc := DefaultSchedulerConfig()
	if cfg.Scheduler.TickInterval > 0 {
		sc.TickInterval = cfg.Scheduler.TickInterval
	}
	if cfg.Scheduler.MaxConcurrent > 0 {
		sc.MaxConcurrent = cfg.Scheduler.MaxConcurrent
	}
	if cfg.Scheduler.CommandTTL > 0 {
		sc.CommandTTL = cfg.Scheduler.CommandTTL
	}
	if cfg.Scheduler.MaxRetries >= 0 {
		sc.DefaultRetries = cfg.Scheduler.MaxRetries
	}
	if cfg.Scheduler.RetryDelay > 0 {
		sc.RetryDelay = cfg.Scheduler.RetryDelay
	}
	if cfg.Scheduler.QueueSize > 0 {
		sc.QueueSize = cfg.Scheduler.QueueSize
	}
	return sc
}

// CommandScheduler manages the execution of scheduled commands.
type CommandScheduler struct {
	queue    *CommandQueue
	executor Executor
	workers  *semaphore.Weighted
	logger   zerolog.Logger
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	mutex    sync.RWMutex

	statusMu sync.RWMutex
	status   map[string]*CommandStatus

	tickInterval    time.Duration
	commandTTL      time.Duration
	defaultRetries  int
	retryDelay      time.Duration
	cleanupInterval time.Duration

	// Metrics
	commandsExecuted int64
	commandsFailed   int64
	commandsRetried  int64
	commandsExpired  int64
	activeWorkers    int64
}

// NewCommandScheduler creates a new command scheduler.
func NewCommandScheduler(executor Executor, cfg *SchedulerConfig, logger zerolog.Logger) *CommandScheduler {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = time.Minute
	}

	return &CommandScheduler{
		queue:           NewCommandQueue(cfg.QueueSize, logger),
		executor:        executor,
		workers:         semaphore.NewWeighted(int64(maxConcurrent)),
		logger:          logger.With().Str("component", "command_scheduler").Logger(),
		status:          make(map[string]*CommandStatus),
		tickInterval:    cfg.TickInterval,
		commandTTL:      cfg.CommandTTL,
		defaultRetries:  cfg.DefaultRetries,
		retryDelay:      cfg.RetryDelay,
		cleanupInterval: cleanup,
	}
}

// Start begins the command scheduler.
func (cs *CommandScheduler) Start(ctx context.Context) error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if cs.running {
		return fmt.Errorf("scheduler is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cs.cancel = cancel
	cs.stopChan = make(chan struct{})
	cs.running = true

	cs.wg.Add(2)
	go cs.executionLoop(runCtx)
	go cs.maintenanceLoop(runCtx)

	cs.logger.Info().
		Dur("tick_interval", cs.tickInterval).
		Msg("Command scheduler started")

	return nil
}

// Stop shuts down the command scheduler and waits for running commands.
func (cs *CommandScheduler) Stop() error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if !cs.running {
		return ErrNotRunning
	}

	close(cs.stopChan)
	cs.cancel()
	cs.wg.Wait()
	cs.running = false

	cs.logger.Info().Msg("Command scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler loops are active.
func (cs *CommandScheduler) IsRunning() bool {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return cs.running
}

// ScheduleCommand adds a command to the execution queue and returns its id.
func (cs *CommandScheduler) ScheduleCommand(cmd *ScheduledCommand) (string, error) {
	if cmd.Action == "" || cmd.Destination == "" {
		return "", fmt.Errorf("%w: action and destination are required", command.ErrInvalidRequest)
	}
	if known, ok := cs.executor.(interface{ Has(string) bool }); ok && !known.Has(cmd.Action) {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Action)
	}

	now := time.Now()
	if cmd.ID == "" {
		cmd.ID = generateCommandID()
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = now
	}
	if cmd.ScheduledAt.IsZero() {
		cmd.ScheduledAt = now
	}
	if cmd.ExpiresAt.IsZero() {
		cmd.ExpiresAt = cmd.ScheduledAt.Add(cs.commandTTL)
	}
	switch {
	case cmd.MaxRetries == 0:
		cmd.MaxRetries = cs.defaultRetries
	case cmd.MaxRetries < 0:
		cmd.MaxRetries = 0
	}

	if err := cs.queue.Enqueue(cmd); err != nil {
		return "", err
	}
	cs.record(cmd, StatePending)
	return cmd.ID, nil
}

// Schedule queues action for dest to run now.
func (cs *CommandScheduler) Schedule(action string, dest domain.StationID, payload json.RawMessage, priority CommandPriority) (string, error) {
	return cs.ScheduleCommand(&ScheduledCommand{
		Action:      action,
		Destination: dest,
		Payload:     payload,
		Priority:    priority,
	})
}

// Status returns the state of a scheduled command.
func (cs *CommandScheduler) Status(id string) (CommandStatus, bool) {
	cs.statusMu.RLock()
	defer cs.statusMu.RUnlock()

	st, ok := cs.status[id]
	if !ok {
		return CommandStatus{}, false
	}
	return *st, true
}

// QueueLength returns the number of commands waiting for execution.
func (cs *CommandScheduler) QueueLength() int {
	return cs.queue.GetQueueLength()
}

// GetMetrics returns current scheduler metrics.
func (cs *CommandScheduler) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"is_running":        cs.IsRunning(),
		"queue_length":      cs.queue.GetQueueLength(),
		"queue_by_priority": cs.queue.GetQueueLengthByPriority(),
		"commands_executed": atomic.LoadInt64(&cs.commandsExecuted),
		"commands_failed":   atomic.LoadInt64(&cs.commandsFailed),
		"commands_retried":  atomic.LoadInt64(&cs.commandsRetried),
		"commands_expired":  atomic.LoadInt64(&cs.commandsExpired),
		"active_workers":    atomic.LoadInt64(&cs.activeWorkers),
	}
}

// executionLoop handles command execution.
func (cs *CommandScheduler) executionLoop(ctx context.Context) {
	defer cs.wg.Done()

	ticker := time.NewTicker(cs.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cs.stopChan:
			return
		case <-ticker.C:
			cs.processCommands(ctx)
		}
	}
}

// maintenanceLoop expires stale commands and forgets old results.
func (cs *CommandScheduler) maintenanceLoop(ctx context.Context) {
	defer cs.wg.Done()

	cleanupTicker := time.NewTicker(cs.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cs.stopChan:
			return
		case <-cleanupTicker.C:
			cs.cleanup()
		}
	}
}

func (cs *CommandScheduler) cleanup() {
	for _, cmd := range cs.queue.CleanupExpired() {
		atomic.AddInt64(&cs.commandsExpired, 1)
		cs.record(cmd, StateExpired)
	}

	cutoff := time.Now().Add(-cs.commandTTL)
	cs.statusMu.Lock()
	defer cs.statusMu.Unlock()
	for id, st := range cs.status {
		if st.CompletedAt != nil && st.CompletedAt.Before(cutoff) {
			delete(cs.status, id)
		}
	}
}

// processCommands starts as many ready commands as there are free workers.
func (cs *CommandScheduler) processCommands(ctx context.Context) {
	for {
		if !cs.workers.TryAcquire(1) {
			return
		}
		cmd := cs.queue.Dequeue()
		if cmd == nil {
			cs.workers.Release(1)
			return
		}

		cs.wg.Add(1)
		go func() {
			defer cs.wg.Done()
			defer cs.workers.Release(1)
			cs.executeCommand(ctx, cmd)
		}()
	}
}

// executeCommand executes a single command.
func (cs *CommandScheduler) executeCommand(ctx context.Context, cmd *ScheduledCommand) {
	atomic.AddInt64(&cs.activeWorkers, 1)
	defer atomic.AddInt64(&cs.activeWorkers, -1)

	now := time.Now()
	cmd.ExecutedAt = &now
	cs.record(cmd, StateRunning)

	cs.logger.Debug().
		Str("command_id", cmd.ID).
		Str("action", cmd.Action).
		Str("destination", string(cmd.Destination)).
		Msg("Executing command")

	result, err := cs.executor.Execute(ctx, cmd.Action, cmd.Destination, cmd.Payload)
	if err != nil {
		cmd.Error = err
		if cmd.CanRetry() && retryable(err) && ctx.Err() == nil {
			cs.retryCommand(cmd)
		} else {
			cs.recordCommandFailure(cmd)
		}
		return
	}

	completed := time.Now()
	cmd.CompletedAt = &completed
	cmd.Result = result
	cmd.Error = nil
	atomic.AddInt64(&cs.commandsExecuted, 1)
	cs.record(cmd, StateCompleted)

	cs.logger.Debug().
		Str("command_id", cmd.ID).
		Str("action", cmd.Action).
		Dur("duration", completed.Sub(*cmd.ExecutedAt)).
		Msg("Command completed successfully")
}

// retryCommand reschedules a failed command with a linearly growing delay.
func (cs *CommandScheduler) retryCommand(cmd *ScheduledCommand) {
	cmd.Retries++
	cmd.ExecutedAt = nil
	cmd.ScheduledAt = time.Now().Add(time.Duration(cmd.Retries) * cs.retryDelay)

	if err := cs.queue.Enqueue(cmd); err != nil {
		cmd.Error = fmt.Errorf("retry not queued: %w", err)
		cs.recordCommandFailure(cmd)
		return
	}
	atomic.AddInt64(&cs.commandsRetried, 1)
	cs.record(cmd, StatePending)

	cs.logger.Warn().
		Str("command_id", cmd.ID).
		Str("action", cmd.Action).
		Int("retry", cmd.Retries).
		Int("max_retries", cmd.MaxRetries).
		Err(cmd.Error).
		Msg("Retrying command")
}

// recordCommandFailure records a failed command.
func (cs *CommandScheduler) recordCommandFailure(cmd *ScheduledCommand) {
	atomic.AddInt64(&cs.commandsFailed, 1)
	completed := time.Now()
	cmd.CompletedAt = &completed
	cs.record(cmd, StateFailed)

	cs.logger.Error().
		Str("command_id", cmd.ID).
		Str("action", cmd.Action).
		Str("destination", string(cmd.Destination)).
		Int("retries", cmd.Retries).
		Err(cmd.Error).
		Msg("Command failed")
}

func (cs *CommandScheduler) record(cmd *ScheduledCommand, state CommandState) {
	st := &CommandStatus{
		ID:          cmd.ID,
		Action:      cmd.Action,
		Destination: cmd.Destination,
		Priority:    cmd.Priority.String(),
		State:       state,
		Retries:     cmd.Retries,
		MaxRetries:  cmd.MaxRetries,
		CreatedAt:   cmd.CreatedAt,
		ScheduledAt: cmd.ScheduledAt,
		Result:      cmd.Result,
	}
	if cmd.Error != nil {
		st.Error = cmd.Error.Error()
	}
	if cmd.CompletedAt != nil {
		completed := *cmd.CompletedAt
		st.CompletedAt = &completed
	}
	if state == StateExpired {
		now := time.Now()
		st.CompletedAt = &now
	}

	cs.statusMu.Lock()
	cs.status[cmd.ID] = st
	cs.statusMu.Unlock()
}

// retryable reports whether err may go away on a later attempt.
func retryable(err error) bool {
	return !errors.Is(err, command.ErrInvalidRequest) &&
		!errors.Is(err, command.ErrUnknownAction) &&
		!errors.Is(err, command.ErrNoSigner)
}

// generateCommandID generates a unique command ID.
func generateCommandID() string {
	counter := atomic.AddUint64(&commandIDCounter, 1)
	return fmt.Sprintf("cmd_%d_%d", time.Now().UnixNano(), counter)
}

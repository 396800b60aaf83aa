package core

import (
	"errors"
	"sync"
)

// CommandHandler handles a command with raw frame data. The handler decodes
// its own arguments from the data pointer.
type CommandHandler func(data *[]byte) error

// Command is one entry in the wire dictionary: a host-callable command when
// Handler is set, a firmware-originated response when it is nil.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument format for the dictionary (e.g., "oid=%c red=%c")
	Handler CommandHandler
}

// CommandRegistry holds all registered commands.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
	nextID   uint16
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand registers a command handler in the global registry.
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse registers a response message (firmware to host).
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a command to the registry. Re-registering a name returns
// the existing ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id

	return id
}

// GetCommand retrieves a command by ID.
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name.
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the appropriate command handler.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return errors.New("unknown command ID: " + itoa(int(cmdID)))
	}
	return cmd.Handler(data)
}

// GetCommandsAndResponses returns the "name format" to ID maps used by the
// dictionary. Commands have handlers, responses have nil handlers.
func (r *CommandRegistry) GetCommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)

	for i := uint16(0); i < r.nextID; i++ {
		cmd, ok := r.commands[i]
		if !ok {
			continue
		}
		formatStr := cmd.Name
		if cmd.Format != "" {
			formatStr = cmd.Name + " " + cmd.Format
		}
		if cmd.Handler != nil {
			commands[formatStr] = int(cmd.ID)
		} else {
			responses[formatStr] = int(cmd.ID)
		}
	}

	return commands, responses
}

// DispatchCommand dispatches on the global registry.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

// GetGlobalRegistry returns the global command registry.
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}

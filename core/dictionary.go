package core

import (
	"sort"
	"sync"
)

// Constant represents a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value interface{}
}

// Dictionary manages the data dictionary sent to the host
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cachedDict    []byte
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a new dictionary
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		commandReg:    cmdReg,
		version:       "rgbind-0.1.0",
		buildVersions: "go",
	}
}

// RegisterConstant registers a constant in the dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// AddConstant adds a constant to the dictionary
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{
		Name:  name,
		Value: value,
	}
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cachedDict = nil
}

// SetBuildVersions sets the build versions string
func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cachedDict = nil
}

// BuildDictionary builds and caches the dictionary (call after all commands
// are registered)
func (d *Dictionary) BuildDictionary() {
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()

	jsonData := d.buildJSONLocked(commands, responses)
	d.cachedDict = make([]byte, len(jsonData))
	copy(d.cachedDict, jsonData)
}

// Generate generates the complete dictionary in JSON format
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedDict
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}

	commands, responses := d.commandReg.GetCommandsAndResponses()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buildJSONLocked(commands, responses)
}

// buildJSONLocked builds the JSON dictionary (caller must hold lock)
func (d *Dictionary) buildJSONLocked(commands map[string]int, responses map[string]int) []byte {
	result := make([]byte, 0, 1024)

	result = append(result, []byte(`{"version":"`)...)
	result = append(result, []byte(d.version)...)
	result = append(result, []byte(`","build_versions":"`)...)
	result = append(result, []byte(d.buildVersions)...)
	result = append(result, []byte(`","config":{`)...)

	constNames := make([]string, 0, len(d.constants))
	for name := range d.constants {
		constNames = append(constNames, name)
	}
	sort.Strings(constNames)

	first := true
	for _, name := range constNames {
		c := d.constants[name]
		if !first {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, []byte(name)...)
		result = append(result, []byte(`":"`)...)
		result = append(result, []byte(valueToString(c.Value))...)
		result = append(result, '"')
		first = false
	}
	result = append(result, []byte(`},"commands":{`)...)
	result = appendIDMap(result, commands)
	result = append(result, []byte(`},"responses":{`)...)
	result = appendIDMap(result, responses)
	result = append(result, '}', '}')

	return result
}

// appendIDMap appends the entries of a "name format" to ID map as JSON
// key-value pairs, sorted by ID so generation is deterministic.
func appendIDMap(result []byte, entries map[string]int) []byte {
	formats := make([]string, 0, len(entries))
	for format := range entries {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool {
		return entries[formats[i]] < entries[formats[j]]
	})

	first := true
	for _, format := range formats {
		if !first {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, []byte(format)...)
		result = append(result, []byte(`":`)...)
		result = append(result, []byte(itoa(entries[format]))...)
		first = false
	}
	return result
}

// GetChunk returns a chunk of the dictionary starting at offset
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()

	if len(data) == 0 || offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

package agent

import (
	"sync"

	"github.com/rescrv/claudius/wire"
)

// Catalog is a thread-safe collection of Tools keyed by name, grounded
// on the teacher's tool.Catalog (same RWMutex-guarded map, same
// copy-out-on-read discipline so callers can't mutate internal state
// through a returned slice).
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewCatalog(tools ...Tool) *Catalog {
	c := &Catalog{tools: make(map[string]Tool)}
	c.Add(tools...)
	return c
}

func (c *Catalog) Add(tools ...Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tools {
		c.tools[t.Name()] = t
	}
}

func (c *Catalog) Get(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

func (c *Catalog) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tools, name)
}

// Definitions returns the ToolDefinition for every registered tool, in an
// unspecified but stable-within-a-call order, for embedding in a
// MessageCreateParams.Tools field.
func (c *Catalog) Definitions() []wire.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]wire.ToolDefinition, 0, len(c.tools))
	for _, t := range c.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

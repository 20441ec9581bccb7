package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/iudanet/gophcache/internal/client/engine"
	"github.com/iudanet/gophcache/internal/models"
)

// cut splits off the first word of s.
func cut(s string) (head, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

// popFlag removes a boolean flag given as the first or the last word of args.
func popFlag(args, flag string) (string, bool) {
	args = strings.TrimSpace(args)
	switch {
	case args == flag:
		return "", true
	case strings.HasPrefix(args, flag+" "):
		return strings.TrimSpace(strings.TrimPrefix(args, flag)), true
	case strings.HasSuffix(args, " "+flag):
		return strings.TrimSpace(strings.TrimSuffix(args, flag)), true
	}
	return args, false
}

func parseEntity(body string) (models.Entity, error) {
	var entity models.Entity
	if err := json.Unmarshal([]byte(body), &entity); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if entity == nil {
		return nil, fmt.Errorf("invalid JSON object: null")
	}
	return entity, nil
}

// payload decodes body as one object or an array of objects.
func payload(name, body string) (engine.Payload, error) {
	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return engine.Payload{}, fmt.Errorf("invalid JSON: %w", err)
	}

	p := engine.Payload{Type: name}
	if entity, ok := models.AsEntity(data); ok {
		p.Data = entity
		p.ID = entity.ID()
		return p, nil
	}
	if items, ok := models.AsList(data); ok {
		p.Items = items
		return p, nil
	}
	return engine.Payload{}, fmt.Errorf("expected a JSON object or an array of objects, got %T", data)
}

// parseIDList accepts an array of ids, objects, or both.
func parseIDList(body string) ([]models.Entity, error) {
	var raw []any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}

	items := make([]models.Entity, 0, len(raw))
	for _, v := range raw {
		if entity, ok := models.AsEntity(v); ok {
			items = append(items, entity)
			continue
		}
		id := models.FormatID(v)
		if id == "" {
			return nil, fmt.Errorf("invalid id %v", v)
		}
		items = append(items, models.Entity{models.IDField: v})
	}
	return items, nil
}

func (c *Cli) model(name string) (*models.Model, error) {
	if name == "" {
		return nil, fmt.Errorf("missing model")
	}
	model, ok := c.engine.Store().Registry().Model(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownModel, name)
	}
	return model, nil
}

// modelNames returns the names listed in args, or every model when args is empty.
func (c *Cli) modelNames(args string) []string {
	if names := strings.Fields(args); len(names) > 0 {
		return names
	}
	var names []string
	for _, model := range c.engine.Store().Registry().Models() {
		names = append(names, model.Name)
	}
	return names
}

func (c *Cli) printJSON(v any) error {
	enc := json.NewEncoder(c.io)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *Cli) printEntity(entity models.Entity) error {
	if c.format == FormatJSON {
		return c.printJSON(entity)
	}

	keys := make([]string, 0, len(entity))
	for k := range entity {
		if k != models.IDField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	c.io.Printf("  %-12s %s\n", models.IDField+":", entity.ID())
	for _, k := range keys {
		c.io.Printf("  %-12s %s\n", k+":", compact(entity[k]))
	}
	return nil
}

func (c *Cli) printEntities(name string, items []models.Entity) error {
	if c.format == FormatJSON {
		if items == nil {
			items = []models.Entity{}
		}
		return c.printJSON(items)
	}

	if len(items) == 0 {
		c.io.Printf("No %s entities found.\n", name)
		return nil
	}
	c.io.Printf("Found %d %s entities:\n", len(items), name)
	for i, entity := range items {
		c.io.Printf("%d. %s\n", i+1, compact(entity))
	}
	return nil
}

// compact renders v on one line.
func compact(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/iudanet/gophcache/internal/client/api"
	"github.com/iudanet/gophcache/internal/client/engine"
	"github.com/iudanet/gophcache/internal/client/query"
	"github.com/iudanet/gophcache/internal/models"
)

func (c *Cli) runGet(ctx context.Context, args string) error {
	args, force := popFlag(args, "--force")
	name, id := cut(args)
	if name == "" {
		return fmt.Errorf("missing model. Usage: get <model> [id] [--force]")
	}

	p := engine.Payload{Type: name, ID: id, ForceFetch: force}
	if id == "" {
		p.All = true
	}

	res, err := c.engine.Get(ctx, p)
	if err != nil {
		if id != "" && api.IsNotFound(err) {
			return fmt.Errorf("%s %s not found on server: %w", name, id, err)
		}
		return err
	}

	if res.Entity != nil {
		if res.Cached && c.format == FormatText {
			c.io.Printf("%s %s (cached)\n", name, id)
		}
		return c.printEntity(res.Entity)
	}
	return c.printEntities(name, res.Items)
}

func (c *Cli) runList(args string) error {
	name, expression := cut(args)
	model, err := c.model(name)
	if err != nil {
		return err
	}

	var filter *query.Filter
	if expression != "" {
		if filter, err = query.Compile(expression); err != nil {
			return err
		}
	}

	slice, _ := c.engine.Store().Get(model.GetterName())
	items, err := filter.Select(slice.Items)
	if err != nil {
		return err
	}
	return c.printEntities(model.Name, items)
}

func (c *Cli) runAdd(ctx context.Context, args string) error {
	args, withClear := popFlag(args, "--clear")
	name, body := cut(args)
	if name == "" || body == "" {
		return fmt.Errorf("missing data. Usage: add <model> <json> [--clear]")
	}

	p, err := payload(name, body)
	if err != nil {
		return err
	}
	p.Clear = withClear

	res, err := c.engine.Add(ctx, p)
	if err != nil {
		return err
	}
	n := len(res.Items)
	if res.Entity != nil {
		n = 1
	}
	c.io.Printf("Added %d %s entities.\n", n, name)
	return nil
}

func (c *Cli) runSave(ctx context.Context, args string, save func(context.Context, engine.Payload) (*engine.Result, error)) error {
	name, body := cut(args)
	if name == "" || body == "" {
		return fmt.Errorf("missing data. Usage: post|patch <model> <json>")
	}

	p, err := payload(name, body)
	if err != nil {
		return err
	}

	res, err := save(ctx, p)
	if err != nil {
		return err
	}
	if res.Entity != nil {
		return c.printEntity(res.Entity)
	}
	return c.printEntities(name, res.Items)
}

func (c *Cli) runDelete(ctx context.Context, args string) error {
	name, target := cut(args)
	if name == "" || target == "" {
		return fmt.Errorf("missing id. Usage: delete <model> <id|json array>")
	}

	p := engine.Payload{Type: name, ID: target}
	if strings.HasPrefix(target, "[") {
		items, err := parseIDList(target)
		if err != nil {
			return err
		}
		p = engine.Payload{Type: name, Items: items}
	}

	if err := c.engine.Delete(ctx, p); err != nil {
		return err
	}
	c.io.Println("Deleted.")
	return nil
}

func (c *Cli) runEdit(args string) error {
	name, body := cut(args)
	entity, err := parseEntity(body)
	if err != nil {
		return err
	}
	id := entity.ID()
	if id == "" {
		return engine.ErrMissingID
	}

	m, err := c.engine.Store().Mutator(name)
	if err != nil {
		return err
	}
	if _, ok := m.Item(id); !ok {
		return fmt.Errorf("%s %s is not cached", name, id)
	}
	m.Edit(entity)

	c.io.Printf("Edited %s %s.\n", name, id)
	return nil
}

func (c *Cli) runQueue(ctx context.Context, args string) error {
	name, rest := cut(args)
	verb, body := cut(rest)
	action := models.Action(verb)
	if name == "" || !action.Valid() {
		return fmt.Errorf("usage: queue <model> <post|patch|delete> <json|id>")
	}

	var data models.Entity
	switch {
	case strings.HasPrefix(body, "{"):
		entity, err := parseEntity(body)
		if err != nil {
			return err
		}
		data = entity
	case body != "":
		data = models.Entity{models.IDField: body}
	case action != models.ActionPost:
		return engine.ErrMissingID
	}

	// очередь patch не меняет Items: сначала оптимистично правим кэш
	if action == models.ActionPatch && len(data) > 1 {
		m, err := c.engine.Store().Mutator(name)
		if err != nil {
			return err
		}
		if _, ok := m.Item(data.ID()); ok {
			m.Edit(data)
		}
	}

	queued, err := c.engine.QueueAction(ctx, models.QueuedAction{
		Type:   name,
		Action: action,
		Data:   data,
	})
	if err != nil {
		return err
	}
	if queued.Seq == 0 {
		return fmt.Errorf("%s %s was not queued", action, name)
	}

	c.io.Printf("Queued %s %s %s (#%d).\n", action, name, queued.ID(), queued.Seq)
	return nil
}

func (c *Cli) runUnqueue(ctx context.Context, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return fmt.Errorf("usage: unqueue <model> <action> <id>")
	}

	removed, err := c.engine.CancelAction(ctx, models.QueuedAction{
		Type:   fields[0],
		Action: models.Action(fields[1]),
		Data:   models.Entity{models.IDField: fields[2]},
	})
	if err != nil {
		return err
	}
	if !removed {
		c.io.Println("Nothing to unqueue.")
		return nil
	}
	c.io.Printf("Unqueued %s %s %s.\n", fields[1], fields[0], fields[2])
	return nil
}

func (c *Cli) runFlush(ctx context.Context, args string) error {
	args, sequential := popFlag(args, "--sequential")
	names := c.modelNames(args)

	flush := c.engine.ProcessActionQueue
	if sequential {
		flush = c.engine.SequentialProcessActionQueue
	}
	if err := flush(ctx, names...); err != nil {
		return err
	}

	c.io.Printf("Flushed %s.\n", strings.Join(names, ", "))
	return nil
}

func (c *Cli) runCancel(ctx context.Context, args string) error {
	names := c.modelNames(args)
	if err := c.engine.CancelActionQueue(ctx, names...); err != nil {
		return err
	}
	c.io.Printf("Cancelled queued actions of %s.\n", strings.Join(names, ", "))
	return nil
}

func (c *Cli) runShow(args string) error {
	name, id := cut(args)
	if name == "" {
		return c.printSummary()
	}

	model, err := c.model(name)
	if err != nil {
		return err
	}

	if id != "" {
		entity, ok := c.engine.Store().Resolve(model.Name, id)
		if !ok {
			return fmt.Errorf("%s %s is not cached", model.Name, id)
		}
		return c.printEntity(entity)
	}

	slice, _ := c.engine.Store().Get(model.GetterName())
	if c.format == FormatJSON {
		return c.printJSON(slice)
	}

	c.io.Printf("=== %s ===\n", model.Plural)
	c.io.Printf("Items:     %d\n", len(slice.Items))
	c.io.Printf("Origins:   %d\n", len(slice.OriginItems))
	c.io.Printf("Revision:  %d\n", slice.Revision)
	if !slice.LastLoad.IsZero() {
		c.io.Printf("Last load: %s\n", slice.LastLoad.Format("2006-01-02 15:04:05"))
	}

	entries := slice.ActionQueue.Entries()
	if len(entries) == 0 {
		c.io.Println("Queue:     empty")
		return nil
	}
	c.io.Printf("Queue:     %d\n", len(entries))
	for _, a := range entries {
		c.io.Printf("  #%d %-6s %s %s\n", a.Seq, a.Action, a.ID(), compact(a.Data))
	}
	return nil
}

func (c *Cli) printSummary() error {
	type row struct {
		Model  string `json:"model"`
		Items  int    `json:"items"`
		Queued int    `json:"queued"`
	}

	var rows []row
	for _, model := range c.engine.Store().Registry().Models() {
		slice, _ := c.engine.Store().Get(model.GetterName())
		rows = append(rows, row{
			Model:  model.Name,
			Items:  len(slice.Items),
			Queued: slice.ActionQueue.Len(),
		})
	}

	if c.format == FormatJSON {
		return c.printJSON(rows)
	}
	c.io.Printf("%-20s %8s %8s\n", "MODEL", "ITEMS", "QUEUED")
	for _, r := range rows {
		c.io.Printf("%-20s %8d %8d\n", r.Model, r.Items, r.Queued)
	}
	return nil
}

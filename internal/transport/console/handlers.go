package console

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
	"idlecraft/internal/production"
	"idlecraft/internal/task/action"
)

func (c *Console) builtins() []Command {
	cmds := make([]Command, 0, len(catalog.Kinds)+12)
	for _, kind := range catalog.Kinds {
		kind := kind
		cmds = append(cmds, Command{
			Route: string(kind),
			Usage: string(kind) + " <recipe>",
			Help:  "start a " + string(kind) + " action",
			Run: func(ctx context.Context, args []string) (string, error) {
				return c.startAction(kind, args)
			},
		})
	}
	return append(cmds,
		Command{Route: "cancel", Usage: "cancel", Help: "cancel the foreground action", Run: c.cancel},
		Command{Route: "afk", Usage: "afk <skill> <resource>", Help: "start an AFK gathering run", Run: c.afk},
		Command{Route: "afk stop", Usage: "afk stop", Help: "stop the AFK run", Run: c.afkStop},
		Command{Route: "equip tome", Usage: "equip tome <id> [qty]", Help: "equip tomes from inventory", Run: c.equipTome},
		Command{Route: "equip tool", Usage: "equip tool <id>", Help: "equip an owned tool", Run: c.equipTool},
		Command{Route: "unequip tome", Usage: "unequip tome", Help: "return equipped tomes to inventory", Run: c.unequipTome},
		Command{Route: "tome cancel", Usage: "tome cancel", Help: "stop the tome run (it restarts after a short grace)", Run: c.tomeCancel},
		Command{Route: "status", Usage: "status", Help: "show slots, runs and levels", Run: c.status},
		Command{Route: "inv", Usage: "inv", Help: "list inventory", Run: c.inventory},
		Command{Route: "recipes", Usage: "recipes [kind]", Help: "list recipes", Run: c.recipes},
		Command{Route: "save", Usage: "save", Help: "write the save slot now", Run: c.saveNow},
		Command{Route: "help", Usage: "help", Help: "this list", Run: c.help},
	)
}

func (c *Console) startAction(kind catalog.Kind, args []string) (string, error) {
	if len(args) != 1 {
		return "", ErrUsage
	}
	id := args[0]
	err := c.prod.TryStart(kind, id, func(res *action.Result) {
		if res == nil {
			c.println(fmt.Sprintf("%s %s aborted: materials gone", kind, id))
			return
		}
		c.println(describeResult(res))
	})
	if err != nil {
		return "", err
	}
	st := c.prod.Status()
	if st.Action == nil {
		return fmt.Sprintf("started %s %s", kind, id), nil
	}
	return fmt.Sprintf("started %s %s (job %d, %s)", kind, id, st.Action.JobID, st.Action.Duration.Round(time.Millisecond)), nil
}

func describeResult(res *action.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s done", res.Type, res.Key)
	if res.Outcome != action.OutcomeNormal && res.Outcome != "" {
		fmt.Fprintf(&b, " (%s)", res.Outcome)
	}
	for _, s := range res.Outputs {
		fmt.Fprintf(&b, " +%d %s", s.Qty, s.Item)
	}
	if res.XP > 0 {
		fmt.Fprintf(&b, " +%.1f %s xp", res.XP, res.Skill)
	}
	return b.String()
}

func (c *Console) cancel(ctx context.Context, args []string) (string, error) {
	if c.prod.Cancel() {
		return "cancelled", nil
	}
	return "nothing to cancel", nil
}

func (c *Console) afk(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "", ErrUsage
	}
	skill, ok := catalog.ParseSkill(args[0])
	if !ok {
		return "", fmt.Errorf("unknown skill %q", args[0])
	}
	if err := c.prod.StartAFK(skill, args[1]); err != nil {
		return "", err
	}
	return fmt.Sprintf("afk %s %s started", skill, args[1]), nil
}

func (c *Console) afkStop(ctx context.Context, args []string) (string, error) {
	if c.prod.StopAFK() {
		return "afk stopped", nil
	}
	return "no afk run", nil
}

func (c *Console) equipTome(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", ErrUsage
	}
	qty := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return "", fmt.Errorf("invalid quantity %q", args[1])
		}
		qty = n
	}
	if err := c.prod.EquipTome(args[0], qty); err != nil {
		return "", err
	}
	return fmt.Sprintf("equipped %d x %s", qty, args[0]), nil
}

func (c *Console) equipTool(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", ErrUsage
	}
	if err := c.prod.EquipTool(args[0]); err != nil {
		return "", err
	}
	return "equipped " + args[0], nil
}

func (c *Console) unequipTome(ctx context.Context, args []string) (string, error) {
	if err := c.prod.UnequipTome(); err != nil {
		return "", err
	}
	return "tome unequipped", nil
}

func (c *Console) tomeCancel(ctx context.Context, args []string) (string, error) {
	if c.prod.CancelTome() {
		return "tome run cancelled", nil
	}
	return "no tome run", nil
}

func (c *Console) status(ctx context.Context, args []string) (string, error) {
	return FormatStatus(c.prod.Status()), nil
}

// FormatStatus renders a plain multi-line status block.
func FormatStatus(st production.Status) string {
	var b strings.Builder
	if a := st.Action; a != nil {
		left := max(a.EndsAt.Sub(st.Now), 0).Round(100 * time.Millisecond)
		fmt.Fprintf(&b, "action:   %s %s job=%d %3.0f%% (%s left)\n", a.Type, a.Key, a.JobID, st.Progress*100, left)
	} else {
		b.WriteString("action:   idle\n")
	}
	writeRun(&b, "tome:", st.Tome, st.Now)
	if ts := st.TomeSlot; ts != nil {
		fmt.Fprintf(&b, "          equipped %s x%d\n", ts.Item, ts.Qty)
	}
	writeRun(&b, "afk:", st.AFK, st.Now)
	if w := st.AutoCook; w != nil {
		fmt.Fprintf(&b, "autocook: %s cooked=%d (%s left)\n", w.Locked, w.Cooked, max(w.Until.Sub(st.Now), 0).Round(100*time.Millisecond))
	}
	b.WriteString("levels:  ")
	for _, sk := range catalog.Skills {
		fmt.Fprintf(&b, " %s=%d", sk, st.Levels[sk])
	}
	return b.String()
}

func writeRun(b *strings.Builder, label string, r *game.AutoRun, now time.Time) {
	if r == nil {
		fmt.Fprintf(b, "%-9s -\n", label)
		return
	}
	fmt.Fprintf(b, "%-9s %s %s ticks=%d every %s (%s left)\n",
		label, r.Activity, r.SourceID, r.Ticks, r.Tick.Round(time.Millisecond), max(r.EndsAt.Sub(now), 0).Round(100*time.Millisecond))
}

func (c *Console) inventory(ctx context.Context, args []string) (string, error) {
	inv := c.prod.Inventory()
	if len(inv) == 0 {
		return "inventory empty", nil
	}
	ids := make([]string, 0, len(inv))
	for id, n := range inv {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("%6d  %s", inv[id], id))
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Console) recipes(ctx context.Context, args []string) (string, error) {
	kinds := catalog.Kinds
	if len(args) == 1 {
		k, ok := catalog.ParseKind(args[0])
		if !ok {
			return "", fmt.Errorf("unknown kind %q", args[0])
		}
		kinds = []catalog.Kind{k}
	}
	cat := c.prod.Catalog()
	var lines []string
	for _, k := range kinds {
		for _, id := range cat.RecipeIDs(k) {
			r, _ := cat.Recipe(k, id)
			tag := "  "
			if c.prod.CanStart(k, id) {
				tag = "* "
			}
			lines = append(lines, fmt.Sprintf("%s%-8s %-16s lvl %-3d %s", tag, k, id, r.Level, r.Base))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Console) saveNow(ctx context.Context, args []string) (string, error) {
	if c.save == nil {
		return "", fmt.Errorf("storage disabled")
	}
	if err := c.save(ctx); err != nil {
		return "", err
	}
	return "saved", nil
}

func (c *Console) help(ctx context.Context, args []string) (string, error) {
	var b strings.Builder
	for _, cmd := range c.root.commands() {
		fmt.Fprintf(&b, "  %-24s %s\n", cmd.Usage, cmd.Help)
	}
	return b.String(), nil
}

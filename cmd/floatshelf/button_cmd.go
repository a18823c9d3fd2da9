package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"floatshelf/internal/domain"
	"floatshelf/internal/usecase/shelf"
)

func runButton() error {
	if len(os.Args) < 3 {
		printButtonUsage()
		return nil
	}

	switch os.Args[2] {
	case "list":
		shelfName := ""
		if len(os.Args) >= 4 && !strings.HasPrefix(os.Args[3], "-") {
			shelfName = os.Args[3]
		}
		return runButtonList(shelfName)
	case "add":
		if len(os.Args) < 6 {
			return fmt.Errorf("usage: floatshelf button add <shelf> <label> <command> [--kind js|lua] [--icon NAME] [--tooltip TEXT]")
		}
		return runButtonAdd(os.Args[3], os.Args[4], os.Args[5], parseButtonFlags(os.Args[6:]))
	case "edit":
		if len(os.Args) < 5 {
			return fmt.Errorf("usage: floatshelf button edit <shelf> <button> [--label TEXT] [--command SRC] [--kind js|lua] [--icon NAME] [--tooltip TEXT]")
		}
		return runButtonEdit(os.Args[3], os.Args[4], parseButtonFlags(os.Args[5:]))
	case "move":
		if len(os.Args) < 6 {
			return fmt.Errorf("usage: floatshelf button move <shelf> <button> <left|right>")
		}
		return runButtonMove(os.Args[3], os.Args[4], os.Args[5])
	case "delete":
		if len(os.Args) < 5 {
			return fmt.Errorf("usage: floatshelf button delete <shelf> <button>")
		}
		return runButtonDelete(os.Args[3], os.Args[4])
	case "run":
		if len(os.Args) < 5 {
			return fmt.Errorf("usage: floatshelf button run <shelf> <button>")
		}
		return runButtonRun(os.Args[3], os.Args[4])
	default:
		return fmt.Errorf("unknown button subcommand: %s\n\nRun 'floatshelf button' for usage", os.Args[2])
	}
}

func printButtonUsage() {
	fmt.Println(`floatshelf button - Manage shelf buttons

USAGE:
    floatshelf button <COMMAND>

COMMANDS:
    list [shelf]                     List buttons (default shelf when omitted)
    add <shelf> <label> <command>    Add a button; --kind, --icon, --tooltip optional
    edit <shelf> <button> [flags]    Edit fields in place (--label, --command, ...)
    move <shelf> <button> <dir>      Swap a button left or right
    delete <shelf> <button>          Remove a button
    run <shelf> <button>             Execute a button's command

Buttons are addressed by id or by label when the label is unique.`)
}

// buttonFlags holds optional button fields from the command line. Nil means
// the flag was not passed, which edit treats as "leave unchanged".
type buttonFlags struct {
	Label   *string
	Command *string
	Icon    *string
	Tooltip *string
	Kind    *string
}

func (f buttonFlags) empty() bool {
	return f.Label == nil && f.Command == nil && f.Icon == nil && f.Tooltip == nil && f.Kind == nil
}

// parseButtonFlags extracts --label, --command, --icon, --tooltip, --kind
// from args. Unknown flags are ignored.
func parseButtonFlags(args []string) buttonFlags {
	var flags buttonFlags
	set := func(dst **string, v string) { *dst = &v }
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--label" && i+1 < len(args):
			set(&flags.Label, args[i+1])
			i++
		case strings.HasPrefix(args[i], "--label="):
			set(&flags.Label, strings.TrimPrefix(args[i], "--label="))
		case args[i] == "--command" && i+1 < len(args):
			set(&flags.Command, args[i+1])
			i++
		case strings.HasPrefix(args[i], "--command="):
			set(&flags.Command, strings.TrimPrefix(args[i], "--command="))
		case args[i] == "--icon" && i+1 < len(args):
			set(&flags.Icon, args[i+1])
			i++
		case strings.HasPrefix(args[i], "--icon="):
			set(&flags.Icon, strings.TrimPrefix(args[i], "--icon="))
		case args[i] == "--tooltip" && i+1 < len(args):
			set(&flags.Tooltip, args[i+1])
			i++
		case strings.HasPrefix(args[i], "--tooltip="):
			set(&flags.Tooltip, strings.TrimPrefix(args[i], "--tooltip="))
		case args[i] == "--kind" && i+1 < len(args):
			set(&flags.Kind, args[i+1])
			i++
		case strings.HasPrefix(args[i], "--kind="):
			set(&flags.Kind, strings.TrimPrefix(args[i], "--kind="))
		}
	}
	return flags
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func runButtonList(shelfName string) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	if shelfName == "" {
		shelfName = mgr.CurrentShelf()
	}
	buttons, err := mgr.Buttons(shelfName)
	if err != nil {
		return err
	}
	if len(buttons) == 0 {
		fmt.Printf("Shelf %q has no buttons.\n", shelfName)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tKIND\tICON\tCOMMAND")
	for _, b := range buttons {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Label, b.Kind, b.Icon, truncate(b.Command, 40))
	}
	return w.Flush()
}

func runButtonAdd(shelfName, label, command string, flags buttonFlags) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	spec := domain.ButtonSpec{
		Label:   label,
		Command: command,
		Icon:    strVal(flags.Icon),
		Tooltip: strVal(flags.Tooltip),
		Kind:    domain.ScriptKind(strVal(flags.Kind)),
	}
	added, err := mgr.AddButton(context.Background(), shelfName, spec)
	if err != nil {
		return err
	}
	fmt.Printf("Button %q added to %q (id %s).\n", added.Label, shelfName, added.ID)
	return nil
}

func runButtonEdit(shelfName, ref string, flags buttonFlags) error {
	if flags.empty() {
		return fmt.Errorf("nothing to edit: pass at least one of --label, --command, --icon, --tooltip, --kind")
	}

	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	id, err := resolveButtonID(mgr, shelfName, ref)
	if err != nil {
		return err
	}

	patch := shelf.Patch{
		Label:   flags.Label,
		Command: flags.Command,
		Icon:    flags.Icon,
		Tooltip: flags.Tooltip,
	}
	if flags.Kind != nil {
		k := domain.ScriptKind(*flags.Kind)
		patch.Kind = &k
	}

	edited, err := mgr.EditButton(context.Background(), shelfName, id, patch)
	if err != nil {
		return err
	}
	fmt.Printf("Button %q updated.\n", edited.Label)
	return nil
}

func runButtonMove(shelfName, ref, dir string) error {
	var moveDir domain.MoveDirection
	switch dir {
	case "left":
		moveDir = domain.MoveLeft
	case "right":
		moveDir = domain.MoveRight
	default:
		return fmt.Errorf("unknown direction %q (want left or right)", dir)
	}

	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	id, err := resolveButtonID(mgr, shelfName, ref)
	if err != nil {
		return err
	}

	moved, err := mgr.MoveButton(context.Background(), shelfName, id, moveDir)
	if err != nil {
		return err
	}
	if !moved {
		fmt.Println("Button is already at the edge.")
		return nil
	}
	fmt.Printf("Button moved %s.\n", dir)
	return nil
}

func runButtonDelete(shelfName, ref string) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	id, err := resolveButtonID(mgr, shelfName, ref)
	if err != nil {
		return err
	}

	if err := mgr.DeleteButton(context.Background(), shelfName, id); err != nil {
		return err
	}
	fmt.Printf("Button deleted from %q.\n", shelfName)
	return nil
}

func runButtonRun(shelfName, ref string) error {
	mgr, _, closer, err := openManager()
	if err != nil {
		return err
	}
	defer closer()

	id, err := resolveButtonID(mgr, shelfName, ref)
	if err != nil {
		return err
	}

	rec, err := mgr.RunButton(context.Background(), shelfName, id)
	if rec != nil && rec.Output != "" {
		fmt.Println(rec.Output)
	}
	return err
}

// resolveButtonID accepts a button id or a label. A label only resolves when
// exactly one button on the shelf carries it.
func resolveButtonID(mgr *shelf.Manager, shelfName, ref string) (string, error) {
	buttons, err := mgr.Buttons(shelfName)
	if err != nil {
		return "", err
	}

	var labelMatches []string
	for _, b := range buttons {
		if b.ID == ref {
			return b.ID, nil
		}
		if b.Label == ref {
			labelMatches = append(labelMatches, b.ID)
		}
	}

	switch len(labelMatches) {
	case 1:
		return labelMatches[0], nil
	case 0:
		return "", fmt.Errorf("no button %q on shelf %q", ref, shelfName)
	default:
		return "", fmt.Errorf("label %q is ambiguous on shelf %q, address the button by id", ref, shelfName)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

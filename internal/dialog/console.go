package dialog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sparklabs/sparkfs/internal/storage"
)

// Console is a line-oriented Prompter for terminal sessions. Directory
// picks are resolved against (and created under) the provider's root.
type Console struct {
	// In and Out default to stdin/stdout.
	In  io.Reader
	Out io.Writer

	// Provider resolves and creates picked directories.
	Provider storage.Provider
}

// NewConsole creates a console prompter over stdin/stdout.
func NewConsole(p storage.Provider) *Console {
	return &Console{Provider: p}
}

// Ensure Console implements Prompter.
var _ Prompter = (*Console)(nil)

// Confirm prints the question and reads a y/n answer. Non-interactive
// sessions decline without prompting.
func (c *Console) Confirm(ctx context.Context, message, okLabel, title string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !c.interactive() {
		return false, nil
	}

	if title != "" {
		fmt.Fprintf(c.out(), "%s\n", title)
	}
	fmt.Fprintf(c.out(), "%s [%s/cancel]: ", message, okLabel)

	line, err := c.readLine()
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "ok", strings.ToLower(okLabel):
		return true, nil
	}
	return false, nil
}

// PickDirectory prompts for a directory name under the provider root,
// creating it when it does not exist yet. An empty answer cancels.
func (c *Console) PickDirectory(ctx context.Context, suggestedName string) (storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.interactive() {
		return nil, nil
	}

	fmt.Fprintf(c.out(), "Directory name [%s]: ", suggestedName)
	line, err := c.readLine()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	name := strings.TrimSpace(line)
	if name == "" {
		name = suggestedName
	}
	if name == "" {
		return nil, nil
	}

	entry, ok, err := storage.Child(ctx, c.Provider, c.Provider.Root(), name)
	if err != nil {
		return nil, err
	}
	if ok {
		if !entry.IsDir() {
			return nil, nil
		}
		return entry, nil
	}
	return c.Provider.CreateDirectory(ctx, c.Provider.Root(), name, false)
}

func (c *Console) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

func (c *Console) in() io.Reader {
	if c.In != nil {
		return c.In
	}
	return os.Stdin
}

func (c *Console) readLine() (string, error) {
	r := bufio.NewReader(c.in())
	return r.ReadString('\n')
}

// interactive reports whether prompting makes sense. Custom readers are
// always considered interactive; os.Stdin requires a terminal.
func (c *Console) interactive() bool {
	if c.In != nil {
		return true
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

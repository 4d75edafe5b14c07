// Package console is a line-oriented command transport over stdin/stdout.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"idlecraft/internal/production"
	logx "idlecraft/pkg/logx"
)

// Command is one console route. Route is space separated ("equip tome").
type Command struct {
	Route string
	Usage string
	Help  string
	Run   func(ctx context.Context, args []string) (string, error)
}

var ErrUsage = errors.New("usage")

type Options struct {
	Production *production.Service
	// Save flushes the current state. Optional.
	Save func(ctx context.Context) error
	In   io.Reader
	Out  io.Writer
	Log  logx.Logger
}

type Console struct {
	prod *production.Service
	save func(ctx context.Context) error
	in   io.Reader
	log  logx.Logger
	root *node

	outMu sync.Mutex
	out   io.Writer
}

func New(opts Options) *Console {
	c := &Console{
		prod: opts.Production,
		save: opts.Save,
		in:   opts.In,
		out:  opts.Out,
		log:  opts.Log.With(logx.String("comp", "console")),
		root: newRoot(),
	}
	if c.out == nil {
		c.out = io.Discard
	}
	for _, cmd := range c.builtins() {
		c.root.add(cmd)
	}
	return c
}

// Exec runs one command line and returns its reply.
func (c *Console) Exec(ctx context.Context, line string) (string, error) {
	toks := tokenize(line)
	if len(toks) == 0 {
		return "", nil
	}
	cmd, args := c.root.match(toks)
	if cmd == nil {
		return "", fmt.Errorf("unknown command %q (try help)", toks[0])
	}
	out, err := cmd.Run(ctx, args)
	if errors.Is(err, ErrUsage) {
		return "", fmt.Errorf("usage: %s", cmd.Usage)
	}
	return out, err
}

// Run reads commands until ctx is done or input ends.
func (c *Console) Run(ctx context.Context) error {
	if c.in == nil {
		<-ctx.Done()
		return nil
	}
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.println("idlecraft ready. type help for commands.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			// stdin closed: keep the engine running headless.
			if err != nil {
				c.log.Warn("console input failed", logx.Err(err))
			}
			<-ctx.Done()
			return nil
		case line := <-lines:
			out, err := c.Exec(ctx, line)
			switch {
			case err != nil:
				c.println("error: " + err.Error())
			case out != "":
				c.println(out)
			}
		}
	}
}

func (c *Console) println(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = io.WriteString(c.out, strings.TrimRight(s, "\n")+"\n")
}

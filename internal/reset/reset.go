// Package reset wipes every structure in the connected schema, ledger
// included. It is a development tool and refuses to run in production.
package reset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ConfirmationPhrase must be typed exactly to proceed.
const ConfirmationPhrase = "DROP EVERYTHING"

// Resetter guards and performs a full schema reset.
type Resetter struct {
	production  bool
	interactive func(io.Reader) bool
	logger      *slog.Logger
}

// Option configures a Resetter.
type Option func(*Resetter)

// WithProduction marks the environment as production, which blocks any reset.
func WithProduction(b bool) Option {
	return func(r *Resetter) { r.production = b }
}

// WithTerminalCheck makes Confirm refuse any input for which isTerminal
// reports false, so the phrase cannot be supplied by a script or pipeline.
func WithTerminalCheck(isTerminal func(io.Reader) bool) Option {
	return func(r *Resetter) { r.interactive = isTerminal }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resetter) { r.logger = l }
}

// New creates a Resetter.
func New(opts ...Option) *Resetter {
	r := &Resetter{}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Confirm applies the production guard, then the terminal check if one is
// configured, and then asks for the confirmation phrase on out, reading one
// line from in.
func (r *Resetter) Confirm(in io.Reader, out io.Writer) error {
	if r.production {
		return ErrProductionGuard
	}

	if r.interactive != nil && !r.interactive(in) {
		return ErrNotInteractive
	}

	fmt.Fprintln(out, "This drops every table, view, sequence, extension, function, and type in the current schema,")
	fmt.Fprintf(out, "including the migration ledger. Type %q to continue: ", ConfirmationPhrase)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading confirmation: %w", err)
	}

	if strings.TrimRight(line, "\r\n") != ConfirmationPhrase {
		return ErrConfirmationDeclined
	}

	return nil
}

// Drop removes every object the catalog reports and returns the statements it ran.
func (r *Resetter) Drop(ctx context.Context, catalog Catalog) ([]string, error) {
	if r.production {
		return nil, ErrProductionGuard
	}

	objects, err := catalog.Objects(ctx)
	if err != nil {
		return nil, err
	}

	stmts := make([]string, 0, len(objects))
	for _, o := range objects {
		stmts = append(stmts, DropStatement(o))
	}

	if len(stmts) == 0 {
		r.logger.Info("schema already empty")

		return nil, nil
	}

	if err := catalog.Drop(ctx, stmts); err != nil {
		return nil, err
	}

	r.logger.Info("schema reset", "dropped", len(stmts))

	return stmts, nil
}

// Run confirms and then drops.
func (r *Resetter) Run(ctx context.Context, in io.Reader, out io.Writer, catalog Catalog) ([]string, error) {
	if err := r.Confirm(in, out); err != nil {
		return nil, err
	}

	return r.Drop(ctx, catalog)
}

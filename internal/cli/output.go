package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-profilesync/queue"
)

// OutputFormatter writes command results in the selected format.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Emit writes v as JSON, or calls text for the text format.
func (f *OutputFormatter) Emit(v any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.JSON(v)
	}
	text(f.Writer)
	return nil
}

// VerboseLog writes to stderr when verbose output is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.ErrWriter, format+"\n", args...)
}

func writeMutations(w io.Writer, mutations []queue.Mutation) {
	if len(mutations) == 0 {
		fmt.Fprintln(w, "no mutations")
		return
	}
	for _, m := range mutations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\tattempts=%d", m.Seq, m.ID, m.Kind, strings.Join(m.Names(), ","), m.Status, m.Attempts)
		if m.LastError != "" {
			fmt.Fprintf(w, "\terror=%q", m.LastError)
		}
		fmt.Fprintln(w)
	}
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/iudanet/booksync/internal/syncerr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitValidation = 2 // сервер или локальная проверка отклонили данные
	ExitAuth       = 3
	ExitTransport  = 4 // сервер недоступен, изменения остались в очереди
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case syncerr.IsValidation(err):
		return ExitValidation
	case syncerr.IsAuthorization(err):
		return ExitAuth
	case syncerr.IsTransport(err):
		return ExitTransport
	default:
		return ExitFailure
	}
}

// printer writes command results as text or JSON.
type printer struct {
	w    io.Writer
	json bool
}

func (o *RootOptions) printer(cmd *cobra.Command) *printer {
	return &printer{w: cmd.OutOrStdout(), json: o.Format == "json"}
}

// emit writes v as indented JSON in json mode, otherwise calls text.
func (p *printer) emit(v any, text func()) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func (p *printer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(p.w, format, a...)
}

func (p *printer) Println(a ...any) {
	_, _ = fmt.Fprintln(p.w, a...)
}

var errNoData = errors.New("record data is empty")

// Package iocli is the terminal the client CLI prompts through.
package iocli

//go:generate moq -out io_mock.go . IO

// IO reads prompts and writes output for the CLI.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	// ReadPassword reads a secret without echo when the input is a terminal.
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}

package iocli

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

func TestPrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStdioWith(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s", 1, "abc")
	_, err := stdio.Write([]byte("!"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc!", out.String())
}

// Тест ReadInput: читаем из pipe вместо os.Stdin
func TestReadInput(t *testing.T) {
	input := "user input\n"
	r, w, err := os.Pipe()
	require.NoError(t, err)

	go func() {
		_, _ = w.Write([]byte(input))
		_ = w.Close()
	}()

	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()
	os.Stdin = r

	stdio := NewStdio()
	result, err := stdio.ReadInput("Prompt: ")
	assert.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(input), result)
}

func TestReadPassword_NotTerminal(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStdioWith(strings.NewReader("s3cret-token"), &out)

	token, err := stdio.ReadPassword("Token: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-token", token)
	assert.Equal(t, "Token: ", out.String())
}

func TestReadInput_EmptyStream(t *testing.T) {
	stdio := NewStdioWith(strings.NewReader(""), io.Discard)

	_, err := stdio.ReadInput("> ")
	assert.ErrorIs(t, err, io.EOF)
}

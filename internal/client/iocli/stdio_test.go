package iocli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
	var _ IO = stdio
}

func TestStream_Output(t *testing.T) {
	var out bytes.Buffer
	s := NewStream(strings.NewReader(""), &out)

	s.Println("hello", "world")
	s.Printf("test %d %s", 1, "abc")
	_, err := s.Write([]byte("!"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc!", out.String())
}

// Тест ReadLine: читаем несколько строк из одного буфера
func TestStream_ReadLine(t *testing.T) {
	var out bytes.Buffer
	s := NewStream(strings.NewReader("  first \nsecond\nlast"), &out)

	line, err := s.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = s.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	line, err = s.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = s.ReadLine("")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> ", out.String())
}

func TestStream_ReadSecretWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	s := NewStream(strings.NewReader("token-123\n"), &out)

	secret, err := s.ReadSecret("Token: ")
	require.NoError(t, err)
	assert.Equal(t, "token-123", secret)
	assert.Equal(t, "Token: ", out.String())
}

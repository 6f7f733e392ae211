package jsonutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, protocol.Position{Line: 1, Character: 4}))
	assert.Equal(t, "{\n  \"line\": 1,\n  \"character\": 4\n}\n", buf.String())
}

func TestWriteDoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string]string{"word": "a<b"}))
	assert.Equal(t, "{\n  \"word\": \"a<b\"\n}\n", buf.String())
}

func TestWriteNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []string(nil)))
	assert.Equal(t, "null\n", buf.String())
}

package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCSV(t *testing.T) {
	data := Dataset{
		Headers: []string{"Name", "Roll", "Code", "Time"},
		Rows: [][]string{
			{"Asha", "42", "K3X9PQ", "2026-02-10 09:01"},
			{"Bilal", "7", "K3X9PQ", "2026-02-10 09:02"},
		},
	}

	out, err := RenderCSV(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "Name,Roll,Code,Time", lines[0])
	assert.Contains(t, lines[1], "Asha")
}

func TestRenderCSVRequiresHeaders(t *testing.T) {
	_, err := RenderCSV(Dataset{})
	assert.Error(t, err)
}

func TestRenderPDF(t *testing.T) {
	data := Dataset{
		Headers: []string{"Name", "Code"},
		Rows:    [][]string{{"Asha", "K3X9PQ"}},
	}

	out, err := RenderPDF(data, "attendance register")
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}

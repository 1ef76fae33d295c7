package attachments

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Save("c1/dump.pcap", strings.NewReader("first")))
	require.NoError(t, d.Save("c1/dump.pcap", strings.NewReader("second")))

	f, err := d.Open("c1/dump.pcap")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestRejectsTraversal(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	for _, p := range []string{"", ".", "..", "../etc/passwd", "a/../../b", "/etc/passwd", `..\x`} {
		_, err := d.Open(p)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
		assert.ErrorIs(t, d.Save(p, strings.NewReader("x")), ErrInvalidPath, p)
	}
}

func TestOpenDirectory(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, d.Save("c2/file.txt", strings.NewReader("x")))

	_, err = d.Open("c2")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "c1/binary.elf", ObjectName("c1", "binary.elf"))
	assert.Equal(t, "c1/evil.zip", ObjectName("c1", "../../evil.zip"))
	assert.Equal(t, "c1/x.txt", ObjectName("c1", `C:\tmp\x.txt`))
	assert.Equal(t, "c1/file", ObjectName("c1", ".."))
}

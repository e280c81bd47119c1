package metainfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	// Minimal torrent: announce URL plus an info dict with a name.
	raw := "d8:announce20:http://tracker/a/ann4:infod4:name8:file.iso12:piece lengthi262144e6:pieces0:ee"
	name, err := Name(strings.NewReader(raw))
	assert.NoError(t, err)
	assert.Equal(t, "file.iso", name)
}

func TestNameMissingInfo(t *testing.T) {
	_, err := Name(strings.NewReader("d8:announce20:http://tracker/a/anne"))
	assert.Error(t, err)
}

func TestNameGarbage(t *testing.T) {
	_, err := Name(strings.NewReader("not bencode at all"))
	assert.Error(t, err)
}

func TestNameFromFileMissing(t *testing.T) {
	_, err := NameFromFile("testdata/does-not-exist.torrent")
	assert.Error(t, err)
}

// Package metainfo reads the display name out of torrent files.
//
// The daemon parses torrent files itself; the client only peeks at the info
// dictionary so a freshly added download can show its real name before the
// first status poll reports a file list.
package metainfo

import (
	"errors"
	"io"
	"os"

	"github.com/zeebo/bencode"
)

var errNoInfoDict = errors.New("no info dict in torrent file")

// Name returns the name field of the torrent's info dictionary.
func Name(r io.Reader) (string, error) {
	var t struct {
		Info struct {
			Name string `bencode:"name"`
		} `bencode:"info"`
	}
	if err := bencode.NewDecoder(r).Decode(&t); err != nil {
		return "", err
	}
	if t.Info.Name == "" {
		return "", errNoInfoDict
	}
	return t.Info.Name, nil
}

// NameFromFile returns the torrent name from the file at path.
func NameFromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Name(f)
}

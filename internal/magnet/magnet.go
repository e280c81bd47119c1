// Package magnet provides support for parsing magnet links.
package magnet

import (
	"errors"
	"net/url"
	"strings"
)

// Magnet link contains the information needed to display a torrent download
// before the daemon has resolved its metadata.
type Magnet struct {
	// InfoHash as it appears in the xt param, lowercased. May be empty for
	// malformed links; the daemon does its own validation.
	InfoHash string
	// Name is the display name from the dn param, already percent-decoded.
	Name string
}

// Parse parses the string and returns a new Magnet.
func Parse(s string) (*Magnet, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "magnet" {
		return nil, errors.New("not a magnet link")
	}

	params := u.Query()

	var m Magnet
	if xts := params["xt"]; len(xts) > 0 {
		const prefix = "urn:btih:"
		if strings.HasPrefix(xts[0], prefix) {
			m.InfoHash = strings.ToLower(xts[0][len(prefix):])
		}
	}
	if names := params["dn"]; len(names) > 0 {
		m.Name = names[0]
	}
	return &m, nil
}

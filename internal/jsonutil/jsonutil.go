// Package jsonutil renders RPC responses for the one-shot CLI commands.
package jsonutil

import (
	"bytes"
	"sort"

	"github.com/fatih/structs"
	"github.com/hokaccha/go-prettyjson"
)

var formatter *prettyjson.Formatter

func init() {
	formatter = prettyjson.NewFormatter()
	formatter.Indent = 0
	formatter.Newline = ""
}

// MarshalPretty formats a struct as one colored "Field: value" line per
// field, sorted by field name. Non-struct values fall back to plain pretty
// JSON.
func MarshalPretty(v interface{}) ([]byte, error) {
	if !structs.IsStruct(v) {
		b, err := formatter.Marshal(v)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}

	m := structs.Map(v)
	names := structs.Names(v)
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		b, err := formatter.Marshal(m[name])
		if err != nil {
			return nil, err
		}
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.Write(b)
		buf.WriteRune('\n')
	}
	return buf.Bytes(), nil
}

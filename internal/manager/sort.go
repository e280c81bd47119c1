package manager

import (
	"sort"
	"strings"

	"github.com/NithinV404/tui-downloader/internal/units"
)

// SortField selects the column downloads are ordered by.
type SortField int

const (
	SortByName SortField = iota
	SortBySize
	SortByProgress
	SortBySpeed
	SortByDateAdded
	SortByStatus
)

// Next cycles to the following sort field.
func (f SortField) Next() SortField {
	if f == SortByStatus {
		return SortByName
	}
	return f + 1
}

func (f SortField) String() string {
	switch f {
	case SortBySize:
		return "Size"
	case SortByProgress:
		return "Progress"
	case SortBySpeed:
		return "Speed"
	case SortByDateAdded:
		return "Date Added"
	case SortByStatus:
		return "Status"
	default:
		return "Name"
	}
}

// SortDirection is ascending or descending.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// Toggle flips the direction.
func (d SortDirection) Toggle() SortDirection {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

func (d SortDirection) String() string {
	if d == Descending {
		return "v"
	}
	return "^"
}

// Sort orders downloads in place by the given field and direction. The speed
// comparison round-trips through the display format so the order follows what
// the user sees, which is rounded.
func Sort(downloads []Download, field SortField, dir SortDirection) {
	less := func(a, b *Download) bool {
		switch field {
		case SortBySize:
			return a.TotalLength < b.TotalLength
		case SortByProgress:
			return a.Progress() < b.Progress()
		case SortBySpeed:
			return units.ParseRate(units.FormatRate(a.DownloadSpeed)) <
				units.ParseRate(units.FormatRate(b.DownloadSpeed))
		case SortByDateAdded:
			return a.AddedAt.Before(b.AddedAt)
		case SortByStatus:
			return a.State < b.State
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}
	sort.SliceStable(downloads, func(i, j int) bool {
		if dir == Descending {
			return less(&downloads[j], &downloads[i])
		}
		return less(&downloads[i], &downloads[j])
	})
}

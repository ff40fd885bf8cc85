// pattern: Functional Core

package reconcile

import "syncwatch/internal/index"

// Status is an item's download status as shown to consumers.
type Status string

const (
	StatusCurrent       Status = "current"
	StatusDownloading   Status = "downloading"
	StatusNotDownloaded Status = "not-downloaded"
	StatusUnknown       Status = "unknown"
)

// DeriveStatus maps the raw downloading-status attribute of an index item.
// An absent or unrecognised value is unknown.
func DeriveStatus(raw string) Status {
	switch raw {
	case index.DownloadingStatusCurrent:
		return StatusCurrent
	case index.DownloadingStatusDownloading:
		return StatusDownloading
	case index.DownloadingStatusNotDownloaded:
		return StatusNotDownloaded
	default:
		return StatusUnknown
	}
}

// ShouldFetch reports whether an item with status s needs a fetch request.
// Anything not known to be current is requested, including items already
// downloading; the fetch service treats repeats as no-ops.
func ShouldFetch(s Status) bool {
	return s != StatusCurrent
}

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusCurrent, StatusDownloading, StatusNotDownloaded, StatusUnknown}
}

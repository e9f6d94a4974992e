//go:build !linux

package media

import "time"

func birthTime(string) (time.Time, bool) {
	return time.Time{}, false
}

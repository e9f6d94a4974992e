package indexer

import (
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestIsNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"create", fsnotify.Event{Name: "/p/a.jpg", Op: fsnotify.Create}, false},
		{"write", fsnotify.Event{Name: "/p/a.jpg", Op: fsnotify.Write}, false},
		{"rename", fsnotify.Event{Name: "/p/album", Op: fsnotify.Rename}, false},
		{"chmod only", fsnotify.Event{Name: "/p/a.jpg", Op: fsnotify.Chmod}, true},
		{"write with chmod", fsnotify.Event{Name: "/p/a.jpg", Op: fsnotify.Write | fsnotify.Chmod}, false},
		{"hidden file", fsnotify.Event{Name: "/p/.a.jpg.swp", Op: fsnotify.Create}, true},
		{"hidden directory", fsnotify.Event{Name: "/p/.trash", Op: fsnotify.Create}, true},
		{"hidden root parent", fsnotify.Event{Name: "/home/u/.photos/a.jpg", Op: fsnotify.Write}, false},
		{"empty name", fsnotify.Event{Op: fsnotify.Write}, true},
		{"no op", fsnotify.Event{Name: "/p/a.jpg"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNoise(tt.event); got != tt.want {
				t.Errorf("isNoise(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestGetEventType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, "create"},
		{fsnotify.Write, "write"},
		{fsnotify.Remove, "remove"},
		{fsnotify.Rename, "rename"},
		{fsnotify.Chmod, "chmod"},
		{fsnotify.Create | fsnotify.Write, "create"},
		{0, "unknown"},
	}

	for _, tt := range tests {
		if got := getEventType(tt.op); got != tt.want {
			t.Errorf("getEventType(%v) = %s, want %s", tt.op, got, tt.want)
		}
	}
}

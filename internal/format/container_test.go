package format

import "testing"

func TestDetectContainer(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   Container
	}{
		{"mp4 isom", mp4Prefix("isom"), ContainerMP4},
		{"mp4 m4v brand", mp4Prefix("M4V "), ContainerMP4},
		{"quicktime brand", mp4Prefix("qt  "), ContainerQuickTime},
		{"legacy quicktime moov", []byte{0, 0, 0, 0x20, 'm', 'o', 'o', 'v', 0, 0}, ContainerQuickTime},
		{"legacy quicktime wide", []byte{0, 0, 0, 0x08, 'w', 'i', 'd', 'e'}, ContainerQuickTime},
		{"matroska", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86}, ContainerMatroska},
		{"avi", []byte("RIFF\x00\x00\x00\x00AVI LIST"), ContainerUnknown},
		{"too short", []byte{0x00, 0x00}, ContainerUnknown},
		{"empty", nil, ContainerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectContainer(tt.prefix); got != tt.want {
				t.Errorf("DetectContainer() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainerFromMIME(t *testing.T) {
	tests := map[string]Container{
		"video/mp4":        ContainerMP4,
		"video/quicktime":  ContainerQuickTime,
		"video/webm":       ContainerMatroska,
		"video/x-matroska": ContainerMatroska,
		"video/x-msvideo":  ContainerUnknown,
	}
	for mime, want := range tests {
		if got := ContainerFromMIME(mime); got != want {
			t.Errorf("ContainerFromMIME(%q) = %v, want %v", mime, got, want)
		}
	}
}

func TestContainerString(t *testing.T) {
	if ContainerMatroska.String() != "matroska" || Container(42).String() != "unknown" {
		t.Error("unexpected Container.String() output")
	}
}

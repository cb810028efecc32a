package recorder

import "testing"

func TestNegotiateDimensions(t *testing.T) {
	tests := []struct {
		name                       string
		srcW, srcH                 int
		targetW, targetH           int
		wantW, wantH               int
	}{
		{
			name: "width pinned scales height",
			srcW: 1920, srcH: 1080,
			targetW: 720,
			wantW:   720, wantH: 405,
		},
		{
			name: "height pinned scales width",
			srcW: 1280, srcH: 720,
			targetH: 480,
			wantW:   853, wantH: 480,
		},
		{
			name: "no target passes source through",
			srcW: 1170, srcH: 2532,
			wantW: 1170, wantH: 2532,
		},
		{
			name: "width pinned portrait source",
			srcW: 1080, srcH: 1920,
			targetW: 720,
			wantW:   720, wantH: 1280,
		},
		{
			name: "width takes precedence over height",
			srcW: 1920, srcH: 1080,
			targetW: 1280, targetH: 480,
			wantW: 1280, wantH: 720,
		},
		{
			name: "degenerate source passes through",
			srcW: 0, srcH: 0,
			targetW: 720,
			wantW:   0, wantH: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := negotiateDimensions(tt.srcW, tt.srcH, tt.targetW, tt.targetH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("negotiateDimensions(%d, %d, %d, %d) = %dx%d, want %dx%d",
					tt.srcW, tt.srcH, tt.targetW, tt.targetH, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package standalone

import (
	"testing"

	"github.com/ManuGH/freesession/internal/platform"
	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		signals platform.Signals
		want    bool
	}{
		{"browser tab", platform.Signals{Referrer: "https://example.com/"}, false},
		{"empty", platform.Signals{}, false},
		{"display mode", platform.Signals{DisplayModeStandalone: true}, true},
		{"ios flag", platform.Signals{NavigatorStandalone: true}, true},
		{"android wrapper", platform.Signals{Referrer: "android-app://com.example.twa"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.signals))
		})
	}
}

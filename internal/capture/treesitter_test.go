//go:build cgo

package capture

import "testing"

func TestTreeSitterCapturer(t *testing.T) {
	runCapturerSuite(t, NewTreeSitterCapturer())
}

package lobby

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestState() *State {
	return NewState("test-server", "welcome", nil)
}

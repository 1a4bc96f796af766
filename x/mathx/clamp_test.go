package mathx

import (
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	if Clamp(5, 1, 10) != 5 || Clamp(-3, 1, 10) != 1 || Clamp(99, 1, 10) != 10 {
		t.Fatal("int clamp")
	}
	if Clamp(5, 10, 1) != 5 || Clamp(0, 10, 1) != 1 {
		t.Fatal("swapped bounds")
	}
	if Clamp(int16(-200), -127, 127) != -127 {
		t.Fatal("int16 clamp")
	}
	if Clamp(3*time.Hour, time.Second, time.Minute) != time.Minute {
		t.Fatal("duration clamp")
	}
	if Clamp(0.5, 1.0, 2.0) != 1.0 {
		t.Fatal("float clamp")
	}
}

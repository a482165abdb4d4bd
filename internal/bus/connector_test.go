package bus

import "testing"

func TestDialUnreachableBrokerFails(t *testing.T) {
	if _, err := Dial("amqp://127.0.0.1:1", 0); err == nil {
		t.Fatal("expected dial to an unreachable broker to fail")
	}
}

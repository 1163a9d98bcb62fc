package domain

import "testing"

func TestQueueMsgStreamID(t *testing.T) {
	cases := []struct {
		name string
		msg  QueueMsg
		want string
	}{
		{"tuple", NewTupleMsg(Tuple{StreamID: "default"}), "default"},
		{"ack", NewAckMsg(1, 2), StreamAckerAck},
		{"fail", NewFailMsg(1, 2), StreamAckerFail},
		{"reset", NewResetTimeoutMsg(1), StreamAckerResetTimeout},
		{"tick", NewTickMsg(), StreamSystemTick},
		{"flush", NewFlushMsg(), StreamSystemFlush},
		{"metrics", NewMetricsTickMsg(), StreamMetricsTick},
		{"creds", NewCredsChangedMsg(map[string]string{"k": "v"}), StreamCredentialsChanged},
		{"interrupt", Interrupt, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.msg.StreamID(); got != tc.want {
				t.Fatalf("StreamID() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInterruptIsDistinctKind(t *testing.T) {
	if Interrupt.Kind != KindInterrupt {
		t.Fatalf("Interrupt.Kind = %v, want KindInterrupt", Interrupt.Kind)
	}
}

package conn

import "testing"

func TestConnectionResetClearsRequestState(t *testing.T) {
	c := New(1024)
	c.SetFD(7)
	c.ReadBuf = append(c.ReadBuf, "GET / HTTP/1.1\r\n"...)
	status, _ := c.AppendRead(nil)
	_ = status

	c.Reset()
	if c.FD != -1 {
		t.Fatalf("expected fd reset to -1, got %d", c.FD)
	}
	if c.State != StateReading {
		t.Fatalf("expected state Reading after reset, got %v", c.State)
	}
	if len(c.ReadBuf) != 0 {
		t.Fatalf("expected read buffer cleared, got %d bytes", len(c.ReadBuf))
	}
}

func TestConnectionWriteCursorAdvances(t *testing.T) {
	c := New(1024)
	c.SetFD(3)
	c.BeginWrite([]byte("hello world"), true)

	if done := c.AdvanceWrite(5); done {
		t.Fatal("expected write not yet complete")
	}
	if string(c.PendingWrite()) != " world" {
		t.Fatalf("unexpected pending write: %q", c.PendingWrite())
	}
	if done := c.AdvanceWrite(6); !done {
		t.Fatal("expected write complete after flushing remaining bytes")
	}
}

func TestConnectionPrepareForNextRequestKeepsFD(t *testing.T) {
	c := New(1024)
	c.SetFD(9)
	c.State = StateKeepAlive
	c.PrepareForNextRequest()
	if c.FD != 9 {
		t.Fatalf("expected fd to survive keep-alive rearm, got %d", c.FD)
	}
	if c.State != StateReading {
		t.Fatalf("expected state Reading, got %v", c.State)
	}
}

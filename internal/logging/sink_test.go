package logging

import (
	"testing"
	"time"
)

func drain(s *ChannelSink) []LogEntry {
	var out []LogEntry
	for {
		select {
		case e, ok := <-s.Entries():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestChannelSink_ParsesZapLine(t *testing.T) {
	sink := NewChannelSink(4)
	defer sink.Close()

	line := []byte(`{"level":"warn","ts":1740830400.5,"logger":"reconcile","caller":"reconcile/reconcile.go:88","msg":"fetch request failed","url":"s3://docs/Documents/a.txt","error":"item not found"}` + "\n")
	n, err := sink.Write(line)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len(line) {
		t.Errorf("Write() = %d, want %d", n, len(line))
	}

	entries := drain(sink)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	got := entries[0]

	if got.Level != "WARN" || got.Scope != "reconcile" || got.Message != "fetch request failed" {
		t.Errorf("entry = %s/%s/%q", got.Level, got.Scope, got.Message)
	}
	if want := time.Unix(1740830400, 500_000_000); !got.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, want)
	}
	if got.Fields["url"] != "s3://docs/Documents/a.txt" {
		t.Errorf("url field = %v", got.Fields["url"])
	}
	if _, ok := got.Fields["caller"]; ok {
		t.Error("caller should not be kept as a field")
	}
}

func TestChannelSink_KeepsNewestWhenFull(t *testing.T) {
	sink := NewChannelSink(2)
	defer sink.Close()

	for _, msg := range []string{"pass 1", "pass 2", "pass 3", "pass 4"} {
		if _, err := sink.Write([]byte(`{"level":"info","logger":"watcher","msg":"` + msg + `"}`)); err != nil {
			t.Fatalf("Write(%q) error = %v", msg, err)
		}
	}

	entries := drain(sink)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message != "pass 3" || entries[1].Message != "pass 4" {
		t.Errorf("kept %q and %q, want the two newest", entries[0].Message, entries[1].Message)
	}
}

func TestChannelSink_Send(t *testing.T) {
	sink := NewChannelSink(4)

	sink.Send(LogEntry{Level: "INFO", Scope: "tracker", Message: "tracker closed"})
	if entries := drain(sink); len(entries) != 1 || entries[0].Scope != "tracker" {
		t.Fatalf("entries = %+v", entries)
	}

	_ = sink.Close()
	_ = sink.Close()
	sink.Send(LogEntry{Message: "after close"})
	if entries := drain(sink); len(entries) != 0 {
		t.Errorf("Send after Close delivered %d entries", len(entries))
	}
}

func TestChannelSink_Malformed(t *testing.T) {
	sink := NewChannelSink(4)
	defer sink.Close()

	n, err := sink.Write([]byte("not json"))
	if err != nil || n != len("not json") {
		t.Errorf("Write(garbage) = %d, %v; want swallowed", n, err)
	}
	if entries := drain(sink); len(entries) != 0 {
		t.Errorf("garbage produced %d entries", len(entries))
	}

	// Defaults for a line that carries only a message.
	if _, err := sink.Write([]byte(`{"msg":"bare"}`)); err != nil {
		t.Fatal(err)
	}
	entries := drain(sink)
	if len(entries) != 1 || entries[0].Level != "INFO" || entries[0].Scope != "app" {
		t.Errorf("entries = %+v, want INFO/app defaults", entries)
	}
}

func TestChannelSink_WriteAfterClose(t *testing.T) {
	sink := NewChannelSink(4)
	_ = sink.Close()

	if _, err := sink.Write([]byte(`{"msg":"late"}`)); err == nil {
		t.Error("Write() after Close() should return an error")
	}
	if err := sink.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}

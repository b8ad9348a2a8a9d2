package output

import (
	"bytes"
	"testing"
)

func TestWriteJSON_Indented(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, struct {
		PID int `json:"pid"`
	}{42}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	if want := "{\n  \"pid\": 42\n}\n"; buf.String() != want {
		t.Errorf("WriteJSON() = %q, want %q", buf.String(), want)
	}
}

func TestWriteJSON_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, make(chan int)); err == nil {
		t.Error("WriteJSON(chan) should fail")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on error, got %q", buf.String())
	}
}

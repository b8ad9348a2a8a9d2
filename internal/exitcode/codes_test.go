package exitcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrUsage, "bad flag")
	if err.Code != ErrUsage {
		t.Errorf("Code = %d, want %d", err.Code, ErrUsage)
	}
	if err.Message != "bad flag" {
		t.Errorf("Message = %q, want %q", err.Message, "bad flag")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrInternal, "scan failed", cause)

	if err.Code != ErrInternal {
		t.Errorf("Code = %d, want %d", err.Code, ErrInternal)
	}
	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve cause for errors.Is")
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrUsage, "unknown flag --x"),
			want: "unknown flag --x",
		},
		{
			name: "with cause",
			err:  Unavailable(errors.New("/proc not mounted")),
			want: "process table unavailable: /proc not mounted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, Success},
		{"coded error", New(ErrFileNotFound, "not found"), ErrFileNotFound},
		{"wrapped coded", fmt.Errorf("outer: %w", Busy("cleanup")), ErrBusy},
		{"plain error", errors.New("plain"), ErrGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrUsage, "invalid %s: %v", "timeout", -1)
	if err.Code != ErrUsage {
		t.Errorf("Code = %d, want %d", err.Code, ErrUsage)
	}
	want := "invalid timeout: -1"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantCode int
		wantMsg  string
	}{
		{"FileNotFound", FileNotFound("/etc/reap.toml"), ErrFileNotFound, "file not found: /etc/reap.toml"},
		{"AlreadyExists", AlreadyExists("config file"), ErrAlreadyExists, "config file already exists"},
		{"Busy", Busy("cleanup"), ErrBusy, "cleanup already in progress"},
		{"Unavailable", Unavailable(nil), ErrUnavailable, "process table unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantMsg)
			}
		})
	}
}

package failure

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStageOf(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"io", IO("write", "/tmp/x", cause), StageStorage},
		{"acquisition", Acquisition("https://example.com", cause), StageAcquisition},
		{"transcription", Transcription("/tmp/a.mp3", cause), StageTranscription},
		{"wrapped", fmt.Errorf("outer: %w", Acquisition("u", cause)), StageAcquisition},
		{"plain", cause, StageUnknown},
		{"nil", nil, StageUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StageOf(tt.err); got != tt.want {
				t.Errorf("StageOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructorsNil(t *testing.T) {
	if IO("op", "p", nil) != nil {
		t.Error("IO(nil) should be nil")
	}
	if Acquisition("u", nil) != nil {
		t.Error("Acquisition(nil) should be nil")
	}
	if Transcription("p", nil) != nil {
		t.Error("Transcription(nil) should be nil")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("unsupported URL")
	err := Acquisition("https://example.com/not-a-video", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	var acq *AcquisitionError
	if !errors.As(err, &acq) {
		t.Fatal("errors.As should match *AcquisitionError")
	}
	if !strings.Contains(err.Error(), "unsupported URL") {
		t.Errorf("message %q should carry the cause", err.Error())
	}
}

func TestCause(t *testing.T) {
	err := Transcription("/tmp/a.mp3", errors.New("no channels in response"))
	if got := Cause(err); got != "no channels in response" {
		t.Errorf("Cause = %q, want %q", got, "no channels in response")
	}
	if got := Cause(errors.New("plain")); got != "plain" {
		t.Errorf("Cause = %q, want plain", got)
	}
	if got := Cause(nil); got != "" {
		t.Errorf("Cause(nil) = %q, want empty", got)
	}
}

func TestIOErrorMessage(t *testing.T) {
	err := IO("mkdir", "", errors.New("denied"))
	if err.Error() != "mkdir: denied" {
		t.Errorf("Error() = %q", err.Error())
	}
	err = IO("write", "/x", errors.New("full"))
	if err.Error() != "write /x: full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

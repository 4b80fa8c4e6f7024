package webhook

import (
	"context"
	"errors"
	"testing"
)

func TestScriptWriter(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantText     string
		wantURL      string
		wantDuration float64
		wantErr      error
	}{
		{"object with voiceover", `{"script":"Meet Acme.","audioUrl":"https://cdn.test/vo.mp3","duration":"12.5"}`, "Meet Acme.", "https://cdn.test/vo.mp3", 12.5, nil},
		{"content field", `{"content":"Line one"}`, "Line one", "", 0, nil},
		{"plain text", `Hello there`, "Hello there", "", 0, nil},
		{"accepted only", `Accepted`, "", "", 0, ErrEmptyScript},
		{"failure", `{"status":"error","message":"voice quota"}`, "", "", 0, ErrGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoster{body: tt.body}
			got, err := NewScriptWriter(p).Write(context.Background(), ScriptRequest{ProjectID: "p1", Topic: "launch"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if p.name != EndpointScriptVoiceover {
				t.Errorf("posted to %q", p.name)
			}
			if got.Text != tt.wantText || got.VoiceoverURL != tt.wantURL || got.VoiceoverDuration != tt.wantDuration {
				t.Errorf("script = %+v", got)
			}
		})
	}
}

func TestScriptWriterNeedsTopic(t *testing.T) {
	p := &fakePoster{body: `{"script":"x"}`}
	if _, err := NewScriptWriter(p).Write(context.Background(), ScriptRequest{}); !errors.Is(err, ErrInvalidForm) {
		t.Fatalf("err = %v, want ErrInvalidForm", err)
	}
	if len(p.payloads) != 0 {
		t.Error("empty request reached the webhook")
	}
}

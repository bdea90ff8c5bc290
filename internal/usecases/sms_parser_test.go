package usecases

import "testing"

func TestExtractQuickReply(t *testing.T) {
	tests := []struct {
		body      string
		wantToken string
		minConf   float64
	}{
		{"yes", ReplyConfirm, 0.9},
		{"YES!", ReplyConfirm, 0.9},
		{"ok", ReplyConfirm, 0.9},
		{"👍", ReplyConfirm, 0.9},
		{"no", ReplyCancel, 0.9},
		{"cancel", ReplyCancel, 0.9},
		{"STOP", ReplyCancel, 0.9},
		{"reschedule please", ReplyReschedule, 0.8},
		{"move it to friday", ReplyReschedule, 0.8},
		{"2", ReplySelect, 0.85},
		{"help", ReplyHelp, 0.85},
		{"?", ReplyHelp, 0.85},
		{"yes please, 3pm works", ReplyConfirm, 0.5},
		{"no thanks", ReplyCancel, 0.5},
	}

	for _, tt := range tests {
		got := ExtractQuickReply(tt.body)
		if got.Token != tt.wantToken {
			t.Errorf("ExtractQuickReply(%q).Token = %q, want %q", tt.body, got.Token, tt.wantToken)
		}
		if got.Confidence < tt.minConf {
			t.Errorf("ExtractQuickReply(%q).Confidence = %v, want >= %v", tt.body, got.Confidence, tt.minConf)
		}
	}
}

func TestExtractQuickReplyOther(t *testing.T) {
	for _, body := range []string{
		"",
		"I was wondering if you could send me the pricing sheet for the enterprise plan",
		"10",
		"what time is the meeting again and who is attending from your side exactly?",
	} {
		got := ExtractQuickReply(body)
		if got.Token != ReplyOther {
			t.Errorf("ExtractQuickReply(%q).Token = %q, want %q", body, got.Token, ReplyOther)
		}
		if got.Confidence > 0.5 {
			t.Errorf("ExtractQuickReply(%q).Confidence = %v, want low", body, got.Confidence)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+1 (555) 123-4567", "+15551234567"},
		{"555-123-4567", "+15551234567"},
		{"0044 20 7946 0958", "+442079460958"},
		{"+442079460958", "+442079460958"},
		{"15551234567", "+15551234567"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := NormalizePhone(tt.raw); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

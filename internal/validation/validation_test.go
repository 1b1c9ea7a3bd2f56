package validation

import "testing"

func TestValidateTaskInput(t *testing.T) {
	tests := []struct {
		name            string
		title           string
		description     string
		credits         int64
		maxApplications int
		wantOK          bool
	}{
		{"valid", "Fix the fence", "Repair two broken boards", 50, 10, true},
		{"empty title", "", "desc", 50, 10, false},
		{"blank title", "   ", "desc", 50, 10, false},
		{"empty description", "title", "", 50, 10, false},
		{"zero credits", "title", "desc", 0, 10, false},
		{"negative credits", "title", "desc", -5, 10, false},
		{"zero max applications", "title", "desc", 50, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ValidateTaskInput(tt.title, tt.description, tt.credits, tt.maxApplications)
			if (msg == "") != tt.wantOK {
				t.Errorf("ValidateTaskInput() = %q, want ok=%v", msg, tt.wantOK)
			}
		})
	}
}

func TestValidateApplicationInput(t *testing.T) {
	if msg := ValidateApplicationInput("I can do this tomorrow", 45); msg != "" {
		t.Errorf("valid input rejected: %q", msg)
	}
	if msg := ValidateApplicationInput("", 45); msg == "" {
		t.Error("empty proposal accepted")
	}
	if msg := ValidateApplicationInput("proposal", 0); msg == "" {
		t.Error("zero proposed credits accepted")
	}
}

func TestValidateRating(t *testing.T) {
	for _, r := range []int{1, 2, 3, 4, 5} {
		if msg := ValidateRating(r); msg != "" {
			t.Errorf("ValidateRating(%d) = %q, want ok", r, msg)
		}
	}
	for _, r := range []int{0, 6, -1, 100} {
		if msg := ValidateRating(r); msg == "" {
			t.Errorf("ValidateRating(%d) accepted", r)
		}
	}
}

func TestValidateSkills(t *testing.T) {
	if msg := ValidateSkills([]string{"go", "sql"}); msg != "" {
		t.Errorf("valid skills rejected: %q", msg)
	}
	if msg := ValidateSkills(nil); msg != "" {
		t.Errorf("nil skills rejected: %q", msg)
	}
	if msg := ValidateSkills([]string{"go", "Go"}); msg == "" {
		t.Error("case-insensitive duplicate accepted")
	}
	if msg := ValidateSkills([]string{"go", " "}); msg == "" {
		t.Error("blank skill accepted")
	}
}

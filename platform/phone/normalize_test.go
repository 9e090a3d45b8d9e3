package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"07400 123456":    "+447400123456",
		"+44 7400 123456": "+447400123456",
		"  07400123456  ": "+447400123456",
		"+31 6 12345678":  "+31612345678",
		"not a number":    "not a number",
		"":                "",
		"12345":           "12345",
	}

	for in, want := range cases {
		if got := NormalizeE164(in); got != want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSame(t *testing.T) {
	if !Same("07400 123456", "+447400123456") {
		t.Error("national and E.164 forms of the same number must match")
	}
	if Same("+447400123456", "+447400123457") {
		t.Error("different numbers must not match")
	}
	if Same("", "+447400123456") {
		t.Error("empty input never matches")
	}
}

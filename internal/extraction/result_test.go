package extraction

import "testing"

func TestParseResultAccept(t *testing.T) {
	data := []byte(`{"action":"ACCEPT","reply":"Great!","extracted":{"businessName":"Bob's"},"nextState":"S3_OWNER"}`)

	result, err := ParseResult(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != ActionAccept || result.NextState != "S3_OWNER" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Extracted["businessName"] != "Bob's" {
		t.Fatalf("extracted fields lost: %+v", result.Extracted)
	}
}

func TestParseResultLowercaseActionIsNormalized(t *testing.T) {
	result, err := ParseResult([]byte(`{"action":"reject","reply":"Try again"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != ActionReject {
		t.Fatalf("action = %s, want REJECT", result.Action)
	}
}

func TestParseResultRejectsMissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"accept without nextState": `{"action":"ACCEPT","reply":"ok"}`,
		"accept without reply":     `{"action":"ACCEPT","nextState":"S2_NAME"}`,
		"reject without reply":     `{"action":"REJECT"}`,
		"complete without reply":   `{"action":"COMPLETE"}`,
		"unknown action":           `{"action":"RETRY","reply":"x"}`,
		"missing action":           `{"reply":"x"}`,
	}

	for name, raw := range cases {
		if _, err := ParseResult([]byte(raw)); err == nil {
			t.Errorf("%s: expected parse failure", name)
		}
	}
}

func TestParseResultRejectsUnknownKeysAndGarbage(t *testing.T) {
	if _, err := ParseResult([]byte(`{"action":"REJECT","reply":"x","tool_call":"rm -rf"}`)); err == nil {
		t.Error("unknown keys must fail the parse")
	}
	if _, err := ParseResult([]byte("I'd be happy to help with that!")); err == nil {
		t.Error("prose must fail the parse")
	}
	if _, err := ParseResult([]byte("")); err == nil {
		t.Error("empty input must fail the parse")
	}
}

func TestParseResultErrorActionNeedsNothing(t *testing.T) {
	result, err := ParseResult([]byte(`{"action":"ERROR"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != ActionError {
		t.Fatalf("action = %s, want ERROR", result.Action)
	}
}

package inventory

import "testing"

func TestRedactEnv(t *testing.T) {
	env := map[string]string{
		"DB_PASSWORD": "s3cret",
		"LANG":        "en_US",
		"API_TOKEN":   "abc123",
		"TELEGRAM_CHAT_ID": "12345",
	}
	got := RedactEnv(env)

	if got["DB_PASSWORD"] != redactedValue {
		t.Errorf("DB_PASSWORD = %q, want redacted", got["DB_PASSWORD"])
	}
	if got["API_TOKEN"] != redactedValue {
		t.Errorf("API_TOKEN = %q, want redacted", got["API_TOKEN"])
	}
	if got["TELEGRAM_CHAT_ID"] != redactedValue {
		t.Errorf("TELEGRAM_CHAT_ID = %q, want redacted", got["TELEGRAM_CHAT_ID"])
	}
	if got["LANG"] != "en_US" {
		t.Errorf("LANG = %q, want untouched", got["LANG"])
	}
}

func TestParseEnv(t *testing.T) {
	got := ParseEnv([]string{"A=1", "B=", "C"})
	if got["A"] != "1" || got["B"] != "" {
		t.Errorf("unexpected parse: %+v", got)
	}
	if v, ok := got["C"]; !ok || v != "" {
		t.Errorf("expected bare key C with empty value, got %q ok=%v", v, ok)
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRedactSensitive_CookieValue(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cookie := "0123456789abcdef0123456789abcdef"
	l.Info("cookie applied", "cookie", cookie)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	cookieVal, ok := logEntry["cookie"].(string)
	if !ok {
		t.Fatal("Expected cookie field in log")
	}
	if cookieVal != redactedValue {
		t.Errorf("Cookie should be redacted, got: %s", cookieVal)
	}
}

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Sensitive key names are redacted regardless of value.
	tests := []struct {
		key      string
		value    string
		expected string
	}{
		{"password", "mysecret123", "***REDACTED***"},
		{"user_password", "hunter2", "***REDACTED***"},
		{"cluster_cookie", "deadbeef", "***REDACTED***"},
		{"auth_header", "bearer-xyz", "***REDACTED***"},
		{"credential", "cred123", "***REDACTED***"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			buf.Reset()
			l.Info("test", tt.key, tt.value)

			var logEntry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				t.Fatalf("Failed to parse JSON log: %v", err)
			}

			val, ok := logEntry[tt.key].(string)
			if !ok {
				t.Fatalf("Expected %s field in log", tt.key)
			}

			if val != tt.expected {
				t.Errorf("Key %q should be redacted to %q, got %q", tt.key, tt.expected, val)
			}
		})
	}
}

func TestRedactSensitive_NormalValues(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Node identities and addresses are public; they must survive.
	l.Info("node up", "node", "ns_1@10.0.0.5", "address", "10.0.0.5")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if node, ok := logEntry["node"].(string); !ok || node != "ns_1@10.0.0.5" {
		t.Errorf("Node identity should not be redacted, got: %v", logEntry["node"])
	}

	if addr, ok := logEntry["address"].(string); !ok || addr != "10.0.0.5" {
		t.Errorf("Address should not be redacted, got: %v", logEntry["address"])
	}
}

func TestRedactSensitive_EmptyValueUntouched(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("startup", "cookie", "")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if v := logEntry["cookie"]; v != "" {
		t.Errorf("Empty cookie should stay empty, got: %v", v)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key       string
		sensitive bool
	}{
		{"password", true},
		{"user_password", true},
		{"PASSWORD", true},
		{"secret", true},
		{"cookie", true},
		{"cluster_cookie", true},
		{"credential", true},
		{"auth", true},
		{"bearer", true},
		{"node", false},
		{"address", false},
		{"request_id", false},
		{"data_dir", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			result := IsSensitiveKey(tt.key)
			if result != tt.sensitive {
				t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, result, tt.sensitive)
			}
		})
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"long value", "0123456789abcdef", "01************ef"},
		{"short value", "abcd", "****"},
		{"minimal value", "a", "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MaskValue(tt.value)
			if result != tt.expected {
				t.Errorf("MaskValue(%q) = %q, want %q", tt.value, result, tt.expected)
			}
		})
	}
}

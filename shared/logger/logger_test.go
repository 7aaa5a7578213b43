// Copyright 2025 RelayCore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"
	"time"
)

// TestNew tests logger initialization
func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		component      string
		instanceID     string
		expectedComp   string
		expectedInstID string
	}{
		{
			name:           "with instance ID set",
			component:      "test-component",
			instanceID:     "instance-123",
			expectedComp:   "test-component",
			expectedInstID: "instance-123",
		},
		{
			name:           "without instance ID",
			component:      "server",
			instanceID:     "",
			expectedComp:   "server",
			expectedInstID: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.instanceID != "" {
				if err := os.Setenv("INSTANCE_ID", tt.instanceID); err != nil {
					t.Fatalf("Failed to set INSTANCE_ID: %v", err)
				}
				defer func() {
					if err := os.Unsetenv("INSTANCE_ID"); err != nil {
						t.Errorf("Failed to unset INSTANCE_ID: %v", err)
					}
				}()
			} else {
				if err := os.Unsetenv("INSTANCE_ID"); err != nil {
					t.Fatalf("Failed to unset INSTANCE_ID: %v", err)
				}
			}

			l := New(tt.component)

			if l.Component != tt.expectedComp {
				t.Errorf("Expected component %q, got %q", tt.expectedComp, l.Component)
			}
			if l.InstanceID != tt.expectedInstID {
				t.Errorf("Expected instance ID %q, got %q", tt.expectedInstID, l.InstanceID)
			}
			if l.Container == "" {
				t.Error("Expected non-empty container name")
			}
		})
	}
}

// captureOutput redirects the standard logger output for inspection
func captureOutput(fn func()) string {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	}()
	fn()
	return buf.String()
}

// TestLog verifies the structured JSON output shape
func TestLog(t *testing.T) {
	l := &Logger{Component: "test", InstanceID: "i-1", Container: "c-1"}

	out := captureOutput(func() {
		l.Info("org-abc", "req-1", "hello", map[string]interface{}{"k": "v"})
	})

	line := strings.TrimSpace(out)
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v (%s)", err, line)
	}

	if entry.Level != INFO {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.OrgID != "org-abc" {
		t.Errorf("Expected org_id org-abc, got %s", entry.OrgID)
	}
	if entry.RequestID != "req-1" {
		t.Errorf("Expected request_id req-1, got %s", entry.RequestID)
	}
	if entry.Message != "hello" {
		t.Errorf("Expected message hello, got %s", entry.Message)
	}
	if entry.Fields["k"] != "v" {
		t.Errorf("Expected field k=v, got %v", entry.Fields)
	}

	if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
		t.Errorf("Timestamp not RFC3339Nano: %v", err)
	}
}

// TestErrorWithCode verifies status code and error fields are attached
func TestErrorWithCode(t *testing.T) {
	l := &Logger{Component: "test", InstanceID: "i-1", Container: "c-1"}

	out := captureOutput(func() {
		l.ErrorWithCode("org-abc", "req-2", "boom", 500, os.ErrClosed, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.Level != ERROR {
		t.Errorf("Expected level ERROR, got %s", entry.Level)
	}
	if code, ok := entry.Fields["status_code"].(float64); !ok || int(code) != 500 {
		t.Errorf("Expected status_code 500, got %v", entry.Fields["status_code"])
	}
	if entry.Fields["error"] == "" {
		t.Error("Expected error field to be set")
	}
}

// TestInfoWithDuration verifies duration_ms is attached
func TestInfoWithDuration(t *testing.T) {
	l := &Logger{Component: "test", InstanceID: "i-1", Container: "c-1"}

	out := captureOutput(func() {
		l.InfoWithDuration("org-abc", "req-3", "done", 12.5, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if dur, ok := entry.Fields["duration_ms"].(float64); !ok || dur != 12.5 {
		t.Errorf("Expected duration_ms 12.5, got %v", entry.Fields["duration_ms"])
	}
}

package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{name: "unset uses default true", value: "", defaultValue: true, want: true},
		{name: "unset uses default false", value: "", defaultValue: false, want: false},
		{name: "true", value: "true", defaultValue: false, want: true},
		{name: "TRUE", value: "TRUE", defaultValue: false, want: true},
		{name: "1", value: "1", defaultValue: false, want: true},
		{name: "yes", value: "yes", defaultValue: false, want: true},
		{name: "on", value: "on", defaultValue: false, want: true},
		{name: "false", value: "false", defaultValue: true, want: false},
		{name: "0", value: "0", defaultValue: true, want: false},
		{name: "no", value: "no", defaultValue: true, want: false},
		{name: "off with spaces", value: " off ", defaultValue: true, want: false},
		{name: "garbage uses default", value: "maybe", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KARUNABOT_TEST_BOOL", tt.value)
			if got := ParseBoolEnv("KARUNABOT_TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

package main

import (
	"strings"
	"testing"
)

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorGreen, "hello"); strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorGreen, "hello"); !strings.Contains(result, colorGreen) {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigCheckFailsWithoutRequiredEnv(t *testing.T) {
	for _, key := range []string{"MCP_AUTH_TOKEN", "VOYAGE_API_KEY", "DB_PASSWORD"} {
		t.Setenv(key, "")
	}

	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs([]string{"config", "check"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected an error with no credentials in the environment")
	}
	for _, key := range []string{"MCP_AUTH_TOKEN", "VOYAGE_API_KEY", "DB_PASSWORD"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q should name missing key %s", err, key)
		}
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points annabot at a fresh home directory with a clean
// environment.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("ANNABOT_HOME", home)
	for _, key := range []string{
		"ANNABOT_LOG_LEVEL", "ANNABOT_INFERENCE_PROVIDER", "ANNABOT_MODEL", "ANNABOT_STORE",
		"ANNABOT_GATEWAY_ADDR", "SUPABASE_URL", "SUPABASE_KEY", "REDIS_URL",
		"OPENROUTER_API_KEY", "HUGGINGFACE_API_KEY",
	} {
		t.Setenv(key, "")
	}
	cfgFile, logLevel = "", ""
	return home
}

func writeConfig(t *testing.T, home, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(body), 0o600))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	isolate(t)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "annabot")

	out, err = execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestConfigSetGetUnset(t *testing.T) {
	home := isolate(t)

	out, err := execute(t, "config", "set", "routing.triggerPrefix", "!anna")
	require.NoError(t, err)
	assert.Contains(t, out, "Set routing.triggerPrefix = !anna")

	out, err = execute(t, "config", "get", "routing.triggerPrefix")
	require.NoError(t, err)
	assert.Equal(t, "!anna\n", out)

	_, err = execute(t, "config", "set", "routing.historyLimit", "20")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "historyLimit: 20")

	out, err = execute(t, "config", "unset", "routing.triggerPrefix")
	require.NoError(t, err)
	assert.Contains(t, out, "Unset routing.triggerPrefix")

	_, err = execute(t, "config", "get", "routing.triggerPrefix")
	require.Error(t, err)
}

func TestConfigSecretsMasked(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "set", "inference.apiKey", "sk-or-abcdef9876")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-or")
	assert.Contains(t, out, "9876")

	out, err = execute(t, "config", "get", "inference.apiKey")
	require.NoError(t, err)
	assert.Equal(t, "************9876\n", out)

	out, err = execute(t, "config", "get", "inference.apiKey", "--reveal")
	require.NoError(t, err)
	assert.Equal(t, "sk-or-abcdef9876\n", out)
}

func TestConfigPath(t *testing.T) {
	home := isolate(t)

	out, err := execute(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)
}

func TestConfigCheck(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, "inference:\n  provider: openrouter\nstore:\n  driver: sqlite\n")

	out, err := execute(t, "config", "check")
	require.Error(t, err)
	assert.Contains(t, out, "OPENROUTER_API_KEY is missing")

	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	out, err = execute(t, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "config ok")
}

func TestRunRefusesMissingCredentials(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, "store:\n  driver: supabase\n")

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config check failed with 3 issue(s)")
}

func TestStatusCmd(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, "inference:\n  provider: ollama\nstore:\n  driver: sqlite\n")

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "provider=ollama")
	assert.Contains(t, out, "Store:     sqlite")
	assert.Contains(t, out, "Device:    not paired")
	assert.Contains(t, out, "Gateway:   disabled")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 42, parseValue("42"))
	assert.Equal(t, 0.7, parseValue("0.7"))
	assert.Equal(t, "@ai", parseValue("@ai"))
	assert.Equal(t, "sk-123", parseValue("sk-123"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", mask("abcd"))
	assert.Equal(t, "**cdef", mask("abcdef"))
	assert.Equal(t, "${OPENROUTER_API_KEY}", mask("${OPENROUTER_API_KEY}"))
	assert.True(t, isSecretKey("apiKey"))
	assert.True(t, isSecretKey("supabaseKey"))
	assert.True(t, isSecretKey("redisUrl"))
	assert.False(t, isSecretKey("model"))
}

// fakeOllama answers /api/chat and records the prompts it saw.
type fakeOllama struct {
	mu      sync.Mutex
	systems []string
}

func (f *fakeOllama) handler(reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
			f.mu.Lock()
			f.systems = append(f.systems, req.Messages[0].Content)
			f.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "llama3",
			"message": map[string]string{"role": "assistant", "content": reply},
			"done":    true,
		})
	}
}

func TestAskEndToEnd(t *testing.T) {
	home := isolate(t)
	fake := &fakeOllama{}
	srv := httptest.NewServer(fake.handler("heyyy Alice 😊"))
	defer srv.Close()

	writeConfig(t, home, strings.Join([]string{
		"inference:",
		"  provider: ollama",
		"  endpoint: " + srv.URL,
		"store:",
		"  driver: sqlite",
		"dedupe:",
		"  driver: memory",
	}, "\n")+"\n")

	out, err := execute(t, "ask", "--name", "Alice", "Hi")
	require.NoError(t, err)
	assert.Equal(t, "heyyy Alice 😊\n", out)

	out, err = execute(t, "ask", "--name", "Alice", "my exam is on friday")
	require.NoError(t, err)
	assert.Equal(t, "heyyy Alice 😊\n", out)

	_, err = execute(t, "ask", "--name", "Alice", "what's up?")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.systems, 3)
	assert.Contains(t, fake.systems[0], "user named Alice:\nNo recent messages.\n\n")
	assert.Contains(t, fake.systems[1], "Important memories to consider:\nmy exam is on friday")
	assert.Contains(t, fake.systems[2], "Hi\nAI Response: heyyy Alice 😊\nmy exam is on friday\nAI Response: heyyy Alice 😊\n\n")
	assert.Contains(t, fake.systems[2], "Important memories to consider:\nmy exam is on friday")

	_, err = os.Stat(filepath.Join(home, "data", "annabot.db"))
	assert.NoError(t, err)
}

func TestAskGroupWithoutTrigger(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, "inference:\n  provider: ollama\n  endpoint: http://127.0.0.1:1\nstore:\n  driver: sqlite\n")

	_, err := execute(t, "ask", "--group", "120363000000000001@g.us", "hello everyone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reply")
}

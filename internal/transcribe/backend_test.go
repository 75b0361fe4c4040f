package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
)

func TestNewBackend_SelectsAdapterByMethod(t *testing.T) {
	govCfg := config.GovernorConfig{}

	cases := []struct {
		method config.TranscriptionMethod
		label  string
	}{
		{config.MethodCTranslate2, "subprocess"},
		{config.MethodCTranslate2Nonpythonic, "subprocess"},
		{config.MethodWebUI, "webui"},
		{"", "subprocess"}, // spec.md §6 default: ctranslate2
	}

	for _, tc := range cases {
		t.Run(string(tc.method)+"_or_default", func(t *testing.T) {
			backend, err := NewBackend(config.TranscriptionConfig{Method: tc.method}, govCfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.label, backend.Label())
		})
	}
}

func TestNewBackend_UnknownMethodErrors(t *testing.T) {
	_, err := NewBackend(config.TranscriptionConfig{Method: "not-a-real-method"}, config.GovernorConfig{}, nil)
	assert.Error(t, err)
}

func TestNewBackend_PythonWhisperRejectedAtConfigTime(t *testing.T) {
	// No Go Whisper binding exists in this build (local.go); selecting this
	// method must fail fast at startup rather than silently skip-recording
	// every file once TR starts draining QT.
	_, err := NewBackend(config.TranscriptionConfig{Method: config.MethodPythonWhisper}, config.GovernorConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "python_whisper")
}

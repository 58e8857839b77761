package agent

import (
	"context"
	"testing"

	"github.com/polisai/realm-finder/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userMessage(text string) Message {
	return Message{Kind: "message", Role: RoleUser, Parts: []Part{TextPart(text)}}
}

func testRealms() []config.RealmConfig {
	return []config.RealmConfig{
		{Name: "OCI-10", Status: "degraded"},
		{Name: "OCI-1", Status: "operational"},
		{Name: "OCI-2"},
	}
}

func TestRealmExecutor_Execute(t *testing.T) {
	exec := NewRealmExecutor(testRealms())

	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{
			name:     "single realm",
			query:    "what is the status of the OCI-1 realm?",
			expected: "The OCI-1 realm is operational.",
		},
		{
			name:     "longer name is not a prefix match",
			query:    "how is oci-10 doing",
			expected: "The OCI-10 realm is degraded.",
		},
		{
			name:     "missing status",
			query:    "oci-2?",
			expected: "The OCI-2 realm is unknown.",
		},
		{
			name:     "all realms",
			query:    "what are the functioning realms and their status?",
			expected: "Realm status:\n- OCI-1: operational\n- OCI-10: degraded\n- OCI-2: unknown",
		},
		{
			name:     "several named realms",
			query:    "compare OCI-1 and OCI-2",
			expected: "Realm status:\n- OCI-1: operational\n- OCI-2: unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, err := exec.Execute(context.Background(), userMessage(tt.query))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, answer)
		})
	}
}

func TestRealmExecutor_NoRealms(t *testing.T) {
	answer, err := NewRealmExecutor(nil).Execute(context.Background(), userMessage("anything"))
	require.NoError(t, err)
	assert.Equal(t, "No realms are currently known.", answer)
}

func TestRealmExecutor_EmptyMessage(t *testing.T) {
	_, err := NewRealmExecutor(testRealms()).Execute(context.Background(), userMessage("  "))
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRealmExecutor_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRealmExecutor(testRealms()).Execute(ctx, userMessage("oci-1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRealmExecutor_DoesNotReorderInput(t *testing.T) {
	realms := testRealms()
	NewRealmExecutor(realms)
	assert.Equal(t, "OCI-10", realms[0].Name)
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("oci-1 realm", "oci-1"))
	assert.True(t, containsWord("is oci-1?", "oci-1"))
	assert.False(t, containsWord("oci-10", "oci-1"))
	assert.True(t, containsWord("oci-10 and oci-1", "oci-1"))
	assert.False(t, containsWord("xoci-1", "oci-1"))
}

func TestMessageText(t *testing.T) {
	msg := Message{Parts: []Part{TextPart("a"), {Kind: "file"}, TextPart("b")}}
	assert.Equal(t, "a\nb", msg.Text())
}

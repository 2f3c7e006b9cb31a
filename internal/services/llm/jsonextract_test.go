package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		anchors []string
		key     string
		want    string
	}{
		{
			name:  "plain object",
			reply: `{"sentiment":"negative","score":-0.7}`,
			key:   "sentiment", want: "negative",
		},
		{
			name:  "fenced block",
			reply: "Here is my analysis:\n```json\n{\"sentiment\": \"positive\"}\n```\nThanks",
			key:   "sentiment", want: "positive",
		},
		{
			name:    "object embedded in prose with nested braces",
			reply:   `Sure! {"decision":"SHORT","confidence":0.8,"reasoning":"guidance {cut} sharply","meta":{"a":1}} hope that helps`,
			anchors: []string{"decision"},
			key:     "decision", want: "SHORT",
		},
		{
			name:    "anchor picks the right object",
			reply:   `{"note":"ignore"} and then {"signal":"BUY","confidence":0.6}`,
			anchors: []string{"decision", "signal"},
			key:     "signal", want: "BUY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ExtractJSONObject(tt.reply, tt.anchors...)
			require.NoError(t, err)
			got, ok := StringField(obj, tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObjectMalformed(t *testing.T) {
	for _, reply := range []string{"", "I think you should buy.", `{"decision": "BUY",`, `{"unrelated":true}`} {
		_, err := ExtractJSONObject(reply, "decision")
		assert.ErrorIs(t, err, common.ErrMalformedResponse, reply)
	}
}

func TestFieldAccessors(t *testing.T) {
	obj := map[string]interface{}{"Score": "-0.25", "confidence": 0.9, "label": "HOLD"}

	score, ok := FloatField(obj, "score")
	require.True(t, ok)
	assert.InDelta(t, -0.25, score, 1e-9)

	conf, ok := FloatField(obj, "missing", "confidence")
	require.True(t, ok)
	assert.InDelta(t, 0.9, conf, 1e-9)

	_, ok = FloatField(obj, "label")
	assert.False(t, ok)
}

func TestSplitSystem(t *testing.T) {
	turns, system, err := splitSystem([]interfaces.Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
		{Role: "tool", Content: "odd role"},
	})
	require.NoError(t, err)
	assert.Equal(t, "be terse", system)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[1].Role)

	_, _, err = splitSystem([]interfaces.Message{{Role: RoleSystem, Content: "only system"}})
	assert.Error(t, err)
}

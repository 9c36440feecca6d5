package pluginapi

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate_Bounds(t *testing.T) {
	var short = "fits"
	assert.Equal(t, short, Truncate(short))

	var long = strings.Repeat("a", MaxStringLen+1)
	assert.Len(t, Truncate(long), MaxStringLen)
}

func TestTruncate_DoesNotSplitRunes(t *testing.T) {
	// A multi-byte rune straddling the limit is dropped, not halved.
	var s = strings.Repeat("a", MaxStringLen-1) + "é"
	var out = Truncate(s)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), MaxStringLen)
}

func TestTruncate_RepairsInvalidUTF8(t *testing.T) {
	var out = Truncate("ok\xffbad")
	assert.True(t, utf8.ValidString(out))
}

func TestTodoState_Done(t *testing.T) {
	assert.True(t, StateChecked.Done())
	assert.True(t, StateCancelled.Done())
	assert.False(t, StateEmpty.Done())
	assert.False(t, StateInProgress.Done())
	assert.False(t, StateQuestion.Done())
	assert.False(t, StateExclamation.Done())
}

func TestConfigValueConstructors(t *testing.T) {
	assert.Equal(t, KindText, Text("x").Kind)
	assert.Equal(t, KindInt, Int(1).Kind)
	assert.Equal(t, KindBool, Bool(true).Kind)
	assert.Equal(t, KindTextList, TextList([]string{"a"}).Kind)
}

func TestConfigSchema_Field(t *testing.T) {
	var schema = ConfigSchema{Fields: []ConfigField{{Name: "a"}, {Name: "b"}}}
	assert.NotNil(t, schema.Field("b"))
	assert.Nil(t, schema.Field("c"))
}

func TestCommandConstructors(t *testing.T) {
	var c = NewCreateTodo(CreateTodo{Content: "x"})
	assert.Equal(t, CmdCreateTodo, c.Kind)
	assert.NotNil(t, c.Create)

	var d = NewDeleteTodo("id")
	assert.Equal(t, CmdDeleteTodo, d.Kind)
	assert.Equal(t, "id", d.Delete.ID)
}

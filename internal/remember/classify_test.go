package remember

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	known := commandNames{"build", "grep"}

	cases := []struct {
		text string
		kind Kind
		name string
		args []string
	}{
		{"build web app", KindCommand, "build", []string{"web", "app"}},
		{"  Grep TODO  ", KindCommand, "grep", []string{"TODO"}},
		{"@deploy prod", KindCommand, "deploy", []string{"prod"}},
		{"perform 3", KindRecursive, "perform", nil},
		{"@remember x", KindRecursive, "remember", nil},
		{"builder pattern notes", KindFreeText, "", nil},
		{"@", KindFreeText, "", nil},
		{"", KindFreeText, "", nil},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			inst := Classify(tc.text, known)
			assert.Equal(t, tc.kind, inst.Kind)
			assert.Equal(t, tc.name, inst.Name)
			if tc.kind == KindCommand {
				assert.Equal(t, tc.args, inst.Args)
			}
		})
	}
}

func TestClassify_NilCommandSet(t *testing.T) {
	assert.Equal(t, KindFreeText, Classify("build it", nil).Kind)
	assert.Equal(t, KindCommand, Classify("@build it", nil).Kind)
}

func TestPreview(t *testing.T) {
	short := "short text"
	assert.Equal(t, short, Preview(short))

	long := make([]rune, 100)
	for i := range long {
		long[i] = 'é'
	}
	got := []rune(Preview(string(long)))
	assert.Len(t, got, 81)
	assert.Equal(t, '…', got[80])
}

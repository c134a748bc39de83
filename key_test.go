package twindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocKey_Less(t *testing.T) {
	tt := []struct {
		key1 string
		key2 string
		less bool
	}{
		{"essays/11", "essays/100", true},
		{"essays/1", "essays/999", true},
		{"essays/100", "essays/11", false},
		{"essaya", "essayb", true},
		{"essayc", "essayb", false},
		{"essays/a", "essays/b", true},
		{"essays/a/2", "essays/b/1", true},
		{"essays/a", "essays/b/0", true},
		{"essays", "essays/1", true},
		{"papers", "reports", true},
		{"papers/9", "reports/1", true},
		{"essays/1", "essays/1/draft", true},
		{"thesis/8976", "thesis/8976", false},
		{"thesis/1145", "thesis/1144", false},
		{"thesis/1145", "thesis/1146", true},
	}

	for _, tc := range tt {
		t.Run(tc.key1+"_"+tc.key2, func(t *testing.T) {
			keyA := newDocKey(tc.key1)
			keyB := newDocKey(tc.key2)

			assert.Equal(t, tc.less, keyA.Less(keyB))
		})
	}
}

func TestDocKey_Match(t *testing.T) {
	tt := []struct {
		key     string
		pattern string
		match   bool
	}{
		{"essays/11", "*", true},
		{"essays/11", "", true},
		{"essays/11", "essays/11", true},
		{"essays/11", "essays/*", true},
		{"essays/11", "*/11", true},
		{"essays/11", "reports/*", false},
		{"essays/11", "essays/12", false},
		{"essays/11/draft", "essays/11", true},
		{"essays/11", "essays/11/draft", false},
		{"essays/11", "essays/11/*", true},
	}

	for _, tc := range tt {
		t.Run(tc.key+"_vs_"+tc.pattern, func(t *testing.T) {
			dk := newDocKey(tc.key)

			var patterns []string
			if tc.pattern != "" {
				patterns = strings.Split(tc.pattern, keySeparator)
			}

			assert.Equal(t, tc.match, dk.Match(patterns))
		})
	}
}

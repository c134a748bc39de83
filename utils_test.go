package twindex_test

import (
	"fmt"
	"math/rand"
	"strings"
)

// word pool for synthetic corpora, large enough that two random documents
// share almost no 8 character shingles
var wordPool = []string{
	"harbor", "granite", "velvet", "thicket", "lantern", "meridian", "copper",
	"drift", "hollow", "ember", "crescent", "tundra", "basalt", "juniper",
	"quarry", "sable", "tidal", "borough", "cinder", "fathom", "garland",
	"heather", "isthmus", "kestrel", "ledger", "marrow", "nimbus", "orchard",
	"pewter", "quiver", "russet", "sycamore", "timber", "umber", "vellum",
	"walnut", "yonder", "zephyr", "alcove", "bramble",
}

func randomWords(r *rand.Rand, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = wordPool[r.Intn(len(wordPool))]
	}
	return strings.Join(words, " ")
}

// randomEssay produces a deterministic pseudo random document for the given
// seed, distinct seeds give documents that are nothing alike.
func randomEssay(seed int64, words int) string {
	r := rand.New(rand.NewSource(seed))
	return fmt.Sprintf("essay %d. %s", seed, randomWords(r, words))
}

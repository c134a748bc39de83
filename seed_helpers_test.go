package twindex_test

import (
	"context"
	"testing"

	"github.com/denismitr/twindex"
)

const essayAlpha = `The old harbor wakes before the town does. Fishermen drag their
crates over wet granite while gulls argue about the scraps of yesterday, and
the first ferry grumbles out past the breakwater with its lights still on.
By the time the bakeries open, the quay smells of diesel, salt and warm
bread, a mixture nobody who grew up here can ever quite leave behind. The
harbormaster keeps a ledger of every arrival in pencil, because ink, he
says, is for people who believe the weather keeps promises.`

// essayAlphaEdited is essayAlpha with a handful of words swapped out, close
// enough that banding must surface it as a candidate for the original.
const essayAlphaEdited = `The old harbor wakes before the city does. Fishermen drag their
crates over wet granite while gulls argue about the scraps of yesterday, and
the last ferry grumbles out past the breakwater with its lights still on.
By the time the bakeries open, the quay smells of diesel, salt and warm
bread, a mixture nobody who grew up here can ever quite leave behind. The
harbormaster keeps a journal of every arrival in pencil, because ink, he
says, is for people who believe the weather keeps promises.`

const essayBeta = `Glacier meltwater carries a fine rock flour that turns alpine lakes
an implausible shade of turquoise. The particles are small enough to stay
suspended for months, scattering sunlight at exactly the wavelengths
postcards prefer. Downstream the same silt settles into terraces that
farmers have worked for centuries, which is why so many mountain villages
sit precisely where the water slows down.`

const essayGamma = `A well kept sourdough starter is older than most of the bakers who
feed it. Flour, water and patience assemble a culture that remembers every
kitchen it has lived in, and moving one across a border involves more
paperwork than moving a dog. Bakers trade them the way gardeners trade
cuttings, with ceremony and slightly exaggerated origin stories.`

// tinyNote is shorter than one shingle and must index as an empty document.
const tinyNote = `quay`

func seedEssays(t *testing.T, x *twindex.Index) {
	t.Helper()

	err := x.Update(context.Background(), func(b *twindex.Bulk) error {
		if err := b.Add("essays/1", essayAlpha, twindex.M{"author": "m.kovacs", "year": 2019}); err != nil {
			return err
		}

		if err := b.Add("essays/2", essayAlphaEdited, twindex.M{"author": "unknown", "year": 2021}); err != nil {
			return err
		}

		if err := b.Add("essays/3", essayBeta, twindex.WithMeta().Str("author", "l.moreau").Bool("reviewed", true)); err != nil {
			return err
		}

		if err := b.Add("notes/1", essayGamma); err != nil {
			return err
		}

		return b.Add("notes/tiny", tinyNote)
	})
	if err != nil {
		t.Fatal(err)
	}
}

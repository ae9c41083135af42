package resource

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/keithlinneman/resource/internal/assets"
)

func TestAssets_FrozenAndLiveAgree(t *testing.T) {
	frozen, err := New(Options{Mode: ModeFrozen, Embedded: assets.FS(), Require: assets.Required})
	if err != nil {
		t.Fatalf("frozen: %v", err)
	}
	live, err := New(Options{Mode: ModeLive, Root: assets.SourceDir(), Require: assets.Required})
	if err != nil {
		t.Fatalf("live: %v", err)
	}

	for _, dir := range []string{".", "strings", "blobs"} {
		fe, err := LoadDir[[]byte](frozen, dir)
		if err != nil {
			t.Fatal(err)
		}
		le, err := LoadDir[[]byte](live, dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(fe) == 0 || len(fe) != len(le) {
			t.Fatalf("%s: frozen %d entries, live %d", dir, len(fe), len(le))
		}
		for i := range fe {
			if fe[i].Name != le[i].Name {
				t.Fatalf("%s[%d]: %s vs %s", dir, i, fe[i].Name, le[i].Name)
			}
			if diff := cmp.Diff(fe[i].Resource.Content(), le[i].Resource.Content()); diff != "" {
				t.Errorf("%s differs (-frozen +live):\n%s", fe[i].Name, diff)
			}
		}
	}

	static := Static(assets.Str)
	if !static.Equal(live.MustText("str.txt").Content()) {
		t.Fatal("Static(assets.Str) differs from the file")
	}
}

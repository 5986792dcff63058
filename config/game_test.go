package config

import "testing"

const testGameYaml = `
name: frogger-alpha
build: 1
matrix_padding_before: 3
polygon_flags_first_before: 2
counterparts:
  GEN_FROG_LOW.XMR: GEN_FROG.XMR
textures:
  remap: [10, 11, 12]
  images: [10, 12]
`

func TestParseGame(t *testing.T) {
	g, err := ParseGame([]byte(testGameYaml))
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "frogger-alpha" || g.Build != BUILD_ALPHA {
		t.Errorf("Unexpected game header: %+v", g)
	}
	if !g.TolerateMatrixPadding() {
		t.Errorf("Alpha build must tolerate matrix padding")
	}
	if !g.PolygonFlagsFirst() {
		t.Errorf("Alpha build must keep polygon flags first")
	}
	if cp, ok := g.Counterpart("GEN_FROG_LOW.XMR"); !ok || cp != "GEN_FROG.XMR" {
		t.Errorf("Counterpart lookup returned %q %v", cp, ok)
	}
	if len(g.Textures.Remap) != 3 || len(g.Textures.Images) != 2 {
		t.Errorf("Texture table not loaded: %+v", g.Textures)
	}
}

func TestCapabilitiesByBuild(t *testing.T) {
	for _, test := range []struct {
		build      int
		matrixPad  bool
		flagsFirst bool
	}{
		{BUILD_UNKNOWN, false, false},
		{BUILD_ALPHA, true, true},
		{BUILD_PROTOTYPE, true, false},
		{BUILD_RETAIL, false, false},
	} {
		g := &Game{Build: test.build, MatrixPaddingBefore: BUILD_RETAIL, PolygonFlagsFirstBefore: BUILD_PROTOTYPE}
		if got := g.TolerateMatrixPadding(); got != test.matrixPad {
			t.Errorf("build %d: TolerateMatrixPadding()=%v; expected %v", test.build, got, test.matrixPad)
		}
		if got := g.PolygonFlagsFirst(); got != test.flagsFirst {
			t.Errorf("build %d: PolygonFlagsFirst()=%v; expected %v", test.build, got, test.flagsFirst)
		}
	}
}

func TestParseGameRejectsBadBuild(t *testing.T) {
	if _, err := ParseGame([]byte("build: 42\n")); err == nil {
		t.Errorf("Expected error for unknown build ordinal")
	}
}

package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Build ordinals of the titles the browser was used with. Larger is newer.
const (
	BUILD_UNKNOWN = iota
	BUILD_ALPHA
	BUILD_PROTOTYPE
	BUILD_RETAIL
)

type TextureTable struct {
	Remap  []uint16 `yaml:"remap"`
	Images []uint16 `yaml:"images"`
}

type Game struct {
	Name  string `yaml:"name"`
	Build int    `yaml:"build"`

	// 4 byte pad after collision matrices is tolerated before this build
	MatrixPaddingBefore int `yaml:"matrix_padding_before"`
	// textured polygons keep their flag word ahead of vertex indices before this build
	PolygonFlagsFirstBefore int `yaml:"polygon_flags_first_before"`

	// incomplete model file name -> complete model file name
	Counterparts map[string]string `yaml:"counterparts"`
	Textures     TextureTable      `yaml:"textures"`
}

func (g *Game) IsBefore(build int) bool {
	return g.Build != BUILD_UNKNOWN && g.Build < build
}

func (g *Game) TolerateMatrixPadding() bool {
	return g.IsBefore(g.MatrixPaddingBefore)
}

func (g *Game) PolygonFlagsFirst() bool {
	return g.IsBefore(g.PolygonFlagsFirstBefore)
}

func (g *Game) Counterpart(name string) (string, bool) {
	cp, ok := g.Counterparts[name]
	return cp, ok
}

func ParseGame(data []byte) (*Game, error) {
	g := &Game{}
	if err := yaml.Unmarshal(data, g); err != nil {
		return nil, errors.Wrapf(err, "Failed to unmarshal game config")
	}
	if g.Build < BUILD_UNKNOWN || g.Build > BUILD_RETAIL {
		return nil, errors.Errorf("Invalid build ordinal %d", g.Build)
	}
	return g, nil
}

func LoadGame(path string) (*Game, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	return ParseGame(data)
}

var currentGame = &Game{Name: "default", Build: BUILD_RETAIL}

func GetGame() *Game {
	return currentGame
}

func SetGame(g *Game) {
	currentGame = g
}

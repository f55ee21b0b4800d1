// Package labels holds the fixed taxonomy that collapses the fine-grained
// annotation ids into eight display groups, and the color of each group.
package labels

import (
	"image/color"

	"github.com/khaledhikmat/vs-segment/model"
)

const (
	Background = iota
	Flat
	Construction
	Object
	Nature
	Sky
	Human
	Vehicle
)

// Groups is the number of coarse groups.
const Groups = 8

// LicensePlate is the sentinel raw id of the license plate class.
const LicensePlate = -1

type entry struct {
	raw   int
	group int
	name  string
}

// Order matters: the last raw id listed for a group is its representative.
var taxonomy = []entry{
	{0, Background, "unlabeled"},
	{1, Background, "ego vehicle"},
	{2, Background, "rect border"},
	{3, Background, "out of roi"},
	{4, Background, "static"},
	{5, Background, "dynamic"},
	{6, Background, "ground"},
	{7, Flat, "road"},
	{8, Flat, "sidewalk"},
	{9, Flat, "parking"},
	{10, Flat, "rail track"},
	{11, Construction, "building"},
	{12, Construction, "wall"},
	{13, Construction, "fence"},
	{14, Construction, "guard rail"},
	{15, Construction, "bridge"},
	{16, Construction, "tunnel"},
	{17, Object, "pole"},
	{18, Object, "polegroup"},
	{19, Object, "traffic light"},
	{20, Object, "traffic sign"},
	{21, Nature, "vegetation"},
	{22, Nature, "terrain"},
	{23, Sky, "sky"},
	{24, Human, "person"},
	{25, Human, "rider"},
	{26, Vehicle, "car"},
	{27, Vehicle, "truck"},
	{28, Vehicle, "bus"},
	{29, Vehicle, "caravan"},
	{30, Vehicle, "trailer"},
	{31, Vehicle, "train"},
	{32, Vehicle, "motorcycle"},
	{33, Vehicle, "bicycle"},
	{LicensePlate, Vehicle, "license plate"},
}

var groupColors = [Groups]color.RGBA{
	Background:   {255, 0, 0, 255},
	Flat:         {0, 255, 0, 255},
	Construction: {0, 0, 255, 255},
	Object:       {255, 255, 0, 255},
	Nature:       {255, 0, 255, 255},
	Sky:          {0, 255, 255, 255},
	Human:        {255, 102, 26, 255},
	Vehicle:      {163, 41, 122, 255},
}

var groupNames = [Groups]string{
	"background", "flat", "construction", "object", "nature", "sky", "human", "vehicle",
}

var (
	rawToGroup     = map[int]int{}
	rawToName      = map[int]string{}
	representative [Groups]int
)

func init() {
	for _, e := range taxonomy {
		rawToGroup[e.raw] = e.group
		rawToName[e.raw] = e.name
		representative[e.group] = e.raw
	}
}

// CoarseGroup returns the display group of a raw annotation id.
func CoarseGroup(rawID int) (int, error) {
	g, ok := rawToGroup[rawID]
	if !ok {
		return 0, model.Errorf(model.UnknownLabel, "coarse group", "raw id %d is not in the taxonomy", rawID)
	}
	return g, nil
}

// ColorOf returns the display color of a coarse group.
func ColorOf(group int) (color.RGBA, error) {
	if group < 0 || group >= Groups {
		return color.RGBA{}, model.Errorf(model.UnknownLabel, "color of", "coarse group %d is out of range", group)
	}
	return groupColors[group], nil
}

// ColorOfRaw is ColorOf(CoarseGroup(rawID)).
func ColorOfRaw(rawID int) (color.RGBA, error) {
	g, err := CoarseGroup(rawID)
	if err != nil {
		return color.RGBA{}, err
	}
	return ColorOf(g)
}

// Representative returns the raw id that stands in for a coarse group when
// mapping network output back to colors.
func Representative(group int) (int, error) {
	if group < 0 || group >= Groups {
		return 0, model.Errorf(model.UnknownLabel, "representative", "coarse group %d is out of range", group)
	}
	return representative[group], nil
}

func Name(rawID int) (string, error) {
	n, ok := rawToName[rawID]
	if !ok {
		return "", model.Errorf(model.UnknownLabel, "name", "raw id %d is not in the taxonomy", rawID)
	}
	return n, nil
}

func GroupName(group int) (string, error) {
	if group < 0 || group >= Groups {
		return "", model.Errorf(model.UnknownLabel, "group name", "coarse group %d is out of range", group)
	}
	return groupNames[group], nil
}

// RawIDs lists every raw id of the taxonomy in declaration order.
func RawIDs() []int {
	ids := make([]int, len(taxonomy))
	for i, e := range taxonomy {
		ids[i] = e.raw
	}
	return ids
}

// Palette returns the colors of all groups, indexed by group.
func Palette() []color.RGBA {
	p := make([]color.RGBA, Groups)
	copy(p, groupColors[:])
	return p
}

// ColorTable resolves every group to its display color once, going through the
// representative raw id of each group.
func ColorTable() ([Groups]color.RGBA, error) {
	var table [Groups]color.RGBA
	for g := 0; g < Groups; g++ {
		raw, err := Representative(g)
		if err != nil {
			return table, err
		}
		c, err := ColorOfRaw(raw)
		if err != nil {
			return table, err
		}
		table[g] = c
	}
	return table, nil
}

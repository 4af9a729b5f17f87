package api

import (
	"fmt"
	"strings"
)

// Model is the device model ID as used by libdivecomputer.
type Model uint8

const (
	ModelIconHD    Model = 0x14
	ModelIconAir   Model = 0x15
	ModelPuckPro   Model = 0x18
	ModelNemoWide2 Model = 0x19
	ModelGenius    Model = 0x1C
	ModelPuck2     Model = 0x1F
	ModelQuadAir   Model = 0x23
	ModelSmartAir  Model = 0x24
	ModelQuad      Model = 0x29
	ModelHorizon   Model = 0x2C
	ModelPuckAir2  Model = 0x2D
	ModelSirius    Model = 0x2F
	ModelQuadCi    Model = 0x31
	ModelQuad2     Model = 0x32
	ModelPuck4     Model = 0x35
	ModelUnknown   Model = 0xFF
)

// modelNames maps the name reported by the version query to a model.
var modelNames = map[string]Model{
	"Icon HD":     ModelIconHD,
	"Icon AIR":    ModelIconAir,
	"Puck Pro":    ModelPuckPro,
	"Puck Pro+":   ModelPuckPro,
	"Nemo Wide 2": ModelNemoWide2,
	"Genius":      ModelGenius,
	"Puck 2":      ModelPuck2,
	"Quad Air":    ModelQuadAir,
	"Smart Air":   ModelSmartAir,
	"Quad":        ModelQuad,
	"Horizon":     ModelHorizon,
	"Puck Air 2":  ModelPuckAir2,
	"Sirius":      ModelSirius,
	"Quad Ci":     ModelQuadCi,
	"Quad2":       ModelQuad2,
	"Puck4":       ModelPuck4,
	"Puck Lite":   ModelPuck4,
	"Puck":        ModelPuck4,
	"Puck Pro U":  ModelPuck4,
}

// ModelFromName looks up a model by its reported name.
func ModelFromName(name string) Model {
	name = strings.TrimSpace(strings.TrimRight(name, "\x00"))
	if m, ok := modelNames[name]; ok {
		return m
	}
	return ModelUnknown
}

func (m Model) String() string {
	switch m {
	case ModelIconHD:
		return "Icon HD"
	case ModelIconAir:
		return "Icon AIR"
	case ModelPuckPro:
		return "Puck Pro"
	case ModelNemoWide2:
		return "Nemo Wide 2"
	case ModelGenius:
		return "Genius"
	case ModelPuck2:
		return "Puck 2"
	case ModelQuadAir:
		return "Quad Air"
	case ModelSmartAir:
		return "Smart Air"
	case ModelQuad:
		return "Quad"
	case ModelHorizon:
		return "Horizon"
	case ModelPuckAir2:
		return "Puck Air 2"
	case ModelSirius:
		return "Sirius"
	case ModelQuadCi:
		return "Quad Ci"
	case ModelQuad2:
		return "Quad2"
	case ModelPuck4:
		return "Puck4"
	case ModelUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Model(0x%02X)", uint8(m))
	}
}

func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

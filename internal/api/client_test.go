package api_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vitaminmoo/geniusdl/internal/api"
	"github.com/vitaminmoo/geniusdl/internal/protocol"
	"github.com/vitaminmoo/geniusdl/internal/protocol/ecoptest"
)

func TestModelFromName(t *testing.T) {
	tests := []struct {
		name string
		want api.Model
	}{
		{"Sirius", api.ModelSirius},
		{"Quad Ci", api.ModelQuadCi},
		{"Quad2", api.ModelQuad2},
		{"Puck Lite", api.ModelPuck4},
		{"Puck Pro U", api.ModelPuck4},
		{"Puck Pro+", api.ModelPuckPro},
		{"Genius\x00\x00", api.ModelGenius},
		{"  Horizon ", api.ModelHorizon},
		{"Nautilus", api.ModelUnknown},
		{"", api.ModelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := api.ModelFromName(tt.name); got != tt.want {
				t.Errorf("ModelFromName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestGetDeviceInfo(t *testing.T) {
	dev := ecoptest.NewDevice()
	dev.ModelName = "Genius"
	dev.Objects[protocol.PCBNumberAddress] = []byte("GN2311A00042\x00\x00\x00\x00")
	for i := 0; i < 3; i++ {
		dev.AddDive(i, make([]byte, 200), make([]byte, 400))
	}

	info, err := api.New(dev).GetDeviceInfo()
	if err != nil {
		t.Fatalf("GetDeviceInfo() error: %v", err)
	}
	if info.Model != api.ModelGenius || info.ModelName != "Genius" {
		t.Errorf("model = %v (%q)", info.Model, info.ModelName)
	}
	if info.PCBNumber != "GN2311A00042" {
		t.Errorf("PCBNumber = %q", info.PCBNumber)
	}
	if info.DiveCount != 3 {
		t.Errorf("DiveCount = %d, want 3", info.DiveCount)
	}
}

func TestReadDiveObjects(t *testing.T) {
	dev := ecoptest.NewDevice()
	header := bytes.Repeat([]byte{0x11}, 200)
	profile := bytes.Repeat([]byte{0x22}, 700)
	dev.AddDive(0, header, profile)
	c := api.New(dev)

	got, err := c.ReadDiveHeader(0)
	if err != nil || !bytes.Equal(got, header) {
		t.Errorf("ReadDiveHeader(0) = %d bytes, %v", len(got), err)
	}
	got, err = c.ReadDiveProfile(0)
	if err != nil || !bytes.Equal(got, profile) {
		t.Errorf("ReadDiveProfile(0) = %d bytes, %v", len(got), err)
	}
	if _, err := c.ReadDiveHeader(1); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("ReadDiveHeader(1) error = %v, want ErrNotFound", err)
	}
}

func TestReadDiagnostics(t *testing.T) {
	dev := ecoptest.NewDevice()
	dev.Objects[protocol.PCBNumberAddress] = []byte("GN2311A00042\x00\x00\x00\x00")
	dev.Objects[protocol.WarrantyAddress] = []byte{0x01, 0x02}
	dev.Drop = func(op byte, addr protocol.ObjectAddress, _ int) bool {
		return op == protocol.CmdUpload && addr == protocol.DiveModeNameAddress
	}

	diags, err := api.New(dev).ReadDiagnostics()
	if err != nil {
		t.Fatalf("ReadDiagnostics() error: %v", err)
	}
	if len(diags) != len(protocol.DiagnosticObjects) {
		t.Fatalf("got %d diagnostics", len(diags))
	}
	if diags[0].Outcome.Kind != protocol.Segmented || diags[1].Outcome.Kind != protocol.Expedited {
		t.Errorf("kinds = %v, %v", diags[0].Outcome.Kind, diags[1].Outcome.Kind)
	}
	if !errors.Is(diags[2].Err, protocol.ErrTimeout) {
		t.Errorf("dropped object error = %v", diags[2].Err)
	}
	if diags[3].Outcome.Kind != protocol.Aborted || diags[3].Err != nil {
		t.Errorf("absent object = %+v", diags[3])
	}
}

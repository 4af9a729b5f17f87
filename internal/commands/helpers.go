package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitaminmoo/geniusdl/internal/api"
	"github.com/vitaminmoo/geniusdl/internal/ble"
	"github.com/vitaminmoo/geniusdl/internal/config"
	"github.com/vitaminmoo/geniusdl/internal/logging"
	"github.com/vitaminmoo/geniusdl/internal/protocol"
	"github.com/vitaminmoo/geniusdl/internal/store"
	"github.com/vitaminmoo/geniusdl/internal/tui"
)

var styles = tui.DefaultStyles()

// PrintJSON pretty-prints v to stdout.
func PrintJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printField(label string, value any) {
	fmt.Println(styles.Field(label, fmt.Sprint(value)))
}

func printTitle(title string) {
	fmt.Println(styles.Title.Render(title))
	fmt.Println()
}

// scanOptions builds scan options from the device section of cfg.
func scanOptions(cfg *config.Config) ble.ScanOptions {
	return ble.ScanOptions{
		Prefixes: cfg.Device.NamePrefixes,
		Address:  cfg.Device.Address,
		Timeout:  cfg.Device.ScanTimeout,
	}
}

// connect finds and connects to the configured device and wraps it in a
// client. The caller closes the returned connection.
func connect(ctx context.Context, cfg *config.Config) (*ble.Conn, *api.Client, error) {
	fmt.Println(styles.Muted.Render("Scanning for dive computer..."))
	conn, err := ble.Connect(ctx, ble.ConnectOptions{
		Scan:       scanOptions(cfg),
		WriteUUID:  cfg.Device.WriteUUID,
		NotifyUUID: cfg.Device.NotifyUUID,
	})
	if err != nil {
		return nil, nil, err
	}
	fmt.Printf("Connected to %s (%s)\n", styles.Highlight.Render(conn.Name()), conn.Address())

	client := api.New(conn,
		protocol.WithTimeout(cfg.Protocol.CommandTimeout),
		protocol.WithLogger(logging.Named("protocol")),
	)
	return conn, client, nil
}

// closeConn disconnects and logs notifications lost to a full queue.
func closeConn(conn *ble.Conn) {
	if n := conn.Dropped(); n > 0 {
		logging.Warn("notifications dropped", zap.Int("count", n))
	}
	if err := conn.Close(); err != nil {
		logging.Debug("disconnect failed", zap.Error(err))
	}
}

// deviceSource identifies the connected device for store provenance. A
// device without a readable PCB number is still usable.
func deviceSource(client *api.Client, conn *ble.Conn) (store.Source, error) {
	v, err := client.Engine().Version()
	if err != nil {
		return store.Source{}, fmt.Errorf("failed to query version: %w", err)
	}
	pcb, err := client.PCBNumber()
	if err != nil {
		if protocol.IsTransport(err) {
			return store.Source{}, err
		}
		if !errors.Is(err, api.ErrNotFound) {
			logging.Warn("PCB number unavailable", zap.Error(err))
		}
	}
	return store.Source{
		Model:      v.ModelName,
		PCBNumber:  pcb,
		DeviceAddr: conn.Address(),
		Method:     "download",
	}, nil
}

// OpenStore opens the store configured in cfg.
func OpenStore(cfg *config.Config) (*store.Store, error) {
	dir, err := cfg.ResolveStoreDir()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vitaminmoo/geniusdl/internal/ble"
	"github.com/vitaminmoo/geniusdl/internal/config"
)

// Scan lists nearby Mares devices. With enumerate set it also connects to
// each one and prints its GATT services and characteristics.
func Scan(ctx context.Context, cfg *config.Config, all, enumerate bool) error {
	opts := scanOptions(cfg)
	if all {
		opts.Prefixes = []string{""}
		opts.Address = ""
	}

	fmt.Printf("Scanning for %s...\n", cfg.Device.ScanTimeout)
	found, err := ble.Scan(ctx, opts)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(found))
	for _, f := range found {
		fmt.Printf("  %s  %s  %4d dBm\n", styles.Highlight.Render(fmt.Sprintf("%-20s", f.Name)), f.Address, f.RSSI)
		if !enumerate {
			continue
		}
		services, err := ble.EnumerateGATT(ctx, f)
		if err != nil {
			fmt.Println("    " + styles.Error.Render(err.Error()))
			continue
		}
		for _, svc := range services {
			fmt.Printf("    service %s\n", svc.UUID)
			for _, c := range svc.Characteristics {
				mark := ""
				switch {
				case strings.EqualFold(c, cfg.Device.WriteUUID):
					mark = styles.Muted.Render("  (write)")
				case strings.EqualFold(c, cfg.Device.NotifyUUID):
					mark = styles.Muted.Render("  (notify)")
				}
				fmt.Printf("      char %s%s\n", c, mark)
			}
		}
	}
	return nil
}

// Info prints model, PCB number and dive count.
func Info(ctx context.Context, cfg *config.Config, asJSON bool) error {
	conn, client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeConn(conn)

	info, err := client.GetDeviceInfo()
	if err != nil {
		return err
	}
	if asJSON {
		return PrintJSON(info)
	}

	fmt.Println()
	printTitle("Device")
	printField("Model", fmt.Sprintf("%s (%s)", info.ModelName, info.Model))
	if info.PCBNumber != "" {
		printField("PCB number", info.PCBNumber)
	}
	printField("Dives", info.DiveCount)
	return nil
}

// SetClock sets the device clock to t, or to the current time when t is zero.
func SetClock(ctx context.Context, cfg *config.Config, t time.Time) error {
	if t.IsZero() {
		t = time.Now()
	}

	conn, client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeConn(conn)

	if err := client.SetClock(t); err != nil {
		return err
	}
	fmt.Println(styles.Success.Render("Clock set to " + t.Format(time.DateTime)))
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/vitaminmoo/geniusdl/internal/config"
	"github.com/vitaminmoo/geniusdl/internal/protocol"
	"github.com/vitaminmoo/geniusdl/internal/util"
)

// Objects reads the diagnostic objects, or the given addresses, and prints
// each as text or a hex dump.
func Objects(ctx context.Context, cfg *config.Config, addrs []string) error {
	var targets []protocol.ObjectAddress
	for _, a := range addrs {
		addr, err := protocol.ParseAddress(a)
		if err != nil {
			return err
		}
		targets = append(targets, addr)
	}

	conn, client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeConn(conn)
	fmt.Println()

	if len(targets) == 0 {
		diags, err := client.ReadDiagnostics()
		for _, d := range diags {
			printObject(d.Name, d.Address, d.Outcome, d.Err)
		}
		return err
	}

	for _, addr := range targets {
		out, err := client.ReadObject(addr)
		if protocol.IsTransport(err) {
			return err
		}
		printObject("", addr, out, err)
	}
	return nil
}

func printObject(name string, addr protocol.ObjectAddress, out protocol.Outcome, err error) {
	label := addr.String()
	if name != "" {
		label = fmt.Sprintf("%s %s", name, label)
	}
	fmt.Println(styles.Highlight.Render(label))

	switch {
	case err != nil:
		fmt.Println("  " + styles.Error.Render(err.Error()))
	case !out.Found():
		fmt.Println("  " + styles.Muted.Render("not present"))
	case util.IsTextData(out.Data):
		fmt.Printf("  %s, %d bytes: %q\n", out.Kind, len(out.Data), trimNUL(out.Data))
	default:
		fmt.Printf("  %s, %d bytes\n", out.Kind, len(out.Data))
		fmt.Print(util.HexDump(out.Data))
	}
	fmt.Println()
}

func trimNUL(b []byte) string {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// Command bucketctl drives a bucketview server from the shell: it browses the
// tree, moves bytes through capability URLs and deletes objects.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/damacus/bucketview/internal/client"
	"github.com/damacus/bucketview/internal/models"
	"github.com/damacus/bucketview/internal/utils"
	"github.com/spf13/pflag"
)

const usage = `Usage: bucketctl [global flags] <command> [args]

Commands:
  ls [prefix]            show the tree under prefix
  url <key>              print a read (or --write) capability URL
  get <key>              download key to stdout or --output
  upload <file> [folder] upload a local file into folder
  rm <key>               delete key

Global flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "bucketctl: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	server  string
	token   string
	timeout time.Duration
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	g := globals{
		server: envOr("BUCKETVIEW_URL", "http://localhost:8080"),
		token:  os.Getenv("BUCKETVIEW_API_TOKEN"),
	}
	fs := pflag.NewFlagSet("bucketctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVar(&g.server, "server", g.server, "bucketview base URL (env BUCKETVIEW_URL)")
	fs.StringVar(&g.token, "token", g.token, "API token (env BUCKETVIEW_API_TOKEN)")
	fs.DurationVar(&g.timeout, "timeout", 5*time.Minute, "overall deadline for the command")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	c, err := client.New(g.server, client.WithToken(g.token))
	if err != nil {
		return err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "ls":
		return runList(ctx, c, rest, stdout, stderr)
	case "url":
		return runURL(ctx, c, rest, stdout, stderr)
	case "get":
		return runGet(ctx, c, rest, stdout, stderr)
	case "upload":
		return runUpload(ctx, c, rest, stdout, stderr)
	case "rm":
		return runRemove(ctx, c, rest, stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runList(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("ls", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print the raw tree as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(1))
	}

	nodes, err := c.List(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}
	return printTree(stdout, fs.Arg(0), nodes)
}

// printTree renders one row per node, indenting by folder depth below root
func printTree(w io.Writer, root string, nodes models.Tree) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tPREVIEW")
	nodes.Walk(root, func(parent string, n models.Node) {
		depth := strings.Count(strings.TrimPrefix(parent, root), models.Delimiter)
		indent := strings.Repeat("  ", depth)

		if n.IsFolder() {
			note := ""
			switch {
			case n.Error != "":
				note = "error: " + n.Error
			case n.Truncated:
				note = "truncated"
			}
			fmt.Fprintf(tw, "%s%s/\t-\t-\t%s\n", indent, n.Name(), note)
			return
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", indent, n.Name(), utils.FormatFileSize(n.Size),
			utils.FormatModified(n.LastModified, time.Local), utils.PreviewKindFor(n.Key, n.Size))
	})
	return tw.Flush()
}

func runURL(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("url", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	write := fs.Bool("write", false, "issue an upload capability instead of a read one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: bucketctl url [--write] <key>")
	}

	issue := c.SignedURL
	if *write {
		issue = c.UploadURL
	}
	capability, err := issue(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, capability.URL)
	fmt.Fprintf(stderr, "%s %s, expires %s\n", capability.Operation.Method(), capability.Key, capability.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}

func runGet(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("get", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.StringP("output", "o", "", "write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: bucketctl get [-o file] <key>")
	}

	if *output == "" {
		_, err := c.Download(ctx, fs.Arg(0), stdout)
		return err
	}
	n, err := downloadFile(ctx, c, fs.Arg(0), *output)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "wrote %s to %s\n", utils.FormatFileSize(n), *output)
	return nil
}

// downloadFile writes key to a temporary file next to path and renames it
// into place only once every byte arrived, so a failed download leaves any
// existing file at path untouched.
func downloadFile(ctx context.Context, c *client.Client, key, path string) (n int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if n, err = c.Download(ctx, key, tmp); err != nil {
		return 0, err
	}
	if err = tmp.Close(); err != nil {
		return 0, err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return n, nil
}

func runUpload(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("upload", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	name := fs.String("name", "", "object name inside the folder (default: the file's base name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errors.New("usage: bucketctl upload [--name name] <file> [folder]")
	}

	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	basename := *name
	if basename == "" {
		basename = filepath.Base(path)
	}
	key, err := c.Upload(ctx, fs.Arg(1), basename, f, info.Size())
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "%s\t%s\n", key, utils.FormatFileSize(info.Size()))
	return nil
}

func runRemove(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: bucketctl rm <key>")
	}
	if err := c.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted %s\n", args[0])
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

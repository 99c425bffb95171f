// geostamp: stamp a coordinate onto a photo from the command line, and
// optionally file it in a local attachment store.
//
//	geostamp -in site.jpg -lat 37.7749 -lon -122.4194 -out stamped.jpg
//	geostamp -in site.jpg -lat 37.7749 -lon -122.4194 -db geostamp.db -record 001xx000003DGb2AAG
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/go-geostamp/internal/log"
	"github.com/teslashibe/go-geostamp/pkg/annotate"
	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/records"
	"github.com/teslashibe/go-geostamp/pkg/upload"
	"github.com/teslashibe/go-geostamp/pkg/workflow"
)

func main() {
	in := flag.String("in", "", "Input photo (JPEG, PNG, GIF, BMP, TIFF or WebP)")
	out := flag.String("out", "", "Write the stamped JPEG here")
	lat := flag.Float64("lat", 0, "Latitude in decimal degrees")
	lon := flag.Float64("lon", 0, "Longitude in decimal degrees")
	dbPath := flag.String("db", "", "Also store the result in this SQLite attachment store")
	recordID := flag.String("record", "", "Record the attachment is linked to (with -db)")
	name := flag.String("name", upload.DefaultFileName, "Attachment file name (with -db)")
	width := flag.Int("width", 800, "Maximum output width")
	color := flag.String("color", "white", "Overlay color")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log.Init(level)

	if *in == "" || (*out == "" && *dbPath == "") {
		fmt.Fprintln(os.Stderr, "usage: geostamp -in photo.jpg -lat LAT -lon LON [-out stamped.jpg] [-db store.db -record ID]")
		os.Exit(2)
	}
	if *dbPath != "" && *recordID == "" {
		fmt.Fprintln(os.Stderr, "geostamp: -db needs -record")
		os.Exit(2)
	}

	if err := run(*in, *out, *dbPath, *recordID, *name, geo.Coordinate{Latitude: *lat, Longitude: *lon}, *width, *color); err != nil {
		fmt.Fprintf(os.Stderr, "geostamp: %v\n", err)
		os.Exit(1)
	}
}

func run(in, out, dbPath, recordID, name string, c geo.Coordinate, width int, color string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ann, err := annotate.New(
		annotate.WithMaxWidth(width),
		annotate.WithColor(color),
		annotate.WithLogger(log.L()),
	)
	if err != nil {
		return err
	}

	// Without -db nothing is uploaded; the mock only satisfies the workflow.
	var repo records.Repository = records.NewMock()
	if dbPath != "" {
		store, err := records.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		repo = store
	}

	wf, err := workflow.New(workflow.Config{
		Locator:        geo.NewStatic(c),
		Camera:         capture.NewDevice(capture.NewFileScanner(in), log.L()),
		Annotator:      ann,
		Uploader:       upload.NewCoordinator(repo, log.L()),
		LinkedRecordID: recordID,
		FileName:       name,
		Logger:         log.L(),
	})
	if err != nil {
		return err
	}
	if err := wf.Start(ctx); err != nil {
		if errors.Is(err, geo.ErrCapabilityUnavailable) {
			return fmt.Errorf("coordinate %s is out of range", c)
		}
		return err
	}

	sess, err := wf.Capture(ctx)
	if err != nil {
		return err
	}
	img := sess.Annotated

	if out != "" {
		if err := os.WriteFile(out, img.Data, 0o644); err != nil {
			return err
		}
		fmt.Printf("%s: %dx%d %q\n", out, img.Width, img.Height, img.Text)
	}

	if dbPath != "" {
		receipt, err := wf.Upload(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("stored %s as %s (%d bytes)\n", receipt.FileName, receipt.RecordID, receipt.Bytes)
	}
	return nil
}

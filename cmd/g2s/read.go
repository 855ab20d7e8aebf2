package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/go2scope/g2s/datastore"
	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

// DoRead opens a saved dataset and prints every image it holds.
func DoRead(ctx context.Context, path string) error {
	client, err := storage.NewClient(storeConfig())
	if err != nil {
		return err
	}
	defer client.Close()

	d := datastore.NewDataset(client, datastore.WithReadCache(*readMB*g2s.Mega))
	if err := d.OpenExisting(path); err != nil {
		return err
	}
	defer d.Close()

	summary := d.SummaryMetadata()
	fmt.Printf("Dataset %s: axes %s, shape %v, %s\n", path, d.Axes(), d.Shape(), summary.PixelType)

	start := time.Now()
	coords, err := d.ImageCoords()
	if err != nil {
		return err
	}
	var total uint64
	for i, c := range coords {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, found, err := d.GetImage(c)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		total += uint64(len(img.Pixels))
		idx, _ := img.Metadata.ImageIndex()
		fmt.Printf("Image %d %s: %dx%d %s, %s, index %d, %d metadata keys\n", i, c,
			img.Width, img.Height, img.PixelType, humanize.Bytes(uint64(len(img.Pixels))), idx, len(img.Metadata))
	}
	elapsed := time.Since(start)
	fmt.Printf("Read %d images (%s) in %s: %s/s\n", len(coords), humanize.Bytes(total), elapsed,
		humanize.Bytes(uint64(float64(total)/elapsed.Seconds())))
	return nil
}
